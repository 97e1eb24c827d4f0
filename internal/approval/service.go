// Package approval implements the approval workflow (spec §4.9): chain
// construction from the approval matrix, delegation resolution, HMAC
// email-token issuance, and concurrency-safe decision processing.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/email"
	"github.com/dukerupert/apcore/internal/repository"
	"github.com/dukerupert/apcore/internal/token"
)

// Config carries the settings process_create_approval_chain and
// process_approval_decision need beyond the database (spec §4.9, §6).
type Config struct {
	TokenSecret       []byte
	TokenExpireHours  int
	DefaultDueHours   int
	FraudCriticalScore int
	AppBaseURL        string
}

// Service runs approval-chain construction and decision processing against
// a pool-bound *repository.Queries; ProcessApprovalDecision opens its own
// transaction on it, mirroring the internal/matching package's convention.
type Service struct {
	q      *repository.Queries
	mailer *email.Service
	cfg    Config
}

func NewService(q *repository.Queries, mailer *email.Service, cfg Config) *Service {
	return &Service{q: q, mailer: mailer, cfg: cfg}
}

// BuildApprovalChain resolves the ordered approval-matrix rules covering an
// invoice's amount, department, and category (spec §4.9's
// build_approval_chain). A nil rule bound matches any invoice; a non-nil
// department/category bound must equal the invoice's own value exactly.
func (s *Service) BuildApprovalChain(ctx context.Context, inv domain.Invoice) ([]domain.ApprovalChainStep, error) {
	rules, err := s.q.ListActiveMatrixRules(ctx)
	if err != nil {
		return nil, err
	}

	total, _ := inv.TotalAmount.Float64()
	return chainSteps(rules, total, inv.Department, inv.Category), nil
}

// RequiredApprovalCount implements spec §4.9's dual-authorization rule: an
// invoice whose fraud score has reached the critical threshold requires two
// independent approvals on its first step instead of one.
func RequiredApprovalCount(stepOrder int, fraudScore, criticalThreshold int) int {
	if stepOrder == 1 && fraudScore >= criticalThreshold {
		return 2
	}
	return 1
}

// resolveApprover substitutes an active delegate for approverID, if one
// covers the current instant (spec §4.9 step 1).
func (s *Service) resolveApprover(ctx context.Context, approverID uuid.UUID, now time.Time) (actual uuid.UUID, delegatedFrom *uuid.UUID, err error) {
	delegations, err := s.q.ActiveDelegationsFor(ctx, approverID, now)
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	for _, d := range delegations {
		if d.Active(now) {
			from := approverID
			return d.DelegateID, &from, nil
		}
	}
	return approverID, nil, nil
}

// CreateApprovalTask implements spec §4.9 end to end for a single chain
// step: delegation resolution, task creation, approve/reject token
// issuance, an audit entry, and the approval-request notification.
func (s *Service) CreateApprovalTask(ctx context.Context, inv domain.Invoice, approverID uuid.UUID, stepOrder, requiredCount int) (domain.ApprovalTask, error) {
	now := time.Now()

	actualApprover, delegatedFrom, err := s.resolveApprover(ctx, approverID, now)
	if err != nil {
		return domain.ApprovalTask{}, err
	}

	dueHours := s.cfg.DefaultDueHours
	if dueHours == 0 {
		dueHours = 72
	}

	task, err := s.q.CreateApprovalTask(ctx, domain.ApprovalTask{
		InvoiceID:     inv.ID,
		ApproverID:    actualApprover,
		StepOrder:     stepOrder,
		RequiredCount: requiredCount,
		Status:        domain.TaskPending,
		DueAt:         now.Add(time.Duration(dueHours) * time.Hour),
		DelegatedToID: delegatedFrom,
	})
	if err != nil {
		return domain.ApprovalTask{}, err
	}

	approveTok, err := token.Issue(s.cfg.TokenSecret, task.ID, domain.ActionApprove)
	if err != nil {
		return domain.ApprovalTask{}, err
	}
	rejectTok, err := token.Issue(s.cfg.TokenSecret, task.ID, domain.ActionReject)
	if err != nil {
		return domain.ApprovalTask{}, err
	}

	expiresAt := now.Add(time.Duration(s.cfg.TokenExpireHours) * time.Hour)
	if _, err := s.q.CreateApprovalToken(ctx, domain.ApprovalToken{
		TaskID: task.ID, TokenHash: approveTok.Hash, Action: domain.ActionApprove, ExpiresAt: expiresAt,
	}); err != nil {
		return domain.ApprovalTask{}, err
	}
	if _, err := s.q.CreateApprovalToken(ctx, domain.ApprovalToken{
		TaskID: task.ID, TokenHash: rejectTok.Hash, Action: domain.ActionReject, ExpiresAt: expiresAt,
	}); err != nil {
		return domain.ApprovalTask{}, err
	}

	if _, err := s.q.InsertAuditLog(ctx, domain.AuditLog{
		Action:     "approval_task.created",
		EntityType: "approval_task",
		EntityID:   task.ID,
	}); err != nil {
		return domain.ApprovalTask{}, err
	}

	if err := s.sendApprovalRequest(ctx, inv, task, actualApprover, approveTok.Raw, rejectTok.Raw); err != nil {
		return domain.ApprovalTask{}, err
	}

	return task, nil
}

// sendApprovalRequest implements spec §6's send_approval_request: one email
// with both decision links, addressed to the resolved approver (who may be
// a delegate).
func (s *Service) sendApprovalRequest(ctx context.Context, inv domain.Invoice, task domain.ApprovalTask, approverID uuid.UUID, approveRaw, rejectRaw string) error {
	if s.mailer == nil {
		return nil
	}

	approver, err := s.q.GetUser(ctx, approverID)
	if err != nil {
		return err
	}

	approveURL := fmt.Sprintf("%s/approvals/decide?token=%s", s.cfg.AppBaseURL, approveRaw)
	rejectURL := fmt.Sprintf("%s/approvals/decide?token=%s", s.cfg.AppBaseURL, rejectRaw)

	return s.mailer.SendApprovalRequest(ctx, approver.Email, email.ApprovalRequestEmail{
		ApproverName:  approver.Name,
		InvoiceNumber: inv.InvoiceNumber,
		VendorName:    inv.VendorNameRaw,
		TotalAmount:   fmt.Sprintf("%s %s", inv.TotalAmount.StringFixed(2), inv.Currency),
		DueAt:         task.DueAt,
		StepOrder:     task.StepOrder,
		ApproveURL:    approveURL,
		RejectURL:     rejectURL,
		ExpiresAt:     time.Now().Add(time.Duration(s.cfg.TokenExpireHours) * time.Hour),
	})
}

// DecisionInput describes one incoming approve/reject request (spec §4.9's
// process_approval_decision), regardless of channel.
type DecisionInput struct {
	TaskID   uuid.UUID
	Action   domain.DecisionAction
	Channel  domain.DecisionChannel
	ActorID  *uuid.UUID // web channel: the authenticated user
	RawToken string     // email channel: the token from the link
	Notes    string
}

// ProcessApprovalDecision implements spec §4.9's process_approval_decision:
// channel-specific authorization, a single authoritative row-locked load of
// the task, the required-count gate, and the resulting invoice transition,
// all within one transaction opened on s.q so the GetApprovalTaskForUpdate
// lock holds until the decision is fully recorded — at most one decision
// can ever commit against a given task.
func (s *Service) ProcessApprovalDecision(ctx context.Context, in DecisionInput) (domain.ApprovalTask, error) {
	if in.Action != domain.ActionApprove && in.Action != domain.ActionReject {
		return domain.ApprovalTask{}, domain.ErrInvalidAction
	}

	tx, err := s.q.BeginTx(ctx)
	if err != nil {
		return domain.ApprovalTask{}, err
	}
	defer tx.Rollback(ctx)

	txs := &Service{q: repository.WithTx(tx), mailer: s.mailer, cfg: s.cfg}
	task, err := txs.processDecision(ctx, in)
	if err != nil {
		return domain.ApprovalTask{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ApprovalTask{}, err
	}
	return task, nil
}

// processDecision is ProcessApprovalDecision's body, executed against a
// *repository.Queries already bound to the transaction it opened.
func (s *Service) processDecision(ctx context.Context, in DecisionInput) (domain.ApprovalTask, error) {
	task, err := s.q.GetApprovalTaskForUpdate(ctx, in.TaskID)
	if err != nil {
		return domain.ApprovalTask{}, err
	}
	if !task.CanDecide() {
		return domain.ApprovalTask{}, domain.ErrTaskAlreadyDecided
	}

	if err := s.authorize(ctx, task, in); err != nil {
		return domain.ApprovalTask{}, err
	}

	inv, err := s.q.GetInvoiceForUpdate(ctx, task.InvoiceID)
	if err != nil {
		return domain.ApprovalTask{}, err
	}

	if in.Action == domain.ActionReject {
		if err := s.q.DecideApprovalTask(ctx, task.ID, domain.TaskRejected, task.ApprovedCount, in.Channel); err != nil {
			return domain.ApprovalTask{}, err
		}
		if domain.CanTransition(inv.Status, domain.InvoiceRejected) {
			if err := s.q.UpdateInvoiceStatus(ctx, inv.ID, domain.InvoiceRejected); err != nil {
				return domain.ApprovalTask{}, err
			}
		}
		task.Status = domain.TaskRejected
		return task, s.writeDecisionAudit(ctx, task, in, "approval_task.rejected")
	}

	approvedCount := task.ApprovedCount + 1
	nextStatus := domain.TaskPartiallyApproved
	if approvedCount >= task.RequiredCount {
		nextStatus = domain.TaskApproved
	}
	if err := s.q.DecideApprovalTask(ctx, task.ID, nextStatus, approvedCount, in.Channel); err != nil {
		return domain.ApprovalTask{}, err
	}
	task.Status, task.ApprovedCount = nextStatus, approvedCount

	if nextStatus == domain.TaskApproved && domain.CanTransition(inv.Status, domain.InvoiceApproved) {
		if err := s.q.UpdateInvoiceStatus(ctx, inv.ID, domain.InvoiceApproved); err != nil {
			return domain.ApprovalTask{}, err
		}
	}

	return task, s.writeDecisionAudit(ctx, task, in, "approval_task.approved")
}

// authorize implements the channel-specific checks of spec §4.9: an email
// decision must present a valid, unused, unexpired token for this exact
// (task, action) pair; a web decision must come from the assigned approver
// or an ADMIN.
func (s *Service) authorize(ctx context.Context, task domain.ApprovalTask, in DecisionInput) error {
	switch in.Channel {
	case domain.ChannelEmail:
		taskID, action, err := token.Parse(in.RawToken)
		if err != nil {
			return err
		}
		if taskID != task.ID || action != in.Action {
			return domain.ErrTokenNotFound
		}

		tok, err := s.q.GetApprovalTokenForUpdate(ctx, token.Hash(s.cfg.TokenSecret, in.RawToken), in.Action)
		if err != nil {
			return err
		}
		if tok == nil {
			return domain.ErrTokenNotFound
		}
		if tok.IsUsed {
			return domain.ErrTokenUsed
		}
		if tok.Expired(time.Now()) {
			return domain.ErrTokenExpired
		}
		if err := s.q.MarkApprovalTokenUsed(ctx, tok.ID); err != nil {
			return err
		}
		return nil

	case domain.ChannelWeb:
		if in.ActorID == nil {
			return domain.ErrTaskNotAssigned
		}
		if *in.ActorID == task.ApproverID {
			return nil
		}
		actor, err := s.q.GetUser(ctx, *in.ActorID)
		if err != nil {
			return err
		}
		if actor.Role == "ADMIN" {
			return nil
		}
		return domain.ErrTaskNotAssigned

	default:
		return domain.ErrInvalidAction
	}
}

func (s *Service) writeDecisionAudit(ctx context.Context, task domain.ApprovalTask, in DecisionInput, action string) error {
	_, err := s.q.InsertAuditLog(ctx, domain.AuditLog{
		ActorID:    in.ActorID,
		Action:     action,
		EntityType: "approval_task",
		EntityID:   task.ID,
		Notes:      in.Notes,
	})
	return err
}
