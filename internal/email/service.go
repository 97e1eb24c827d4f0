package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"
)

// Service handles email composition and sending for the approval workflow
// and scheduler notifications (spec §6 email port, §4.9, §4.11).
type Service struct {
	sender        Sender
	fromAddress   string
	fromName      string
	templateCache *template.Template
}

// NewService creates a new email service, parsing every *.html template
// under templateDir/email.
func NewService(sender Sender, fromAddress, fromName, templateDir string) (*Service, error) {
	tmpl, err := template.New("").Funcs(emailTemplateFuncs()).ParseGlob(filepath.Join(templateDir, "email", "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Service{
		sender:        sender,
		fromAddress:   fromAddress,
		fromName:      fromName,
		templateCache: tmpl,
	}, nil
}

func emailTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}
}

// SendApprovalRequest delivers the one-click approve/reject email for an
// ApprovalTask, per spec §4.9 step 5.
func (s *Service) SendApprovalRequest(ctx context.Context, to string, data ApprovalRequestEmail) error {
	htmlBody, textBody, err := s.renderTemplate(data.TemplateName(), data)
	if err != nil {
		return fmt.Errorf("failed to render approval request template: %w", err)
	}

	msg := &Email{
		To:       []string{to},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send approval request email: %w", err)
	}
	return nil
}

// SendApprovalDecided notifies the requester once a task reaches a terminal
// decision (approved or rejected).
func (s *Service) SendApprovalDecided(ctx context.Context, to string, data ApprovalDecidedEmail) error {
	htmlBody, textBody, err := s.renderTemplate(data.TemplateName(), data)
	if err != nil {
		return fmt.Errorf("failed to render approval decided template: %w", err)
	}

	msg := &Email{
		To:       []string{to},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send approval decided email: %w", err)
	}
	return nil
}

// SendSLAAlert notifies an assignee of an approaching or breached due date
// (spec §4.11 SLA sweep).
func (s *Service) SendSLAAlert(ctx context.Context, to string, data SLAAlertEmail) error {
	htmlBody, textBody, err := s.renderTemplate(data.TemplateName(), data)
	if err != nil {
		return fmt.Errorf("failed to render SLA alert template: %w", err)
	}

	msg := &Email{
		To:       []string{to},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send SLA alert email: %w", err)
	}
	return nil
}

// SendExceptionAssigned notifies an assignee of a newly routed exception.
func (s *Service) SendExceptionAssigned(ctx context.Context, to string, data ExceptionAssignedEmail) error {
	htmlBody, textBody, err := s.renderTemplate(data.TemplateName(), data)
	if err != nil {
		return fmt.Errorf("failed to render exception assigned template: %w", err)
	}

	msg := &Email{
		To:       []string{to},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send exception assigned email: %w", err)
	}
	return nil
}

func (s *Service) renderTemplate(templateName string, data interface{}) (string, string, error) {
	var htmlBuf bytes.Buffer
	if err := s.templateCache.ExecuteTemplate(&htmlBuf, templateName, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	htmlBody := htmlBuf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText creates a simple plain text version from HTML.
func generatePlainText(html string) string {
	text := html

	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = strings.ReplaceAll(text, "</h1>", "\n\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")
	text = strings.ReplaceAll(text, "</h3>", "\n\n")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
