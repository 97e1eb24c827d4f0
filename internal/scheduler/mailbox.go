package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/jobs"
	"github.com/dukerupert/apcore/internal/repository"
)

var attachmentSuffixes = map[string]bool{".pdf": true, ".png": true, ".jpg": true, ".jpeg": true}

// runMailboxPoll implements spec §4.11's mailbox poll: scan the inbox
// directory for .eml files, ingest every pdf/png/jpg/jpeg attachment as an
// invoice, then move the message aside so the next tick doesn't re-ingest
// it — the spec is silent on this, but without it every 5-minute tick
// would recreate the same invoices for as long as the file sat in the
// directory.
func (s *Scheduler) runMailboxPoll(ctx context.Context) {
	entries, err := os.ReadDir(s.cfg.MailboxInboxDir)
	if err != nil {
		s.log.Error().Err(err).Str("dir", s.cfg.MailboxInboxDir).Msg("mailbox poll: read inbox dir")
		return
	}

	processedDir := filepath.Join(s.cfg.MailboxInboxDir, ".processed")
	if err := os.MkdirAll(processedDir, 0755); err != nil {
		s.log.Error().Err(err).Msg("mailbox poll: create processed dir")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
			continue
		}

		path := filepath.Join(s.cfg.MailboxInboxDir, entry.Name())
		if err := s.ingestMessage(ctx, path); err != nil {
			s.log.Error().Err(err).Str("file", entry.Name()).Msg("mailbox poll: ingest message")
			continue
		}

		if err := os.Rename(path, filepath.Join(processedDir, entry.Name())); err != nil {
			s.log.Error().Err(err).Str("file", entry.Name()).Msg("mailbox poll: move processed message")
		}
	}
}

func (s *Scheduler) ingestMessage(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open message: %w", err)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return fmt.Errorf("parse message: %w", err)
	}

	sender := msg.Header.Get("From")

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		// A plain-text message with no attachments carries no invoice.
		return nil
	}

	attachments, err := extractAttachments(msg.Body, params["boundary"])
	if err != nil {
		return fmt.Errorf("extract attachments: %w", err)
	}

	for _, att := range attachments {
		if err := s.ingestAttachment(ctx, sender, att); err != nil {
			s.log.Error().Err(err).Str("attachment", att.filename).Msg("mailbox poll: ingest attachment")
		}
	}
	return nil
}

type attachment struct {
	filename string
	mimeType string
	data     []byte
}

func (s *Scheduler) ingestAttachment(ctx context.Context, sender string, att attachment) error {
	ext := strings.ToLower(filepath.Ext(att.filename))
	if !attachmentSuffixes[ext] {
		return nil
	}

	inv, err := s.q.CreateInvoice(ctx, repository.CreateInvoiceParams{
		FileName:    att.filename,
		FileSize:    int64(len(att.data)),
		MimeType:    att.mimeType,
		Source:      domain.SourceEmail,
		SourceEmail: sender,
	})
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}

	key := fmt.Sprintf("invoices/%s/%s", inv.ID, att.filename)
	if _, err := s.blob.Put(ctx, key, newByteReader(att.data), att.mimeType); err != nil {
		return fmt.Errorf("store attachment: %w", err)
	}
	if err := s.q.UpdateInvoiceStoragePath(ctx, inv.ID, key); err != nil {
		return fmt.Errorf("update storage path: %w", err)
	}

	if _, err := s.q.InsertAuditLog(ctx, domain.AuditLog{
		Action: "invoice.ingested_from_email", EntityType: "invoice", EntityID: inv.ID,
		Notes: fmt.Sprintf("from %s", sender),
	}); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	return jobs.EnqueuePipelineRun(ctx, s.q, s.broker, inv.ID)
}

// extractAttachments walks a multipart MIME body (recursing into nested
// multipart/mixed and multipart/alternative parts) and decodes every part
// that declares a filename, regardless of content-transfer-encoding
// quirks multipart.Reader already normalizes.
func extractAttachments(body io.Reader, boundary string) ([]attachment, error) {
	if boundary == "" {
		return nil, fmt.Errorf("missing multipart boundary")
	}

	var out []attachment
	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}

		filename := part.FileName()
		if filename == "" {
			if mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type")); err == nil && strings.HasPrefix(mediaType, "multipart/") {
				data, readErr := io.ReadAll(part)
				if readErr != nil {
					return out, readErr
				}
				nested, nestedErr := extractAttachments(bytes.NewReader(data), params["boundary"])
				if nestedErr != nil {
					return out, nestedErr
				}
				out = append(out, nested...)
			}
			continue
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return out, err
		}
		mimeType := part.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		out = append(out, attachment{filename: filename, mimeType: mimeType, data: data})
	}
	return out, nil
}

func newByteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
