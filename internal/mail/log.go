package mail

import (
	"context"
	"log/slog"
)

// LogMailer writes mail to the log instead of sending it. Default for dev
// environments without SMTP or a broker.
type LogMailer struct{}

func (LogMailer) SendVerification(ctx context.Context, to, code string) error {
	slog.Info("mail (log driver)", "template", TemplateVerification, "to", to, "code", code)
	return nil
}

func (LogMailer) SendPasswordRestore(ctx context.Context, to, code string) error {
	slog.Info("mail (log driver)", "template", TemplateRestorePassword, "to", to, "code", code)
	return nil
}
