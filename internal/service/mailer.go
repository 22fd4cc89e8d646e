package service

import "context"

// Mailer dispatches account email. Delivery is fire-and-forget from the
// caller's point of view: a send failure never rolls back the verification
// record it refers to.
type Mailer interface {
	SendVerification(ctx context.Context, to, code string) error
	SendPasswordRestore(ctx context.Context, to, code string) error
}

// TemplateRenderer turns a template id plus data into a message body.
// Injected so mail transports share one rendering path and no process-wide
// template registry exists.
type TemplateRenderer interface {
	Render(template string, data map[string]string) (string, error)
}
