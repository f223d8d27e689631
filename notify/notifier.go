// Package notify delivers one-time verification codes to phones over
// an external SMS/WhatsApp gateway. Delivery is best-effort: callers
// treat a failed attempt as a logged event, not an operation failure.
package notify

import "context"

// DeliveryResult reports one delivery attempt.
type DeliveryResult struct {
	MessageID string
	Delivered bool
	Detail    string
}

// Notifier is the outbound gateway collaborator.
type Notifier interface {
	AttemptSend(ctx context.Context, phone, code string) (DeliveryResult, error)
}
