package notify

import "context"

// Notifier delivers notifications to one downstream sink (SNS, SQS,
// Pub/Sub, HTTP, log). Delivery is fire-and-forget from the caller's point
// of view; this module never inspects delivery beyond the returned error.
type Notifier interface {
	ID() string
	Type() string
	Send(ctx context.Context, n Notification) error
}
