package notify

import (
	"context"

	"github.com/jadylc/inviter-scout/internal/logger"
)

// logNotifier writes notifications to the application log. It is the
// fallback sink when no external destination is configured.
type logNotifier struct {
	id  string
	typ string
}

func newLogNotifier(_ context.Context, cfg Config) (Notifier, error) {
	return &logNotifier{id: cfg.ID, typ: TypeLog}, nil
}

func (l *logNotifier) ID() string   { return l.id }
func (l *logNotifier) Type() string { return l.typ }

func (l *logNotifier) Send(_ context.Context, n Notification) error {
	logger.InfoObj(n.Title, "notification", map[string]any{
		"notifier_id": l.id,
		"run_id":      n.RunID,
		"body":        n.Body,
	})
	return nil
}
