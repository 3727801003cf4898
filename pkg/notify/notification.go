package notify

import "time"

// Notification is the payload delivered to downstream sinks on run
// completion or abort.
type Notification struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	RunID  string    `json:"run_id"`
	SentAt time.Time `json:"sent_at"`
}

// NewNotification constructs a Notification stamped with the current time.
func NewNotification(runID, title, body string) Notification {
	return Notification{
		Title:  title,
		Body:   body,
		RunID:  runID,
		SentAt: time.Now().UTC(),
	}
}
