package notify

import (
	"context"
	"errors"
	"fmt"
)

// Fanout dispatches notifications to all configured notifiers.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout builds a dispatcher that fans notifications out across sinks.
func NewFanout(ns []Notifier) *Fanout {
	cp := make([]Notifier, 0, len(ns))
	for _, n := range ns {
		if n == nil {
			continue
		}
		cp = append(cp, n)
	}
	return &Fanout{notifiers: cp}
}

// Send forwards the notification to every registered notifier.
// It returns the number of notifiers that successfully handled it.
func (f *Fanout) Send(ctx context.Context, n Notification) (int, error) {
	if f == nil || len(f.notifiers) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, nt := range f.notifiers {
		if err := nt.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s notifier[%s]: %w", nt.Type(), nt.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// Size returns the number of active notifiers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.notifiers)
}
