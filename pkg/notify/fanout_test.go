package notify

import (
	"context"
	"errors"
	"testing"
)

type fakeNotifier struct {
	id   string
	typ  string
	err  error
	sent []Notification
}

func (f *fakeNotifier) ID() string   { return f.id }
func (f *fakeNotifier) Type() string { return f.typ }
func (f *fakeNotifier) Send(_ context.Context, n Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func TestFanoutDeliversToAllNotifiers(t *testing.T) {
	a := &fakeNotifier{id: "a", typ: TypeLog}
	b := &fakeNotifier{id: "b", typ: TypeHTTP}
	f := NewFanout([]Notifier{a, b, nil})

	if f.Size() != 2 {
		t.Fatalf("Size = %d", f.Size())
	}

	n := NewNotification("run-1", "title", "body")
	count, err := f.Send(context.Background(), n)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d", count)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("deliveries a=%d b=%d", len(a.sent), len(b.sent))
	}
	if a.sent[0].RunID != "run-1" {
		t.Fatalf("run id = %q", a.sent[0].RunID)
	}
}

func TestFanoutCollectsErrorsButKeepsGoing(t *testing.T) {
	bad := &fakeNotifier{id: "bad", typ: TypeSQS, err: errors.New("queue down")}
	good := &fakeNotifier{id: "good", typ: TypeLog}
	f := NewFanout([]Notifier{bad, good})

	count, err := f.Send(context.Background(), NewNotification("run-1", "t", "b"))
	if err == nil {
		t.Fatalf("expected a joined error")
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
	if len(good.sent) != 1 {
		t.Fatalf("healthy notifier must still deliver")
	}
}

func TestEmptyFanoutIsANoop(t *testing.T) {
	var f *Fanout
	count, err := f.Send(context.Background(), Notification{})
	if err != nil || count != 0 {
		t.Fatalf("nil fanout: count=%d err=%v", count, err)
	}

	empty := NewFanout(nil)
	count, err = empty.Send(context.Background(), Notification{})
	if err != nil || count != 0 {
		t.Fatalf("empty fanout: count=%d err=%v", count, err)
	}
}
