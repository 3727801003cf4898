package scout

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jadylc/inviter-scout/internal/domain"
	"github.com/jadylc/inviter-scout/internal/store"
	"github.com/jadylc/inviter-scout/pkg/handlers"
	"github.com/jadylc/inviter-scout/pkg/notify"
	"github.com/jadylc/inviter-scout/pkg/sites"
)

// stubHandler claims every URL and returns a preset record.
type stubHandler struct {
	name    string
	matches bool
	rec     *domain.InviterRecord
	err     error
	panics  bool
	calls   int
}

func (h *stubHandler) Name() string       { return h.name }
func (h *stubHandler) Match(string) bool  { return h.matches }
func (h *stubHandler) InviterInfo(_ context.Context, _ domain.SiteCredentials) (*domain.InviterRecord, error) {
	h.calls++
	if h.panics {
		panic("handler exploded")
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.rec, nil
}

func registryOf(h handlers.Handler) *handlers.Registry {
	return handlers.NewRegistry(func() handlers.Handler { return h })
}

func newTestStore(t *testing.T) *store.ResultStore {
	t.Helper()
	s, err := store.NewResultStore(filepath.Join(t.TempDir(), "site_data.json"))
	if err != nil {
		t.Fatalf("NewResultStore: %v", err)
	}
	return s
}

func testSites() []sites.Site {
	return []sites.Site{
		{ID: "aud", Name: "Audiences", URL: "https://audiences.me"},
		{ID: "ttg", Name: "ToTheGlory", URL: "https://totheglory.im"},
	}
}

func TestServicePersistsStampedRecords(t *testing.T) {
	h := &stubHandler{
		name: "stub", matches: true,
		rec: &domain.InviterRecord{InviterName: "alice", InviterID: "42"},
	}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	summary, err := svc.Run(context.Background(), testSites(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 || summary.Succeeded != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.ByInviter["Audiences"] != "alice" {
		t.Fatalf("ByInviter = %+v", summary.ByInviter)
	}

	stored, err := results.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec := stored["Audiences"]
	if rec.InviterName != "alice" || rec.InviterID != "42" {
		t.Fatalf("stored = %+v", rec)
	}
	if rec.GetTime == "" {
		t.Fatalf("record must be stamped on persist")
	}
}

func TestServiceSkipsAlreadyScannedSites(t *testing.T) {
	h := &stubHandler{
		name: "stub", matches: true,
		rec: &domain.InviterRecord{InviterName: "alice"},
	}
	results := newTestStore(t)
	if err := results.Put("Audiences", domain.InviterRecord{InviterName: "bob"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	summary, err := svc.Run(context.Background(), testSites()[:1], Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Succeeded != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run for stored sites")
	}

	stored, _ := results.Load()
	if stored["Audiences"].InviterName != "bob" {
		t.Fatalf("stored record must be preserved: %+v", stored["Audiences"])
	}
}

func TestServiceForceRefreshRescans(t *testing.T) {
	h := &stubHandler{
		name: "stub", matches: true,
		rec: &domain.InviterRecord{InviterName: "alice"},
	}
	results := newTestStore(t)
	if err := results.Put("Audiences", domain.InviterRecord{InviterName: "bob"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	summary, err := svc.Run(context.Background(), testSites()[:1], Options{ForceRefresh: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded != 1 || h.calls != 1 {
		t.Fatalf("summary = %+v, calls = %d", summary, h.calls)
	}

	stored, _ := results.Load()
	if stored["Audiences"].InviterName != "alice" {
		t.Fatalf("stored = %+v", stored["Audiences"])
	}
}

func TestServiceSelectionFilter(t *testing.T) {
	h := &stubHandler{
		name: "stub", matches: true,
		rec: &domain.InviterRecord{InviterName: "alice"},
	}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	summary, err := svc.Run(context.Background(), testSites(), Options{Selected: []string{"ttg"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	stored, _ := results.Load()
	if _, ok := stored["Audiences"]; ok {
		t.Fatalf("unselected site must not be scanned")
	}
	if _, ok := stored["ToTheGlory"]; !ok {
		t.Fatalf("selected site missing from store")
	}
}

func TestServiceUnsupportedSiteLeavesStoreUntouched(t *testing.T) {
	h := &stubHandler{name: "stub", matches: false}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	summary, err := svc.Run(context.Background(), testSites()[:1], Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Unsupported != 1 || summary.Succeeded != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	stored, _ := results.Load()
	if len(stored) != 0 {
		t.Fatalf("store must stay untouched: %+v", stored)
	}
}

func TestServiceSkipsDisabledSites(t *testing.T) {
	h := &stubHandler{
		name: "stub", matches: true,
		rec: &domain.InviterRecord{InviterName: "alice"},
	}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	off := false
	siteList := []sites.Site{{ID: "aud", Name: "Audiences", URL: "https://audiences.me", Enabled: &off}}
	summary, err := svc.Run(context.Background(), siteList, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 0 || h.calls != 0 {
		t.Fatalf("summary = %+v, calls = %d", summary, h.calls)
	}
}

func TestServiceIsolatesHandlerPanics(t *testing.T) {
	h := &stubHandler{name: "stub", matches: true, panics: true}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	summary, err := svc.Run(context.Background(), testSites(), Options{})
	if err != nil {
		t.Fatalf("a panicking handler must not abort the pass: %v", err)
	}
	if summary.Failed != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestServiceContinuesPastHandlerErrors(t *testing.T) {
	h := &stubHandler{name: "stub", matches: true, err: errors.New("site exploded")}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	summary, err := svc.Run(context.Background(), testSites(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 2 || summary.Succeeded != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestServiceHonorsCancellation(t *testing.T) {
	h := &stubHandler{
		name: "stub", matches: true,
		rec: &domain.InviterRecord{InviterName: "alice"},
	}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, testSites(), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if h.calls != 0 {
		t.Fatalf("no site should be scanned after cancellation")
	}
}

// recordingNotifier captures sent notifications.
type recordingNotifier struct {
	sent []notify.Notification
}

func (r *recordingNotifier) ID() string   { return "rec" }
func (r *recordingNotifier) Type() string { return "log" }
func (r *recordingNotifier) Send(_ context.Context, n notify.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

func TestServiceSendsSummaryNotification(t *testing.T) {
	h := &stubHandler{
		name: "stub", matches: true,
		rec: &domain.InviterRecord{InviterName: "alice"},
	}
	rec := &recordingNotifier{}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout([]notify.Notifier{rec}))

	summary, err := svc.Run(context.Background(), testSites(), Options{Notify: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(rec.sent))
	}
	n := rec.sent[0]
	if n.RunID != summary.RunID {
		t.Errorf("run id = %q, want %q", n.RunID, summary.RunID)
	}
	if !strings.Contains(n.Body, "Audiences: alice") {
		t.Errorf("body missing per-site line: %q", n.Body)
	}
}

func TestServiceNoNotificationWhenDisabled(t *testing.T) {
	h := &stubHandler{
		name: "stub", matches: true,
		rec: &domain.InviterRecord{InviterName: "alice"},
	}
	rec := &recordingNotifier{}
	results := newTestStore(t)
	svc := NewService(registryOf(h), nil, results, notify.NewFanout([]notify.Notifier{rec}))

	if _, err := svc.Run(context.Background(), testSites(), Options{Notify: false}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.sent) != 0 {
		t.Fatalf("expected no notifications, got %d", len(rec.sent))
	}
}
