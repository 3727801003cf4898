package scout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jadylc/inviter-scout/internal/domain"
	"github.com/jadylc/inviter-scout/internal/logger"
	"github.com/jadylc/inviter-scout/internal/store"
	"github.com/jadylc/inviter-scout/pkg/handlers"
	"github.com/jadylc/inviter-scout/pkg/notify"
	"github.com/jadylc/inviter-scout/pkg/sites"
)

// Service coordinates one scan pass across the configured sites: it selects
// a handler per site, extracts the inviter record, and persists results.
// Every per-site step is best effort; one broken site never stops the pass.
type Service struct {
	registry *handlers.Registry
	prober   *handlers.Prober
	results  *store.ResultStore
	fanout   *notify.Fanout
	now      func() time.Time
}

// Options tunes a single scan pass.
type Options struct {
	// Selected filters the pass to these site ids. Empty means all sites.
	Selected []string
	// ForceRefresh re-extracts sites that already have a stored record.
	ForceRefresh bool
	// Notify sends a summary notification when the pass completes or aborts.
	Notify bool
}

// Summary describes the outcome of one scan pass.
type Summary struct {
	RunID       string
	Processed   int
	Succeeded   int
	Skipped     int
	Unsupported int
	Failed      int
	// ByInviter maps site display name to the extracted inviter name.
	ByInviter map[string]string
	Elapsed   time.Duration
}

// NewService wires a scan service. The fanout may be nil when notifications
// are disabled.
func NewService(registry *handlers.Registry, prober *handlers.Prober, results *store.ResultStore, fanout *notify.Fanout) *Service {
	return &Service{
		registry: registry,
		prober:   prober,
		results:  results,
		fanout:   fanout,
		now:      time.Now,
	}
}

// Run executes one scan pass over the given sites. Cancellation is honored
// between sites and inside each site's fetch pipeline; an aborted pass
// returns the partial summary together with the context error.
func (s *Service) Run(ctx context.Context, siteList []sites.Site, opts Options) (Summary, error) {
	if s == nil || s.registry == nil || s.results == nil {
		return Summary{}, fmt.Errorf("scan service is not initialized")
	}

	start := s.now()
	summary := Summary{
		RunID:     start.UTC().Format("20060102-150405"),
		ByInviter: make(map[string]string),
	}

	stored, err := s.results.Load()
	if err != nil {
		return summary, fmt.Errorf("load stored results: %w", err)
	}

	selected := selectionSet(opts.Selected)

	logger.InfoObj("scan started", "scan_meta", map[string]any{
		"run_id":        summary.RunID,
		"sites_count":   len(siteList),
		"selected":      opts.Selected,
		"force_refresh": opts.ForceRefresh,
	})

	for _, site := range siteList {
		if ctx.Err() != nil {
			summary.Elapsed = s.now().Sub(start)
			s.notifyAborted(summary, opts)
			return summary, ctx.Err()
		}

		if !site.EnabledValue() {
			continue
		}
		if selected != nil && !selected[site.ID] {
			continue
		}

		summary.Processed++

		if !opts.ForceRefresh {
			if rec, ok := stored[site.Name]; ok && rec.InviterName != "" {
				summary.Skipped++
				logger.DebugObj("site already scanned", "scan_skip", map[string]any{
					"site": site.Name,
				})
				continue
			}
		}

		creds := site.Credentials()
		handler := s.handlerFor(ctx, creds)
		if handler == nil {
			summary.Unsupported++
			logger.InfoObj("site not supported by any handler", "scan_unsupported", map[string]any{
				"site": site.Name,
				"url":  site.URL,
			})
			continue
		}

		rec, err := s.scanSite(ctx, handler, creds)
		if err != nil {
			if ctx.Err() != nil {
				summary.Elapsed = s.now().Sub(start)
				s.notifyAborted(summary, opts)
				return summary, ctx.Err()
			}
			summary.Failed++
			logger.ErrorObj("site scan failed", "scan_error", map[string]any{
				"site":    site.Name,
				"handler": handler.Name(),
				"error":   err.Error(),
			})
			continue
		}

		if ctx.Err() != nil {
			summary.Elapsed = s.now().Sub(start)
			s.notifyAborted(summary, opts)
			return summary, ctx.Err()
		}

		rec.Stamp(s.now())
		if err := s.results.Put(site.Name, *rec); err != nil {
			summary.Failed++
			logger.ErrorObj("result persist failed", "scan_persist_error", map[string]any{
				"site":  site.Name,
				"error": err.Error(),
			})
			continue
		}

		summary.Succeeded++
		summary.ByInviter[site.Name] = rec.InviterName
		logger.InfoObj("site scanned", "scan_result", map[string]any{
			"site":    site.Name,
			"handler": handler.Name(),
			"inviter": rec.InviterName,
		})
	}

	summary.Elapsed = s.now().Sub(start)
	logger.InfoObj("scan completed", "scan_meta", map[string]any{
		"run_id":      summary.RunID,
		"processed":   summary.Processed,
		"succeeded":   summary.Succeeded,
		"skipped":     summary.Skipped,
		"unsupported": summary.Unsupported,
		"failed":      summary.Failed,
		"elapsed_ms":  summary.Elapsed.Milliseconds(),
	})

	s.notifyCompleted(ctx, summary, opts)
	return summary, nil
}

// handlerFor resolves the handler for a site: URL-claimed handlers first,
// then the generic engine after a positive fingerprint probe.
func (s *Service) handlerFor(ctx context.Context, creds domain.SiteCredentials) handlers.Handler {
	if h := s.registry.Select(creds.URL); h != nil {
		return h
	}
	if s.prober != nil && s.prober.Supported(ctx, creds) {
		return s.registry.Generic()
	}
	return nil
}

// scanSite runs one handler under panic isolation.
func (s *Service) scanSite(ctx context.Context, handler handlers.Handler, creds domain.SiteCredentials) (rec *domain.InviterRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("handler %s panicked: %v", handler.Name(), r)
		}
	}()

	rec, err = handler.InviterInfo(ctx, creds)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("handler %s returned no record", handler.Name())
	}
	return rec, nil
}

func (s *Service) notifyCompleted(ctx context.Context, summary Summary, opts Options) {
	if !opts.Notify || s.fanout.Size() == 0 {
		return
	}

	title := "Inviter scan completed"
	n := notify.NewNotification(summary.RunID, title, summaryBody(summary))
	if _, err := s.fanout.Send(ctx, n); err != nil {
		logger.WarnObj("summary notification failed", "notify_error", map[string]any{
			"run_id": summary.RunID,
			"error":  err.Error(),
		})
	}
}

// notifyAborted reports a cancelled pass. The run context is already dead,
// so delivery gets its own short deadline.
func (s *Service) notifyAborted(summary Summary, opts Options) {
	if !opts.Notify || s.fanout.Size() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n := notify.NewNotification(summary.RunID, "Inviter scan aborted", summaryBody(summary))
	if _, err := s.fanout.Send(ctx, n); err != nil {
		logger.WarnObj("abort notification failed", "notify_error", map[string]any{
			"run_id": summary.RunID,
			"error":  err.Error(),
		})
	}
}

// summaryBody renders a human-readable pass summary, sites sorted by name.
func summaryBody(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "processed=%d succeeded=%d skipped=%d unsupported=%d failed=%d elapsed=%s",
		summary.Processed, summary.Succeeded, summary.Skipped, summary.Unsupported,
		summary.Failed, summary.Elapsed.Round(time.Millisecond))

	if len(summary.ByInviter) == 0 {
		return b.String()
	}

	names := make([]string, 0, len(summary.ByInviter))
	for name := range summary.ByInviter {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(&b, "\n%s: %s", name, summary.ByInviter[name])
	}
	return b.String()
}

// selectionSet normalizes the site-id filter; nil means no filtering.
func selectionSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = true
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
