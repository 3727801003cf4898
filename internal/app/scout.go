package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jadylc/inviter-scout/internal/config"
	"github.com/jadylc/inviter-scout/internal/logger"
	"github.com/jadylc/inviter-scout/internal/scout"
	"github.com/jadylc/inviter-scout/internal/store"
	"github.com/jadylc/inviter-scout/pkg/handlers"
	"github.com/jadylc/inviter-scout/pkg/notify"
	"github.com/jadylc/inviter-scout/pkg/sites"
)

// Scout is the application runtime. It owns the scan loop, the site and
// notifier registries, the result store, and the probe cache.
type Scout struct {
	cfg          *config.Config
	siteReg      *sites.Registry
	fanout       *notify.Fanout
	scanService  *scout.Service
	scanInterval time.Duration
	results      *store.ResultStore
	probeCache   store.ProbeCache

	mu          sync.Mutex
	activeStop  context.CancelFunc
	runInFlight bool
}

// NewScout builds the runtime from config files.
func NewScout(ctx context.Context, cfg *config.Config) (*Scout, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	siteReg, err := sites.LoadRegistry(cfg.SitesFile)
	if err != nil {
		return nil, fmt.Errorf("load sites registry: %w", err)
	}
	siteList := siteReg.All()
	siteIDs := make([]string, 0, len(siteList))
	for _, s := range siteList {
		siteIDs = append(siteIDs, s.ID)
	}
	logger.InfoObj("sites registry loaded", "sites_meta", map[string]any{
		"count": len(siteIDs),
		"ids":   siteIDs,
	})

	fanout, err := buildFanout(ctx, cfg)
	if err != nil {
		return nil, err
	}

	results, err := store.NewResultStore(cfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("init result store: %w", err)
	}

	probeCache, err := store.NewProbeCache(cfg.ProbeCachePath, store.Options{
		ProbeTTL:        cfg.ProbeTTL,
		CleanupInterval: cfg.ProbeCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init probe cache: %w", err)
	}
	logger.InfoObj("probe cache initialized", "probe_cache_config", map[string]any{
		"path":                     cfg.ProbeCachePath,
		"ttl_seconds":              int(cfg.ProbeTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.ProbeCleanupInterval.Seconds()),
	})

	registry := handlers.DefaultRegistry(nil, cfg.FetchRetries)
	prober := handlers.NewProber(handlers.NewPageFetcher(nil, cfg.FetchRetries), probeCache)
	scanService := scout.NewService(registry, prober, results, fanout)

	return &Scout{
		cfg:          cfg,
		siteReg:      siteReg,
		fanout:       fanout,
		scanService:  scanService,
		scanInterval: cfg.ScanInterval,
		results:      results,
		probeCache:   probeCache,
	}, nil
}

// buildFanout assembles the notifier fanout. Notifications disabled means an
// empty fanout; a missing notifiers file is only an error when enabled.
func buildFanout(ctx context.Context, cfg *config.Config) (*notify.Fanout, error) {
	if !cfg.Notify {
		return notify.NewFanout(nil), nil
	}

	notifierReg, err := notify.LoadRegistry(cfg.NotifiersFile)
	if err != nil {
		return nil, fmt.Errorf("load notifiers registry: %w", err)
	}

	enabled := notifierReg.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("notifications enabled but no notifiers configured")
	}

	ns, err := notify.BuildAll(ctx, notify.DefaultRegistry(), enabled)
	if err != nil {
		return nil, fmt.Errorf("build notifiers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, c := range enabled {
		summaries = append(summaries, map[string]string{"id": c.ID, "type": c.Type})
	}
	logger.InfoObj("notifiers registry loaded", "notifiers_meta", map[string]any{
		"count":     len(summaries),
		"notifiers": summaries,
	})

	return notify.NewFanout(ns), nil
}

// Run starts the scan loop until the context is cancelled.
func (s *Scout) Run(ctx context.Context) error {
	if s == nil || s.scanService == nil {
		return fmt.Errorf("scout is not initialized")
	}
	defer s.closeProbeCache()

	siteList := s.siteReg.Active()
	if len(siteList) == 0 {
		logger.WarnObj("no active sites configured; scout idle", "sites_file", s.cfg.SitesFile)
		<-ctx.Done()
		return ctx.Err()
	}

	logger.InfoObj("scout loop starting", "scout_state", map[string]any{
		"sites_count":     len(siteList),
		"notifiers_count": s.fanout.Size(),
		"scan_interval":   s.scanInterval.String(),
	})

	if err := s.runPass(ctx, siteList); err != nil {
		logger.ErrorObj("initial scan failed", "error", err)
	}

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoObj("scout loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := s.runPass(ctx, siteList); err != nil {
				logger.ErrorObj("scheduled scan failed", "error", err)
			}
		}
	}
}

// RunOnce triggers an immediate scan pass in the background. A pass already
// in flight wins; the new request is dropped.
func (s *Scout) RunOnce(ctx context.Context, opts scout.Options) bool {
	s.mu.Lock()
	if s.runInFlight {
		s.mu.Unlock()
		logger.WarnObj("scan already running; request dropped", "scout_state", nil)
		return false
	}
	s.runInFlight = true
	runCtx, stop := context.WithCancel(ctx)
	s.activeStop = stop
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.runInFlight = false
			s.activeStop = nil
			s.mu.Unlock()
			stop()
		}()

		if _, err := s.scanService.Run(runCtx, s.siteReg.Active(), opts); err != nil {
			logger.ErrorObj("manual scan failed", "error", err)
		}
	}()
	return true
}

// Abort cancels the in-flight pass, if any. The pass notices at its next
// cancellation checkpoint; nothing is interrupted mid-write.
func (s *Scout) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeStop == nil {
		return false
	}
	s.activeStop()
	return true
}

// Snapshot returns the currently stored results.
func (s *Scout) Snapshot() (store.Results, error) {
	return s.results.Load()
}

// runPass runs one scheduled pass, tracking it so Abort can cancel it.
func (s *Scout) runPass(ctx context.Context, siteList []sites.Site) error {
	s.mu.Lock()
	if s.runInFlight {
		s.mu.Unlock()
		logger.WarnObj("previous scan still running; pass skipped", "scout_state", nil)
		return nil
	}
	s.runInFlight = true
	runCtx, stop := context.WithCancel(ctx)
	s.activeStop = stop
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.runInFlight = false
		s.activeStop = nil
		s.mu.Unlock()
		stop()
	}()

	_, err := s.scanService.Run(runCtx, siteList, scout.Options{
		Selected:     s.cfg.SelectedSites,
		ForceRefresh: s.cfg.ForceRefresh,
		Notify:       s.cfg.Notify,
	})
	return err
}

// closeProbeCache closes the probe cache, logging failures.
func (s *Scout) closeProbeCache() {
	if s == nil || s.probeCache == nil {
		return
	}
	if err := s.probeCache.Close(); err != nil {
		logger.ErrorObj("probe cache close failed", "error", err)
	}
}
