package handlers

import (
	"github.com/jadylc/inviter-scout/internal/logger"
)

// Factory builds a fresh handler instance; each selected handler owns its
// own HTTP session and is discarded after one site-processing pass.
type Factory func() Handler

// Registry holds the fixed, ordered handler registration list. Selection is
// strict priority: first factory whose handler claims the URL wins. There
// is no runtime discovery; the list is assembled at startup.
type Registry struct {
	factories []Factory
}

// NewRegistry builds a registry over the given factories in order.
func NewRegistry(factories ...Factory) *Registry {
	fs := make([]Factory, 0, len(factories))
	for _, f := range factories {
		if f != nil {
			fs = append(fs, f)
		}
	}
	return &Registry{factories: fs}
}

// DefaultRegistry wires the known handlers: per-site handlers first, the
// generic engine last. A nil client means real per-site sessions.
func DefaultRegistry(client HTTPClient, retries int) *Registry {
	return NewRegistry(
		func() Handler { return NewMTeamHandler(client, retries) },
		func() Handler { return NewToTheGloryHandler(client, retries) },
		func() Handler { return NewGenericHandler(client, retries) },
	)
}

// Select returns the first handler claiming the URL, or nil when none
// match. A panicking Match is logged and treated as a non-match; a broken
// handler must never take down handler selection.
func (r *Registry) Select(siteURL string) Handler {
	if r == nil || siteURL == "" {
		return nil
	}

	for _, factory := range r.factories {
		h := factory()
		if h == nil {
			continue
		}
		if safeMatch(h, siteURL) {
			logger.DebugObj("handler selected", "handler_match", map[string]any{
				"handler": h.Name(),
				"url":     siteURL,
			})
			return h
		}
	}
	return nil
}

// Generic returns a fresh instance of the generic engine, used after a
// positive fingerprint probe on sites no handler claimed by URL.
func (r *Registry) Generic() Handler {
	if r == nil || len(r.factories) == 0 {
		return nil
	}
	return r.factories[len(r.factories)-1]()
}

func safeMatch(h Handler, siteURL string) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorObj("handler match panicked", "handler_panic", map[string]any{
				"handler": h.Name(),
				"url":     siteURL,
				"panic":   rec,
			})
			matched = false
		}
	}()
	return h.Match(siteURL)
}
