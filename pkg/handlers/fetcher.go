package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jadylc/inviter-scout/internal/domain"
	"github.com/jadylc/inviter-scout/internal/logger"
	"github.com/jadylc/inviter-scout/pkg/httpclient"
)

const (
	// DefaultRetries is the total number of fetch attempts per URL.
	DefaultRetries = 3
	retryBackoff   = 2 * time.Second
)

// PageFetcher retrieves page sources for one site with bounded retries.
// Failures degrade to an empty string, never an error: page fetching is a
// best-effort step and callers treat "" as "no content".
type PageFetcher struct {
	client  httpclient.Client
	session *httpclient.SessionClient
	retries int
	backoff time.Duration
}

// NewPageFetcher builds a fetcher. A nil client means a per-site session is
// created lazily from the credentials of each fetch; tests inject mocks.
func NewPageFetcher(client httpclient.Client, retries int) *PageFetcher {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &PageFetcher{
		client:  client,
		retries: retries,
		backoff: retryBackoff,
	}
}

// clientFor returns the HTTP client to use for the given credentials,
// rebuilding the session when credentials differ from a prior use.
func (f *PageFetcher) clientFor(creds domain.SiteCredentials) httpclient.Client {
	if f.client != nil {
		return f.client
	}
	if f.session == nil {
		f.session = httpclient.NewSession()
	}
	f.session.Rebuild(creds)
	return f.session
}

// Source fetches the URL and returns the body text, or "" on any failure.
// 4xx statuses are permanent rejections and are not retried; 5xx and
// transport errors are retried with a fixed delay between attempts.
func (f *PageFetcher) Source(ctx context.Context, url string, creds domain.SiteCredentials) string {
	client := f.clientFor(creds)

	for attempt := 1; attempt <= f.retries; attempt++ {
		resp, err := client.Get(ctx, url, nil)
		if err == nil {
			status := resp.StatusCode()
			switch {
			case status >= 400 && status < 500:
				logger.WarnObj("page fetch rejected", "fetch_rejected", map[string]any{
					"site":   creds.Name,
					"url":    url,
					"status": status,
				})
				return ""
			case status >= 200 && status < 300:
				logger.DebugObj("page fetched", "fetch_ok", map[string]any{
					"site":    creds.Name,
					"url":     url,
					"bytes":   len(resp.Body()),
					"attempt": attempt,
				})
				return string(resp.Body())
			default:
				logger.WarnObj("page fetch bad status", "fetch_status", map[string]any{
					"site":    creds.Name,
					"url":     url,
					"status":  status,
					"attempt": attempt,
				})
			}
		} else {
			logger.WarnObj("page fetch failed", "fetch_error", map[string]any{
				"site":    creds.Name,
				"url":     url,
				"attempt": attempt,
				"error":   err.Error(),
			})
		}

		if attempt < f.retries {
			if !sleepCtx(ctx, f.backoff) {
				return ""
			}
		}
	}

	logger.WarnObj("page fetch exhausted retries", "fetch_exhausted", map[string]any{
		"site":    creds.Name,
		"url":     url,
		"retries": f.retries,
	})
	return ""
}

// Cookies exposes session cookies when the underlying client tracks them.
func (f *PageFetcher) Cookies(rawURL string) []*http.Cookie {
	var reader httpclient.CookieReader
	switch {
	case f.client != nil:
		r, ok := f.client.(httpclient.CookieReader)
		if !ok {
			return nil
		}
		reader = r
	case f.session != nil:
		reader = f.session
	default:
		return nil
	}
	return reader.Cookies(rawURL)
}

// sleepCtx waits for d or until the context is done; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
