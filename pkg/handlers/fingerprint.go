package handlers

import (
	"context"
	"strings"

	"github.com/jadylc/inviter-scout/internal/domain"
	"github.com/jadylc/inviter-scout/internal/logger"
)

// Prober decides by page content whether an unclaimed site runs a supported
// engine. It fetches a handful of candidate pages and tests their bodies
// against a fingerprint list; verdicts are memoized in a TTL cache so
// unsupported sites are not re-probed every run.
type Prober struct {
	fetch *PageFetcher
	cache VerdictCache
}

// VerdictCache stores probe outcomes per site URL.
type VerdictCache interface {
	Verdict(siteURL string) (supported bool, known bool, err error)
	SetVerdict(siteURL string, supported bool) error
}

// NewProber builds a prober; a nil cache disables memoization.
func NewProber(fetch *PageFetcher, cache VerdictCache) *Prober {
	return &Prober{fetch: fetch, cache: cache}
}

// probePaths are the candidate pages fetched during fingerprinting, ordered
// by how revealing they tend to be.
var probePaths = []string{
	"/userdetails.php?id=0",
	"/my.php",
	"/profile.php",
	"/usercp.php",
	"/",
}

// engineFingerprints are content signatures of supported engines: markup
// classes, script variables, canonical page names, and bilingual profile
// keywords. Matching needs a userdetails-family hit plus enough corroborating
// signatures to avoid claiming arbitrary PHP sites.
var engineFingerprints = []string{
	"NexusPHP",
	"nexusphp",
	"userdetails.php",
	"userdetails",
	"takelogin.php",
	"torrents.php",
	"forums.php",
	"my.php",
	"rowhead",
	"userinfo",
	"var SITENAME",
	"var BASEURL",
	"var USERNAME",
	"邀请人",
	"Inviter",
	"上传量",
	"Uploaded",
	"下载量",
	"Downloaded",
}

// userdetailsFamily are the fingerprints that must be present for a
// positive verdict; they anchor the profile-page URL convention the
// generic engine depends on.
var userdetailsFamily = []string{
	"userdetails.php",
	"userdetails",
}

// homepageSignatures are strong engine markers accepted on the site root
// alone when the profile probes are unreachable.
var homepageSignatures = []string{
	"NexusPHP",
	"var SITENAME",
	"var BASEURL",
}

const minFingerprintHits = 4

// Supported reports whether the site's content matches a supported engine.
func (p *Prober) Supported(ctx context.Context, creds domain.SiteCredentials) bool {
	if p.cache != nil {
		if supported, known, err := p.cache.Verdict(creds.URL); err == nil && known {
			logger.DebugObj("probe verdict from cache", "probe_cache", map[string]any{
				"site":      creds.Name,
				"supported": supported,
			})
			return supported
		}
	}

	supported := p.probe(ctx, creds)

	if p.cache != nil {
		if err := p.cache.SetVerdict(creds.URL, supported); err != nil {
			logger.WarnObj("probe cache write failed", "probe_cache_error", map[string]any{
				"site":  creds.Name,
				"error": err.Error(),
			})
		}
	}
	return supported
}

func (p *Prober) probe(ctx context.Context, creds domain.SiteCredentials) bool {
	base := strings.TrimRight(creds.URL, "/")

	for _, path := range probePaths {
		if ctx.Err() != nil {
			return false
		}

		body := p.fetch.Source(ctx, base+path, creds)
		if body == "" {
			continue
		}

		if path == "/" {
			if matchesAny(body, homepageSignatures) {
				logger.InfoObj("site engine recognized from homepage", "probe_hit", map[string]any{
					"site": creds.Name,
				})
				return true
			}
			continue
		}

		if matchesFingerprints(body) {
			logger.InfoObj("site engine recognized", "probe_hit", map[string]any{
				"site": creds.Name,
				"path": path,
			})
			return true
		}
	}

	logger.InfoObj("site engine not recognized", "probe_miss", map[string]any{
		"site": creds.Name,
	})
	return false
}

// matchesFingerprints requires a userdetails-family hit plus enough total
// corroborating signatures.
func matchesFingerprints(body string) bool {
	if !matchesAny(body, userdetailsFamily) {
		return false
	}

	hits := 0
	for _, fp := range engineFingerprints {
		if strings.Contains(body, fp) {
			hits++
		}
	}
	return hits >= minFingerprintHits
}

func matchesAny(body string, signatures []string) bool {
	for _, sig := range signatures {
		if strings.Contains(body, sig) {
			return true
		}
	}
	return false
}
