package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jadylc/inviter-scout/internal/domain"
	"github.com/jadylc/inviter-scout/internal/logger"
)

// GenericHandler is the NexusPHP-style extraction engine: a broad URL match
// plus the full resolve/fetch/locate/extract state machine with the long
// generic rule cascade. Per-site handlers take priority over it because
// their rules are precise where this cascade is deliberately over-broad.
type GenericHandler struct {
	fetch    *PageFetcher
	identity *IdentityResolver
}

// NewGenericHandler builds the generic engine. A nil client means real
// per-site sessions; tests inject mocks.
func NewGenericHandler(client HTTPClient, retries int) *GenericHandler {
	fetch := NewPageFetcher(client, retries)
	return &GenericHandler{
		fetch:    fetch,
		identity: NewIdentityResolver(fetch),
	}
}

// specialSites are known engines with dedicated handlers or markup this
// engine cannot read; the generic match must never claim them.
var specialSites = []string{
	"m-team",
	"totheglory",
	"hdchina",
	"butterfly",
	"dmhy",
}

// engineURLFeatures are URL substrings observed across standard NexusPHP
// deployments and close forks.
var engineURLFeatures = []string{
	"php",
	"nexus",
	"agsvpt",
	"audiences",
	"hdpt",
	"wintersakura",
	"hdmayi",
	"u2.dmhy",
	"hddolby",
	"hdarea",
	"pt.soulvoice",
	"ptsbao",
	"hdhome",
	"hdatmos",
	"1ptba",
	"keepfrds",
	"moecat",
	"springsunday",
}

func (h *GenericHandler) Name() string { return "nexusphp" }

// Match claims standard NexusPHP-looking URLs and rejects special sites.
func (h *GenericHandler) Match(siteURL string) bool {
	u := strings.ToLower(siteURL)
	if u == "" {
		return false
	}
	for _, special := range specialSites {
		if strings.Contains(u, special) {
			return false
		}
	}
	for _, feature := range engineURLFeatures {
		if strings.Contains(u, feature) {
			return true
		}
	}
	return false
}

// InviterInfo runs the full lookup state machine for one site.
func (h *GenericHandler) InviterInfo(ctx context.Context, creds domain.SiteCredentials) (*domain.InviterRecord, error) {
	if creds.URL == "" {
		return nil, fmt.Errorf("site %q has no url", creds.Name)
	}

	selfID := h.identity.Resolve(ctx, creds)

	candidates := profileURLCandidates(creds.URL, selfID)
	body := ""
	used := ""
	for _, u := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if body = h.fetch.Source(ctx, u, creds); body != "" {
			used = u
			break
		}
	}
	if body == "" {
		return nil, fmt.Errorf("site %q: no profile page reachable", creds.Name)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("site %q: parse profile page: %w", creds.Name, err)
	}

	sel, ruleName := firstMatch(doc, inviterRules())
	if sel == nil {
		logger.InfoObj("no inviter field found", "inviter_miss", map[string]any{
			"site": creds.Name,
			"url":  used,
		})
		return &domain.InviterRecord{InviterName: SentinelNone}, nil
	}
	logger.DebugObj("inviter field located", "inviter_rule", map[string]any{
		"site": creds.Name,
		"rule": ruleName,
	})

	raw := extractName(sel)
	name := normalizeName(raw)
	if isAnonymous(name) || isAnonymous(raw) {
		// Anonymity is final: no id or email lookup.
		return &domain.InviterRecord{InviterName: SentinelAnonymous}, nil
	}

	id := extractID(sel)
	email := ""
	if id != "" {
		email = h.inviterEmail(ctx, creds, id)
	}

	return &domain.InviterRecord{
		InviterName:  name,
		InviterID:    id,
		InviterEmail: email,
	}, nil
}

// profileURLCandidates builds the ordered profile URLs to try, preferring
// the resolved self id over the id=0 self-redirect convention.
func profileURLCandidates(baseURL, selfID string) []string {
	base := strings.TrimRight(baseURL, "/")
	var out []string
	if selfID != "" {
		out = append(out, fmt.Sprintf("%s/userdetails.php?id=%s", base, selfID))
	}
	out = append(out, base+"/userdetails.php?id=0")
	return out
}

// inviterEmail fetches the inviter's own profile page and runs the email
// cascade. Sites commonly hide email behind privacy settings, so absence is
// an empty string, not an error.
func (h *GenericHandler) inviterEmail(ctx context.Context, creds domain.SiteCredentials, inviterID string) string {
	pageURL := fmt.Sprintf("%s/userdetails.php?id=%s", strings.TrimRight(creds.URL, "/"), inviterID)
	body := h.fetch.Source(ctx, pageURL, creds)
	if body == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	sel, _ := firstMatch(doc, emailRules())
	if sel == nil {
		return ""
	}
	return extractEmail(sel)
}
