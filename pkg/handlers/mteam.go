package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jadylc/inviter-scout/internal/domain"
	"github.com/jadylc/inviter-scout/internal/logger"
)

// MTeamHandler targets M-Team's component-framework markup. Its rule list
// is short and precise, which is why it outranks the generic engine even
// when the generic URL heuristics would also claim the site.
type MTeamHandler struct {
	fetch *PageFetcher
}

// NewMTeamHandler builds the M-Team handler.
func NewMTeamHandler(client HTTPClient, retries int) *MTeamHandler {
	return &MTeamHandler{fetch: NewPageFetcher(client, retries)}
}

var mteamDetailPath = regexp.MustCompile(`profile/detail/([0-9]+)`)

func (h *MTeamHandler) Name() string { return "mteam" }

// Match claims any URL carrying the m-team marker.
func (h *MTeamHandler) Match(siteURL string) bool {
	return strings.Contains(strings.ToLower(siteURL), "m-team")
}

// mteamRules is the site-tuned cascade over M-Team's profile layouts.
func mteamRules() []rule {
	return []rule{
		{
			name: "profile-info-row",
			find: func(doc *goquery.Document) *goquery.Selection {
				return doc.Find("div.profile-info div, div.user-info div").FilterFunction(func(_ int, s *goquery.Selection) bool {
					return containsLabel(s.Text()) && s.Children().Length() == 0
				}).Next()
			},
		},
		{
			name: "table-cell",
			find: func(doc *goquery.Document) *goquery.Selection {
				return doc.Find("table td").FilterFunction(func(_ int, s *goquery.Selection) bool {
					return containsLabel(s.Text()) && s.Children().Length() == 0
				}).NextFiltered("td")
			},
		},
		{
			name: "inviter-class",
			find: func(doc *goquery.Document) *goquery.Selection {
				return doc.Find("div.inviter, span.inviter-name")
			},
		},
		{
			name: "profile-anchor",
			find: func(doc *goquery.Document) *goquery.Selection {
				return doc.Find(`a[href*="profile/detail"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
					return strings.TrimSpace(s.Text()) != ""
				}).Parent()
			},
		},
	}
}

// InviterInfo fetches the member profile and applies the tuned cascade.
func (h *MTeamHandler) InviterInfo(ctx context.Context, creds domain.SiteCredentials) (*domain.InviterRecord, error) {
	if creds.URL == "" {
		return nil, fmt.Errorf("site %q has no url", creds.Name)
	}

	base := strings.TrimRight(creds.URL, "/")
	userURL := base + "/profile"
	if selfID := h.resolveSelfID(ctx, creds); selfID != "" {
		userURL = fmt.Sprintf("%s/profile/detail/%s", base, selfID)
	}

	body := h.fetch.Source(ctx, userURL, creds)
	if body == "" {
		return nil, fmt.Errorf("site %q: profile page not reachable", creds.Name)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("site %q: parse profile page: %w", creds.Name, err)
	}

	sel, ruleName := firstMatch(doc, mteamRules())
	if sel == nil {
		return &domain.InviterRecord{InviterName: SentinelNone}, nil
	}
	logger.DebugObj("inviter field located", "inviter_rule", map[string]any{
		"site": creds.Name,
		"rule": ruleName,
	})

	raw := extractName(sel)
	name := normalizeName(raw)
	if isAnonymous(name) || isAnonymous(raw) {
		return &domain.InviterRecord{InviterName: SentinelAnonymous}, nil
	}

	id := ""
	sel.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		if m := mteamDetailPath.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})

	// M-Team does not expose member email addresses.
	return &domain.InviterRecord{
		InviterName: name,
		InviterID:   id,
	}, nil
}

// resolveSelfID extracts the viewer's id from the configured URL or from
// the /profile redirect target.
func (h *MTeamHandler) resolveSelfID(ctx context.Context, creds domain.SiteCredentials) string {
	if m := mteamDetailPath.FindStringSubmatch(creds.URL); m != nil {
		return m[1]
	}

	client := h.fetch.clientFor(creds)
	resp, err := client.Get(ctx, strings.TrimRight(creds.URL, "/")+"/profile", nil)
	if err != nil || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return ""
	}
	if m := mteamDetailPath.FindStringSubmatch(resp.FinalURL()); m != nil {
		return m[1]
	}
	return ""
}
