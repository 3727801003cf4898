package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jadylc/inviter-scout/internal/domain"
)

// ToTheGloryHandler targets TTG's profile tables, which keep the NexusPHP
// row shape but with their own label casing and cell classes.
type ToTheGloryHandler struct {
	fetch    *PageFetcher
	identity *IdentityResolver
}

// NewToTheGloryHandler builds the TTG handler.
func NewToTheGloryHandler(client HTTPClient, retries int) *ToTheGloryHandler {
	fetch := NewPageFetcher(client, retries)
	return &ToTheGloryHandler{
		fetch:    fetch,
		identity: NewIdentityResolver(fetch),
	}
}

func (h *ToTheGloryHandler) Name() string { return "totheglory" }

// Match claims TTG URLs.
func (h *ToTheGloryHandler) Match(siteURL string) bool {
	u := strings.ToLower(siteURL)
	return strings.Contains(u, "totheglory") || strings.Contains(u, "ttg.")
}

// ttgLabels is the site's known label set for the inviter row.
var ttgLabels = []string{"邀请人", "邀请者", "Invited by", "Inviter"}

// ttgRules is the short site-tuned cascade.
func ttgRules() []rule {
	var rules []rule
	for _, label := range ttgLabels {
		rules = append(rules, exactCellRule(label))
	}
	for _, label := range ttgLabels {
		rules = append(rules, rowRule(label))
	}
	return rules
}

// InviterInfo fetches the member profile and applies the tuned cascade.
func (h *ToTheGloryHandler) InviterInfo(ctx context.Context, creds domain.SiteCredentials) (*domain.InviterRecord, error) {
	if creds.URL == "" {
		return nil, fmt.Errorf("site %q has no url", creds.Name)
	}

	selfID := h.identity.Resolve(ctx, creds)
	body := ""
	for _, u := range profileURLCandidates(creds.URL, selfID) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if body = h.fetch.Source(ctx, u, creds); body != "" {
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

	sel, _ := firstMatch(doc, ttgRules())
	if sel == nil {
		return &domain.InviterRecord{InviterName: SentinelNone}, nil
	}

	raw := extractName(sel)
	name := normalizeName(raw)
	if isAnonymous(name) || isAnonymous(raw) {
		return &domain.InviterRecord{InviterName: SentinelAnonymous}, nil
	}

	id := extractID(sel)
	email := ""
	if id != "" {
		pageURL := fmt.Sprintf("%s/userdetails.php?id=%s", strings.TrimRight(creds.URL, "/"), id)
		if profile := h.fetch.Source(ctx, pageURL, creds); profile != "" {
			if pdoc, perr := goquery.NewDocumentFromReader(strings.NewReader(profile)); perr == nil {
				if esel, _ := firstMatch(pdoc, emailRules()); esel != nil {
					email = extractEmail(esel)
				}
			}
		}
	}

	return &domain.InviterRecord{
		InviterName:  name,
		InviterID:    id,
		InviterEmail: email,
	}, nil
}
