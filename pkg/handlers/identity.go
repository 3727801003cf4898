package handlers

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jadylc/inviter-scout/internal/domain"
	"github.com/jadylc/inviter-scout/internal/logger"
)

// IdentityResolver discovers the authenticated viewer's own numeric id.
// Tracker engines expose it in wildly different places, so this is a long
// ordered cascade bounded by page count and elapsed time. An empty result
// means "unknown", never an error.
type IdentityResolver struct {
	fetch *PageFetcher

	maxPages int
	budget   time.Duration
}

// NewIdentityResolver builds a resolver over the given fetcher.
func NewIdentityResolver(fetch *PageFetcher) *IdentityResolver {
	return &IdentityResolver{
		fetch:    fetch,
		maxPages: 8,
		budget:   45 * time.Second,
	}
}

// selfIDPaths are candidate relative paths where engines reveal the
// viewer's id, ranked by how commonly they do so. The list spans several
// engine generations on purpose.
var selfIDPaths = []string{
	"/usercp.php",
	"/userdetails.php?id=0",
	"/my.php",
	"/index.php",
	"/user.php",
	"/profile",
	"/api/member/profile",
	"/api/user/info",
	"/mybonus.php",
	"/messages.php",
}

// idKeyPriority is the fixed key-name priority for JSON identity search.
var idKeyPriority = []string{
	"userid",
	"user_id",
	"uid",
	"member_id",
	"memberid",
	"id",
}

// jsonNestKeys are containers worth descending into one extra level.
var jsonNestKeys = map[string]struct{}{
	"user":    {},
	"profile": {},
	"data":    {},
	"member":  {},
	"account": {},
	"result":  {},
}

var (
	profileHrefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`userdetails\.php\?id=([0-9]+)`),
		regexp.MustCompile(`user\.php\?id=([0-9]+)`),
		regexp.MustCompile(`member\.php\?id=([0-9]+)`),
		regexp.MustCompile(`profile/detail/([0-9]+)`),
	}
	scriptVarPattern = regexp.MustCompile(`(?i)\b(?:userid|user_id|uid|member_id|memberid)\s*[:=]\s*['"]?([0-9]+)`)
	idParamPattern   = regexp.MustCompile(`(?i)[?&](?:id|uid|memberid)=([0-9]+)`)
	idPairPattern    = regexp.MustCompile(`(?i)\b[a-z_]*(?:user)?id\s*=\s*([0-9]{1,10})\b`)
	jsonpWrapper     = regexp.MustCompile(`^\s*[\w.$]+\s*\(`)
)

// Resolve runs the cascade and returns the viewer's id, or "" if unknown.
func (r *IdentityResolver) Resolve(ctx context.Context, creds domain.SiteCredentials) string {
	deadline := time.Now().Add(r.budget)
	visited := make(map[string]struct{})
	fetched := 0

	for _, path := range selfIDPaths {
		if fetched >= r.maxPages || time.Now().After(deadline) || ctx.Err() != nil {
			break
		}

		pageURL := creds.URL + path
		if _, seen := visited[pageURL]; seen {
			continue
		}
		visited[pageURL] = struct{}{}

		body := r.fetch.Source(ctx, pageURL, creds)
		fetched++
		if body == "" {
			continue
		}

		if id := extractIDFromPage(body); id != "" {
			logger.DebugObj("self id resolved", "self_id", map[string]any{
				"site": creds.Name,
				"url":  pageURL,
				"id":   id,
			})
			return id
		}
	}

	// Last resort: identifier-looking session cookies.
	if id := idFromCookies(r.fetch, creds.URL); id != "" {
		logger.DebugObj("self id resolved from cookies", "self_id", map[string]any{
			"site": creds.Name,
			"id":   id,
		})
		return id
	}

	logger.InfoObj("self id not resolved", "self_id_miss", map[string]any{
		"site":          creds.Name,
		"pages_fetched": fetched,
	})
	return ""
}

// extractIDFromPage applies the per-page heuristics in strict order.
func extractIDFromPage(body string) string {
	if looksLikeJSON(body) {
		if id := idFromJSON(body); id != "" {
			return id
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		if id := idFromProfileAnchors(doc); id != "" {
			return id
		}
		if id := idFromScripts(doc); id != "" {
			return id
		}
		if id := idFromAnchorParams(doc); id != "" {
			return id
		}
		if id := idFromHiddenFieldsAndMeta(doc); id != "" {
			return id
		}
	}

	return idByMajorityVote(body)
}

func looksLikeJSON(body string) bool {
	s := strings.TrimSpace(body)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return true
	}
	return jsonpWrapper.MatchString(s)
}

// idFromJSON decodes the body (unwrapping one JSONP layer) and searches the
// generic value tree for identity keys with bounded depth.
func idFromJSON(body string) string {
	s := strings.TrimSpace(body)
	if jsonpWrapper.MatchString(s) && !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		open := strings.Index(s, "(")
		end := strings.LastIndex(s, ")")
		if open < 0 || end <= open {
			return ""
		}
		s = s[open+1 : end]
	}

	var value any
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		return ""
	}
	return searchJSONValue(value, 0)
}

const maxJSONDepth = 4

// searchJSONValue walks maps/slices looking for identity keys by the fixed
// priority list, descending one extra level under known container keys.
func searchJSONValue(value any, depth int) string {
	if depth > maxJSONDepth {
		return ""
	}

	switch v := value.(type) {
	case map[string]any:
		for _, key := range idKeyPriority {
			for k, raw := range v {
				if !strings.EqualFold(k, key) {
					continue
				}
				if id := numericString(raw); id != "" {
					return id
				}
			}
		}
		for k, raw := range v {
			if _, ok := jsonNestKeys[strings.ToLower(k)]; !ok {
				continue
			}
			if id := searchJSONValue(raw, depth+1); id != "" {
				return id
			}
		}
	case []any:
		for _, item := range v {
			if id := searchJSONValue(item, depth+1); id != "" {
				return id
			}
		}
	}
	return ""
}

// numericString converts JSON scalar identity values to a digit string.
func numericString(raw any) string {
	switch v := raw.(type) {
	case string:
		if digitsOnly.MatchString(strings.TrimSpace(v)) {
			return strings.TrimSpace(v)
		}
	case float64:
		if v > 0 && v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
	case json.Number:
		if digitsOnly.MatchString(v.String()) {
			return v.String()
		}
	}
	return ""
}

// idFromProfileAnchors finds anchors pointing at known profile URL shapes.
func idFromProfileAnchors(doc *goquery.Document) string {
	id := ""
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		for _, pat := range profileHrefPatterns {
			if m := pat.FindStringSubmatch(href); m != nil && m[1] != "0" {
				id = m[1]
				return false
			}
		}
		return true
	})
	return id
}

// idFromScripts scans inline script blocks for identity variable assignments.
func idFromScripts(doc *goquery.Document) string {
	id := ""
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := scriptVarPattern.FindStringSubmatch(s.Text()); m != nil && m[1] != "0" {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

// idFromAnchorParams falls back to any id-like anchor query parameter.
func idFromAnchorParams(doc *goquery.Document) string {
	id := ""
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		if m := idParamPattern.FindStringSubmatch(href); m != nil && m[1] != "0" {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

// idFromHiddenFieldsAndMeta scans hidden form fields and meta tags for
// identifier-looking values.
func idFromHiddenFieldsAndMeta(doc *goquery.Document) string {
	id := ""
	doc.Find(`input[type="hidden"]`).EachWithBreak(func(_ int, in *goquery.Selection) bool {
		name, _ := in.Attr("name")
		val, _ := in.Attr("value")
		if !idLikeName(name) {
			return true
		}
		if digitsOnly.MatchString(val) && val != "0" {
			id = val
			return false
		}
		return true
	})
	if id != "" {
		return id
	}
	doc.Find("meta").EachWithBreak(func(_ int, m *goquery.Selection) bool {
		name, _ := m.Attr("name")
		content, _ := m.Attr("content")
		if !idLikeName(name) {
			return true
		}
		if digitsOnly.MatchString(content) && content != "0" {
			id = content
			return false
		}
		return true
	})
	return id
}

func idLikeName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	return strings.Contains(n, "uid") || strings.Contains(n, "userid") ||
		strings.Contains(n, "user_id") || strings.Contains(n, "memberid") ||
		n == "id"
}

// idByMajorityVote counts every id-like key=value pair in the body and
// returns the most frequent value: the viewer's id tends to recur across
// many links on one page, unlike torrent or forum ids. Best effort only.
func idByMajorityVote(body string) string {
	matches := idPairPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return ""
	}

	counts := make(map[string]int)
	for _, m := range matches {
		if m[1] != "0" {
			counts[m[1]]++
		}
	}
	if len(counts) == 0 {
		return ""
	}

	type freq struct {
		id    string
		count int
	}
	ranked := make([]freq, 0, len(counts))
	for id, c := range counts {
		ranked = append(ranked, freq{id: id, count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].id < ranked[j].id
	})

	// A single occurrence is no vote at all.
	if ranked[0].count < 2 {
		return ""
	}
	return ranked[0].id
}

// idFromCookies inspects session cookies for identifier-looking values.
func idFromCookies(fetch *PageFetcher, siteURL string) string {
	if _, err := url.Parse(siteURL); err != nil {
		return ""
	}
	for _, c := range fetch.Cookies(siteURL) {
		if idLikeName(c.Name) && digitsOnly.MatchString(c.Value) && c.Value != "0" {
			return c.Value
		}
	}
	return ""
}
