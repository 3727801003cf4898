package handlers

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Sentinel inviter names. "none" means no inviter field was found (a valid
// terminal state, not an error); "anonymous" means the site shows the field
// but hides the member, which is final: no id/email lookup follows.
const (
	SentinelNone      = "none"
	SentinelAnonymous = "anonymous"
)

// placeholders are values that mean "no usable name" in either language.
var placeholders = map[string]struct{}{
	"":        {},
	"-":       {},
	"--":      {},
	"---":     {},
	"n/a":     {},
	"na":      {},
	"none":    {},
	"unknown": {},
	"无":       {},
	"未知":      {},
}

// anonymousVariants are accepted spellings of the anonymity sentinel.
var anonymousVariants = map[string]struct{}{
	"anonymous": {},
	"匿名":        {},
}

var (
	trailingPunct = regexp.MustCompile(`[\s:：,.;，。；"'\[\]()（）【】]+$`)
	htmlEntity    = regexp.MustCompile(`&[a-zA-Z0-9#]+;`)
	multiSpace    = regexp.MustCompile(`\s+`)
	// Keeps word chars, CJK, and the few separators usernames legitimately use.
	nameCharset = regexp.MustCompile(`[^\w\x{4e00}-\x{9fa5}\-_.@]+`)
	idInHref    = regexp.MustCompile(`id=([0-9]+)`)
	digitsOnly  = regexp.MustCompile(`^[0-9]+$`)
	anyDigits   = regexp.MustCompile(`[0-9]+`)
)

const (
	minUsernameLen = 2
	maxUsernameLen = 50
)

func isPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func isAnonymous(s string) bool {
	_, ok := anonymousVariants[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// containsLabel reports whether s carries any inviter label variant.
func containsLabel(s string) bool {
	for _, label := range inviterLabels {
		if strings.Contains(s, label) {
			return true
		}
	}
	return false
}

// splitAfterLabel splits text on the first matching label variant, colon
// forms before bare labels, and returns the remainder.
func splitAfterLabel(text string, labels []string) (string, bool) {
	for _, label := range labels {
		if !strings.Contains(text, label) {
			continue
		}
		for _, form := range labelColonForms(label) {
			if idx := strings.Index(text, form); idx >= 0 {
				rest := strings.TrimSpace(text[idx+len(form):])
				if rest != "" {
					return rest, true
				}
			}
		}
	}
	return "", false
}

// textNodes collects the trimmed, non-empty text nodes under the selection
// in document order.
func textNodes(sel *goquery.Selection) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out = append(out, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return true
		}
	}
	return false
}

// extractName pulls the inviter display name out of the matched element.
// Preference order: emphasis text nested in a link, any non-mailto link
// text, label-split of the full text, then a scan of text nodes for the
// first plausible username.
func extractName(sel *goquery.Selection) string {
	if nested := strings.TrimSpace(sel.Find("a b, a strong, a em").First().Text()); nested != "" {
		return nested
	}

	var linkName string
	sel.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if href, ok := a.Attr("href"); ok && strings.HasPrefix(strings.TrimSpace(href), "mailto:") {
			return true
		}
		if t := strings.TrimSpace(a.Text()); t != "" {
			linkName = t
			return false
		}
		return true
	})
	if linkName != "" {
		return linkName
	}

	fullText := strings.TrimSpace(sel.Text())
	if rest, ok := splitAfterLabel(fullText, inviterLabels); ok {
		return rest
	}

	return scanTextNodesForName(textNodes(sel))
}

// scanTextNodesForName looks for the first non-label, non-placeholder node
// of plausible username shape, preferring the longest alphanumeric one.
func scanTextNodesForName(nodes []string) string {
	// A node right after a label node is the most likely value.
	for i, node := range nodes {
		if !containsLabel(node) {
			continue
		}
		for _, next := range nodes[i+1:] {
			if !containsLabel(next) && !isPlaceholder(next) {
				return next
			}
		}
	}

	var candidates []string
	for _, node := range nodes {
		if containsLabel(node) || isPlaceholder(node) {
			continue
		}
		if len(node) < minUsernameLen || len(node) > maxUsernameLen {
			continue
		}
		candidates = append(candidates, node)
	}
	if len(candidates) == 0 {
		return ""
	}

	best := ""
	for _, c := range candidates {
		if hasAlnum(c) && len(c) > len(best) {
			best = c
		}
	}
	if best != "" {
		return best
	}
	for _, c := range candidates {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

// normalizeName applies the name-cleaning contract: strip any remaining
// label text, trailing punctuation (ASCII and full-width), HTML entities,
// collapsed whitespace, and characters outside the username charset. A
// result that collapses to a placeholder becomes empty.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	for _, label := range inviterLabels {
		for _, form := range labelColonForms(label) {
			if idx := strings.Index(name, form); idx >= 0 {
				name = strings.TrimSpace(name[idx+len(form):])
				break
			}
		}
	}

	// Entities go first so a trailing "&nbsp;" is not half-eaten by the
	// punctuation strip.
	name = htmlEntity.ReplaceAllString(name, "")
	name = trailingPunct.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = nameCharset.ReplaceAllString(name, "")

	if isPlaceholder(name) {
		return ""
	}
	return name
}

// extractID pulls the inviter's numeric id from anchors within the matched
// element, preferring hrefs carrying an id= parameter.
func extractID(sel *goquery.Selection) string {
	var hrefs []string
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			if h := strings.TrimSpace(href); h != "" {
				hrefs = append(hrefs, h)
			}
		}
	})
	if len(hrefs) == 0 {
		return ""
	}

	found := ""
	for _, h := range hrefs {
		if strings.Contains(h, "id=") {
			found = h
			break
		}
	}
	if found == "" {
		found = hrefs[0]
	}
	if !strings.Contains(found, "id=") {
		return ""
	}

	part := found[strings.Index(found, "id=")+len("id="):]
	if amp := strings.Index(part, "&"); amp >= 0 {
		part = part[:amp]
	}
	part = strings.TrimSpace(part)
	if digitsOnly.MatchString(part) {
		return part
	}
	if m := idInHref.FindStringSubmatch(found); m != nil {
		return m[1]
	}
	if m := anyDigits.FindString(part); m != "" {
		return m
	}
	return ""
}

// extractEmail pulls the email value out of the matched element on the
// inviter's own profile page, preferring mailto anchors over text splits.
func extractEmail(sel *goquery.Selection) string {
	var mailto string
	sel.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if href, ok := a.Attr("href"); ok {
			h := strings.TrimSpace(href)
			if strings.HasPrefix(h, "mailto:") {
				mailto = strings.TrimSpace(strings.TrimPrefix(h, "mailto:"))
				return false
			}
		}
		return true
	})
	if mailto != "" {
		return mailto
	}

	text := strings.TrimSpace(sel.Text())
	if rest, ok := splitAfterLabel(text, emailLabels); ok {
		return strings.TrimSpace(rest)
	}
	if strings.Contains(text, "@") {
		return text
	}
	return ""
}
