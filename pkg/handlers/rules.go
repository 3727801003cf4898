package handlers

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The rule cascade is an ordered table of (name, finder) pairs evaluated by
// a single first-match runner. The table is deliberately long and redundant:
// tracker markup is unpredictable and each family catches a different layout
// generation. Order is the whole contract; there is no scoring.

type rule struct {
	name string
	find func(doc *goquery.Document) *goquery.Selection
}

// firstMatch runs rules in order and returns the first non-empty selection
// together with the winning rule name.
func firstMatch(doc *goquery.Document, rules []rule) (*goquery.Selection, string) {
	for _, r := range rules {
		sel := r.find(doc)
		if sel != nil && sel.Length() > 0 {
			return sel.First(), r.name
		}
	}
	return nil, ""
}

// inviterLabels are the textual variants the "inviter" field label appears
// under across site engines and translations. Colon forms are tried before
// bare labels when splitting text.
var inviterLabels = []string{
	"邀请人",
	"上家",
	"上级",
	"推荐人",
	"介绍人",
	"邀请者",
	"引荐人",
	"Inviter",
	"Invited By",
	"Referrer",
	"Sponsor",
	"Upline",
	"Recommender",
}

// emailLabels are the variants for the profile email field.
var emailLabels = []string{
	"邮箱",
	"电子邮件",
	"Email",
	"E-mail",
	"Mail",
}

// labelColonForms returns the split candidates for a label, colon forms first.
func labelColonForms(label string) []string {
	return []string{label + "：", label + ":", label}
}

// containerClasses are common wrapper classes/ids for list-style profiles.
var containerSelectors = []string{
	"div.userinfo",
	"div.profile",
	"div.user-info",
	"div#outer",
	"ul.userinfo",
	"ol.userinfo",
}

// textEquals reports whether the element's trimmed text equals s.
func textEquals(sel *goquery.Selection, s string) bool {
	return strings.TrimSpace(sel.Text()) == s
}

// textContains reports whether the element's trimmed text contains s.
func textContains(sel *goquery.Selection, s string) bool {
	return strings.Contains(sel.Text(), s)
}

// exactRowheadCellRule matches a "rowhead"-class label cell with exactly the
// label text and selects the next sibling cell.
func exactRowheadCellRule(label string) rule {
	return rule{
		name: "rowhead-exact:" + label,
		find: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("td.rowhead").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return textEquals(s, label)
			}).NextFiltered("td")
		},
	}
}

// exactCellRule matches any td whose text equals the label.
func exactCellRule(label string) rule {
	return rule{
		name: "cell-exact:" + label,
		find: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return textEquals(s, label)
			}).NextFiltered("td")
		},
	}
}

// substringCellRule matches a td containing the label as a substring in its
// own text (not through descendants holding the value).
func substringCellRule(label string) rule {
	return rule{
		name: "cell-substring:" + label,
		find: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return textContains(s, label) && s.Children().Length() == 0
			}).NextFiltered("td")
		},
	}
}

// rowRule matches a whole table row containing the label and selects all
// cells after the first.
func rowRule(label string) rule {
	return rule{
		name: "row:" + label,
		find: func(doc *goquery.Document) *goquery.Selection {
			rows := doc.Find("tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return textContains(s, label)
			})
			if rows.Length() == 0 {
				return nil
			}
			cells := rows.First().Find("td")
			if cells.Length() < 2 {
				return nil
			}
			return cells.Slice(1, cells.Length())
		},
	}
}

// listItemRule matches a list item carrying the label within common profile
// containers.
func listItemRule(label string) rule {
	return rule{
		name: "list-item:" + label,
		find: func(doc *goquery.Document) *goquery.Selection {
			for _, container := range containerSelectors {
				items := doc.Find(container + " li").FilterFunction(func(_ int, s *goquery.Selection) bool {
					return textContains(s, label)
				})
				if items.Length() > 0 {
					return items
				}
			}
			items := doc.Find("li").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return textContains(s, label)
			})
			if items.Length() > 0 {
				return items
			}
			return nil
		},
	}
}

// siblingRule is the last-resort family: any element containing the label,
// preferring its following sibling, else the element itself (the value is
// then recovered by label-splitting the text).
func siblingRule(label string) rule {
	return rule{
		name: "sibling:" + label,
		find: func(doc *goquery.Document) *goquery.Selection {
			hits := doc.Find("td, th, div, span, dt, b, strong").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return textContains(s, label) && s.Children().Length() == 0
			})
			if hits.Length() == 0 {
				return nil
			}
			first := hits.First()
			if next := first.Next(); next.Length() > 0 {
				return next
			}
			return first.Parent()
		},
	}
}

// inviterRules builds the full generic cascade over all label variants,
// strictly ordered by family precision.
func inviterRules() []rule {
	var rules []rule
	for _, label := range inviterLabels {
		rules = append(rules, exactRowheadCellRule(label))
	}
	for _, label := range inviterLabels {
		rules = append(rules, exactCellRule(label))
	}
	for _, label := range inviterLabels {
		rules = append(rules, substringCellRule(label))
	}
	for _, label := range inviterLabels {
		rules = append(rules, rowRule(label))
	}
	for _, label := range inviterLabels {
		rules = append(rules, listItemRule(label))
	}
	for _, label := range inviterLabels {
		rules = append(rules, siblingRule(label))
	}
	return rules
}

// emailRules builds the email-field cascade, same families, email labels.
func emailRules() []rule {
	var rules []rule
	for _, label := range emailLabels {
		rules = append(rules, exactRowheadCellRule(label))
	}
	for _, label := range emailLabels {
		rules = append(rules, exactCellRule(label))
	}
	for _, label := range emailLabels {
		rules = append(rules, substringCellRule(label))
	}
	for _, label := range emailLabels {
		rules = append(rules, rowRule(label))
	}
	for _, label := range emailLabels {
		rules = append(rules, listItemRule(label))
	}
	return rules
}
