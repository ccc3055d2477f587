package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse parses an html document from an already decoded body.
func Parse(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// FragmentText parses a snippet of html and returns the text inside of it.
func FragmentText(snippet string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return CleanText(snippet)
	}
	return CleanText(doc.Text())
}

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// OwnText returns the text of the direct text children of the first node in sel,
// ignoring the text of its child elements.
func OwnText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var buffer bytes.Buffer
	for child := sel.Nodes[0].FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			buffer.WriteString(child.Data)
		}
	}
	return CleanText(buffer.String())
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText trims a string and collapses inner runs of whitespace, the same way
// a browser would render it.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

// Text is CleanText over the combined text of a selection.
func Text(sel *goquery.Selection) string {
	return CleanText(sel.Text())
}

var breakRegex = regexp.MustCompile(`(?i)<br\s*/?>`)

// SplitBreaks splits the inner html of the first node in sel on line breaks
// and returns the text of every part.
func SplitBreaks(sel *goquery.Selection) []string {
	inner, err := sel.First().Html()
	if err != nil {
		return []string{Text(sel)}
	}
	parts := breakRegex.Split(inner, -1)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = FragmentText(p)
	}
	return out
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchors returns the name and href of every anchor in sel, hrefs are resolved
// against base when it is not nil.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		anchors = append(anchors, Anchor{
			Name: CleanText(GetText(n)),
			Href: link.String(),
		})
	}
	return anchors
}

// QueryParam returns the first value of a query parameter in a (possibly relative) link.
func QueryParam(link, key string) string {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return parsed.Query().Get(key)
}

// AbsURL resolves href against base, it returns an empty string when either fails to parse.
func AbsURL(base, href string) string {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return baseUrl.ResolveReference(ref).String()
}

// HasClass reports whether the first node in sel has the given class.
func HasClass(sel *goquery.Selection, class string) bool {
	return sel.First().HasClass(class)
}

// WithAttr keeps the nodes of sel whose attribute equals value. The value is
// compared as is, so it never has to be quoted into a selector.
func WithAttr(sel *goquery.Selection, attr, value string) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		return ok && v == value
	})
}
