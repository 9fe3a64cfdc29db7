// Package sanitize strips executable constructs from template HTML before it
// reaches a document context.
//
// The textual sanitizer is defense in depth for content written by
// authenticated, same-origin template authors. It is not a security boundary
// for hostile input; use the strict policy for templates of lesser trust.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Policy modes accepted by New
const (
	ModeTextual = "textual"
	ModeStrict  = "strict"
)

// Sanitizer cleans an HTML fragment. Implementations never fail and are safe
// for concurrent use.
type Sanitizer interface {
	Sanitize(html string) string
}

// New returns the sanitizer for mode. An empty mode selects textual.
func New(mode string) (Sanitizer, error) {
	switch mode {
	case "", ModeTextual:
		return Textual{}, nil
	case ModeStrict:
		return NewStrict(), nil
	default:
		return nil, fmt.Errorf("unknown sanitizer mode %q (expected %s or %s)", mode, ModeTextual, ModeStrict)
	}
}

var (
	scriptBlock      = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptUnclosed   = regexp.MustCompile(`(?is)<script\b.*$`)
	styleBlock       = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	handlerName      = regexp.MustCompile(`^on[a-z]+$`)
	javascriptScheme = regexp.MustCompile(`(?i)javascript:`)
)

// Textual removes script and style blocks, inline event handler attributes
// and javascript: scheme prefixes, case-insensitively. Handler attributes are
// found by tokenizing, so text and attribute values that merely contain
// "on...=" are untouched. A tag that loses a handler is re-serialized; every
// other byte of the input is left as it was.
type Textual struct{}

// Sanitize implements Sanitizer.
func (Textual) Sanitize(src string) string {
	// Removing one construct can join its neighbours into another
	// ("javajavascript:script:"), so repeat until nothing matches. Every
	// round that changes the text shortens it, which bounds the loop.
	for {
		out := stripOnce(src)
		if out == src {
			return out
		}
		src = out
	}
}

func stripOnce(s string) string {
	s = scriptBlock.ReplaceAllLiteralString(s, "")
	s = scriptUnclosed.ReplaceAllLiteralString(s, "")
	s = styleBlock.ReplaceAllLiteralString(s, "")
	s = stripHandlers(s)
	return javascriptScheme.ReplaceAllLiteralString(s, "")
}

// stripHandlers drops on* attributes from start tags. Text, comments and end
// tags are copied through byte for byte.
func stripHandlers(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	z := html.NewTokenizer(strings.NewReader(s))
	consumed := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		consumed += len(raw)
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			if tag, ok := withoutHandlers(z.Token()); ok {
				b.WriteString(tag)
				continue
			}
		}
		b.Write(raw)
	}

	// A tag cut off at the end would pick up whatever markup follows the
	// fragment, so it is cleaned as if it were closed.
	rest := s[consumed:]
	if len(rest) > 1 && rest[0] == '<' && isASCIILetter(rest[1]) {
		z := html.NewTokenizer(strings.NewReader(rest + ">"))
		if tt := z.Next(); tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			if tag, ok := withoutHandlers(z.Token()); ok {
				rest = strings.TrimSuffix(tag, ">")
			}
		}
	}
	b.WriteString(rest)
	return b.String()
}

// withoutHandlers renders t without its handler attributes. ok is false when
// t has none, in which case the caller keeps the original bytes.
func withoutHandlers(t html.Token) (string, bool) {
	kept := t.Attr[:0:0]
	for _, a := range t.Attr {
		if a.Namespace == "" && handlerName.MatchString(a.Key) {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == len(t.Attr) {
		return "", false
	}
	t.Attr = kept
	return t.String(), true
}

func isASCIILetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// Strict rewrites markup through an allowlist. Unknown elements and
// attributes are dropped, so output bytes may differ from input even where
// nothing dangerous was present.
type Strict struct {
	policy *bluemonday.Policy
}

// NewStrict builds the allowlist used for contract templates: the UGC
// baseline plus table layout, alignment and inline style attributes.
func NewStrict() *Strict {
	p := bluemonday.UGCPolicy()

	p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption", "colgroup", "col")
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
	p.AllowAttrs("width").OnElements("table", "th", "td", "col", "img")
	p.AllowAttrs("align").OnElements("p", "div", "table", "th", "td", "h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("style").OnElements("p", "div", "span", "table", "th", "td", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "img")
	p.AllowAttrs("class").Globally()
	p.AllowElements("u", "s", "sub", "sup", "mark", "hr")
	p.AllowDataURIImages()

	return &Strict{policy: p}
}

// Sanitize implements Sanitizer.
func (s *Strict) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
