// Package normalize turns template text into HTML.
//
// Templates authored in the console are either HTML or plain text. Plain
// text is split into paragraphs on blank lines; HTML is passed through.
package normalize

import (
	"html"
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// LooksLikeHTML reports whether raw is treated as markup. Any input holding
// both '<' and '>' qualifies, so prose such as "a < b > c" is passed through
// untouched while "valor < 100" is escaped.
func LooksLikeHTML(raw string) bool {
	return strings.Contains(raw, "<") && strings.Contains(raw, ">")
}

// Normalize returns raw as HTML. Blank input yields "", markup is returned
// unchanged and plain text becomes one <p> per paragraph with inner line
// breaks rendered as <br>.
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if LooksLikeHTML(raw) {
		return raw
	}

	text := strings.ReplaceAll(raw, "\r\n", "\n")

	var b strings.Builder
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
