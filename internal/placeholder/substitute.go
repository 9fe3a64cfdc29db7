package placeholder

import (
	"regexp"
	"strings"
)

// Vocabulary lists the placeholders every contract template may rely on.
// The set is part of the template contract with school administrators and
// only ever grows.
var Vocabulary = []string{
	"school_name",
	"school_code",
	"school_city",
	"school_signature_name",
	"date",
	"student_name",
	"payer_name",
	"description",
	"total_amount",
	"installments_count",
	"first_due_date",
}

var tokenPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Token returns the literal token for key, e.g. "{{school_name}}".
func Token(key string) string {
	return "{{" + key + "}}"
}

// Substitute replaces every literal {{key}} in template with its value.
//
// Keys are applied in map order over the text as it was before any
// replacement, so a value that itself contains "{{other}}" is emitted as is.
// Tokens with no entry are left in place.
func Substitute(template string, fields *FieldMap) string {
	if fields.Len() == 0 || template == "" {
		return template
	}

	oldnew := make([]string, 0, fields.Len()*2)
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		oldnew = append(oldnew, Token(k), v)
	}
	// strings.Replacer scans the input once and never rescans produced text.
	// Tokens are brace-delimited, so no key's token is a prefix of another's
	// and argument order cannot change which token matches.
	return strings.NewReplacer(oldnew...).Replace(template)
}

// Tokens returns the distinct {{identifier}} tokens of template, without
// braces, in order of first appearance.
func Tokens(template string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range tokenPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Missing returns the tokens of template that fields does not resolve.
func Missing(template string, fields *FieldMap) []string {
	var out []string
	for _, tok := range Tokens(template) {
		if _, ok := fields.Get(tok); !ok {
			out = append(out, tok)
		}
	}
	return out
}
