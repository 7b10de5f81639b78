// Package sanitize normalizes free-form text so it survives transport in
// JSON and plain-text API payloads.
package sanitize

import (
	"regexp"
	"strings"
)

// replacement is one literal substitution. Order matters: the compound
// "~10^26" entry must run before the bare "^" entry eats its caret.
type replacement struct {
	old string
	new string
}

var replacements = []replacement{
	// Smart quotes to straight quotes
	{"“", `"`},
	{"”", `"`},
	{"‘", "'"},
	{"’", "'"},

	// Mathematical notation
	{"~10^26", "approximately 10 to the power of 26"},
	{"^", " to the power of "},
	{"≈", "approximately"},
	{"±", "plus or minus"},
	{"∞", "infinity"},

	// Typographic punctuation
	{"…", "..."},
	{"–", "-"},
	{"—", "-"},

	// Characters that can break JSON payloads
	{"\x00", ""},
	{"\r", " "},
	{"\t", " "},
}

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	controlChars   = regexp.MustCompile(`[\x{0000}-\x{001f}\x{007f}-\x{009f}]`)
)

// Clean applies the substitution table, collapses whitespace runs and strips
// control characters. With escapeJSON set it additionally escapes backslashes
// and then double quotes, in that order, so the result can be embedded in a
// JSON string literal. Empty input passes through unchanged.
func Clean(text string, escapeJSON bool) string {
	if text == "" {
		return text
	}

	for _, r := range replacements {
		text = strings.ReplaceAll(text, r.old, r.new)
	}

	text = whitespaceRuns.ReplaceAllString(text, " ")

	if escapeJSON {
		// Backslashes first, otherwise the escaped quotes get re-escaped.
		text = strings.ReplaceAll(text, `\`, `\\`)
		text = strings.ReplaceAll(text, `"`, `\"`)
	}

	text = controlChars.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}
