// Package normalize turns machine-oriented test identifiers into readable sentences.
//
// The pipeline runs in a fixed order: camel-case split, literal token
// substitution, regex cleanups, capitalization. Each pass consumes the output of
// the previous one, so the tables below are order sensitive.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Substitution replaces a literal token with its readable form.
type Substitution struct {
	Token string
	Value string
}

// Cleanup is a regex repair applied after substitution.
type Cleanup struct {
	Pattern *regexp.Regexp
	Replace string
	// UntilStable reapplies the rule while it still changes the input. Needed
	// where matches overlap, e.g. "a,b,c".
	UntilStable bool
}

// Substitutions is ordered: a token must never be replaced inside a longer
// token that appears later in the table.
var Substitutions = []Substitution{
	{"_ q_", `"`},
	{"_ a_", "&"},
	{"_ l_", "<"},
	{"_ g_", ">"},
	{"_ s_", "/"},
	{"_ c_", ":"},
	{"_ p_", "|"},
	{"_ sc_", ";"},
	{"_ eq_", "="},
	{"_ st_", "*"},
	{"_ h_", "-"},
	{"_", ","},
	{"p o s t ", "POST "},
	{"g e t ", "GET "},
	{"p u t ", "PUT "},
	{"d e l e t e ", "DELETE "},
	{" aws ", " AWS "},
	{" vpc ", " VPC "},
	{" sms", " SMS"},
	{" cidr ", " CIDR "},
	{" acl ", " ACL "},
	{" http ", " HTTP "},
	{" api ", " API "},
	{" dns ", " DNS "},
	{" tls", " TLS"},
	{" Oauth", " OAuth"},
	{"s 3 ", "S3 "},
	{"ios ", "iOS "},
}

// Cleanups assume every earlier rule already ran.
var Cleanups = []Cleanup{
	// "request to the/organizations" -> "request to the /organizations"
	{Pattern: regexp.MustCompile(`(\w)\s*/\s*(\w)`), Replace: "${1} /${2}"},
	{Pattern: regexp.MustCompile(`(\w)\s*/\s*([\w-]+?)\s*/\s*(\w)`), Replace: "${1} /${2}/${3}"},
	{Pattern: regexp.MustCompile(`([A-Za-z])(\d)`), Replace: "${1} ${2}"},
	// "192, d,168, d,1, d,1 /24" -> "192.168.1.1/24"
	{Pattern: regexp.MustCompile(`(\d+), d,\s*(\d+), d,\s*(\d+), d,\s*(\d+)\s*/(\d+)`), Replace: "${1}.${2}.${3}.${4}/${5}"},
	{Pattern: regexp.MustCompile(`([\w]), d,\s*([\w])`), Replace: "${1}.${2}"},
	// `value to" self"` -> `value to "self"`
	{Pattern: regexp.MustCompile(`(.)" (.+?)"\s*`), Replace: `${1} "${2}" `},
	// " /exam- media /all endpoint" -> " /exam-media/all endpoint"
	{Pattern: regexp.MustCompile(` (/[\w\d]+?)-([\w\d]+?) (\w+?) ([/\w]+?) `), Replace: " ${1}${2}${3} "},
	{Pattern: regexp.MustCompile(`s 3`), Replace: "s3"},
	// snake_case joiners: "creates,an" -> "creates an"
	{Pattern: regexp.MustCompile(`([A-Za-z]),([A-Za-z])`), Replace: "${1} ${2}", UntilStable: true},
}

// Normalize converts a raw identifier into a capitalized sentence.
// It panics on empty input; callers only pass captured identifiers.
func Normalize(raw string) string {
	if raw == "" {
		panic("normalize: empty input")
	}
	s := SplitCamel(raw)
	s = Substitute(s)
	s = Clean(s)
	return Capitalize(s)
}

// SplitCamel puts a space before every upper-case letter and lowers it.
func SplitCamel(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Substitute applies the token table once, in order.
func Substitute(s string) string {
	for _, sub := range Substitutions {
		s = strings.ReplaceAll(s, sub.Token, sub.Value)
	}
	return s
}

// Clean applies every cleanup rule that matches, in order.
func Clean(s string) string {
	for _, c := range Cleanups {
		if !c.Pattern.MatchString(s) {
			continue
		}
		s = c.Pattern.ReplaceAllString(s, c.Replace)
		for c.UntilStable {
			next := c.Pattern.ReplaceAllString(s, c.Replace)
			if next == s {
				break
			}
			s = next
		}
	}
	return s
}

// Capitalize upper-cases the first rune.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
