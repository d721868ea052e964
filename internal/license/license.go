// Package license maps CPAN license tokens to RPM License tags.
package license

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownLicense means neither the manifest nor the shipped documentation
// says anything about licensing.
var ErrUnknownLicense = errors.New("unknown license")

// Placeholder is used for tokens that need a manual review.
const Placeholder = "CHECK(Distributable)"

var canonical = map[string]string{
	"perl":         "GPL+ or Artistic",
	"apache":       "Apache Software License",
	"artistic":     "Artistic",
	"artistic2":    "Artistic 2.0",
	"bsd":          "BSD",
	"gpl":          "GPL+",
	"lgpl":         "LGPLv2+",
	"mit":          "MIT",
	"mozilla":      "MPL",
	"open_source":  "OSI-Approved",
	"unrestricted": "Distributable",
	"restrictive":  "Non-distributable",
}

// generic values get a reference to the license files appended.
var generic = map[string]bool{
	"OSI-Approved":      true,
	"Distributable":     true,
	"Non-distributable": true,
}

// Value is a resolved License tag.
type Value struct {
	Text  string
	Token string // raw token when Text is Placeholder
}

// NeedsCheck reports whether the value is the manual-review placeholder.
func (v Value) NeedsCheck() bool {
	return v.Text == Placeholder
}

func (v Value) String() string {
	return v.Text
}

// Classify maps one token, case-insensitively. Unknown tokens yield the
// placeholder. The returned warnings are meant for the user.
func Classify(token string) (Value, []string) {
	key := strings.ToLower(strings.TrimSpace(token))
	text, ok := canonical[key]
	if !ok {
		return Value{Text: Placeholder, Token: token},
			[]string{fmt.Sprintf("unrecognized license %q, check the license manually", token)}
	}
	if key == "restrictive" {
		return Value{Text: text}, []string{"license is restrictive, package may not be redistributable"}
	}
	return Value{Text: text}, nil
}

var hintRe = regexp.MustCompile(`(?i)license|copyright|copying`)

// Hints returns the documentation files whose name mentions licensing.
func Hints(docFiles []string) []string {
	var hints []string
	for _, f := range docFiles {
		if hintRe.MatchString(f) {
			hints = append(hints, f)
		}
	}
	return hints
}

// Resolve builds the License tag from the manifest tokens and the
// documentation file list. Several tokens are joined with " or ".
func Resolve(tokens, docFiles []string) (Value, []string, error) {
	var (
		texts    []string
		warnings []string
		v        Value
	)
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		c, w := Classify(tok)
		warnings = append(warnings, w...)
		if c.NeedsCheck() && v.Token == "" {
			v.Token = c.Token
		}
		if !seen[c.Text] {
			seen[c.Text] = true
			texts = append(texts, c.Text)
		}
	}
	v.Text = strings.Join(texts, " or ")

	hints := Hints(docFiles)
	if len(hints) > 0 {
		ref := strings.Join(hints, " ")
		switch {
		case v.Text == "":
			v.Text = "See " + ref
		case generic[v.Text]:
			v.Text += " (See " + ref + ")"
		}
	}

	if v.Text == "" {
		return Value{}, warnings, ErrUnknownLicense
	}
	return v, warnings, nil
}
