// Package pod renders Perl POD documentation to plain text.
//
// The output keeps the paragraph structure of the source: headings become
// bare lines followed directly by their body, every other block is followed by
// a blank line, formatting codes are removed and entities are decoded.
// Verbatim blocks keep their indentation.
package pod

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrNoPod is returned when the source contains no POD blocks.
var ErrNoPod = errors.New("no POD found")

var (
	encodingRe = regexp.MustCompile(`(?m)^=encoding[ \t]+(\S+)`)
	commandRe  = regexp.MustCompile(`^=([a-zA-Z]\S*)[ \t]*(.*)$`)
)

// Decode converts POD source bytes to a UTF-8 string, honoring an
// =encoding directive and falling back to Latin-1 for invalid UTF-8.
func Decode(src []byte) string {
	if m := encodingRe.FindSubmatch(src); m != nil {
		name := strings.ToLower(string(m[1]))
		if name != "utf8" && name != "utf-8" {
			if enc, err := htmlindex.Get(name); err == nil {
				if out, err := enc.NewDecoder().Bytes(src); err == nil {
					return string(out)
				}
			}
		}
	}
	if utf8.Valid(src) {
		return string(src)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(src)
	if err != nil {
		return strings.ToValidUTF8(string(src), "?")
	}
	return string(out)
}

// Render extracts the POD from a .pod or .pm file and renders it as text.
func Render(src []byte) (string, error) {
	text := Decode(src)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	paragraphs := podParagraphs(strings.Split(text, "\n"))
	if len(paragraphs) == 0 {
		return "", ErrNoPod
	}

	var out strings.Builder
	skipping := ""
	for _, para := range paragraphs {
		first := para[0]
		if m := commandRe.FindStringSubmatch(first); m != nil {
			cmd := m[1]
			arg := strings.TrimSpace(strings.Join(append([]string{m[2]}, para[1:]...), " "))

			if skipping != "" {
				if cmd == "end" && strings.Fields(arg + " x")[0] == skipping {
					skipping = ""
				}
				continue
			}

			switch {
			case strings.HasPrefix(cmd, "head"):
				out.WriteString(Strip(arg))
				out.WriteString("\n")
			case cmd == "item":
				item := strings.TrimSpace(strings.TrimLeft(arg, "*"))
				if item != "" && strings.Trim(item, "0123456789.") != "" {
					out.WriteString(Strip(item))
					out.WriteString("\n\n")
				}
			case cmd == "begin":
				format := strings.Fields(arg + " x")[0]
				if format != "text" {
					skipping = format
				}
			}
			continue
		}
		if skipping != "" {
			continue
		}

		if first[0] == ' ' || first[0] == '\t' {
			out.WriteString(strings.Join(para, "\n"))
		} else {
			out.WriteString(Strip(strings.Join(para, "\n")))
		}
		out.WriteString("\n\n")
	}

	return out.String(), nil
}

// podParagraphs returns the POD paragraphs of the source lines, each as its
// list of lines. Code outside =pod ... =cut regions is dropped.
func podParagraphs(lines []string) [][]string {
	var paragraphs [][]string
	var current []string
	inPod := false
	prevBlank := true

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, current)
			current = nil
		}
	}

	for _, line := range lines {
		blank := strings.TrimSpace(line) == ""

		if !inPod {
			if prevBlank && commandRe.MatchString(line) {
				inPod = true
			} else {
				prevBlank = blank
				continue
			}
		}

		if blank {
			flush()
			prevBlank = true
			continue
		}

		if len(current) == 0 && strings.HasPrefix(line, "=cut") {
			inPod = false
			prevBlank = false
			continue
		}

		current = append(current, line)
		prevBlank = false
	}
	flush()

	return paragraphs
}

var entities = map[string]string{
	"lt":     "<",
	"gt":     ">",
	"amp":    "&",
	"quot":   `"`,
	"apos":   "'",
	"sol":    "/",
	"verbar": "|",
	"nbsp":   " ",
	"copy":   "©",
	"reg":    "®",
	"eacute": "é",
	"uuml":   "ü",
	"ouml":   "ö",
	"auml":   "ä",
	"szlig":  "ß",
}

// Strip removes POD formatting codes such as B<...>, C<< ... >> and
// L<text|target>, decoding E<...> entities.
func Strip(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); {
		if i+1 < len(s) && s[i] >= 'A' && s[i] <= 'Z' && s[i+1] == '<' {
			code := s[i]
			inner, next, ok := codeBody(s, i+1)
			if ok {
				out.WriteString(applyCode(code, inner))
				i = next
				continue
			}
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

// codeBody returns the content of the formatting code whose opening
// brackets start at s[open], and the index just past its closing brackets.
func codeBody(s string, open int) (string, int, bool) {
	n := 0
	for open+n < len(s) && s[open+n] == '<' {
		n++
	}
	start := open + n

	if n > 1 {
		if start >= len(s) || (s[start] != ' ' && s[start] != '\t' && s[start] != '\n') {
			return "", 0, false
		}
		closer := strings.Repeat(">", n)
		for j := start; j < len(s); j++ {
			if (s[j] == ' ' || s[j] == '\t' || s[j] == '\n') && strings.HasPrefix(s[j+1:], closer) {
				return strings.TrimSpace(s[start:j]), j + 1 + n, true
			}
		}
		return "", 0, false
	}

	depth := 1
	for j := start; j < len(s); j++ {
		switch {
		case s[j] >= 'A' && s[j] <= 'Z' && j+1 < len(s) && s[j+1] == '<':
			depth++
			j++
		case s[j] == '>':
			depth--
			if depth == 0 {
				return s[start:j], j + 1, true
			}
		}
	}
	return "", 0, false
}

func applyCode(code byte, inner string) string {
	switch code {
	case 'E':
		return entity(inner)
	case 'X', 'Z':
		return ""
	case 'L':
		return link(inner)
	}
	return Strip(inner)
}

func entity(name string) string {
	if v, ok := entities[name]; ok {
		return v
	}
	var n int64
	var err error
	switch {
	case strings.HasPrefix(name, "0x"), strings.HasPrefix(name, "0X"):
		n, err = strconv.ParseInt(name[2:], 16, 32)
	case strings.HasPrefix(name, "0") && len(name) > 1:
		n, err = strconv.ParseInt(name[1:], 8, 32)
	default:
		n, err = strconv.ParseInt(name, 10, 32)
	}
	if err != nil || n <= 0 || !utf8.ValidRune(rune(n)) {
		return "E<" + name + ">"
	}
	return string(rune(n))
}

func link(inner string) string {
	if text, _, ok := strings.Cut(inner, "|"); ok {
		return Strip(text)
	}
	if strings.Contains(inner, "://") {
		return inner
	}
	if page, section, ok := strings.Cut(inner, "/"); ok {
		section = strings.Trim(section, `"`)
		if page == "" {
			return `"` + Strip(section) + `"`
		}
		return `"` + Strip(section) + `" in ` + Strip(page)
	}
	return Strip(inner)
}
