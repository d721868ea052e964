package doc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/frederic-klein/cpan2spec/internal/pod"
)

// Prose is the summary and description of a distribution. Either field may be
// empty when nothing usable was found.
type Prose struct {
	Summary     string
	Description string
}

var (
	articleRe     = regexp.MustCompile(`(?i)^(?:an?|the)\s+`)
	descriptionRe = regexp.MustCompile(`(?s)(?:^|\n)[ \t]*DESCRIPTION[ \t]*\n(.*?)\n[ \t]*\n`)
	paragraphRe   = regexp.MustCompile(`\n[ \t]*\n`)
)

// ParseProse reads the summary from the NAME section and the description
// from the DESCRIPTION section of rendered documentation text.
func ParseProse(text, module string) Prose {
	var p Prose

	nameRe := regexp.MustCompile(`(?m)^[ \t]*NAME[ \t]*\n\s*` + regexp.QuoteMeta(module) + `(?:[ \t]*-+[ \t]*|\s+)([^\n]*)`)
	if m := nameRe.FindStringSubmatch(text); m != nil && m[1] != "SYNOPSIS" {
		p.Summary = cleanSummary(m[1])
	}

	if m := descriptionRe.FindStringSubmatch(text); m != nil {
		p.Description = strings.TrimSpace(m[1])
	}
	return p
}

func cleanSummary(s string) string {
	s = strings.TrimRight(s, ". \t")
	s = articleRe.ReplaceAllString(s, "")
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// ReadmeDescription returns the first paragraph of a README that spans more
// than two lines and does not start with a markup character.
func ReadmeDescription(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	for _, para := range paragraphRe.Split(content, -1) {
		para = strings.Trim(para, "\n")
		if para == "" || strings.Count(para, "\n") < 2 {
			continue
		}
		switch para[0] {
		case '#', '-', '=':
			continue
		}
		return strings.TrimSpace(para)
	}
	return ""
}

// ReadFunc returns the content of an archive file given its path relative
// to the distribution root.
type ReadFunc func(rel string) ([]byte, error)

// Extract finds the prose for module among files, falling back from the
// module documentation to a README and finally to a generic default. It
// never fails; each fallback is logged.
func Extract(files []string, module string, read ReadFunc, logger *log.Logger) Prose {
	var p Prose

	if file, ok := Locate(files, module); ok {
		p = fromPod(file, module, read, logger)
	} else {
		logger.Warn("no documentation file found", "module", module)
	}

	if p.Summary == "" && p.Description == "" {
		if readme, ok := Readme(files); ok {
			data, err := read(readme)
			if err != nil {
				logger.Warn("reading README failed", "file", readme, "err", err)
			} else {
				p.Description = ReadmeDescription(pod.Decode(data))
			}
		}
	}

	if p.Summary == "" {
		logger.Warn("using generic summary", "module", module)
		p.Summary = module + " Perl module"
	}
	if p.Description == "" {
		logger.Warn("using generic description", "module", module)
		p.Description = module + " Perl module"
	}
	return p
}

func fromPod(file, module string, read ReadFunc, logger *log.Logger) Prose {
	data, err := read(file)
	if err != nil {
		logger.Warn("reading documentation failed", "file", file, "err", err)
		return Prose{}
	}
	text, err := pod.Render(data)
	if err != nil {
		logger.Warn("rendering documentation failed", "file", file, "err", err)
		return Prose{}
	}
	p := ParseProse(text, module)
	if p.Summary == "" && p.Description == "" {
		logger.Warn("documentation has no NAME or DESCRIPTION", "file", file)
	}
	return p
}
