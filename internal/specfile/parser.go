package specfile

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

var (
	defineRe = regexp.MustCompile(`^%(?:define|global)\s+(\w+)\s+(.+)$`)
	tagRe    = regexp.MustCompile(`^(\w+):\s*(.*)$`)
	depRe    = regexp.MustCompile(`^perl(?:\(([^)]+)\))?(?:\s*>=\s*(\S+))?$`)
	macroRe  = regexp.MustCompile(`%\{\??(\w+)\}`)
)

// Header is the preamble of an existing spec file.
type Header struct {
	Name          string
	Version       string
	Release       string
	Epoch         string
	BuildRequires dist.Deps
	Requires      dist.Deps
}

// Parser reads the header of a spec file.
type Parser struct {
	r io.Reader
}

// NewParser creates a new spec file parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// Parse reads tags up to the first section. Macros defined with %define or
// %global are expanded in tag values; perl dependencies are collected, other
// dependencies are ignored.
func (p *Parser) Parse() (*Header, error) {
	h := &Header{
		BuildRequires: make(dist.Deps),
		Requires:      make(dist.Deps),
	}
	macros := make(map[string]string)
	expand := func(s string) string {
		return macroRe.ReplaceAllStringFunc(s, func(m string) string {
			name := macroRe.FindStringSubmatch(m)[1]
			if v, ok := macros[name]; ok {
				return v
			}
			return m
		})
	}

	scanner := bufio.NewScanner(p.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if matches := defineRe.FindStringSubmatch(line); matches != nil {
			macros[matches[1]] = expand(strings.TrimSpace(matches[2]))
			continue
		}

		// The preamble ends at the first section
		if strings.HasPrefix(line, "%") {
			break
		}

		matches := tagRe.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		value := expand(strings.TrimSpace(matches[2]))

		switch strings.ToLower(matches[1]) {
		case "name":
			h.Name = value
			macros["name"] = value
		case "version":
			h.Version = value
			macros["version"] = value
		case "release":
			h.Release = value
			macros["release"] = value
		case "epoch":
			h.Epoch = value
		case "buildrequires":
			addDep(h.BuildRequires, value)
		case "requires":
			addDep(h.Requires, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}
	if h.Name == "" {
		return nil, fmt.Errorf("reading spec file: no Name tag")
	}

	return h, nil
}

func addDep(deps dist.Deps, value string) {
	m := depRe.FindStringSubmatch(value)
	if m == nil {
		return
	}
	name := m[1]
	if name == "" {
		name = "perl"
	}
	deps.Set(name, m[2])
}
