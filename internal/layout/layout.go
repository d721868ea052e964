// Package layout checks that every entry of a distribution archive lives under
// the single expected "<name>-<version>" root directory.
package layout

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrLayout matches every *Error.
var ErrLayout = errors.New("unexpected archive layout")

// paxHeader is written by some tar implementations at the archive top level.
const paxHeader = "pax_global_header"

// Error reports how many entries fall outside the expected root.
type Error struct {
	Root string // expected root pattern, e.g. "Foo-Bar-1.0"
	Bad  int
}

func (e *Error) Error() string {
	if e.Bad == 0 {
		return fmt.Sprintf("no entries under %s/", e.Root)
	}
	return fmt.Sprintf("%d entries outside %s/", e.Bad, e.Root)
}

func (e *Error) Is(target error) bool {
	return target == ErrLayout
}

// Result is the validated file list of an archive, relative to Root.
type Result struct {
	Root  string   // root prefix as it appears in the archive
	Files []string // file paths relative to Root, in archive order; directories omitted
	raw   map[string]string
}

// Path returns the raw archive entry for a path relative to Root.
func (r *Result) Path(rel string) (string, bool) {
	raw, ok := r.raw[rel]
	return raw, ok
}

// Has reports whether rel is one of the archive files.
func (r *Result) Has(rel string) bool {
	_, ok := r.raw[rel]
	return ok
}

// Validate checks entries against the expected name and version. The whole
// archive is rejected when any entry lies outside the root.
func Validate(entries []string, name, version string) (*Result, error) {
	rootRe, err := regexp.Compile(`^(` + regexp.QuoteMeta(name) + `-(?:v\.?)?` + regexp.QuoteMeta(version) + `)(?:/|$)`)
	if err != nil {
		return nil, fmt.Errorf("compiling root pattern: %w", err)
	}

	result := &Result{raw: make(map[string]string)}
	bad := 0

	for _, entry := range entries {
		p := strings.TrimPrefix(entry, "./")
		if p == paxHeader {
			continue
		}

		m := rootRe.FindStringSubmatch(p)
		if m == nil {
			bad++
			continue
		}
		if result.Root == "" {
			result.Root = m[1]
		}

		rel := strings.TrimPrefix(p, result.Root)
		if rel == p {
			// Matched with a different literal root, e.g. "v1.0" after "1.0".
			bad++
			continue
		}
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		if _, dup := result.raw[rel]; !dup {
			result.Files = append(result.Files, rel)
		}
		result.raw[rel] = entry
	}

	if bad > 0 {
		return nil, &Error{Root: name + "-" + version, Bad: bad}
	}
	if result.Root == "" {
		return nil, &Error{Root: name + "-" + version}
	}
	return result, nil
}
