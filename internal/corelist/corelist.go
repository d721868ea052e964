// Package corelist holds the set of modules bundled with the base perl
// package. A Set is built once at startup and is read-only afterwards.
package corelist

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/frederic-klein/cpan2spec/internal/perlver"
)

//go:embed corelist.toml
var defaultList string

type file struct {
	Perl    string            `toml:"perl"`
	Modules map[string]string `toml:"modules"`
}

// Set maps a core module name to the version bundled with perl.
type Set struct {
	perl    string
	modules map[string]string
}

// Default returns the embedded core module list.
func Default() (*Set, error) {
	return Parse(defaultList)
}

// Load reads a core module list from a TOML file.
func Load(path string) (*Set, error) {
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("reading core list %s: %w", path, err)
	}
	return newSet(f), nil
}

// Parse reads a core module list from TOML text.
func Parse(data string) (*Set, error) {
	var f file
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("parsing core list: %w", err)
	}
	return newSet(f), nil
}

// New builds a Set from a name to version map.
func New(perl string, modules map[string]string) *Set {
	return newSet(file{Perl: perl, Modules: modules})
}

func newSet(f file) *Set {
	s := &Set{perl: f.Perl, modules: make(map[string]string, len(f.Modules))}
	for name, version := range f.Modules {
		s.modules[name] = version
	}
	return s
}

// Perl returns the bundled perl version.
func (s *Set) Perl() string {
	return s.perl
}

// Len returns the number of core modules.
func (s *Set) Len() int {
	return len(s.modules)
}

// Version returns the bundled version of a core module.
func (s *Set) Version(name string) (string, bool) {
	v, ok := s.modules[name]
	return v, ok
}

// Provides reports whether the base runtime already satisfies a dependency
// on name with the given minimum version.
func (s *Set) Provides(name, minVersion string) bool {
	bundled, ok := s.modules[name]
	if !ok {
		return false
	}
	return perlver.Satisfies(bundled, minVersion)
}
