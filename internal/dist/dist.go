package dist

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Kind is the archive variant a distribution ships as.
type Kind int

const (
	KindSequential Kind = iota // tar, optionally compressed
	KindIndexed                // zip
)

func (k Kind) String() string {
	if k == KindIndexed {
		return "indexed"
	}
	return "sequential"
}

// Distribution identifies one CPAN distribution to be packaged.
type Distribution struct {
	Name      string // e.g., "Foo-Bar"
	Version   string // e.g., "1.23"
	SourceURL string // e.g., "https://cpan.metacpan.org/authors/id/A/AU/AUTHOR/Foo-Bar-1.23.tar.gz"
	Path      string // local archive path
	Kind      Kind
}

// Module returns the primary module name, e.g. "Foo::Bar" for "Foo-Bar".
func (d Distribution) Module() string {
	return strings.ReplaceAll(d.Name, "-", "::")
}

func (d Distribution) String() string {
	return d.Name + "-" + d.Version
}

// Deps maps a dependency name to its minimum version. "0" means any version.
type Deps map[string]string

// Set records name with version if name is not yet present.
// It reports whether the entry was added.
func (d Deps) Set(name, version string) bool {
	if _, ok := d[name]; ok {
		return false
	}
	d[name] = NormalizeVersion(version)
	return true
}

// Merge copies every entry of other that d does not already have.
func (d Deps) Merge(other Deps) {
	for name, version := range other {
		d.Set(name, version)
	}
}

// IsAnyVersion reports whether v places no constraint on the version.
func IsAnyVersion(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "0" || v == "undef" || strings.Trim(v, "0.") == ""
}

// NormalizeVersion strips operators and ranges from a CPAN::Meta version
// requirement, keeping just the minimum version.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "0"
	}

	// Handle ranges like ">= 1.0, < 2.0" - take first version
	if idx := strings.Index(v, ","); idx != -1 {
		v = strings.TrimSpace(v[:idx])
	}

	v = strings.TrimPrefix(v, ">=")
	v = strings.TrimPrefix(v, ">")
	v = strings.TrimPrefix(v, "==")
	v = strings.TrimPrefix(v, "=")
	v = strings.TrimSpace(v)

	if v == "" || v == "undef" {
		return "0"
	}
	return v
}

// Descriptor is the normalized record rendered into a spec file.
type Descriptor struct {
	Name            string // distribution name, e.g. "Foo-Bar"
	Version         string
	Release         string
	Epoch           string // optional
	Summary         string
	Description     string
	License         string
	URL             string
	SourceURL       string
	SourceDir       string // archive root, e.g. "Foo-Bar-v1.23"
	Noarch          bool
	BuildRequires   Deps
	Requires        Deps
	DocFiles        []string
	UsesBuildPL     bool // Module::Build instead of ExtUtils::MakeMaker
	InstallsScripts bool
	Packager        string
	ChangelogDate   string // e.g. "Mon Oct 19 2026"
}

// PackageName returns the RPM package name, e.g. "perl-Foo-Bar".
func (d *Descriptor) PackageName() string {
	return "perl-" + d.Name
}

var archiveNameRe = regexp.MustCompile(`^(.+)-v?([0-9][^-]*?)(\.tar\.gz|\.tgz|\.tar\.bz2|\.tbz2?|\.tar\.xz|\.txz|\.tar\.zst|\.tar|\.zip)$`)

// ParseArchiveName splits an archive file name such as
// "Foo-Bar-1.23.tar.gz" into distribution name and version.
func ParseArchiveName(file string) (name, version string, err error) {
	base := path.Base(file)
	m := archiveNameRe.FindStringSubmatch(base)
	if m == nil {
		return "", "", fmt.Errorf("cannot determine name and version from %q", base)
	}
	return m[1], m[2], nil
}

// KindFor reports the archive variant for a file name.
func KindFor(file string) Kind {
	if strings.HasSuffix(strings.ToLower(file), ".zip") {
		return KindIndexed
	}
	return KindSequential
}
