// Package doc finds a distribution's main documentation and extracts a
// summary and description from it.
package doc

import (
	"path"
	"sort"
	"strings"
)

// Candidates lists the files that may hold the documentation of module, in
// priority order. For "Foo::Bar" it returns
//
//	lib/Foo/Bar.pod lib/Foo/Bar.pm lib/Bar.pod lib/Bar.pm
//	Foo/Bar.pod Foo/Bar.pm Bar.pod Bar.pm
func Candidates(module string) []string {
	segments := strings.Split(module, "::")
	full := append([]string{"lib"}, segments...)

	var stems []string
	stems = append(stems, strings.Join(full, "/"))
	stems = append(stems, "lib/"+segments[len(segments)-1])
	for i := 1; i < len(full); i++ {
		stems = append(stems, strings.Join(full[i:], "/"))
	}

	seen := make(map[string]bool)
	var candidates []string
	for _, stem := range stems {
		for _, ext := range []string{".pod", ".pm"} {
			c := stem + ext
			if !seen[c] {
				seen[c] = true
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

// Locate returns the first candidate for module that is among files.
func Locate(files []string, module string) (string, bool) {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	for _, c := range Candidates(module) {
		if present[c] {
			return c, true
		}
	}
	return "", false
}

// Readme picks the README-like file with the shortest name; ties are broken
// lexicographically.
func Readme(files []string) (string, bool) {
	var readmes []string
	for _, f := range files {
		if strings.Contains(strings.ToUpper(f), "README") {
			readmes = append(readmes, f)
		}
	}
	if len(readmes) == 0 {
		return "", false
	}
	sort.Slice(readmes, func(i, j int) bool {
		if len(readmes[i]) != len(readmes[j]) {
			return len(readmes[i]) < len(readmes[j])
		}
		return readmes[i] < readmes[j]
	})
	return readmes[0], true
}

var docDirs = map[string]bool{
	"doc":      true,
	"docs":     true,
	"eg":       true,
	"example":  true,
	"examples": true,
	"samples":  true,
}

var buildFiles = map[string]bool{
	"MANIFEST":      true,
	"MANIFEST.SKIP": true,
	"SIGNATURE":     true,
	"Makefile":      true,
	"Makefile.PL":   true,
	"Build":         true,
	"Build.PL":      true,
	"META.yml":      true,
	"META.json":     true,
	"MYMETA.yml":    true,
	"MYMETA.json":   true,
	"cpanfile":      true,
	"dist.ini":      true,
	"typemap":       true,
	"ppport.h":      true,
	"INSTALL":       true,
	"INSTALL.SKIP":  true,
}

var sourceExts = map[string]bool{
	".pl": true, ".pm": true, ".pod": true, ".xs": true, ".c": true, ".h": true,
	".in": true, ".cfg": true, ".inl": true, ".t": true, ".json": true, ".yml": true,
	".yaml": true, ".ini": true, ".sh": true, ".bat": true, ".PL": true,
}

// Files returns the documentation files to ship with the package: top-level
// text files that are not part of the build, plus example and doc
// directories. The result is sorted.
func Files(files []string) []string {
	set := make(map[string]bool)
	for _, f := range files {
		top, rest, nested := strings.Cut(f, "/")
		if nested {
			if docDirs[top] && rest != "" {
				set[top] = true
			}
			continue
		}
		if strings.HasPrefix(f, ".") || buildFiles[f] {
			continue
		}
		ext := path.Ext(f)
		if sourceExts[ext] || sourceExts[strings.ToLower(ext)] {
			continue
		}
		set[f] = true
	}

	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
