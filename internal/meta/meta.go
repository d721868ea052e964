// Package meta parses CPAN distribution manifests (META.json / META.yml).
package meta

import (
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

// FlexVersion handles JSON/YAML values that can be string or number.
type FlexVersion string

func (v *FlexVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FlexVersion(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = FlexVersion(fmt.Sprintf("%g", f))
		return nil
	}
	*v = "0"
	return nil
}

func (v *FlexVersion) UnmarshalYAML(node *yaml.Node) error {
	// Keep the literal scalar so "1.10" is not read back as 1.1.
	if node.Kind == yaml.ScalarNode && node.Tag != "!!null" {
		*v = FlexVersion(node.Value)
		return nil
	}
	*v = "0"
	return nil
}

// StringList accepts either a single string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = StringList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("license must be a string or a list of strings")
	}
	*l = list
	return nil
}

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	}
	return fmt.Errorf("line %d: license must be a string or a list of strings", node.Line)
}

// XAlienfileRequires represents the requirements section of x_alienfile.
type XAlienfileRequires struct {
	Share  map[string]FlexVersion `json:"share" yaml:"share"`
	System map[string]FlexVersion `json:"system" yaml:"system"`
}

// XAlienfile represents the x_alienfile section in META files.
type XAlienfile struct {
	Requires XAlienfileRequires `json:"requires" yaml:"requires"`
}

// MetaFile represents the content of META.json or META.yml.
type MetaFile struct {
	Name        FlexVersion                                  `json:"name" yaml:"name"`
	Version     FlexVersion                                  `json:"version" yaml:"version"`
	License     StringList                                   `json:"license" yaml:"license"`
	GeneratedBy string                                       `json:"generated_by" yaml:"generated_by"`
	Prereqs     map[string]map[string]map[string]FlexVersion `json:"prereqs" yaml:"prereqs"`
	XAlienfile  XAlienfile                                   `json:"x_alienfile" yaml:"x_alienfile"`

	// Old META 1.x format fields
	Requires          map[string]FlexVersion `json:"requires" yaml:"requires"`
	BuildRequires     map[string]FlexVersion `json:"build_requires" yaml:"build_requires"`
	ConfigureRequires map[string]FlexVersion `json:"configure_requires" yaml:"configure_requires"`
	TestRequires      map[string]FlexVersion `json:"test_requires" yaml:"test_requires"`
	Recommends        map[string]FlexVersion `json:"recommends" yaml:"recommends"`

	ScriptFiles  any `json:"script_files" yaml:"script_files"`
	Scripts      any `json:"scripts" yaml:"scripts"`
	XScriptFiles any `json:"x_script_files" yaml:"x_script_files"`
}

// Manifest is the normalized dependency and license data of a MetaFile.
type Manifest struct {
	File        string
	Build       dist.Deps // build, test and configure requirements
	Configure   dist.Deps // configure requirements only
	Runtime     dist.Deps
	Recommends  dist.Deps
	Licenses    []string // META 1.x license tokens
	HasScripts  bool
	GeneratedBy string
}

// Find returns the manifest file to use among the distribution files.
// META.json is preferred over META.yml.
func Find(files []string) (string, bool) {
	var yml string
	for _, f := range files {
		switch f {
		case "META.json":
			return f, true
		case "META.yml":
			yml = f
		}
	}
	return yml, yml != ""
}

// Parse decodes manifest data; the format is chosen by file name.
func Parse(name string, data []byte) (*Manifest, error) {
	var mf MetaFile
	if strings.EqualFold(path.Ext(name), ".json") {
		if err := json.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	}
	return normalize(name, &mf), nil
}

func normalize(name string, mf *MetaFile) *Manifest {
	m := &Manifest{
		File:        name,
		Build:       make(dist.Deps),
		Configure:   make(dist.Deps),
		Runtime:     make(dist.Deps),
		Recommends:  make(dist.Deps),
		GeneratedBy: mf.GeneratedBy,
		HasScripts:  present(mf.ScriptFiles) || present(mf.Scripts) || present(mf.XScriptFiles),
	}

	// META 2.0 prereqs
	addAll(m.Runtime, mf.Prereqs["runtime"]["requires"])
	addAll(m.Recommends, mf.Prereqs["runtime"]["recommends"])
	addAll(m.Configure, mf.Prereqs["configure"]["requires"])
	for _, phase := range []string{"build", "test", "configure"} {
		addAll(m.Build, mf.Prereqs[phase]["requires"])
	}

	// META 1.x
	addAll(m.Runtime, mf.Requires)
	addAll(m.Recommends, mf.Recommends)
	addAll(m.Configure, mf.ConfigureRequires)
	addAll(m.Build, mf.BuildRequires)
	addAll(m.Build, mf.ConfigureRequires)
	addAll(m.Build, mf.TestRequires)

	// Alien:: modules
	addAll(m.Build, mf.XAlienfile.Requires.Share)
	addAll(m.Build, mf.XAlienfile.Requires.System)

	for _, l := range mf.License {
		if l = strings.TrimSpace(l); l != "" {
			m.Licenses = append(m.Licenses, NormalizeLicense(l))
		}
	}
	return m
}

func addAll(dst dist.Deps, src map[string]FlexVersion) {
	for mod, ver := range src {
		dst.Set(mod, string(ver))
	}
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	}
	return true
}

var meta2Licenses = map[string]string{
	"perl_5":      "perl",
	"apache_1_1":  "apache",
	"apache_2_0":  "apache",
	"artistic_1":  "artistic",
	"artistic_2":  "artistic2",
	"freebsd":     "bsd",
	"gpl_1":       "gpl",
	"gpl_2":       "gpl",
	"gpl_3":       "gpl",
	"lgpl_2_1":    "lgpl",
	"lgpl_3_0":    "lgpl",
	"mozilla_1_0": "mozilla",
	"mozilla_1_1": "mozilla",
	"mozilla_2_0": "mozilla",
	"restricted":  "restrictive",
}

// NormalizeLicense maps a META 2.x license token to its META 1.x form.
// Tokens without a 1.x equivalent are returned unchanged.
func NormalizeLicense(token string) string {
	if v, ok := meta2Licenses[strings.ToLower(token)]; ok {
		return v
	}
	return token
}
