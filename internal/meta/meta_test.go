package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

func TestParse_MetaJSON(t *testing.T) {
	// Arrange
	data := `{
		"name": "JSON",
		"version": "4.10",
		"license": ["perl_5"],
		"generated_by": "ExtUtils::MakeMaker version 7.64",
		"prereqs": {
			"configure": {"requires": {"ExtUtils::MakeMaker": "0"}},
			"build": {"requires": {"Test::More": "0.88"}},
			"test": {"requires": {"Test::Deep": 1.1}},
			"runtime": {
				"requires": {"perl": "5.006", "Scalar::Util": "0"},
				"recommends": {"JSON::XS": "4.0"}
			}
		}
	}`

	// Act
	m, err := Parse("META.json", []byte(data))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "META.json", m.File)
	assert.Equal(t, dist.Deps{"perl": "5.006", "Scalar::Util": "0"}, m.Runtime)
	assert.Equal(t, dist.Deps{"JSON::XS": "4.0"}, m.Recommends)
	assert.Equal(t, dist.Deps{"ExtUtils::MakeMaker": "0"}, m.Configure)
	assert.Equal(t, dist.Deps{
		"ExtUtils::MakeMaker": "0",
		"Test::More":          "0.88",
		"Test::Deep":          "1.1",
	}, m.Build)
	assert.Equal(t, []string{"perl"}, m.Licenses)
	assert.Equal(t, "ExtUtils::MakeMaker version 7.64", m.GeneratedBy)
	assert.False(t, m.HasScripts)
}

func TestParse_MetaYML(t *testing.T) {
	// Arrange
	data := `---
name: Foo-Bar
version: '1.10'
license: perl
requires:
  perl: 5.008
  Carp: '1.10'
build_requires:
  Test::More: 0
configure_requires:
  Module::Build: 0.38
recommends:
  Pod::Coverage: ~
script_files:
  - bin/foo
`

	// Act
	m, err := Parse("META.yml", []byte(data))

	// Assert
	require.NoError(t, err)
	// YAML scalars keep their literal form
	assert.Equal(t, dist.Deps{"perl": "5.008", "Carp": "1.10"}, m.Runtime)
	assert.Equal(t, dist.Deps{"Test::More": "0", "Module::Build": "0.38"}, m.Build)
	assert.Equal(t, dist.Deps{"Module::Build": "0.38"}, m.Configure)
	assert.Equal(t, dist.Deps{"Pod::Coverage": "0"}, m.Recommends)
	assert.Equal(t, []string{"perl"}, m.Licenses)
	assert.True(t, m.HasScripts)
}

func TestParse_AlienPrereqs(t *testing.T) {
	data := `{
		"name": "Alien-Foo",
		"x_alienfile": {"requires": {"share": {"Alien::Build::Plugin::Download::GitHub": "0.10"}, "system": {"PkgConfig": "0"}}}
	}`

	m, err := Parse("META.json", []byte(data))

	require.NoError(t, err)
	assert.Equal(t, dist.Deps{
		"Alien::Build::Plugin::Download::GitHub": "0.10",
		"PkgConfig":                              "0",
	}, m.Build)
	assert.Empty(t, m.Runtime)
	assert.Empty(t, m.Licenses)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{name: "broken json", file: "META.json", data: `{"name": `},
		{name: "broken yaml", file: "META.yml", data: "name: [unclosed\n"},
		{name: "bad license type", file: "META.json", data: `{"license": {"a": 1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file, []byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestFind(t *testing.T) {
	got, ok := Find([]string{"Makefile.PL", "META.yml", "META.json"})
	assert.True(t, ok)
	assert.Equal(t, "META.json", got)

	got, ok = Find([]string{"META.yml", "lib/Foo.pm"})
	assert.True(t, ok)
	assert.Equal(t, "META.yml", got)

	_, ok = Find([]string{"lib/META.json", "MYMETA.json"})
	assert.False(t, ok)
}

func TestNormalizeLicense(t *testing.T) {
	tests := map[string]string{
		"perl_5":     "perl",
		"Apache_2_0": "apache",
		"artistic_2": "artistic2",
		"gpl_3":      "gpl",
		"lgpl_2_1":   "lgpl",
		"restricted": "restrictive",
		"mit":        "mit",
		"unknown":    "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLicense(in), in)
	}
}
