package specfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

func TestParser_Parse(t *testing.T) {
	// Arrange
	input := `# hand edited
%define cpan_name Foo-Bar
%global upstream_version 1.23

Name:           perl-%{cpan_name}
Version:        %{upstream_version}
Release:        3%{?dist}
Epoch:          1
BuildRequires:  perl >= 0:5.008
BuildRequires:  perl(Test::More) >= 0.88
BuildRequires:  gcc
Requires:       perl(Moose)
Requires:       perl(:MODULE_COMPAT_%(eval "$(perl -V:version)"; echo $version))

%description
Name: not a tag
`

	// Act
	h, err := NewParser(strings.NewReader(input)).Parse()

	// Assert
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if h.Name != "perl-Foo-Bar" {
		t.Errorf("Name = %q, want perl-Foo-Bar", h.Name)
	}
	if h.Version != "1.23" {
		t.Errorf("Version = %q, want 1.23", h.Version)
	}
	if h.Release != "3%{?dist}" {
		t.Errorf("Release = %q", h.Release)
	}
	if h.Epoch != "1" {
		t.Errorf("Epoch = %q, want 1", h.Epoch)
	}
	wantBuild := dist.Deps{"perl": "0:5.008", "Test::More": "0.88"}
	if len(h.BuildRequires) != len(wantBuild) {
		t.Errorf("BuildRequires = %v, want %v", h.BuildRequires, wantBuild)
	}
	for name, v := range wantBuild {
		if h.BuildRequires[name] != v {
			t.Errorf("BuildRequires[%s] = %q, want %q", name, h.BuildRequires[name], v)
		}
	}
	if len(h.Requires) != 1 || h.Requires["Moose"] != "0" {
		t.Errorf("Requires = %v", h.Requires)
	}
}

func TestParser_NoName(t *testing.T) {
	_, err := NewParser(strings.NewReader("Version: 1.0\n")).Parse()
	if err == nil {
		t.Error("Parse() error = nil, want error")
	}
}

func TestParser_RoundTrip(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "perl-Foo-Bar.spec"))
	if err != nil {
		t.Fatal(err)
	}

	h, err := NewParser(bytes.NewReader(data)).Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	d := testDescriptor()
	if h.Name != d.PackageName() || h.Version != d.Version || h.Release != d.Release {
		t.Errorf("header = %s %s-%s", h.Name, h.Version, h.Release)
	}
	if len(h.BuildRequires) != len(d.BuildRequires) {
		t.Errorf("BuildRequires = %v, want %v", h.BuildRequires, d.BuildRequires)
	}
	for name, v := range d.BuildRequires {
		if h.BuildRequires[name] != v {
			t.Errorf("BuildRequires[%s] = %q, want %q", name, h.BuildRequires[name], v)
		}
	}
}

func TestDiff(t *testing.T) {
	old := []byte("a\nb\nc\n")

	same, err := Diff("old", "new", old, old)
	if err != nil || same != "" {
		t.Errorf("Diff(equal) = %q, %v", same, err)
	}

	got, err := Diff("old", "new", old, []byte("a\nB\nc\n"))
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	for _, want := range []string{"--- old\n", "+++ new\n", "-b\n", "+B\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("Diff() missing %q in:\n%s", want, got)
		}
	}
}
