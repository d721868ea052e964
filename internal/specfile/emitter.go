// Package specfile renders package descriptors as RPM spec files and reads
// back the header of existing ones.
package specfile

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

// DefaultGenerator is named in the changelog entry.
const DefaultGenerator = "cpan2spec"

// Options controls rendering.
type Options struct {
	// Macros selects %{buildroot} and %{optflags} over $RPM_BUILD_ROOT
	// and $RPM_OPT_FLAGS.
	Macros    bool
	Generator string
}

// Emitter writes spec files.
type Emitter struct {
	w    io.Writer
	opts Options
	err  error
}

// NewEmitter creates a new spec file emitter.
func NewEmitter(w io.Writer, opts Options) *Emitter {
	if opts.Generator == "" {
		opts.Generator = DefaultGenerator
	}
	return &Emitter{w: w, opts: opts}
}

// printf writes unless an earlier write failed; the first error is kept.
func (e *Emitter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *Emitter) tag(name, value string) {
	e.printf("%-16s%s\n", name+":", value)
}

// Emit writes the spec file for d. Output depends only on d and the
// emitter options.
func (e *Emitter) Emit(d *dist.Descriptor) error {
	buildroot, optflags := "$RPM_BUILD_ROOT", "$RPM_OPT_FLAGS"
	if e.opts.Macros {
		buildroot, optflags = "%{buildroot}", "%{optflags}"
	}

	e.printf("%%define cpan_name %s\n\n", d.Name)
	e.tag("Name", d.PackageName())
	e.tag("Version", d.Version)
	e.tag("Release", d.Release)
	if d.Epoch != "" {
		e.tag("Epoch", d.Epoch)
	}
	e.tag("Summary", d.Summary)
	e.tag("License", d.License)
	e.tag("Group", "Development/Libraries")
	e.tag("URL", d.URL)
	e.tag("Source0", sourceMacros(d))
	if d.Noarch {
		e.tag("BuildArch", "noarch")
	}
	e.printf("\n")

	for _, name := range sortedKeys(d.BuildRequires) {
		e.tag("BuildRequires", requirement(name, d.BuildRequires[name]))
	}
	for _, name := range sortedKeys(d.Requires) {
		e.tag("Requires", requirement(name, d.Requires[name]))
	}
	e.tag("BuildRequires", "perl-generators")

	e.printf("\n%%description\n%s\n\n", d.Description)

	e.printf("%%package help\n")
	e.tag("Summary", "Documentation for "+d.PackageName())
	e.printf("\n%%description help\n%s\n\n", d.Description)

	e.printf("%%prep\n%%setup -q -n %s\n\n", dirMacros(d.SourceDir, d))

	e.build(d, optflags)
	e.install(d, buildroot)

	e.printf("%%check\n")
	if d.UsesBuildPL {
		e.printf("./Build test\n\n")
	} else {
		e.printf("make test\n\n")
	}

	e.printf("%%clean\nrm -rf %s\n\n", buildroot)

	e.printf("%%files -f filelist.lst\n%%defattr(-,root,root,-)\n")
	if len(d.DocFiles) > 0 {
		e.printf("%%doc %s\n", strings.Join(d.DocFiles, " "))
	}
	e.printf("\n%%files help\n%%defattr(-,root,root,-)\n%%{_mandir}/*\n\n")

	evr := d.Version + "-" + d.Release
	if d.Epoch != "" {
		evr = d.Epoch + ":" + evr
	}
	e.printf("%%changelog\n* %s %s - %s\n- Specfile autogenerated by %s\n",
		d.ChangelogDate, d.Packager, evr, e.opts.Generator)

	return e.err
}

func (e *Emitter) build(d *dist.Descriptor, optflags string) {
	e.printf("%%build\n")
	switch {
	case d.UsesBuildPL && d.Noarch:
		e.printf("%%{__perl} Build.PL installdirs=vendor\n./Build\n\n")
	case d.UsesBuildPL:
		e.printf("%%{__perl} Build.PL installdirs=vendor optimize=\"%s\"\n./Build\n\n", optflags)
	case d.Noarch:
		e.printf("%%{__perl} Makefile.PL INSTALLDIRS=vendor\nmake %%{?_smp_mflags}\n\n")
	default:
		e.printf("%%{__perl} Makefile.PL INSTALLDIRS=vendor OPTIMIZE=\"%s\"\nmake %%{?_smp_mflags}\n\n", optflags)
	}
}

func (e *Emitter) install(d *dist.Descriptor, buildroot string) {
	e.printf("%%install\nrm -rf %s\n", buildroot)
	if d.UsesBuildPL {
		e.printf("./Build install destdir=%s create_packlist=0\n", buildroot)
	} else {
		e.printf("make pure_install DESTDIR=%s\n", buildroot)
		e.printf("find %s -type f -name .packlist -exec rm -f {} \\;\n", buildroot)
	}
	if !d.Noarch {
		e.printf("find %s -type f -name '*.bs' -size 0 -exec rm -f {} \\;\n", buildroot)
	}
	e.printf("find %s -depth -type d -exec rmdir {} 2>/dev/null \\;\n", buildroot)
	e.printf("%%{_fixperms} %s/*\n\n", buildroot)

	libdir := "usr/lib64"
	if d.Noarch {
		libdir = "usr/share/perl5"
	}
	dirs := []string{libdir}
	if d.InstallsScripts {
		dirs = []string{"usr/bin", libdir}
	}

	e.printf("pushd %s\ntouch filelist.lst\n", buildroot)
	for _, dir := range dirs {
		e.printf("if [ -d %s ];then\n", dir)
		e.printf("    find %s -type f -printf \"/%%h/%%f\\n\" >> filelist.lst\n", dir)
		e.printf("fi\n")
	}
	e.printf("popd\nmv %s/filelist.lst .\n\n", buildroot)
}

func requirement(name, version string) string {
	dep := "perl(" + name + ")"
	if name == "perl" {
		dep = "perl"
	}
	if dist.IsAnyVersion(version) {
		return dep
	}
	return dep + " >= " + version
}

// sourceMacros rewrites the file name of the source URL in terms of
// %{cpan_name} and %{version}.
func sourceMacros(d *dist.Descriptor) string {
	dir, file := path.Split(d.SourceURL)
	return dir + dirMacros(file, d)
}

func dirMacros(s string, d *dist.Descriptor) string {
	if s == "" {
		return "%{cpan_name}-%{version}"
	}
	if rest, ok := strings.CutPrefix(s, d.Name+"-"); ok {
		s = "%{cpan_name}-" + rest
	}
	if i := strings.LastIndex(s, d.Version); i >= 0 && d.Version != "" {
		s = s[:i] + "%{version}" + s[i+len(d.Version):]
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
