package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/frederic-klein/cpan2spec/internal/corelist"
	"github.com/frederic-klein/cpan2spec/internal/cpanfile"
	"github.com/frederic-klein/cpan2spec/internal/dist"
	"github.com/frederic-klein/cpan2spec/internal/makefilepl"
	"github.com/frederic-klein/cpan2spec/internal/meta"
	"github.com/frederic-klein/cpan2spec/internal/perlver"
)

// DefaultScriptTimeout bounds Makefile.PL harvesting.
const DefaultScriptTimeout = 5 * time.Second

const (
	moduleBuild     = "Module::Build"
	moduleBuildTiny = "Module::Build::Tiny"
	makeMaker       = "ExtUtils::MakeMaker"
)

// Source is the validated file list of a distribution and a way to read
// its files.
type Source struct {
	Files []string
	Read  func(rel string) ([]byte, error)
}

func (s Source) has(rel string) bool {
	for _, f := range s.Files {
		if f == rel {
			return true
		}
	}
	return false
}

// Metadata is what the resolver learned about a distribution.
type Metadata struct {
	BuildRequires   dist.Deps
	Requires        dist.Deps
	Licenses        []string // META 1.x license tokens, possibly empty
	UsesBuildPL     bool
	InstallsScripts bool
	Noarch          bool
}

// Options configures a Resolver.
type Options struct {
	Core          *corelist.Set // nil disables core filtering
	CompatCore    bool          // keep core modules, epoch-qualified
	ScriptTimeout time.Duration
	TokenBudget   int
	Logger        *log.Logger
}

// Resolver merges the dependency sources of a distribution.
type Resolver struct {
	core          *corelist.Set
	compatCore    bool
	scriptTimeout time.Duration
	tokenBudget   int
	logger        *log.Logger
}

// NewResolver creates a resolver. Zero option values take defaults.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		core:          opts.Core,
		compatCore:    opts.CompatCore,
		scriptTimeout: opts.ScriptTimeout,
		tokenBudget:   opts.TokenBudget,
		logger:        opts.Logger,
	}
	if r.scriptTimeout <= 0 {
		r.scriptTimeout = DefaultScriptTimeout
	}
	if r.tokenBudget <= 0 {
		r.tokenBudget = makefilepl.DefaultTokenBudget
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// Resolve reads the manifest, cpanfile and Makefile.PL of src and returns
// the merged requirements. Only an unreadable or unparseable manifest is an
// error; problems with the other sources are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, src Source) (*Metadata, error) {
	md := &Metadata{
		BuildRequires: make(dist.Deps),
		Requires:      make(dist.Deps),
	}
	build, run := md.BuildRequires, md.Requires

	manifest, err := r.readManifest(src)
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		build.Merge(manifest.Build)
		run.Merge(manifest.Runtime)
		run.Merge(manifest.Recommends)
		md.Licenses = manifest.Licenses
		md.InstallsScripts = manifest.HasScripts
	}

	md.UsesBuildPL = src.has("Build.PL") && (!src.has("Makefile.PL") || namesModuleBuild(manifest))

	if manifest == nil && src.has("cpanfile") {
		r.mergeCpanfile(src, build, run)
	}

	if !md.UsesBuildPL && src.has("Makefile.PL") {
		r.mergeMakefilePL(ctx, src, md)
	}

	build.Set(selfDependency(md.UsesBuildPL, manifest), "0")

	if v, ok := run["perl"]; ok {
		delete(run, "perl")
		if have, ok := build["perl"]; ok {
			v = perlver.Max(have, v)
		}
		build["perl"] = v
	}
	build.Merge(run)

	r.filterCore(build)
	r.filterCore(run)

	md.Noarch = noarch(src.Files)
	md.InstallsScripts = md.InstallsScripts || shipsScripts(src.Files)

	r.logger.Debug("resolved requirements",
		"build", len(build), "run", len(run), "build_pl", md.UsesBuildPL, "noarch", md.Noarch)
	return md, nil
}

func (r *Resolver) readManifest(src Source) (*meta.Manifest, error) {
	name, ok := meta.Find(src.Files)
	if !ok {
		r.logger.Debug("no META.json or META.yml")
		return nil, nil
	}
	data, err := src.Read(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	m, err := meta.Parse(name, data)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("read manifest", "file", name, "generated_by", m.GeneratedBy)
	return m, nil
}

func (r *Resolver) mergeCpanfile(src Source, build, run dist.Deps) {
	data, err := src.Read("cpanfile")
	if err != nil {
		r.logger.Warn("reading cpanfile failed", "err", err)
		return
	}
	cf, err := cpanfile.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		r.logger.Warn("parsing cpanfile failed", "err", err)
		return
	}
	run.Merge(cf.Runtime())
	build.Merge(cf.Build())
}

func (r *Resolver) mergeMakefilePL(ctx context.Context, src Source, md *Metadata) {
	data, err := src.Read("Makefile.PL")
	if err != nil {
		r.logger.Warn("reading Makefile.PL failed, no dependencies harvested", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.scriptTimeout)
	defer cancel()

	res, err := makefilepl.ParseBudget(ctx, data, r.tokenBudget)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		r.logger.Warn("Makefile.PL harvesting timed out, no dependencies harvested", "timeout", r.scriptTimeout)
		return
	case err != nil:
		r.logger.Warn("Makefile.PL not understood, no dependencies harvested", "err", err)
		return
	}

	for _, key := range res.Rejected {
		r.logger.Warn("Makefile.PL value is not literal, ignored", "key", key)
	}
	md.BuildRequires.Merge(res.All())
	if res.MinPerl != "" {
		md.BuildRequires.Set("perl", res.MinPerl)
	}
	if len(md.Licenses) == 0 && res.License != "" {
		md.Licenses = []string{meta.NormalizeLicense(res.License)}
	}
	md.InstallsScripts = md.InstallsScripts || res.ExeFiles
}

// filterCore drops dependencies the base runtime already provides, or, in
// compatibility mode, keeps them with an epoch-qualified version. perl itself
// is always kept and qualified.
func (r *Resolver) filterCore(deps dist.Deps) {
	for name, v := range deps {
		if name == "perl" {
			deps[name] = qualify(v)
			continue
		}
		if r.core == nil || !r.core.Provides(name, v) {
			continue
		}
		if !r.compatCore {
			r.logger.Debug("dropping core module", "module", name)
			delete(deps, name)
			continue
		}
		deps[name] = qualify(v)
	}
}

func qualify(v string) string {
	if dist.IsAnyVersion(v) || strings.Contains(v, ":") {
		return v
	}
	return perlver.Epoch(v) + v
}

func namesModuleBuild(m *meta.Manifest) bool {
	if m == nil {
		return false
	}
	if _, ok := m.Configure[moduleBuild]; ok {
		return true
	}
	if _, ok := m.Configure[moduleBuildTiny]; ok {
		return true
	}
	return strings.Contains(m.GeneratedBy, moduleBuild)
}

func selfDependency(usesBuildPL bool, m *meta.Manifest) string {
	if !usesBuildPL {
		return makeMaker
	}
	if m != nil {
		if _, ok := m.Configure[moduleBuildTiny]; ok {
			return moduleBuildTiny
		}
	}
	return moduleBuild
}

var archExts = map[string]bool{".c": true, ".h": true, ".xs": true, ".inl": true, ".swg": true}

func noarch(files []string) bool {
	for _, f := range files {
		if archExts[strings.ToLower(path.Ext(f))] {
			return false
		}
	}
	return true
}

func shipsScripts(files []string) bool {
	for _, f := range files {
		dir, _, nested := strings.Cut(f, "/")
		if nested && (dir == "bin" || dir == "script" || dir == "scripts") {
			return true
		}
	}
	return false
}
