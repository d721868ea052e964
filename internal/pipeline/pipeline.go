// Package pipeline turns command-line inputs into RPM spec files, one
// distribution at a time. A failing distribution is logged and skipped; the
// rest of the batch still runs.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/frederic-klein/cpan2spec/internal/archive"
	"github.com/frederic-klein/cpan2spec/internal/corelist"
	"github.com/frederic-klein/cpan2spec/internal/dist"
	"github.com/frederic-klein/cpan2spec/internal/doc"
	"github.com/frederic-klein/cpan2spec/internal/downloader"
	"github.com/frederic-klein/cpan2spec/internal/index"
	"github.com/frederic-klein/cpan2spec/internal/layout"
	"github.com/frederic-klein/cpan2spec/internal/license"
	"github.com/frederic-klein/cpan2spec/internal/perlver"
	"github.com/frederic-klein/cpan2spec/internal/resolver"
	"github.com/frederic-klein/cpan2spec/internal/specfile"
)

var (
	// ErrFailed is returned by Run when at least one distribution failed.
	ErrFailed = errors.New("some distributions failed")
	// ErrOutput means a spec could not be written; it ends the run.
	ErrOutput = errors.New("cannot write output")
)

const changelogDateFormat = "Mon Jan 2 2006"

// Options configures a Pipeline.
type Options struct {
	Core          *corelist.Set
	CompatCore    bool
	ScriptTimeout time.Duration

	Index      *index.CPANIndex   // nil disables module inputs
	BackPAN    *index.BackPANIndex
	Downloader *downloader.Downloader
	Mirror     string

	OutDir   string
	Packager string
	Release  string
	Epoch    string
	Macros   bool

	Force    bool // overwrite specs that are already up to date
	DepsOnly bool // print dependency names instead of writing a spec
	Diff     bool // print a diff against the existing spec instead of writing

	Stdout io.Writer
	Logger *log.Logger
	Now    func() time.Time
}

// Summary counts what a run did.
type Summary struct {
	Written int
	Skipped int
	Failed  int
}

// Pipeline processes distributions.
type Pipeline struct {
	opts       Options
	resolver   *resolver.Resolver
	index      *index.CPANIndex
	backpan    *index.BackPANIndex
	downloader *downloader.Downloader
	stdout     io.Writer
	logger     *log.Logger
	now        func() time.Time
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		opts:       opts,
		index:      opts.Index,
		backpan:    opts.BackPAN,
		downloader: opts.Downloader,
		stdout:     opts.Stdout,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if p.stdout == nil {
		p.stdout = os.Stdout
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.opts.Release == "" {
		p.opts.Release = "1"
	}
	if p.opts.Mirror == "" && p.index != nil {
		p.opts.Mirror = p.index.Mirror()
	}
	p.resolver = resolver.NewResolver(resolver.Options{
		Core:          opts.Core,
		CompatCore:    opts.CompatCore,
		ScriptTimeout: opts.ScriptTimeout,
		Logger:        p.logger,
	})
	return p
}

// Run processes every argument. It returns an error wrapping ErrFailed when
// any distribution failed, and stops early only when ctx is done or the
// output directory is unusable. In DepsOnly mode only the first argument is
// looked at.
func (p *Pipeline) Run(ctx context.Context, args []string) (Summary, error) {
	var sum Summary

	if p.opts.DepsOnly && len(args) > 1 {
		args = args[:1]
	}

	if !p.opts.DepsOnly && !p.opts.Diff {
		if err := os.MkdirAll(p.opts.OutDir, 0755); err != nil {
			return sum, fmt.Errorf("%w: creating output directory: %w", ErrOutput, err)
		}
	}

	inputs := make([]*input, len(args))
	for i, arg := range args {
		inputs[i] = parseInput(arg)
		p.locate(ctx, inputs[i])
	}
	p.fetch(ctx, inputs)

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		logger := p.logger.With("dist", in.label())
		written, err := false, in.err
		if err == nil {
			written, err = p.process(ctx, in, logger)
		}
		switch {
		case errors.Is(err, ErrOutput):
			logger.Error("aborting", "err", err)
			sum.Failed++
			return sum, err
		case err != nil:
			logger.Error("skipping", "err", err)
			sum.Failed++
		case written:
			sum.Written++
		default:
			sum.Skipped++
		}

	}

	if sum.Failed > 0 {
		return sum, fmt.Errorf("%w: %d of %d", ErrFailed, sum.Failed, len(args))
	}
	return sum, nil
}

func (p *Pipeline) specPath(d dist.Distribution) string {
	return filepath.Join(p.opts.OutDir, "perl-"+d.Name+".spec")
}

// upToDate reports whether an existing spec already has d's version or a
// newer one. An unreadable spec is treated as stale.
func (p *Pipeline) upToDate(d dist.Distribution, logger *log.Logger) bool {
	f, err := os.Open(p.specPath(d))
	if err != nil {
		return false
	}
	defer f.Close()

	h, err := specfile.NewParser(f).Parse()
	if err != nil {
		logger.Warn("ignoring unreadable existing spec", "err", err)
		return false
	}
	return perlver.Compare(h.Version, d.Version) >= 0
}

func (p *Pipeline) process(ctx context.Context, in *input, logger *log.Logger) (bool, error) {
	d := in.dist

	if !p.opts.Force && !p.opts.DepsOnly && !p.opts.Diff && p.upToDate(d, logger) {
		logger.Info("spec is up to date", "path", p.specPath(d))
		return false, nil
	}

	desc, err := p.describe(ctx, d, logger)
	if err != nil {
		return false, err
	}

	if p.opts.DepsOnly {
		return false, p.printDeps(desc)
	}

	var buf bytes.Buffer
	emitter := specfile.NewEmitter(&buf, specfile.Options{Macros: p.opts.Macros})
	if err := emitter.Emit(desc); err != nil {
		return false, fmt.Errorf("rendering spec: %w", err)
	}

	if p.opts.Diff {
		return false, p.printDiff(d, buf.Bytes())
	}

	path := p.specPath(d)
	if err := writeFile(path, buf.Bytes()); err != nil {
		return false, err
	}
	logger.Info("wrote spec", "path", path)
	return true, nil
}

// describe runs every analysis stage over the archive of d.
func (p *Pipeline) describe(ctx context.Context, d dist.Distribution, logger *log.Logger) (*dist.Descriptor, error) {
	a, err := archive.Open(d.Path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	lay, err := layout.Validate(a.Entries(), d.Name, d.Version)
	if err != nil {
		return nil, err
	}

	read := func(rel string) ([]byte, error) {
		raw, ok := lay.Path(rel)
		if !ok {
			return nil, fmt.Errorf("%s: %w", rel, archive.ErrEntryNotFound)
		}
		return a.ReadEntry(raw)
	}

	prose := doc.Extract(lay.Files, d.Module(), read, logger)

	md, err := p.resolver.Resolve(ctx, resolver.Source{Files: lay.Files, Read: read})
	if err != nil {
		return nil, err
	}

	docFiles := doc.Files(lay.Files)
	lic, warnings, err := license.Resolve(md.Licenses, docFiles)
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		return nil, err
	}

	sourceURL := d.SourceURL
	if sourceURL == "" {
		sourceURL = byModuleURL(p.mirror(), d.Name, filepath.Base(d.Path))
	}

	return &dist.Descriptor{
		Name:            d.Name,
		Version:         d.Version,
		Release:         p.opts.Release,
		Epoch:           p.opts.Epoch,
		Summary:         prose.Summary,
		Description:     prose.Description,
		License:         lic.String(),
		URL:             "https://metacpan.org/release/" + d.Name,
		SourceURL:       sourceURL,
		SourceDir:       lay.Root,
		Noarch:          md.Noarch,
		BuildRequires:   md.BuildRequires,
		Requires:        md.Requires,
		DocFiles:        docFiles,
		UsesBuildPL:     md.UsesBuildPL,
		InstallsScripts: md.InstallsScripts,
		Packager:        p.opts.Packager,
		ChangelogDate:   p.now().Format(changelogDateFormat),
	}, nil
}

func (p *Pipeline) mirror() string {
	if p.opts.Mirror != "" {
		return p.opts.Mirror
	}
	return "https://cpan.metacpan.org"
}

func (p *Pipeline) printDeps(desc *dist.Descriptor) error {
	for _, deps := range []dist.Deps{desc.BuildRequires, desc.Requires} {
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, err := fmt.Fprintln(p.stdout, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) printDiff(d dist.Distribution, rendered []byte) error {
	path := p.specPath(d)
	old, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading existing spec: %w", err)
	}
	diff, err := specfile.Diff(path, path+" (new)", old, rendered)
	if err != nil {
		return fmt.Errorf("diffing spec: %w", err)
	}
	_, err = io.WriteString(p.stdout, diff)
	return err
}

// writeFile writes through a temp file so an interrupted run never leaves a
// truncated spec behind.
func writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing spec: %w", ErrOutput, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming spec: %w", ErrOutput, err)
	}
	return nil
}
