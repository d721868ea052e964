package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/frederic-klein/cpan2spec/internal/archive"
	"github.com/frederic-klein/cpan2spec/internal/dist"
	"github.com/frederic-klein/cpan2spec/internal/downloader"
	"github.com/frederic-klein/cpan2spec/internal/index"
)

// ErrNoIndex is returned for module inputs when no index is configured.
var ErrNoIndex = errors.New("no package index configured")

type inputKind int

const (
	inputLocal inputKind = iota
	inputURL
	inputModule
)

// input is one command-line argument on its way to a distribution.
type input struct {
	arg     string
	kind    inputKind
	module  string
	version string // requested module version, module inputs only
	source  string // "cpan", "backpan" or "url"
	dist    dist.Distribution
	err     error
}

func (in *input) label() string {
	if in.dist.Name != "" {
		return in.dist.String()
	}
	return in.arg
}

func parseInput(arg string) *input {
	in := &input{arg: arg}

	switch {
	case strings.Contains(arg, "://"):
		in.kind = inputURL
		in.source = "url"
		u, err := url.Parse(arg)
		if err != nil {
			in.err = fmt.Errorf("parsing URL: %w", err)
			return in
		}
		in.dist, in.err = fromArchiveName(path.Base(u.Path))
		in.dist.SourceURL = arg

	case isLocalArchive(arg):
		in.kind = inputLocal
		in.dist, in.err = fromArchiveName(filepath.Base(arg))
		in.dist.Path = arg

	default:
		in.kind = inputModule
		in.module, in.version, _ = strings.Cut(arg, "@")
		if in.module == "" {
			in.err = fmt.Errorf("empty module name in %q", arg)
		}
	}
	return in
}

func isLocalArchive(arg string) bool {
	if _, err := os.Stat(arg); err == nil {
		return true
	}
	_, _, err := archive.Detect(arg)
	return err == nil
}

func fromArchiveName(file string) (dist.Distribution, error) {
	name, version, err := dist.ParseArchiveName(file)
	if err != nil {
		return dist.Distribution{}, err
	}
	return dist.Distribution{Name: name, Version: version, Kind: dist.KindFor(file)}, nil
}

// byModuleURL is the conventional mirror location for a local archive.
func byModuleURL(mirror, name, file string) string {
	top, _, _ := strings.Cut(name, "-")
	return fmt.Sprintf("%s/modules/by-module/%s/%s", strings.TrimSuffix(mirror, "/"), top, file)
}

// locate resolves module inputs through the index, falling back to
// MetaCPAN for pinned versions and modules the index does not list.
func (p *Pipeline) locate(ctx context.Context, in *input) {
	if in.err != nil || in.kind != inputModule {
		return
	}

	if p.index != nil {
		if err := p.index.Load(ctx); err != nil {
			in.err = fmt.Errorf("loading CPAN index: %w", err)
			return
		}
		d, err := p.index.Resolve(in.module)
		switch {
		case err == nil && (in.version == "" || d.Version == in.version):
			in.dist, in.source = d, "cpan"
			return
		case err != nil && !errors.Is(err, index.ErrNotFound):
			in.err = err
			return
		}
	}

	if p.backpan == nil {
		if p.index == nil {
			in.err = ErrNoIndex
		} else {
			in.err = fmt.Errorf("%s: %w", in.arg, index.ErrNotFound)
		}
		return
	}

	result, err := p.backpan.Lookup(ctx, in.module, in.version)
	if err != nil {
		in.err = err
		return
	}
	in.source = "backpan"
	in.dist, in.err = result.Distribution()
}

// fetch downloads every remote input in parallel before processing starts.
func (p *Pipeline) fetch(ctx context.Context, inputs []*input) {
	var (
		jobs    []downloader.Job
		pending []*input
	)
	for _, in := range inputs {
		if in.err != nil || in.dist.Path != "" {
			continue
		}
		if p.downloader == nil {
			in.err = errors.New("no downloader configured for remote input")
			continue
		}
		dest := p.downloader.CachePathFor(in.dist.SourceURL)
		if in.source == "backpan" {
			dest = p.backpan.LocalPath(in.dist.SourceURL)
		}
		jobs = append(jobs, downloader.Job{
			URL:      in.dist.SourceURL,
			DestPath: dest,
			Source:   in.source,
		})
		pending = append(pending, in)
	}
	if len(jobs) == 0 {
		return
	}

	p.logger.Info("downloading", "count", len(jobs))
	for i, r := range p.downloader.Download(ctx, jobs) {
		if r.Error != nil {
			pending[i].err = r.Error
			continue
		}
		pending[i].dist.Path = r.Job.DestPath
	}
}
