// Package index looks up CPAN distributions by module name, either in the
// 02packages index of a CPAN mirror or through the MetaCPAN API.
package index

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

const (
	defaultIndexPath = "modules/02packages.details.txt.gz"
	cacheTTL         = 24 * time.Hour
)

// ErrNotFound means the index has no entry for a module.
var ErrNotFound = errors.New("module not found in index")

// Entry is one line of 02packages.details.txt.
type Entry struct {
	Module   string
	Version  string
	Pathname string // e.g. "A/AU/AUTHOR/Foo-Bar-1.23.tar.gz"
}

// Distribution returns the distribution the entry belongs to.
func (e Entry) Distribution(mirror string) (dist.Distribution, error) {
	name, version, err := dist.ParseArchiveName(e.Pathname)
	if err != nil {
		return dist.Distribution{}, err
	}
	return dist.Distribution{
		Name:      name,
		Version:   version,
		SourceURL: fmt.Sprintf("%s/authors/id/%s", mirror, e.Pathname),
		Kind:      dist.KindFor(e.Pathname),
	}, nil
}

// CPANIndex provides lookup for modules from 02packages.details.txt.
// The index is fetched and parsed at most once.
type CPANIndex struct {
	mirror    string
	cacheDir  string
	modules   map[string]Entry
	cacheFile string
	client    *http.Client

	once    sync.Once
	loadErr error
}

// NewCPANIndex creates a new CPAN index.
func NewCPANIndex(mirror, cacheDir string) *CPANIndex {
	return &CPANIndex{
		mirror:    strings.TrimSuffix(mirror, "/"),
		cacheDir:  cacheDir,
		modules:   make(map[string]Entry),
		cacheFile: filepath.Join(cacheDir, "02packages.details.txt"),
		client:    &http.Client{},
	}
}

// Load downloads and parses the CPAN index. Later calls return the result
// of the first one.
func (idx *CPANIndex) Load(ctx context.Context) error {
	idx.once.Do(func() {
		idx.loadErr = idx.load(ctx)
	})
	return idx.loadErr
}

func (idx *CPANIndex) load(ctx context.Context) error {
	if err := os.MkdirAll(idx.cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	if idx.isCacheValid() {
		return idx.parseCache()
	}

	if err := idx.download(ctx); err != nil {
		return err
	}

	return idx.parseCache()
}

func (idx *CPANIndex) isCacheValid() bool {
	info, err := os.Stat(idx.cacheFile)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < cacheTTL
}

func (idx *CPANIndex) download(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s", idx.mirror, defaultIndexPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := idx.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading index: HTTP %d", resp.StatusCode)
	}

	gzReader, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("decompressing index: %w", err)
	}
	defer gzReader.Close()

	// Write to temp file first so an interrupted download is not cached
	tmpPath := idx.cacheFile + ".tmp"
	outFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	_, err = io.Copy(outFile, gzReader)
	outFile.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache file: %w", err)
	}

	if err := os.Rename(tmpPath, idx.cacheFile); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

func (idx *CPANIndex) parseCache() error {
	file, err := os.Open(idx.cacheFile)
	if err != nil {
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	inHeader := true

	for scanner.Scan() {
		line := scanner.Text()

		// Skip header until empty line
		if inHeader {
			if line == "" {
				inHeader = false
			}
			continue
		}

		// Parse: Module::Name \t version \t A/AU/AUTHOR/Dist.tar.gz
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		idx.modules[fields[0]] = Entry{
			Module:   fields[0],
			Version:  fields[1],
			Pathname: fields[2],
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading cache file: %w", err)
	}
	return nil
}

// Lookup finds a module in the index.
func (idx *CPANIndex) Lookup(module string) (Entry, bool) {
	entry, ok := idx.modules[module]
	return entry, ok
}

// Resolve returns the distribution that provides module.
func (idx *CPANIndex) Resolve(module string) (dist.Distribution, error) {
	entry, ok := idx.Lookup(module)
	if !ok {
		return dist.Distribution{}, fmt.Errorf("%s: %w", module, ErrNotFound)
	}
	return entry.Distribution(idx.mirror)
}

// Mirror returns the configured mirror URL.
func (idx *CPANIndex) Mirror() string {
	return idx.mirror
}
