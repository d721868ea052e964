// Package downloader fetches distribution archives into a local cache using
// a fixed pool of workers.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Job represents a download job.
type Job struct {
	URL      string
	DestPath string
	Source   string // "cpan", "backpan" or "url"
}

// Result represents a download result.
type Result struct {
	Job   Job
	Error error
}

// Downloader handles parallel HTTP downloads.
type Downloader struct {
	workers  int
	cacheDir string
	client   *http.Client
	logger   *log.Logger
}

// NewDownloader creates a new downloader with the specified number of workers.
func NewDownloader(workers int, cacheDir string, logger *log.Logger) *Downloader {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Downloader{
		workers:  workers,
		cacheDir: cacheDir,
		client:   &http.Client{},
		logger:   logger,
	}
}

// Download fetches jobs in parallel. Results are returned in job order.
// Jobs still queued when ctx is cancelled fail with the context error.
func (d *Downloader) Download(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	for i, job := range jobs {
		results[i].Job = job
	}

	if err := os.MkdirAll(d.cacheDir, 0755); err != nil {
		for i := range results {
			results[i].Error = err
		}
		return results
	}

	indexes := make(chan int, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := ctx.Err(); err != nil {
					results[i].Error = err
					continue
				}
				results[i].Error = d.downloadOne(ctx, jobs[i])
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

func (d *Downloader) downloadOne(ctx context.Context, job Job) error {
	// Check if already cached
	if _, err := os.Stat(job.DestPath); err == nil {
		d.logger.Debug("cached", "path", job.DestPath)
		return nil
	}

	// Ensure destination directory exists
	if err := os.MkdirAll(filepath.Dir(job.DestPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	d.logger.Debug("downloading", "url", job.URL, "source", job.Source)
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", job.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", job.URL, resp.StatusCode)
	}

	// Write to temp file first, then rename
	tmpPath := job.DestPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	_, err = io.Copy(out, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing file: %w", err)
	}

	if err := os.Rename(tmpPath, job.DestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming file: %w", err)
	}

	return nil
}

// CacheDir returns the cache directory.
func (d *Downloader) CacheDir() string {
	return d.cacheDir
}

// CachePath returns the cache path for a CPAN distribution.
func (d *Downloader) CachePath(pathname string) string {
	return filepath.Join(d.cacheDir, pathname)
}

// CachePathFor returns the cache path for an archive URL. Mirror URLs keep
// their authors/id layout; anything else is cached by file name.
func (d *Downloader) CachePathFor(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if _, rest, ok := strings.Cut(p, "/authors/id/"); ok {
		return d.CachePath(filepath.FromSlash(rest))
	}
	return d.CachePath(path.Base(p))
}
