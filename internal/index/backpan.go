package index

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

const metacpanAPI = "https://fastapi.metacpan.org"

// BackPANIndex provides lookup for specific module versions via MetaCPAN API,
// including releases that are no longer on CPAN mirrors.
type BackPANIndex struct {
	apiURL     string
	backpanDir string
	client     *http.Client
}

// BackPANResult contains the download URL for a specific module version.
type BackPANResult struct {
	DownloadURL string `json:"download_url"`
	Version     string `json:"version"`
	Status      string `json:"status"`
}

// Distribution returns the distribution the download URL points to.
func (r *BackPANResult) Distribution() (dist.Distribution, error) {
	name, version, err := dist.ParseArchiveName(path.Base(r.DownloadURL))
	if err != nil {
		return dist.Distribution{}, err
	}
	return dist.Distribution{
		Name:      name,
		Version:   version,
		SourceURL: r.DownloadURL,
		Kind:      dist.KindFor(r.DownloadURL),
	}, nil
}

// NewBackPANIndex creates a new BackPAN index.
func NewBackPANIndex(backpanDir string) *BackPANIndex {
	return &BackPANIndex{
		apiURL:     metacpanAPI,
		backpanDir: backpanDir,
		client:     &http.Client{},
	}
}

// Lookup queries MetaCPAN for a specific module version. An empty or "0"
// version asks for the latest release.
func (idx *BackPANIndex) Lookup(ctx context.Context, module, version string) (*BackPANResult, error) {
	// Build URL with version constraint
	apiURL := fmt.Sprintf("%s/v1/download_url/%s", idx.apiURL, url.PathEscape(module))
	if version != "" && version != "0" {
		apiURL = fmt.Sprintf("%s?version=%s", apiURL, url.QueryEscape("== "+version))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := idx.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying MetaCPAN: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s version %s: %w", module, version, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("MetaCPAN API error: HTTP %d", resp.StatusCode)
	}

	var result BackPANResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if result.DownloadURL == "" {
		return nil, fmt.Errorf("%s version %s: no download URL: %w", module, version, ErrNotFound)
	}

	return &result, nil
}

// EnsureDir creates the backpan modules directory if needed.
func (idx *BackPANIndex) EnsureDir() error {
	return os.MkdirAll(idx.backpanDir, 0755)
}

// LocalPath returns the local path for a downloaded BackPAN module.
func (idx *BackPANIndex) LocalPath(downloadURL string) string {
	return filepath.Join(idx.backpanDir, path.Base(downloadURL))
}

// Dir returns the backpan modules directory.
func (idx *BackPANIndex) Dir() string {
	return idx.backpanDir
}
