package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

func TestBackPANIndex_Lookup(t *testing.T) {
	// Arrange: Create mock MetaCPAN API server
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/download_url/JSON":
			gotQuery = r.URL.Query().Get("version")
			resp := BackPANResult{
				DownloadURL: "https://cpan.metacpan.org/authors/id/I/IS/ISHIGAKI/JSON-4.10.tar.gz",
				Version:     "4.10",
				Status:      "latest",
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		case "/v1/download_url/Empty":
			w.Write([]byte(`{"status":"backpan"}`))
		case "/v1/download_url/NonExistent":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	idx := NewBackPANIndex(t.TempDir())
	idx.apiURL = server.URL

	tests := []struct {
		name         string
		module       string
		version      string
		wantURL      string
		wantQuery    string
		wantErr      bool
		wantNotFound bool
	}{
		{
			name:    "latest release",
			module:  "JSON",
			wantURL: "https://cpan.metacpan.org/authors/id/I/IS/ISHIGAKI/JSON-4.10.tar.gz",
		},
		{
			name:      "pinned version",
			module:    "JSON",
			version:   "4.10",
			wantURL:   "https://cpan.metacpan.org/authors/id/I/IS/ISHIGAKI/JSON-4.10.tar.gz",
			wantQuery: "== 4.10",
		},
		{
			name:         "not found",
			module:       "NonExistent",
			wantErr:      true,
			wantNotFound: true,
		},
		{
			name:         "no download URL",
			module:       "Empty",
			wantErr:      true,
			wantNotFound: true,
		},
		{
			name:    "server error",
			module:  "Other",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotQuery = ""

			// Act
			result, err := idx.Lookup(context.Background(), tt.module, tt.version)

			// Assert
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrNotFound) != tt.wantNotFound {
				t.Errorf("Lookup() error = %v, wantNotFound %v", err, tt.wantNotFound)
			}
			if tt.wantErr {
				return
			}
			if result.DownloadURL != tt.wantURL {
				t.Errorf("DownloadURL = %q, want %q", result.DownloadURL, tt.wantURL)
			}
			if gotQuery != tt.wantQuery {
				t.Errorf("version query = %q, want %q", gotQuery, tt.wantQuery)
			}
		})
	}
}

func TestBackPANResult_Distribution(t *testing.T) {
	r := &BackPANResult{DownloadURL: "https://backpan.perl.org/authors/id/M/MA/MAKAMAKA/JSON-2.0.zip"}

	got, err := r.Distribution()
	if err != nil {
		t.Fatalf("Distribution() error = %v", err)
	}
	want := dist.Distribution{
		Name:      "JSON",
		Version:   "2.0",
		SourceURL: r.DownloadURL,
		Kind:      dist.KindIndexed,
	}
	if got != want {
		t.Errorf("Distribution() = %+v, want %+v", got, want)
	}
}

func TestBackPANIndex_LocalPath(t *testing.T) {
	backpanDir := "/tmp/backpan-modules"
	idx := NewBackPANIndex(backpanDir)

	tests := []struct {
		url  string
		want string
	}{
		{
			"https://cpan.metacpan.org/authors/id/I/IS/ISHIGAKI/JSON-4.10.tar.gz",
			"/tmp/backpan-modules/JSON-4.10.tar.gz",
		},
		{
			"https://backpan.perl.org/authors/id/M/MA/MAKAMAKA/JSON-2.0.tar.gz",
			"/tmp/backpan-modules/JSON-2.0.tar.gz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := idx.LocalPath(tt.url)
			if got != tt.want {
				t.Errorf("LocalPath(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestBackPANIndex_EnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	backpanDir := filepath.Join(tmpDir, "backpan", "modules")
	idx := NewBackPANIndex(backpanDir)

	// Act
	err := idx.EnsureDir()

	// Assert
	if err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	info, err := os.Stat(backpanDir)
	if err != nil {
		t.Fatalf("directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("created path is not a directory")
	}
	if idx.Dir() != backpanDir {
		t.Errorf("Dir() = %q, want %q", idx.Dir(), backpanDir)
	}
}
