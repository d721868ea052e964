// Package archive gives a uniform read-only view over CPAN distribution
// archives: sequential tarballs (plain or compressed) and indexed zip files.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

var (
	// ErrEntryNotFound is returned by ReadEntry when the archive has no such entry.
	ErrEntryNotFound = errors.New("entry not found in archive")
	// ErrDecompressor is returned when the stream decompressor cannot be set up.
	ErrDecompressor = errors.New("decompressor unavailable")
	// ErrUnsupported is returned for file names with an unknown archive suffix.
	ErrUnsupported = errors.New("unsupported archive format")
)

// Archive is an opened distribution archive.
type Archive interface {
	// Entries returns every entry path in archive order.
	Entries() []string
	// ReadEntry returns the content of the entry with the given raw path.
	ReadEntry(name string) ([]byte, error)
	Kind() dist.Kind
	Close() error
}

// Compression identifies the stream compression of a tarball.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
	CompressionXZ
	CompressionZstd
)

// Detect maps an archive file name to its kind and compression.
func Detect(path string) (dist.Kind, Compression, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return dist.KindIndexed, CompressionNone, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return dist.KindSequential, CompressionGzip, nil
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz"), strings.HasSuffix(lower, ".tbz2"):
		return dist.KindSequential, CompressionBzip2, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return dist.KindSequential, CompressionXZ, nil
	case strings.HasSuffix(lower, ".tar.zst"):
		return dist.KindSequential, CompressionZstd, nil
	case strings.HasSuffix(lower, ".tar"):
		return dist.KindSequential, CompressionNone, nil
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// Open opens the archive at path, choosing the variant from its suffix.
func Open(path string) (Archive, error) {
	kind, comp, err := Detect(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	if kind == dist.KindIndexed {
		return openZip(path)
	}
	return openTar(path, comp)
}

// ReadAll reads an entry and reports whether it exists. Errors other than
// ErrEntryNotFound are returned as-is.
func ReadAll(a Archive, name string) ([]byte, bool, error) {
	data, err := a.ReadEntry(name)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("reading %s: entry exceeds %d bytes", name, maxEntrySize)
	}
	return data, nil
}

// maxEntrySize caps a single extracted entry; metadata and docs are small.
const maxEntrySize = 32 << 20
