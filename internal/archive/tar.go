package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

// tarArchive is a sequential archive. Entry names are collected once at open
// time; each ReadEntry rescans the stream from the start.
type tarArchive struct {
	path    string
	comp    Compression
	entries []string
}

func openTar(path string, comp Compression) (*tarArchive, error) {
	a := &tarArchive{path: path, comp: comp}

	err := a.scan(func(hdr *tar.Header, _ io.Reader) (bool, error) {
		a.entries = append(a.entries, hdr.Name)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *tarArchive) Entries() []string {
	return a.entries
}

func (a *tarArchive) Kind() dist.Kind {
	return dist.KindSequential
}

func (a *tarArchive) Close() error {
	return nil
}

func (a *tarArchive) ReadEntry(name string) ([]byte, error) {
	var data []byte
	found := false

	err := a.scan(func(hdr *tar.Header, r io.Reader) (bool, error) {
		if hdr.Name != name {
			return false, nil
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			return true, fmt.Errorf("reading %s: not a regular file", name)
		}
		found = true
		var err error
		data, err = readLimited(r, name)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return data, nil
}

// scan walks the tarball, calling fn for each header until fn reports done.
func (a *tarArchive) scan(fn func(*tar.Header, io.Reader) (bool, error)) error {
	file, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	stream, err := decompress(file, a.comp)
	if err != nil {
		return err
	}
	defer stream.Close()

	tarReader := tar.NewReader(stream)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tarball: %w", err)
		}

		done, err := fn(header, tarReader)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func decompress(r io.Reader, comp Compression) (io.ReadCloser, error) {
	switch comp {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("decompressing tarball: %w", err)
		}
		return gzReader, nil
	case CompressionBzip2:
		bzReader, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: bzip2: %v", ErrDecompressor, err)
		}
		return bzReader, nil
	case CompressionXZ:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: xz: %v", ErrDecompressor, err)
		}
		return io.NopCloser(xzReader), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrDecompressor, err)
		}
		return dec.IOReadCloser(), nil
	}
	return io.NopCloser(r), nil
}
