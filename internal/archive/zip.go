package archive

import (
	"archive/zip"
	"fmt"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

// zipArchive is a random-access archive backed by the zip central directory.
type zipArchive struct {
	rc      *zip.ReadCloser
	entries []string
	byName  map[string]*zip.File
}

func openZip(path string) (*zipArchive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}

	a := &zipArchive{
		rc:     rc,
		byName: make(map[string]*zip.File, len(rc.File)),
	}
	for _, f := range rc.File {
		a.entries = append(a.entries, f.Name)
		a.byName[f.Name] = f
	}
	return a, nil
}

func (a *zipArchive) Entries() []string {
	return a.entries
}

func (a *zipArchive) Kind() dist.Kind {
	return dist.KindIndexed
}

func (a *zipArchive) Close() error {
	return a.rc.Close()
}

func (a *zipArchive) ReadEntry(name string) ([]byte, error) {
	f, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if f.FileInfo().IsDir() {
		return nil, fmt.Errorf("reading %s: is a directory", name)
	}

	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	defer r.Close()

	return readLimited(r, name)
}
