package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/starford/qrdirector/internal/apperr"
	"github.com/starford/qrdirector/internal/models"
)

// CorruptSuffix is appended to the links file name when an unparsable
// document is set aside before being overwritten.
const CorruptSuffix = ".corrupt"

// record is the on-disk shape of a link; the slug is the object key.
type record struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Favorite bool   `json:"favorite"`
}

// File implements Provider on a single JSON file.
type File struct {
	fs   afero.Fs
	path string
}

// NewFile creates a provider for the document at path. A nil fs means the
// operating system file system.
func NewFile(fsys afero.Fs, path string) *File {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &File{fs: fsys, path: filepath.Clean(path)}
}

// Path returns the location of the links document.
func (f *File) Path() string {
	return f.path
}

// Load reads and parses the links document.
func (f *File) Load(_ context.Context) (map[string]json.RawMessage, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", apperr.ErrPersistence, f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		if err == nil {
			err = errors.New("document is not a JSON object")
		}
		if bakErr := afero.WriteFile(f.fs, f.path+CorruptSuffix, data, 0o644); bakErr != nil {
			return nil, fmt.Errorf("%w: parse %s: %v (backup failed: %v)", apperr.ErrPersistence, f.path, err, bakErr)
		}
		return nil, fmt.Errorf("%w: parse %s: %v", apperr.ErrCorrupt, f.path, err)
	}
	return raw, nil
}

// Save atomically replaces the document: tmp file → fsync → rename.
func (f *File) Save(_ context.Context, links map[string]models.Link) error {
	doc := make(map[string]record, len(links))
	for slug, l := range links {
		doc[slug] = record{URL: l.URL, Name: l.Name, Favorite: l.Favorite}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: encode: %v", apperr.ErrPersistence, err)
	}

	dir := filepath.Dir(f.path)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", apperr.ErrPersistence, err)
	}

	tmp, err := afero.TempFile(f.fs, dir, ".links-tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", apperr.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write temp: %v", apperr.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: fsync: %v", apperr.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %v", apperr.ErrPersistence, err)
	}
	if err := f.fs.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: rename: %v", apperr.ErrPersistence, err)
	}
	success = true
	return nil
}

// Verify *File satisfies Provider at compile time.
var _ Provider = (*File)(nil)
