// Package testutil provides shared test helpers for setting up link
// directories and QR composers on in-memory filesystems.
package testutil

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/spf13/afero"

	"github.com/starford/qrdirector/internal/directory"
	"github.com/starford/qrdirector/internal/qr"
	"github.com/starford/qrdirector/internal/storage"
)

// LinksPath is where TestDirectory keeps its links file.
const LinksPath = "/data/links.json"

// LogoPath is where TestComposer writes its logo.
const LogoPath = "/public/logo.png"

// TestDirectory creates a loaded directory backed by an in-memory links
// file. The returned filesystem can be inspected for what was persisted.
func TestDirectory(t *testing.T, opts ...directory.Option) (*directory.Directory, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	dir := directory.New(storage.NewFile(fsys, LinksPath), opts...)
	dir.Load(context.Background())
	return dir, fsys
}

// WriteLogo writes a solid-colour PNG of the given size to path.
func WriteLogo(t *testing.T, fsys afero.Fs, path string, size int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 0xe0, G: 0x30, B: 0x30, A: 0xff})
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// TestComposer creates a composer whose logo lives on an in-memory filesystem.
func TestComposer(t *testing.T) *qr.Composer {
	t.Helper()
	fsys := afero.NewMemMapFs()
	WriteLogo(t, fsys, LogoPath, 64)
	return qr.NewComposer(fsys, LogoPath)
}
