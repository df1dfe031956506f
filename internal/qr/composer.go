// Package qr renders branded QR codes: a high-redundancy QR symbol with a
// logo on a white circular badge at its centre.
package qr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"github.com/fogleman/gg"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/afero"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/starford/qrdirector/internal/apperr"
)

// Brand parameters.
const (
	Size        = 500
	Margin      = 2   // quiet zone, in modules
	LogoRatio   = 0.2 // logo width relative to the image
	BadgeRatio  = 1.2 // badge diameter relative to the logo
	BorderWidth = 2.0
)

var (
	Dark  = color.RGBA{R: 0x1d, G: 0x1d, B: 0x1b, A: 0xff}
	Light = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Composer builds QR images with the configured logo.
type Composer struct {
	fs       afero.Fs
	logoPath string
}

// NewComposer returns a Composer reading the logo at logoPath from fsys.
// A nil fsys means the operating system file system.
func NewComposer(fsys afero.Fs, logoPath string) *Composer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Composer{fs: fsys, logoPath: logoPath}
}

// Compose renders content as a QR code and overlays the logo badge.
// The logo is read on every call so it can be replaced without a restart.
func (c *Composer) Compose(ctx context.Context, content string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRender, err)
	}

	q, err := qrcode.New(content, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", apperr.ErrRender, err)
	}
	q.DisableBorder = true
	symbol := renderSymbol(q.Bitmap())

	logo, err := c.loadLogo()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(symbol)
	w, h := dc.Width(), dc.Height()
	logoSize := int(math.Floor(float64(w) * LogoRatio))
	cx, cy := float64(w)/2, float64(h)/2

	dc.DrawCircle(cx, cy, float64(logoSize)*BadgeRatio/2)
	dc.SetColor(Light)
	dc.FillPreserve()
	dc.SetColor(Dark)
	dc.SetLineWidth(BorderWidth)
	dc.Stroke()

	scaled := image.NewRGBA(image.Rect(0, 0, logoSize, logoSize))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), logo, logo.Bounds(), xdraw.Over, nil)
	dc.DrawImage(scaled, (w-logoSize)/2, (h-logoSize)/2)

	return dc.Image(), nil
}

// DataURLPrefix starts every payload returned by DataURL.
const DataURLPrefix = "data:image/png;base64,"

// DataURL renders content and returns it as a base64 PNG data URL.
func (c *Composer) DataURL(ctx context.Context, content string) (string, error) {
	img, err := c.Compose(ctx, content)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("%w: png: %v", apperr.ErrRender, err)
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (c *Composer) loadLogo() (image.Image, error) {
	f, err := c.fs.Open(c.logoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: logo: %v", apperr.ErrRender, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode logo %s: %v", apperr.ErrRender, c.logoPath, err)
	}
	return img, nil
}

// renderSymbol paints a borderless module matrix onto a Size×Size canvas
// with a Margin-module quiet zone. Modules are scaled by a fractional factor,
// so individual modules may differ by one pixel.
func renderSymbol(bits [][]bool) *image.RGBA {
	n := len(bits)
	scale := float64(Size) / float64(n+2*Margin)
	margin := int(math.Floor(Margin * scale))

	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			c := Light
			if y >= margin && x >= margin && y < Size-margin && x < Size-margin {
				row := min(int(float64(y-margin)/scale), n-1)
				col := min(int(float64(x-margin)/scale), n-1)
				if bits[row][col] {
					c = Dark
				}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
