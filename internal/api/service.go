package api

import (
	"context"
	"strings"

	"github.com/starford/qrdirector/internal/directory"
	"github.com/starford/qrdirector/internal/qr"
)

// Service joins the directory with QR rendering for the HTTP layer.
type Service struct {
	dir      *directory.Directory
	composer *qr.Composer
	baseURL  string
}

// NewService creates a new API service. baseURL is the public origin that
// slugs are appended to.
func NewService(dir *directory.Directory, composer *qr.Composer, baseURL string) *Service {
	return &Service{dir: dir, composer: composer, baseURL: strings.TrimRight(baseURL, "/")}
}

// Directory returns the underlying link directory.
func (s *Service) Directory() *directory.Directory {
	return s.dir
}

// ShortURL returns the public redirect URL for slug.
func (s *Service) ShortURL(slug string) string {
	return s.baseURL + "/" + slug
}

// QRCode renders the QR image for an existing slug.
func (s *Service) QRCode(ctx context.Context, slug string) (*QRResponse, error) {
	if _, err := s.dir.Get(ctx, slug); err != nil {
		return nil, err
	}
	target := s.ShortURL(slug)
	payload, err := s.composer.DataURL(ctx, target)
	if err != nil {
		return nil, err
	}
	return &QRResponse{QRCode: payload, URL: target}, nil
}
