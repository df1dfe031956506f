package api

import "github.com/starford/qrdirector/internal/models"

// SaveLinkRequest is the request body for PUT /api/links/{slug}.
type SaveLinkRequest struct {
	URL  string `json:"url" example:"https://example.com/promo" validate:"required"`
	Name string `json:"name" example:"Spring flyer"`
}

// LinkListResponse lists every link for display.
type LinkListResponse struct {
	Links   []models.Link `json:"links" validate:"required"`
	Default models.Link   `json:"default" validate:"required"`
	Total   int           `json:"total" example:"42" validate:"required"`
}

// FavoriteResponse reports the favorite flag after a toggle.
type FavoriteResponse struct {
	Slug     string `json:"slug" example:"promo" validate:"required"`
	Favorite bool   `json:"favorite" validate:"required"`
}

// SlugResponse carries a freshly generated slug.
type SlugResponse struct {
	Slug string `json:"slug" example:"k3x9q" validate:"required"`
}

// QRResponse carries a rendered QR code and the URL it encodes.
type QRResponse struct {
	QRCode string `json:"qrCode" example:"data:image/png;base64,iVBORw0..." validate:"required"`
	URL    string `json:"url" example:"http://localhost:3000/promo" validate:"required"`
}
