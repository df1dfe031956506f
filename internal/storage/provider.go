// Package storage persists the link directory as a single JSON document.
package storage

import (
	"context"
	"encoding/json"

	"github.com/starford/qrdirector/internal/models"
)

// Provider is the interface for full-snapshot link persistence.
type Provider interface {
	// Load returns the raw per-slug values of the persisted document.
	// A missing document yields an empty map and a nil error.
	Load(ctx context.Context) (map[string]json.RawMessage, error)
	// Save replaces the persisted document with links.
	Save(ctx context.Context, links map[string]models.Link) error
}
