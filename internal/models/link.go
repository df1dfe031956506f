// Package models defines the domain types for QR Director.
package models

// DefaultSlug is the reserved key whose URL backs the root redirect.
const DefaultSlug = "_default"

// DefaultName labels the default link when none is stored.
const DefaultName = "Default"

// Link is the canonical record stored for every slug.
type Link struct {
	Slug     string `json:"slug"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Favorite bool   `json:"favorite"`
}

// IsDefault reports whether the link is the root-redirect record.
func (l Link) IsDefault() bool {
	return l.Slug == DefaultSlug
}
