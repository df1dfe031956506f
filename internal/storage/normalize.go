package storage

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/starford/qrdirector/internal/models"
)

// Report describes what Normalize had to do to a loaded document.
type Report struct {
	// Upgraded lists slugs stored in the legacy bare-string form.
	Upgraded []string
	// Skipped lists slugs whose values could not be interpreted.
	Skipped []string
}

// Changed reports whether the normalized directory differs from the
// document it came from and should be written back.
func (r Report) Changed() bool {
	return len(r.Upgraded) > 0 || len(r.Skipped) > 0
}

// storedLink mirrors record with optional fields so absent keys can be told
// apart from zero values.
type storedLink struct {
	URL      *string `json:"url"`
	Name     *string `json:"name"`
	Favorite *bool   `json:"favorite"`
}

// Normalize converts every raw value into a canonical models.Link.
//
// A JSON string s becomes {url: s, name: "", favorite: false}; a legacy
// default link is named models.DefaultName. Objects get missing
// name/favorite filled with defaults. Anything else, including a url that
// is blank after trimming, is skipped.
func Normalize(raw map[string]json.RawMessage) (map[string]models.Link, Report) {
	out := make(map[string]models.Link, len(raw))
	var rep Report

	for slug, value := range raw {
		v := bytes.TrimSpace(value)
		if len(v) == 0 {
			rep.Skipped = append(rep.Skipped, slug)
			continue
		}
		switch v[0] {
		case '"':
			var url string
			if err := json.Unmarshal(v, &url); err != nil || blank(url) {
				rep.Skipped = append(rep.Skipped, slug)
				continue
			}
			l := models.Link{Slug: slug, URL: url}
			if l.IsDefault() {
				l.Name = models.DefaultName
			}
			out[slug] = l
			rep.Upgraded = append(rep.Upgraded, slug)
		case '{':
			var s storedLink
			if err := json.Unmarshal(v, &s); err != nil || s.URL == nil || blank(*s.URL) {
				rep.Skipped = append(rep.Skipped, slug)
				continue
			}
			l := models.Link{Slug: slug, URL: *s.URL}
			if s.Name != nil {
				l.Name = *s.Name
			}
			if s.Favorite != nil {
				l.Favorite = *s.Favorite
			}
			out[slug] = l
		default:
			rep.Skipped = append(rep.Skipped, slug)
		}
	}

	sort.Strings(rep.Upgraded)
	sort.Strings(rep.Skipped)
	return out, rep
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
