// Package directory holds the authoritative slug → link mapping and keeps
// the links file in step with it.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/qrdirector/internal/apperr"
	"github.com/starford/qrdirector/internal/metrics"
	"github.com/starford/qrdirector/internal/models"
	"github.com/starford/qrdirector/internal/slug"
	"github.com/starford/qrdirector/internal/storage"
)

// Fallbacks for the default link when none is stored.
const (
	FallbackURL  = "https://www.google.com"
	FallbackName = models.DefaultName
)

// Change kinds passed to observers.
const (
	EventSaved     = "saved"
	EventDeleted   = "deleted"
	EventFavorited = "favorited"
)

// Observer is called after a mutation has been applied and persisted.
type Observer func(kind string, link models.Link)

// Directory is the in-memory link store.
//
// Every mutation holds the write lock across both the map update and the
// full-file save, so concurrent requests cannot interleave writes.
type Directory struct {
	mu    sync.RWMutex
	links map[string]models.Link

	store       storage.Provider
	logger      *slog.Logger
	fallbackURL string
	observers   []Observer

	genMu sync.Mutex
	gen   *slug.Generator
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		d.logger = l
	}
}

// WithFallbackURL overrides the URL used when the default link is created.
func WithFallbackURL(u string) Option {
	return func(d *Directory) {
		if u != "" {
			d.fallbackURL = u
		}
	}
}

// WithGenerator replaces the slug generator.
func WithGenerator(g *slug.Generator) Option {
	return func(d *Directory) {
		d.gen = g
	}
}

// WithObserver registers a change observer.
func WithObserver(o Observer) Option {
	return func(d *Directory) {
		d.observers = append(d.observers, o)
	}
}

// New creates an empty directory backed by store. Call Load before serving.
func New(store storage.Provider, opts ...Option) *Directory {
	d := &Directory{
		links:       make(map[string]models.Link),
		store:       store,
		logger:      slog.Default(),
		fallbackURL: FallbackURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.gen == nil {
		d.gen = slug.NewGenerator(nil)
	}
	return d
}

// LoadReport describes what Load found in the links file.
type LoadReport struct {
	storage.Report
	// DefaultRestored is set when the default link was missing or blank.
	DefaultRestored bool
	// Rewritten is set when the normalized document was saved back.
	Rewritten bool
	// Err is the store error, if the file could not be used. The directory
	// is still usable when it is set.
	Err error
}

// Load replaces the in-memory state with the persisted document, upgrading
// legacy records and re-creating the default link when missing or blank.
// The file is rewritten once if anything changed. An unparsable file has
// already been set aside by the store and is replaced; a file that could
// not be read at all is left untouched.
func (d *Directory) Load(ctx context.Context) LoadReport {
	d.mu.Lock()
	defer d.mu.Unlock()

	var rep LoadReport
	raw, err := d.store.Load(ctx)
	if err != nil {
		rep.Err = err
		d.logger.Error("load links failed, starting empty", slog.String("error", err.Error()))
	}

	links, nrep := storage.Normalize(raw)
	rep.Report = nrep
	if len(nrep.Upgraded) > 0 {
		d.logger.Info("migrated legacy link format", slog.Int("count", len(nrep.Upgraded)))
	}
	for _, s := range nrep.Skipped {
		d.logger.Warn("skipping malformed link", slog.String("slug", s))
	}

	if def, ok := links[models.DefaultSlug]; !ok || strings.TrimSpace(def.URL) == "" {
		links[models.DefaultSlug] = models.Link{Slug: models.DefaultSlug, URL: d.fallbackURL, Name: FallbackName}
		rep.DefaultRestored = true
	}
	d.links = links

	readFailed := err != nil && !errors.Is(err, apperr.ErrCorrupt)
	if !readFailed && (err != nil || nrep.Changed() || rep.DefaultRestored) {
		rep.Rewritten = d.persist(ctx)
	}
	metrics.Links.Set(float64(len(d.links)))
	d.logger.Info("loaded links", slog.Int("count", len(d.links)))
	return rep
}

// RedirectTarget resolves slug to its URL. The default link is not
// reachable through its own slug.
func (d *Directory) RedirectTarget(_ context.Context, s string) (string, error) {
	if s == models.DefaultSlug {
		return "", apperr.ErrNotFound
	}
	d.mu.RLock()
	l, ok := d.links[s]
	d.mu.RUnlock()
	if !ok {
		return "", apperr.ErrNotFound
	}
	return l.URL, nil
}

// DefaultTarget returns the root redirect URL.
func (d *Directory) DefaultTarget(_ context.Context) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if l, ok := d.links[models.DefaultSlug]; ok && l.URL != "" {
		return l.URL
	}
	return d.fallbackURL
}

// Get returns the link stored at slug.
func (d *Directory) Get(_ context.Context, s string) (models.Link, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.links[s]
	if !ok {
		return models.Link{}, apperr.ErrNotFound
	}
	return l, nil
}

// Len returns the number of links, including the default.
func (d *Directory) Len(_ context.Context) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.links)
}

// Upsert creates or replaces the link at slug. The favorite flag of an
// existing link survives; url and name are replaced. The file is always
// rewritten.
func (d *Directory) Upsert(ctx context.Context, s, url, name string) (models.Link, error) {
	s = strings.TrimSpace(s)
	url = strings.TrimSpace(url)
	name = strings.TrimSpace(name)
	if s == "" || url == "" {
		return models.Link{}, fmt.Errorf("%w: slug and url are required", apperr.ErrValidation)
	}

	d.mu.Lock()
	l := models.Link{Slug: s, URL: url, Name: name, Favorite: d.links[s].Favorite}
	d.links[s] = l
	d.persist(ctx)
	d.mu.Unlock()

	d.notify(EventSaved, l)
	return l, nil
}

// Delete removes the link at slug and reports whether it existed. The file
// is only rewritten when something was removed. The default link cannot be
// deleted.
func (d *Directory) Delete(ctx context.Context, s string) (bool, error) {
	if s == models.DefaultSlug {
		return false, fmt.Errorf("%w: %s cannot be deleted", apperr.ErrReserved, s)
	}

	d.mu.Lock()
	l, ok := d.links[s]
	if !ok {
		d.mu.Unlock()
		return false, nil
	}
	delete(d.links, s)
	d.persist(ctx)
	d.mu.Unlock()

	d.notify(EventDeleted, l)
	return true, nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (d *Directory) ToggleFavorite(ctx context.Context, s string) (bool, error) {
	d.mu.Lock()
	l, ok := d.links[s]
	if !ok {
		d.mu.Unlock()
		return false, apperr.ErrNotFound
	}
	l.Favorite = !l.Favorite
	d.links[s] = l
	d.persist(ctx)
	d.mu.Unlock()

	d.notify(EventFavorited, l)
	return l.Favorite, nil
}

// ListForDisplay returns every link except the default, favorites first and
// then by slug in root-locale collation order.
func (d *Directory) ListForDisplay(_ context.Context) []models.Link {
	d.mu.RLock()
	out := make([]models.Link, 0, len(d.links))
	for _, l := range d.links {
		if l.IsDefault() {
			continue
		}
		out = append(out, l)
	}
	d.mu.RUnlock()

	col := collate.New(language.Und)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Favorite != b.Favorite {
			return a.Favorite
		}
		if c := col.CompareString(a.Slug, b.Slug); c != 0 {
			return c < 0
		}
		return a.Slug < b.Slug
	})
	return out
}

// GenerateSlug returns a random slug not present in the directory.
func (d *Directory) GenerateSlug(_ context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.genMu.Lock()
	defer d.genMu.Unlock()

	return d.gen.Generate(func(s string) bool {
		_, ok := d.links[s]
		return ok
	})
}

// persist writes the full snapshot. Must be called with mu held for writing.
// Failures are logged and counted; the in-memory state stays authoritative.
// It reports whether the save succeeded.
func (d *Directory) persist(ctx context.Context) bool {
	metrics.Links.Set(float64(len(d.links)))
	if err := d.store.Save(ctx, d.links); err != nil {
		metrics.PersistFailures.Inc()
		d.logger.Error("save links failed", slog.String("error", err.Error()))
		return false
	}
	d.logger.Info("saved links", slog.Int("count", len(d.links)))
	return true
}

func (d *Directory) notify(kind string, l models.Link) {
	for _, o := range d.observers {
		o(kind, l)
	}
}
