package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/qrdirector/internal/apperr"
	"github.com/starford/qrdirector/internal/models"
)

// Handler holds JSON API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// slugParam extracts the {slug} URL parameter. chi matches against
// r.URL.RawPath when it is set, so only then is the value still escaped.
func slugParam(r *http.Request) string {
	s := chi.URLParam(r, "slug")
	if r.URL.RawPath == "" {
		return s
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// Validate checks the request body.
func (req SaveLinkRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.URL, validation.Required, validation.Length(1, 2048)),
		validation.Field(&req.Name, validation.Length(0, 200)),
	)
}

// ListLinks handles GET /api/links.
//
//	@Summary		List links in display order
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	LinkListResponse
//	@Security		BearerAuth
//	@Router			/links [get]
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	links := h.svc.dir.ListForDisplay(ctx)
	def, err := h.svc.dir.Get(ctx, models.DefaultSlug)
	if err != nil {
		def = models.Link{Slug: models.DefaultSlug, URL: h.svc.dir.DefaultTarget(ctx)}
	}
	writeJSON(w, http.StatusOK, LinkListResponse{Links: links, Default: def, Total: len(links)})
}

// GetLink handles GET /api/links/{slug}.
//
//	@Summary		Get a single link
//	@Tags			links
//	@Produce		json
//	@Param			slug	path		string	true	"Link slug"
//	@Success		200		{object}	models.Link
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{slug} [get]
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.dir.Get(r.Context(), slugParam(r))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// SaveLink handles PUT /api/links/{slug}.
//
//	@Summary		Create or replace a link
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string			true	"Link slug"
//	@Param			body	body		SaveLinkRequest	true	"Link target"
//	@Success		200		{object}	models.Link
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{slug} [put]
func (h *Handler) SaveLink(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SaveLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	s := slugParam(r)
	l, err := h.svc.dir.Upsert(r.Context(), s, req.URL, req.Name)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, errorBody("slug and url are required"))
			return
		}
		slog.Error("save link failed", slog.String("slug", s), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// DeleteLink handles DELETE /api/links/{slug}.
//
//	@Summary		Delete a link
//	@Tags			links
//	@Param			slug	path	string	true	"Link slug"
//	@Success		204		"Link deleted"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{slug} [delete]
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	s := slugParam(r)
	removed, err := h.svc.dir.Delete(r.Context(), s)
	switch {
	case errors.Is(err, apperr.ErrReserved):
		writeJSON(w, http.StatusBadRequest, errorBody("the default link cannot be deleted"))
	case err != nil:
		slog.Error("delete link failed", slog.String("slug", s), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	case !removed:
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// ToggleFavorite handles POST /api/links/{slug}/favorite.
//
//	@Summary		Flip the favorite flag of a link
//	@Tags			links
//	@Produce		json
//	@Param			slug	path		string	true	"Link slug"
//	@Success		200		{object}	FavoriteResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{slug}/favorite [post]
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	s := slugParam(r)
	fav, err := h.svc.dir.ToggleFavorite(r.Context(), s)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, FavoriteResponse{Slug: s, Favorite: fav})
}

// GenerateSlug handles POST /api/slugs.
//
//	@Summary		Generate an unused slug
//	@Tags			slugs
//	@Produce		json
//	@Success		201	{object}	SlugResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/slugs [post]
func (h *Handler) GenerateSlug(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.dir.GenerateSlug(r.Context())
	if err != nil {
		slog.Warn("generate slug failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("Could not generate unique slug"))
		return
	}
	writeJSON(w, http.StatusCreated, SlugResponse{Slug: s})
}

// QRCode handles GET /api/links/{slug}/qr.
//
//	@Summary		Render the QR code for a link
//	@Tags			links
//	@Produce		json
//	@Param			slug	path		string	true	"Link slug"
//	@Success		200		{object}	QRResponse
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{slug}/qr [get]
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	writeQR(w, r, h.svc, slugParam(r))
}
