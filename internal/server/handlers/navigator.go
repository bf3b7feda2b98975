package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/navigator"
)

const maxBodyBytes = 64 << 10

// EntryView is one entry as served over HTTP.
type EntryView struct {
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	RealID         string `json:"real_id"`
	LocallyPresent bool   `json:"locally_present"`
}

// ListingResponse is returned by every navigation endpoint.
type ListingResponse struct {
	State     navigator.State `json:"state"`
	Folder    string          `json:"folder"`
	Entries   []EntryView     `json:"entries"`
	Folders   int             `json:"folders"`
	Files     int             `json:"files"`
	Summary   string          `json:"summary"`
	CanGoBack bool            `json:"can_go_back"`
}

// SourcesResponse lists the configured sources.
type SourcesResponse struct {
	SessionID string             `json:"session_id"`
	Sources   []navigator.Source `json:"sources"`
	Selected  string             `json:"selected,omitempty"`
}

// NavigatorHandlers serves one shared browsing session.
type NavigatorHandlers struct {
	nav *navigator.Navigator
}

// NewNavigatorHandlers wraps nav.
func NewNavigatorHandlers(nav *navigator.Navigator) *NavigatorHandlers {
	return &NavigatorHandlers{nav: nav}
}

// Routes mounts the navigation endpoints on r.
func (h *NavigatorHandlers) Routes(r chi.Router) {
	r.Get("/sources", h.Sources)
	r.Post("/sources/{name}", h.SelectSource)
	r.Get("/listing", h.Listing)
	r.Post("/browse", h.Browse)
	r.Post("/descend", h.Descend)
	r.Post("/back", h.Back)
	r.Post("/refresh", h.Refresh)
	r.Post("/resolve", h.Resolve)
}

// Sources serves GET /v1/sources.
func (h *NavigatorHandlers) Sources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SourcesResponse{
		SessionID: h.nav.SessionID(),
		Sources:   h.nav.Sources(),
		Selected:  h.nav.State().Source,
	})
}

// SelectSource serves POST /v1/sources/{name}.
func (h *NavigatorHandlers) SelectSource(w http.ResponseWriter, r *http.Request) {
	result, err := h.nav.SelectSource(r.Context(), chi.URLParam(r, "name"))
	h.respond(w, r, result, err)
}

// Listing serves GET /v1/listing. Query parameters filter and order=desc
// shape the cached listing without refetching.
func (h *NavigatorHandlers) Listing(w http.ResponseWriter, r *http.Request) {
	result := h.nav.Listing()
	if result == nil {
		respondWithError(w, r, navigator.ErrNoSource)
		return
	}
	q := r.URL.Query()
	if f := q.Get("filter"); f != "" {
		result = result.Filter(f)
	}
	if strings.EqualFold(q.Get("order"), "desc") {
		result = result.Sorted(true)
	}
	h.respond(w, r, result, nil)
}

type browseRequest struct {
	URL string `json:"url"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// Browse serves POST /v1/browse {"url": ...}.
func (h *NavigatorHandlers) Browse(w http.ResponseWriter, r *http.Request) {
	var req browseRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondWithError(w, r, apperrors.NewBadRequest("url is required"))
		return
	}
	result, err := h.nav.Browse(r.Context(), req.URL)
	h.respond(w, r, result, err)
}

// Descend serves POST /v1/descend {"name": ...}.
func (h *NavigatorHandlers) Descend(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeName(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	result, err := h.nav.DescendByName(r.Context(), req.Name)
	h.respond(w, r, result, err)
}

// Back serves POST /v1/back.
func (h *NavigatorHandlers) Back(w http.ResponseWriter, r *http.Request) {
	result, err := h.nav.Back(r.Context())
	h.respond(w, r, result, err)
}

// Refresh serves POST /v1/refresh.
func (h *NavigatorHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.nav.Refresh(r.Context())
	h.respond(w, r, result, err)
}

// Resolve serves POST /v1/resolve {"name": ...} and returns the remote URL
// and local path of a file in the current folder.
func (h *NavigatorHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeName(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	target, err := h.nav.ResolveFileByName(req.Name)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (h *NavigatorHandlers) respond(w http.ResponseWriter, r *http.Request, result *listing.Result, err error) {
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(result))
}

func (h *NavigatorHandlers) view(result *listing.Result) ListingResponse {
	resp := ListingResponse{
		State:     h.nav.State(),
		Folder:    result.Folder,
		Entries:   make([]EntryView, 0, len(result.Entries)),
		Folders:   result.FolderCount(),
		Files:     result.FileCount(),
		Summary:   result.Summary(),
		CanGoBack: h.nav.CanGoBack(),
	}
	for _, e := range result.Entries {
		resp.Entries = append(resp.Entries, EntryView{
			Kind:           e.Kind.String(),
			Name:           e.Name,
			DisplayName:    e.DisplayName,
			RealID:         e.RealID,
			LocallyPresent: e.LocallyPresent,
		})
	}
	return resp
}

func decodeName(r *http.Request, req *nameRequest) error {
	if err := decodeBody(r, req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewBadRequest("name is required")
	}
	return nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewBadRequest("request body is required")
		}
		return apperrors.NewBadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
