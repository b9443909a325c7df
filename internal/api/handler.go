package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/userstack/userstack/internal/image"
	"github.com/userstack/userstack/internal/pipeline"
	"github.com/userstack/userstack/internal/push"
	"github.com/userstack/userstack/internal/store"
)

// Handler is the HTTP handler for the record endpoints. It validates and
// decodes requests, admits inline images, and hands mutations to the pipeline.
type Handler struct {
	pipeline *pipeline.Pipeline
	registry *push.Registry
	images   *image.Processor
	mux      *http.ServeMux
}

// New creates a Handler wired to the given collaborators and registers all routes.
func New(p *pipeline.Pipeline, reg *push.Registry, imgs *image.Processor) http.Handler {
	h := &Handler{pipeline: p, registry: reg, images: imgs, mux: http.NewServeMux()}

	h.mux.HandleFunc("/users", h.listUsers)
	h.mux.HandleFunc("/post", h.createUser)
	h.mux.HandleFunc("/update/", h.updateUser) // subtree — extracts {id}
	h.mux.HandleFunc("/delete/", h.deleteUser) // subtree — extracts {id}
	h.mux.HandleFunc("/subscribe", h.subscribe)
	h.mux.HandleFunc("/healthz", h.healthz)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// listUsers serves GET /users — the cache-accelerated collection listing.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := h.pipeline.List(r.Context())
	if err != nil {
		slog.Error("api: list users", "err", err)
		jsonErr(w, http.StatusInternalServerError, "An error occurred while fetching users.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// createUser serves POST /post — create a record, optionally with an inline image.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u := store.User{Name: req.Name, Email: req.Email}
	if req.ImageURL != "" {
		name, err := h.images.Admit(req.ImageURL)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		u.ImageURL = publicImageURL(r, name)
	}

	rec, err := h.pipeline.Create(r.Context(), u)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, rec)
}

// updateUser serves PATCH /update/{id} — merge-patch the submitted fields.
func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/update/")
	var f store.Fields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Identifier validation runs before image admission so a malformed id
	// never stores a derived image.
	if !store.ValidID(id) {
		jsonErr(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	if f.ImageURL != nil && *f.ImageURL != "" {
		name, err := h.images.Admit(*f.ImageURL)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		url := publicImageURL(r, name)
		f.ImageURL = &url
	}

	if _, err := h.pipeline.Update(r.Context(), id, f); err != nil {
		h.writeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, messageResponse{Message: "User updated successfully."})
}

// deleteUser serves DELETE /delete/{id}.
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/delete/")
	n, err := h.pipeline.Delete(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, deleteResponse{DeletedCount: n})
}

// subscribe serves POST /subscribe — register a push subscription.
func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var sub webpush.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid subscription body")
		return
	}
	if err := h.registry.Add(sub); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid subscription body")
		return
	}

	slog.Debug("api: subscriber registered", "endpoint", sub.Endpoint, "total", h.registry.Len())
	jsonResp(w, http.StatusCreated, struct{}{})
}

// healthz serves GET /healthz for liveness checks.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, messageResponse{Message: "ok"})
}

// --- helpers ----------------------------------------------------------------

// writeErr maps pipeline and admission errors to HTTP responses.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidID):
		jsonErr(w, http.StatusBadRequest, "Invalid ID format")
	case errors.Is(err, image.ErrBadFormat):
		jsonErr(w, http.StatusBadRequest, "Invalid image format")
	default:
		slog.Error("api: request failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "Error processing request")
	}
}

// publicImageURL builds the externally resolvable URL for a stored image name.
func publicImageURL(r *http.Request, name string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/uploads/%s", scheme, r.Host, name)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
