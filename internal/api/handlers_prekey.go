package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaultwire/vaultwire/internal/api/respond"
	"github.com/vaultwire/vaultwire/internal/model"
	"github.com/vaultwire/vaultwire/internal/store"
)

// maxBundleBytes bounds a published bundle; real bundles are a few KB.
const maxBundleBytes = 64 << 10

// PrekeyHandler serves the prekey publish/fetch collaborator. Bundles are
// opaque byte strings: stored and served verbatim, never parsed.
type PrekeyHandler struct {
	prekeys store.Prekeys
}

func NewPrekeyHandler(p store.Prekeys) *PrekeyHandler { return &PrekeyHandler{prekeys: p} }

// PublishBundle PUT /api/prekeys/{userId}
func (h *PrekeyHandler) PublishBundle(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBundleBytes+1))
	if err != nil {
		respond.WriteBadRequest(w, "unreadable body")
		return
	}
	if len(body) == 0 || len(body) > maxBundleBytes {
		respond.WriteBadRequest(w, "bundle must be 1 byte to 64 KiB")
		return
	}
	if err := h.prekeys.Put(r.Context(), &model.PrekeyBundle{UserID: userID, Bundle: body}); err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FetchBundle GET /api/prekeys/{userId}
func (h *PrekeyHandler) FetchBundle(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	b, err := h.prekeys.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "no bundle published")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Bundle)
}
