package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaultwire/vaultwire/internal/api/respond"
	"github.com/vaultwire/vaultwire/internal/hub"
	"github.com/vaultwire/vaultwire/internal/model"
	"github.com/vaultwire/vaultwire/internal/store"
)

// AdminHandler exposes vault introspection and the HTTP nuke path. These
// endpoints back the vaultwirectl CLI.
type AdminHandler struct {
	store    store.Store
	registry *hub.Registry
	eraser   *hub.Eraser
}

func NewAdminHandler(s store.Store, r *hub.Registry, e *hub.Eraser) *AdminHandler {
	return &AdminHandler{store: s, registry: r, eraser: e}
}

// ListMembers GET /api/vaults/{vaultId}/members
func (h *AdminHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	vaultID := mux.Vars(r)["vaultId"]
	recs, err := h.store.Memberships().Members(r.Context(), vaultID)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	out := make([]model.MemberInfo, 0, len(recs))
	for _, rec := range recs {
		info := model.MemberInfo{UserID: rec.UserID, JoinedAt: rec.JoinedAt}
		_, info.Live = h.registry.Lookup(rec.UserID)
		if ts, ok := h.registry.LastSeen(rec.UserID); ok {
			info.LastSeen = &ts
		}
		out = append(out, info)
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"vaultId": vaultID, "members": out, "count": len(out)})
}

// NukeUser POST /api/users/{userId}/nuke
func (h *AdminHandler) NukeUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if err := h.eraser.Nuke(r.Context(), userID); err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"userId": userID, "status": "nuked"})
}
