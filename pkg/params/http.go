package params

import (
	"encoding/json"
	"net/http"

	"github.com/cicconel11/contramind-pilot/pkg/api"
)

// AdminHandler is the bearer-gated control plane over a Store.
type AdminHandler struct {
	store Store
	token string
}

// NewAdminHandler creates the control-plane handler. Every route is gated on
// the admin bearer token; unauthenticated reads are not offered.
func NewAdminHandler(store Store, adminToken string) *AdminHandler {
	return &AdminHandler{store: store, token: adminToken}
}

// Register mounts the control-plane routes on mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	gate := api.BearerAuth(h.token)
	mux.Handle("GET /param/hash", gate(http.HandlerFunc(h.handleHash)))
	mux.Handle("GET /params", gate(http.HandlerFunc(h.handleParams)))
	mux.Handle("POST /param/threshold", gate(http.HandlerFunc(h.handleThreshold)))
	mux.Handle("POST /param/allowlist", gate(http.HandlerFunc(h.handleAllowlist)))
}

func (h *AdminHandler) handleHash(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		api.WriteInternalError(w, err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"param_hash": snap.ParamHash})
}

func (h *AdminHandler) handleParams(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		api.WriteInternalError(w, err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, snap)
}

type thresholdRequest struct {
	K string  `json:"k"`
	V float64 `json:"v"`
}

func (h *AdminHandler) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.K == "" {
		api.WriteBadRequest(w, "body must be {\"k\": \"amount_max\", \"v\": 2500}")
		return
	}
	hash, err := h.store.SetThreshold(r.Context(), req.K, req.V)
	if err != nil {
		api.WriteInternalError(w, err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"param_hash": hash})
}

type allowlistRequest struct {
	Country string `json:"country"`
	Action  string `json:"action"`
}

func (h *AdminHandler) handleAllowlist(w http.ResponseWriter, r *http.Request) {
	var req allowlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Country == "" {
		api.WriteBadRequest(w, "body must be {\"country\": \"US\", \"action\": \"add|remove\"}")
		return
	}
	hash, err := h.store.SetAllowlist(r.Context(), req.Country, req.Action)
	if err != nil {
		if err == ErrUnknownAction {
			api.WriteBadRequest(w, err.Error())
			return
		}
		api.WriteInternalError(w, err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"param_hash": hash})
}
