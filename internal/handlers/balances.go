package handlers

import (
	"net/http"

	"github.com/stayreal/companion/internal/logging"
	"github.com/stayreal/companion/internal/models"
)

// BalancesHandler exposes the balances commands.
type BalancesHandler struct {
	Balances BalancesCommands
}

func (h BalancesHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Balances != nil {
		return true
	}
	logging.FromContext(r.Context()).Error("balances commands unavailable")
	respondError(r.Context(), w, http.StatusServiceUnavailable, "balances service unavailable")
	return false
}

// GetSettings handles GET /api/v1/balances/settings.
func (h BalancesHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	settings, err := h.Balances.Settings(ctx)
	if err != nil {
		respondCommandError(ctx, w, "get balances settings", err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, settings)
}

// SaveSettings handles PUT /api/v1/balances/settings.
func (h BalancesHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	var settings models.BalancesSettings
	if err := decodeJSON(r, &settings); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Balances.SaveSettings(ctx, settings); err != nil {
		respondCommandError(ctx, w, "save balances settings", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download handles POST /api/v1/balances/download.
func (h BalancesHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	files, err := h.Balances.Download(ctx)
	if err != nil {
		respondCommandError(ctx, w, "download balances", err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]string{"files": files})
}

// List handles GET /api/v1/balances.
func (h BalancesHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	files, err := h.Balances.List(ctx)
	if err != nil {
		respondCommandError(ctx, w, "list balances", err)
		return
	}
	if files == nil {
		files = []string{}
	}
	respondJSON(ctx, w, http.StatusOK, files)
}
