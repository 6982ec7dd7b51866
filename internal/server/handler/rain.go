package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/taibet/taibet/internal/service"
)

// RainHandler serves the rain drop giveaway endpoints.
type RainHandler struct {
	rains  *service.RainService
	logger *slog.Logger
}

// NewRainHandler creates a RainHandler.
func NewRainHandler(rains *service.RainService, logger *slog.Logger) *RainHandler {
	return &RainHandler{
		rains:  rains,
		logger: logHandler(logger, "rain"),
	}
}

// Current returns the active drop.
// GET /api/rain/current
func (h *RainHandler) Current(w http.ResponseWriter, r *http.Request) {
	drop, err := h.rains.CurrentDrop(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drop)
}

// Claim grants the wallet a bonus from the active drop.
// POST /api/rain/claim
func (h *RainHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet string `json:"wallet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claim, err := h.rains.Claim(r.Context(), req.Wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}
