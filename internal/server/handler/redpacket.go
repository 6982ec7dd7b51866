package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/service"
)

// RedPacketHandler serves the subsidized token purchase flow.
type RedPacketHandler struct {
	purchases *service.PurchaseService
	sales     *service.SaleService
	logger    *slog.Logger
}

// NewRedPacketHandler creates a RedPacketHandler.
func NewRedPacketHandler(purchases *service.PurchaseService, sales *service.SaleService, logger *slog.Logger) *RedPacketHandler {
	return &RedPacketHandler{
		purchases: purchases,
		sales:     sales,
		logger:    logHandler(logger, "redpacket"),
	}
}

// Create opens a purchase session with a reserved memo.
// POST /api/redpacket/create
func (h *RedPacketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet string `json:"wallet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.purchases.StartSession(r.Context(), req.Wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Purchase reports or advances the purchase bound to (wallet, memo). With a
// signature it completes an awaiting_signature purchase; completion is
// idempotent. A terminal expired purchase answers with the purchase state
// alongside the timeout error status.
// POST /api/redpacket/purchase
func (h *RedPacketHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet       string `json:"wallet"`
		Memo         string `json:"memo"`
		SignedTxHash string `json:"signed_tx_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Wallet == "" || req.Memo == "" {
		writeError(w, http.StatusBadRequest, "wallet and memo are required")
		return
	}

	p, err := h.purchases.Confirm(r.Context(), req.Wallet, req.Memo, req.SignedTxHash)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentTimeout) || errors.Is(err, domain.ErrSessionExpired) {
			// The client needs the purchase state to know the memo is burned.
			status := http.StatusRequestTimeout
			if errors.Is(err, domain.ErrSessionExpired) {
				status = http.StatusGone
			}
			writeJSON(w, status, map[string]any{
				"purchase": p,
				"error":    rootMessage(err),
			})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Status returns the public view of today's sale day.
// GET /api/redpacket/status
func (h *RedPacketHandler) Status(w http.ResponseWriter, r *http.Request) {
	day, err := h.sales.CurrentDay(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "sale status failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}
