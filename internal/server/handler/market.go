package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/service"
)

// MarketHandler serves market listing, detail, odds history, and bet
// placement.
type MarketHandler struct {
	markets *service.MarketService
	bets    *service.BetService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets *service.MarketService, bets *service.BetService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		bets:    bets,
		logger:  logHandler(logger, "market"),
	}
}

// ListMarkets returns a page of markets.
// GET /api/markets?status=&sort=&cursor=&limit=
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := domain.MarketQuery{
		ListOpts: parseListOpts(r),
		Status:   domain.MarketStatus(r.URL.Query().Get("status")),
		Sort:     r.URL.Query().Get("sort"),
	}

	markets, next, err := h.markets.ListMarkets(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list markets failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"markets":     markets,
		"next_cursor": next,
	})
}

// GetMarket returns one market with its current odds.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	detail, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string    `json:"title"`
		ClosesAt time.Time `json:"closes_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.markets.CreateMarket(r.Context(), req.Title, req.ClosesAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// PlaceBet settles a stake on a market.
// POST /api/markets/{id}/bets
func (h *MarketHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req struct {
		Wallet string          `json:"wallet"`
		Side   string          `json:"side"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	detail, err := h.bets.PlaceBet(r.Context(), id, req.Wallet, domain.Side(req.Side), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// GetOdds returns the latest snapshot, or the snapshots after ?since=N for
// subscribers closing a sequence gap.
// GET /api/markets/{id}/odds[?since=N&limit=M]
func (h *MarketHandler) GetOdds(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil || since < 0 {
			writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		limit := parseListOpts(r).Limit
		snaps, err := h.markets.OddsSince(r.Context(), id, since, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"snapshots": snaps,
			"pricing":   h.markets.Pricing(),
		})
		return
	}

	snap, err := h.markets.LatestOdds(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snap,
		"pricing":  h.markets.Pricing(),
	})
}

// ListStakes returns the stakes settled on a market.
// GET /api/markets/{id}/stakes
func (h *MarketHandler) ListStakes(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	stakes, err := h.markets.MarketStakes(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": stakes})
}

// WalletStakes returns a wallet's stakes across all markets.
// GET /api/wallets/{wallet}/stakes
func (h *MarketHandler) WalletStakes(w http.ResponseWriter, r *http.Request) {
	wallet := pathParam(r, "wallet")

	stakes, err := h.markets.WalletStakes(r.Context(), wallet, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": stakes})
}

// FeePools returns the cumulative DAO ledger balances.
// GET /api/fees/pools
func (h *MarketHandler) FeePools(w http.ResponseWriter, r *http.Request) {
	balances, err := h.markets.FeePoolBalances(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": balances})
}
