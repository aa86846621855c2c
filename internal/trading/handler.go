package trading

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kamilszcz/StockMarket/internal/ledger"
)

type Handler struct {
	tradeService Service
	respondJSON  func(w http.ResponseWriter, status int, payload interface{})
	respondError func(w http.ResponseWriter, status int, message string)
}

func NewHandler(
	tradeService Service,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string),
) *Handler {
	return &Handler{
		tradeService: tradeService,
		respondJSON:  respondJSON,
		respondError: respondError,
	}
}

func (h *Handler) getUserIDReq(w http.ResponseWriter, r *http.Request) string {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return ""
	}
	return userID
}

// parseWholeNumber accepts a JSON number or a numeric string. Clients of the
// original app submitted share counts as form strings, so both arrive here;
// anything that is not a whole number fails.
func parseWholeNumber(raw json.RawMessage) (int64, error) {
	trimmed := bytes.Trim(bytes.TrimSpace(raw), `"`)
	return strconv.ParseInt(string(trimmed), 10, 64)
}

type orderRequest struct {
	Symbol string          `json:"symbol"`
	Shares json.RawMessage `json:"shares"`
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request, execute func(userID, symbol string, shares int64) (*Trade, error)) {
	userID := h.getUserIDReq(w, r)
	if userID == "" {
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shares, err := parseWholeNumber(req.Shares)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, ErrInvalidInput.Error())
		return
	}

	trade, err := execute(userID, req.Symbol, shares)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			h.respondError(w, http.StatusBadRequest, ErrInvalidInput.Error())
		case errors.Is(err, ErrInvalidSymbol):
			h.respondError(w, http.StatusNotFound, "Invalid symbol")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			h.respondError(w, http.StatusUnprocessableEntity, "Insufficient funds")
		case errors.Is(err, ledger.ErrNoSuchHolding):
			h.respondError(w, http.StatusUnprocessableEntity, "You do not own any shares of this stock")
		case errors.Is(err, ledger.ErrInsufficientShares):
			h.respondError(w, http.StatusUnprocessableEntity, "Not enough shares to sell")
		default:
			h.respondError(w, http.StatusInternalServerError, "Failed to execute trade")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Trade executed successfully.",
		"data":    trade,
	})
}

func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleOrder(w, r, func(userID, symbol string, shares int64) (*Trade, error) {
		return h.tradeService.Buy(r.Context(), userID, symbol, shares)
	})
}

func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	h.handleOrder(w, r, func(userID, symbol string, shares int64) (*Trade, error) {
		return h.tradeService.Sell(r.Context(), userID, symbol, shares)
	})
}

func (h *Handler) HandleAddBalance(w http.ResponseWriter, r *http.Request) {
	userID := h.getUserIDReq(w, r)
	if userID == "" {
		return
	}

	var req struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := parseWholeNumber(req.Amount)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, ErrInvalidAmount.Error())
		return
	}

	balance, err := h.tradeService.AddBalance(r.Context(), userID, amount)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			h.respondError(w, http.StatusBadRequest, ErrInvalidAmount.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to add balance")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Balance updated successfully.",
		"data": map[string]interface{}{
			"balance": balance,
		},
	})
}

func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID := h.getUserIDReq(w, r)
	if userID == "" {
		return
	}

	history, err := h.tradeService.GetHistory(r.Context(), userID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve transaction history")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   history,
	})
}
