package quote

import (
	"errors"
	"net/http"
	"strings"
)

const maxSymbolLength = 5

type Handler struct {
	client       Client
	respondJSON  func(w http.ResponseWriter, status int, payload interface{})
	respondError func(w http.ResponseWriter, status int, message string)
}

func NewHandler(
	client Client,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string),
) *Handler {
	return &Handler{
		client:       client,
		respondJSON:  respondJSON,
		respondError: respondError,
	}
}

func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.PathValue("symbol"))
	if symbol == "" || len(symbol) > maxSymbolLength {
		h.respondError(w, http.StatusBadRequest, "Symbol must be between 1 and 5 characters")
		return
	}

	q, err := h.client.Lookup(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, ErrQuoteUnavailable) {
			h.respondError(w, http.StatusNotFound, "Invalid symbol")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to look up quote")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   q,
	})
}
