package portfolio

import (
	"errors"
	"net/http"
)

type Handler struct {
	portfolioService Service
	respondJSON      func(w http.ResponseWriter, status int, payload interface{})
	respondError     func(w http.ResponseWriter, status int, message string)
}

func NewHandler(
	portfolioService Service,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string),
) *Handler {
	return &Handler{
		portfolioService: portfolioService,
		respondJSON:      respondJSON,
		respondError:     respondError,
	}
}

func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	p, err := h.portfolioService.GetPortfolio(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrPricingUnavailable) {
			h.respondError(w, http.StatusBadGateway, "Market data is temporarily unavailable")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve portfolio")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   p,
	})
}
