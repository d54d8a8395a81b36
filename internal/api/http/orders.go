package http

import (
	"net/http"

	"matrix-commission-backend/internal/domain"
)

// OrderPaid receives the verified payment event from the payment relay. A
// replayed event answers 200 with already_processed set.
func (h *Handler) OrderPaid(w http.ResponseWriter, r *http.Request) {
	var event domain.OrderPaidEvent
	if err := decodeBody(r, &event); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.services.Order.OnOrderPaid(r.Context(), event)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
