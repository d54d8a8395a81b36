package http

import (
	"net/http"

	"matrix-commission-backend/internal/domain"
)

type reverseRequest struct {
	Reason string `json:"reason"`
}

type placeRequest struct {
	UserID    int64  `json:"user_id"`
	SponsorID *int64 `json:"sponsor_id,omitempty"`
}

// DistributePool runs the monthly turnover pool distribution. The acting admin
// comes from the token.
func (h *Handler) DistributePool(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	dist, err := h.services.Pool.DistributePool(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

func (h *Handler) PoolSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.services.Pool.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reverseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := claimsFrom(r.Context())
	entry, err := h.services.Ledger.ReverseEntry(r.Context(), entryID, claims.UserID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) OrderSettlement(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	settlement, err := h.services.Ledger.OrderSettlement(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// PlaceUser places an activated user whose joining order predates the engine.
func (h *Handler) PlaceUser(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID <= 0 {
		writeError(w, r, domain.Validation("PlaceUser", "user_id is required"))
		return
	}

	placement, err := h.services.Placement.PlaceUser(r.Context(), req.UserID, req.SponsorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if placement.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, placement)
}
