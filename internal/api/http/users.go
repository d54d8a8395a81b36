package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/security"
)

type ledgerPage struct {
	Entries  []domain.LedgerEntry `json:"entries"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

type eligibilityResponse struct {
	UserID   int64 `json:"user_id"`
	Eligible bool  `json:"eligible"`
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("ParsePath", "invalid id %q", raw)
	}
	return id, nil
}

// ownedUserID reads {id} and checks the caller may see that user's records
func ownedUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return 0, false
	}
	if err := security.AuthorizeOwner(claimsFrom(r.Context()), userID); err != nil {
		writeMessage(w, http.StatusForbidden, err.Error())
		return 0, false
	}
	return userID, true
}

func parseTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.Validation("ParseQuery", "%s must be RFC3339, got %q", name, raw)
	}
	return &t, nil
}

func parseInt(name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.Validation("ParseQuery", "%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}

func (h *Handler) UserLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownedUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := domain.LedgerFilter{UserID: userID}
	if raw := q.Get("type"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			t, err := domain.ParseEntryType(strings.TrimSpace(s))
			if err != nil {
				writeError(w, r, err)
				return
			}
			filter.Types = append(filter.Types, t)
		}
	}

	var err error
	if filter.From, err = parseTime("from", q.Get("from")); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.To, err = parseTime("to", q.Get("to")); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Page, err = parseInt("page", q.Get("page"), 1); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.PageSize, err = parseInt("page_size", q.Get("page_size"), 50); err != nil {
		writeError(w, r, err)
		return
	}

	entries, total, err := h.services.Ledger.ListEntries(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, ledgerPage{Entries: entries, Total: total, Page: filter.Page, PageSize: filter.PageSize})
}

func (h *Handler) UserWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownedUserID(w, r)
	if !ok {
		return
	}
	at, err := parseTime("at", r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	wallet, err := h.services.Ledger.GetWallet(r.Context(), userID, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (h *Handler) UserEligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownedUserID(w, r)
	if !ok {
		return
	}

	eligible, err := h.services.Eligibility.IsRepurchaseEligible(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibilityResponse{UserID: userID, Eligible: eligible})
}
