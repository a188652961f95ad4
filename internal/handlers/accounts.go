package handlers

import (
	"encoding/json"
	"net/http"

	"atmbank/internal/middleware"
	"atmbank/internal/money"
	"atmbank/internal/session"
	"atmbank/internal/websocket"
)

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())
	value, err := h.account.Balance(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"balance":    money.FormatMinor(value),
	})
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())
	amount, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !account.Permissions.CanDeposit() {
		respondError(w, http.StatusForbidden, "deposit not permitted")
		return
	}
	updated, err := h.account.Deposit(r.Context(), accountID, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"balance":    money.FormatMinor(updated),
	})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())
	amount, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !account.Permissions.CanWithdraw() {
		respondError(w, http.StatusForbidden, "withdraw not permitted")
		return
	}
	updated, err := h.account.Withdraw(r.Context(), accountID, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"balance":    money.FormatMinor(updated),
	})
}

// WSBalance authenticates via a token query parameter because browsers
// cannot set headers on websocket dials.
func (h *Handler) WSBalance(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	accountID, ok := h.sessions.Validate(token, session.KindUser)
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}
	websocket.ServeWS(w, r, h.hub, accountID)
}

func (h *Handler) decodeAmount(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return 0, false
	}
	amount, err := money.ParseMinor(req.Amount)
	if err != nil || amount <= 0 {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return 0, false
	}
	if amount > h.cfg.MaxTransferAmount {
		respondError(w, http.StatusBadRequest, "amount exceeds maximum")
		return 0, false
	}
	return amount, true
}
