package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"atmbank/internal/middleware"
	"atmbank/internal/money"
	"atmbank/internal/services"
	"atmbank/internal/validator"
)

type transferRequest struct {
	ToUsername string `json:"to_username"`
	Amount     string `json:"amount"`
	Remark     string `json:"remark"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := money.ParseMinor(req.Amount)
	if err != nil || amount <= 0 {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if amount > h.cfg.MaxTransferAmount {
		respondError(w, http.StatusBadRequest, "amount exceeds maximum")
		return
	}
	if err := validator.ValidateRemark(req.Remark); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fromAccount, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	toAccount, err := h.accounts.GetByUsername(r.Context(), req.ToUsername)
	if err != nil {
		respondError(w, http.StatusNotFound, "payee not found")
		return
	}
	// Permission checks stay at this boundary; the coordinator only
	// guarantees the money movement.
	if !fromAccount.Permissions.CanTransferOut() {
		respondError(w, http.StatusForbidden, "transfer out not permitted")
		return
	}
	if !toAccount.Permissions.CanTransferIn() {
		respondError(w, http.StatusForbidden, "payee cannot receive transfers")
		return
	}
	record, err := h.transfer.Transfer(r.Context(), services.TransferRequest{
		FromAccountID: fromAccount.ID,
		ToAccountID:   toAccount.ID,
		AmountMinor:   amount,
		Remark:        req.Remark,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"record_id": record.ID,
		"status":    record.Status,
		"amount":    money.FormatMinor(record.Amount),
		"remark":    record.Remark,
	})
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())
	limit, offset := pagination(r, 50)
	records, err := h.transfers.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}
	items := make([]map[string]any, 0, len(records))
	for _, record := range records {
		items = append(items, map[string]any{
			"record_id":       record.ID,
			"from_account_id": record.FromAccountID,
			"to_account_id":   record.ToAccountID,
			"amount":          money.FormatMinor(record.Amount),
			"remark":          record.Remark,
			"status":          record.Status,
			"created_at":      record.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"transfers": items})
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
