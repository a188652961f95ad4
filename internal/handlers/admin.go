package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"atmbank/internal/auth"
	"atmbank/internal/middleware"
	"atmbank/internal/models"
	"atmbank/internal/money"
	"atmbank/internal/session"
	"atmbank/internal/store"
	"atmbank/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	admin, err := h.admins.GetByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(admin.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token := h.sessions.Issue(admin.ID, session.KindAdmin, "")
	respondJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"admin_id": admin.ID,
	})
}

func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.BearerToken(r); ok {
		h.sessions.Remove(token)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type adminCreateUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Balance     string `json:"balance"`
	Permissions int    `json:"permissions"`
}

func (h *Handler) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.AdminIDFromContext(r.Context())
	var req adminCreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateUsername(req.Username); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	openingBalance := int64(0)
	if req.Balance != "" {
		parsed, err := money.ParseMinor(req.Balance)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid balance")
			return
		}
		openingBalance = parsed
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	account := models.Account{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		Enabled:      true,
		Balance:      openingBalance,
		Permissions:  models.PermissionMask(req.Permissions) & models.PermAll,
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.Create(r.Context(), tx, account); err != nil {
			return err
		}
		_, err := h.audit.Log(r.Context(), tx, adminID,
			fmt.Sprintf("admin created account %s", account.ID))
		return err
	})
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			respondError(w, http.StatusConflict, "username already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"account_id": account.ID})
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	accounts, err := h.accounts.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	items := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, map[string]any{
			"id":          account.ID,
			"username":    account.Username,
			"enabled":     account.Enabled,
			"balance":     money.FormatMinor(account.Balance),
			"permissions": int(account.Permissions),
			"created_at":  account.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": items})
}

type adminUpdateUserRequest struct {
	Enabled     *bool   `json:"enabled"`
	Permissions *int    `json:"permissions"`
	Password    *string `json:"password"`
}

func (h *Handler) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.AdminIDFromContext(r.Context())
	accountID := chi.URLParam(r, "id")
	var req adminUpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if _, err := h.accounts.GetByID(r.Context(), accountID); err != nil {
		respondServiceError(w, err)
		return
	}
	if req.Password != nil {
		if err := validator.ValidatePassword(*req.Password); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if req.Enabled != nil {
			if err := h.accounts.SetEnabled(r.Context(), tx, accountID, *req.Enabled); err != nil {
				return err
			}
		}
		if req.Permissions != nil {
			mask := models.PermissionMask(*req.Permissions) & models.PermAll
			if err := h.accounts.SetPermissions(r.Context(), tx, accountID, mask); err != nil {
				return err
			}
		}
		if req.Password != nil {
			passwordHash, err := auth.HashPassword(*req.Password)
			if err != nil {
				return err
			}
			if err := h.accounts.UpdatePassword(r.Context(), tx, accountID, passwordHash); err != nil {
				return err
			}
		}
		_, err := h.audit.Log(r.Context(), tx, adminID,
			fmt.Sprintf("admin updated account %s", accountID))
		return err
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	if req.Enabled != nil && !*req.Enabled {
		h.sessions.RemoveAllForSubject(accountID, session.KindUser)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) AdminDisableUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.AdminIDFromContext(r.Context())
	accountID := chi.URLParam(r, "id")
	if _, err := h.accounts.GetByID(r.Context(), accountID); err != nil {
		respondServiceError(w, err)
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.SetEnabled(r.Context(), tx, accountID, false); err != nil {
			return err
		}
		_, err := h.audit.Log(r.Context(), tx, adminID,
			fmt.Sprintf("admin disabled account %s", accountID))
		return err
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to disable user")
		return
	}
	// Access ends now, not at the next token expiry.
	h.sessions.RemoveAllForSubject(accountID, session.KindUser)
	respondJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.AdminIDFromContext(r.Context())
	accountID := chi.URLParam(r, "id")
	if _, err := h.accounts.GetByID(r.Context(), accountID); err != nil {
		respondServiceError(w, err)
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.Delete(r.Context(), tx, accountID); err != nil {
			return err
		}
		_, err := h.audit.Log(r.Context(), tx, adminID,
			fmt.Sprintf("admin deleted account %s", accountID))
		return err
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	h.sessions.RemoveAllForSubject(accountID, session.KindUser)
	h.guards.Drop(accountID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) AdminListLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	subjectID := r.URL.Query().Get("subject_id")
	entries, err := h.audit.List(r.Context(), subjectID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// AdminExportLogs streams the audit trail as CSV, optionally narrowed
// to one subject and a date range. Dates are YYYY-MM-DD; the end date
// is inclusive.
func (h *Handler) AdminExportLogs(w http.ResponseWriter, r *http.Request) {
	from, to, err := exportRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.audit.ListRange(r.Context(), r.URL.Query().Get("subject_id"), from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export logs")
		return
	}
	filename := fmt.Sprintf("operation_logs_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"id", "subject_id", "operation", "created_at"})
	for _, entry := range entries {
		_ = writer.Write([]string{
			entry.ID,
			entry.SubjectID,
			entry.Operation,
			entry.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
}

const exportDateLayout = "2006-01-02"

func exportRange(r *http.Request) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC().AddDate(0, 0, 1)
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		parsed, err := time.Parse(exportDateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q", raw)
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		parsed, err := time.Parse(exportDateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q", raw)
		}
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}

type correctTransferRequest struct {
	Status string `json:"status"`
}

// AdminCorrectTransfer is the only sanctioned mutation of a transfer
// record: an operator relabels its status after the fact. The money
// itself is not moved here; any compensating balance repair happens
// out of band, so both involved guards are rebuilt from committed
// state afterwards.
func (h *Handler) AdminCorrectTransfer(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.AdminIDFromContext(r.Context())
	recordID := chi.URLParam(r, "id")
	var req correctTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Status != models.TransferStatusSuccess && req.Status != models.TransferStatusFailed {
		respondError(w, http.StatusBadRequest, "status must be SUCCESS or FAILED")
		return
	}
	record, err := h.transfers.GetByID(r.Context(), recordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transfer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load transfer")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.transfers.CorrectStatus(r.Context(), tx, recordID, req.Status); err != nil {
			return err
		}
		_, err := h.audit.Log(r.Context(), tx, adminID,
			fmt.Sprintf("admin corrected transfer %s to %s", recordID, req.Status))
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transfer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to correct transfer")
		return
	}
	h.resyncGuard(r.Context(), record.FromAccountID)
	h.resyncGuard(r.Context(), record.ToAccountID)
	respondJSON(w, http.StatusOK, map[string]string{
		"record_id": recordID,
		"status":    req.Status,
	})
}

// resyncGuard replaces an account's guard with its committed balance.
func (h *Handler) resyncGuard(ctx context.Context, accountID string) {
	account, err := h.accounts.GetByID(ctx, accountID)
	if err != nil {
		return
	}
	h.guards.Reset(accountID, account.Balance)
}

func (h *Handler) AdminTransferTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.transfers.TotalAmount(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to aggregate transfers")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"total_amount": money.FormatMinor(total),
	})
}
