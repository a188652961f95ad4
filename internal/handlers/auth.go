package handlers

import (
	"encoding/json"
	"net/http"

	"atmbank/internal/auth"
	"atmbank/internal/middleware"
	"atmbank/internal/models"
	"atmbank/internal/money"
	"atmbank/internal/session"
	"atmbank/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
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
		Balance:      0,
		Permissions:  models.PermAll,
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.Create(r.Context(), tx, account); err != nil {
			return err
		}
		_, err := h.audit.Log(r.Context(), tx, account.ID, "register")
		return err
	})
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			respondError(w, http.StatusConflict, "username already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	token := h.sessions.Issue(account.ID, session.KindUser, r.UserAgent())
	respondJSON(w, http.StatusCreated, map[string]string{
		"token":      token,
		"account_id": account.ID,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	account, err := h.accounts.GetByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(account.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !account.Enabled {
		respondError(w, http.StatusForbidden, "account is disabled")
		return
	}
	token := h.sessions.Issue(account.ID, session.KindUser, r.UserAgent())
	respondJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"account_id": account.ID,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.BearerToken(r); ok {
		h.sessions.Remove(token)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":       account.ID,
		"username": account.Username,
		"enabled":  account.Enabled,
		"balance":  money.FormatMinor(account.Balance),
		"permissions": map[string]bool{
			"deposit":      account.Permissions.CanDeposit(),
			"withdraw":     account.Permissions.CanWithdraw(),
			"transfer_out": account.Permissions.CanTransferOut(),
			"transfer_in":  account.Permissions.CanTransferIn(),
		},
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidatePassword(req.NewPassword); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !auth.CheckPassword(account.PasswordHash, req.OldPassword) {
		respondError(w, http.StatusForbidden, "old password does not match")
		return
	}
	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.UpdatePassword(r.Context(), tx, accountID, passwordHash); err != nil {
			return err
		}
		_, err := h.audit.Log(r.Context(), tx, accountID, "change password")
		return err
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
