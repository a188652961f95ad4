package handlers

import (
	"net/http"

	"atmbank/internal/balance"
	"atmbank/internal/config"
	"atmbank/internal/db"
	"atmbank/internal/middleware"
	"atmbank/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner  db.TxRunner
	cfg       config.Config
	accounts  AccountStore
	admins    AdminStore
	transfers TransferStore
	audit     AuditStore
	account   AccountService
	transfer  TransferService
	sessions  Sessions
	guards    *balance.Table
	hub       *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, accounts AccountStore, admins AdminStore, transfers TransferStore, audit AuditStore, account AccountService, transfer TransferService, sessions Sessions, guards *balance.Table, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:  txRunner,
		cfg:       cfg,
		accounts:  accounts,
		admins:    admins,
		transfers: transfers,
		audit:     audit,
		account:   account,
		transfer:  transfer,
		sessions:  sessions,
		guards:    guards,
		hub:       hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	userAuth := middleware.Auth(h.sessions)
	adminAuth := middleware.AdminAuth(h.sessions)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(userAuth).Post("/logout", h.Logout)
		r.With(userAuth).Get("/profile", h.Profile)
		r.With(userAuth).Post("/change-password", h.ChangePassword)
	})
	router.With(userAuth).Get("/account/balance", h.GetBalance)
	router.With(userAuth).Post("/account/deposit", h.Deposit)
	router.With(userAuth).Post("/account/withdraw", h.Withdraw)
	router.With(userAuth).Post("/transfers", h.Transfer)
	router.With(userAuth).Get("/transfers", h.ListTransfers)
	router.Get("/ws/balance", h.WSBalance)

	router.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.AdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(adminAuth)
			r.Post("/logout", h.AdminLogout)
			r.Post("/users", h.AdminCreateUser)
			r.Get("/users", h.AdminListUsers)
			r.Put("/users/{id}", h.AdminUpdateUser)
			r.Post("/users/{id}/disable", h.AdminDisableUser)
			r.Delete("/users/{id}", h.AdminDeleteUser)
			r.Post("/transfers/{id}/status", h.AdminCorrectTransfer)
			r.Get("/logs", h.AdminListLogs)
			r.Get("/logs/export", h.AdminExportLogs)
			r.Get("/transfers/total", h.AdminTransferTotal)
		})
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
