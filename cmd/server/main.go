package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atmbank/internal/auth"
	"atmbank/internal/balance"
	"atmbank/internal/config"
	"atmbank/internal/db"
	"atmbank/internal/handlers"
	"atmbank/internal/models"
	"atmbank/internal/services"
	"atmbank/internal/session"
	"atmbank/internal/store"
	"atmbank/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	accounts := store.NewAccountStore(database)
	admins := store.NewAdminStore(database)
	transfers := store.NewTransferStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)

	if err := bootstrapAdmin(cfg, admins, txRunner); err != nil {
		log.Fatalf("failed to bootstrap admin: %v", err)
	}

	guards := balance.NewTable()
	sessions := session.NewStore(cfg.TokenTTL, cfg.MaxDevicesPerUser)
	hub := websocket.NewHub()

	accountService := services.NewAccountService(txRunner, accounts, audit, guards, hub, cfg.BalanceReadTimeout)
	transferService := services.NewTransferService(txRunner, accounts, transfers, audit, guards, hub)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.SessionSweepEvery)

	handler := handlers.New(txRunner, cfg, accounts, admins, transfers, audit, accountService, transferService, sessions, guards, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("atmbank API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// bootstrapAdmin seeds the configured admin account on first start so
// the admin API is reachable before any operator exists.
func bootstrapAdmin(cfg config.Config, admins *store.AdminStore, txRunner db.TxRunner) error {
	ctx := context.Background()
	hasAny, err := admins.HasAny(ctx)
	if err != nil {
		return err
	}
	if hasAny {
		return nil
	}
	passwordHash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	return txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return admins.Create(ctx, tx, models.Admin{
			ID:           uuid.NewString(),
			Username:     cfg.AdminUsername,
			PasswordHash: passwordHash,
		})
	})
}
