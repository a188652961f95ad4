package handlers

import (
	"context"
	"time"

	"atmbank/internal/models"
	"atmbank/internal/services"
	"atmbank/internal/session"
	"atmbank/internal/store"
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByUsername(ctx context.Context, username string) (models.Account, error)
	UpdatePassword(ctx context.Context, tx store.Execer, accountID, passwordHash string) error
	SetEnabled(ctx context.Context, tx store.Execer, accountID string, enabled bool) error
	SetPermissions(ctx context.Context, tx store.Execer, accountID string, permissions models.PermissionMask) error
	Delete(ctx context.Context, tx store.Execer, accountID string) error
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
}

type AdminStore interface {
	Create(ctx context.Context, tx store.Execer, admin models.Admin) error
	GetByUsername(ctx context.Context, username string) (models.Admin, error)
	GetByID(ctx context.Context, adminID string) (models.Admin, error)
	HasAny(ctx context.Context) (bool, error)
}

type TransferStore interface {
	GetByID(ctx context.Context, recordID string) (models.TransferRecord, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.TransferRecord, error)
	CorrectStatus(ctx context.Context, tx store.Execer, recordID, status string) error
	TotalAmount(ctx context.Context) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, subjectID, operation string) (string, error)
	List(ctx context.Context, subjectID string, limit, offset int) ([]models.AuditLogEntry, error)
	ListRange(ctx context.Context, subjectID string, from, to time.Time) ([]models.AuditLogEntry, error)
}

type AccountService interface {
	Balance(ctx context.Context, accountID string) (int64, error)
	Deposit(ctx context.Context, accountID string, amountMinor int64) (int64, error)
	Withdraw(ctx context.Context, accountID string, amountMinor int64) (int64, error)
}

type TransferService interface {
	Transfer(ctx context.Context, req services.TransferRequest) (models.TransferRecord, error)
}

type Sessions interface {
	Issue(subjectID string, kind session.Kind, deviceInfo string) string
	Validate(token string, kind session.Kind) (string, bool)
	Remove(token string)
	RemoveAllForSubject(subjectID string, kind session.Kind) int
}
