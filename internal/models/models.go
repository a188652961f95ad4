package models

import "time"

// PermissionMask encodes the independent account capabilities as a
// 4-bit mask.
type PermissionMask int

const (
	PermDeposit     PermissionMask = 1 << iota // 1
	PermWithdraw                               // 2
	PermTransferOut                            // 4
	PermTransferIn                             // 8

	PermAll = PermDeposit | PermWithdraw | PermTransferOut | PermTransferIn
)

func (m PermissionMask) CanDeposit() bool     { return m&PermDeposit != 0 }
func (m PermissionMask) CanWithdraw() bool    { return m&PermWithdraw != 0 }
func (m PermissionMask) CanTransferOut() bool { return m&PermTransferOut != 0 }
func (m PermissionMask) CanTransferIn() bool  { return m&PermTransferIn != 0 }

type Account struct {
	ID           string         `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Enabled      bool           `db:"enabled" json:"enabled"`
	Balance      int64          `db:"balance" json:"balance"`
	Permissions  PermissionMask `db:"permissions" json:"permissions"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

type Admin struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	TransferStatusSuccess = "SUCCESS"
	TransferStatusFailed  = "FAILED"
)

// TransferRecord is written exactly once per transfer attempt that
// reaches the commit step and is never mutated afterwards.
type TransferRecord struct {
	ID                  string         `db:"id" json:"id"`
	FromAccountID       string         `db:"from_account_id" json:"from_account_id"`
	ToAccountID         string         `db:"to_account_id" json:"to_account_id"`
	Amount              int64          `db:"amount" json:"amount"`
	Remark              string         `db:"remark" json:"remark"`
	Status              string         `db:"status" json:"status"`
	PermissionsSnapshot PermissionMask `db:"permissions_snapshot" json:"permissions_snapshot"`
	AuditLogID          string         `db:"audit_log_id" json:"audit_log_id"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
}

// AuditLogEntry is append-only.
type AuditLogEntry struct {
	ID        string    `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Operation string    `db:"operation" json:"operation"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
