package store

import (
	"context"
	"database/sql"
	"errors"

	"atmbank/internal/models"
)

type TransferStore struct {
	db DB
}

func NewTransferStore(db DB) *TransferStore {
	return &TransferStore{db: db}
}

func (s *TransferStore) Create(ctx context.Context, tx Execer, record models.TransferRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transfer_records
			(id, from_account_id, to_account_id, amount, remark, status, permissions_snapshot, audit_log_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ID, record.FromAccountID, record.ToAccountID, record.Amount,
		record.Remark, record.Status, record.PermissionsSnapshot, record.AuditLogID)
	return err
}

func (s *TransferStore) GetByID(ctx context.Context, recordID string) (models.TransferRecord, error) {
	var row models.TransferRecord
	err := s.db.GetContext(ctx, &row, `
		SELECT id, from_account_id, to_account_id, amount, remark, status,
		       permissions_snapshot, audit_log_id, created_at
		FROM transfer_records
		WHERE id = $1
	`, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TransferRecord{}, ErrNotFound
	}
	if err != nil {
		return models.TransferRecord{}, err
	}
	return row, nil
}

func (s *TransferStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.TransferRecord, error) {
	var rows []models.TransferRecord
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, from_account_id, to_account_id, amount, remark, status,
		       permissions_snapshot, audit_log_id, created_at
		FROM transfer_records
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CorrectStatus is the single sanctioned mutation of a transfer record:
// an explicit status correction by an operator.
func (s *TransferStore) CorrectStatus(ctx context.Context, tx Execer, recordID, status string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE transfer_records
		SET status = $1
		WHERE id = $2
	`, status, recordID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TotalAmount sums the amount of all successful transfers, in minor
// units.
func (s *TransferStore) TotalAmount(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transfer_records
		WHERE status = 'SUCCESS'
	`)
	return total, err
}
