package store

import (
	"context"
	"database/sql"
	"errors"

	"atmbank/internal/models"
)

var ErrNotFound = errors.New("not found")

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, username, password_hash, enabled, balance, permissions)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, account.ID, account.Username, account.PasswordHash, account.Enabled, account.Balance, account.Permissions)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, password_hash, enabled, balance, permissions, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByUsername(ctx context.Context, username string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, password_hash, enabled, balance, permissions, created_at
		FROM accounts
		WHERE username = $1
	`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

// GetForUpdate takes a row-level exclusive lock on the account for the
// duration of the surrounding transaction.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, username, password_hash, enabled, balance, permissions, created_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}

// AdjustBalance applies a delta in SQL so concurrent adjustments
// commute regardless of commit order.
func (s *AccountStore) AdjustBalance(ctx context.Context, tx Execer, accountID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`, delta, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AccountStore) UpdatePassword(ctx context.Context, tx Execer, accountID, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`, passwordHash, accountID)
	return err
}

func (s *AccountStore) SetEnabled(ctx context.Context, tx Execer, accountID string, enabled bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET enabled = $1, updated_at = NOW()
		WHERE id = $2
	`, enabled, accountID)
	return err
}

func (s *AccountStore) SetPermissions(ctx context.Context, tx Execer, accountID string, permissions models.PermissionMask) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET permissions = $1, updated_at = NOW()
		WHERE id = $2
	`, permissions, accountID)
	return err
}

func (s *AccountStore) Delete(ctx context.Context, tx Execer, accountID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM accounts
		WHERE id = $1
	`, accountID)
	return err
}

func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, username, password_hash, enabled, balance, permissions, created_at
		FROM accounts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
