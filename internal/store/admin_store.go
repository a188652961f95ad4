package store

import (
	"context"
	"database/sql"
	"errors"

	"atmbank/internal/models"
)

type AdminStore struct {
	db DB
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

func (s *AdminStore) Create(ctx context.Context, tx Execer, admin models.Admin) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admins (id, username, password_hash)
		VALUES ($1, $2, $3)
	`, admin.ID, admin.Username, admin.PasswordHash)
	return err
}

func (s *AdminStore) GetByUsername(ctx context.Context, username string) (models.Admin, error) {
	var row models.Admin
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, password_hash, created_at
		FROM admins
		WHERE username = $1
	`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Admin{}, ErrNotFound
	}
	if err != nil {
		return models.Admin{}, err
	}
	return row, nil
}

func (s *AdminStore) GetByID(ctx context.Context, adminID string) (models.Admin, error) {
	var row models.Admin
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, password_hash, created_at
		FROM admins
		WHERE id = $1
	`, adminID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Admin{}, ErrNotFound
	}
	if err != nil {
		return models.Admin{}, err
	}
	return row, nil
}

func (s *AdminStore) HasAny(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM admins)
	`)
	return exists, err
}
