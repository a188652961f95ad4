package store

import (
	"context"
	"time"

	"atmbank/internal/models"

	"github.com/google/uuid"
)

type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log appends an audit entry and returns its id so callers can
// back-reference it. Entries are never updated or deleted.
func (s *AuditStore) Log(ctx context.Context, tx Execer, subjectID, operation string) (string, error) {
	logID := uuid.NewString()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, subject_id, operation)
		VALUES ($1, $2, $3)
	`, logID, subjectID, operation)
	if err != nil {
		return "", err
	}
	return logID, nil
}

// List pages the newest entries first. An empty subjectID lists every
// subject.
func (s *AuditStore) List(ctx context.Context, subjectID string, limit, offset int) ([]models.AuditLogEntry, error) {
	var rows []models.AuditLogEntry
	var err error
	if subjectID == "" {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT id, subject_id, operation, created_at
			FROM audit_logs
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT id, subject_id, operation, created_at
			FROM audit_logs
			WHERE subject_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, subjectID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRange returns every entry in [from, to) oldest first, optionally
// narrowed to one subject. Used by the export path, so it is unpaged.
func (s *AuditStore) ListRange(ctx context.Context, subjectID string, from, to time.Time) ([]models.AuditLogEntry, error) {
	var rows []models.AuditLogEntry
	var err error
	if subjectID == "" {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT id, subject_id, operation, created_at
			FROM audit_logs
			WHERE created_at >= $1 AND created_at < $2
			ORDER BY created_at ASC
		`, from, to)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT id, subject_id, operation, created_at
			FROM audit_logs
			WHERE subject_id = $1 AND created_at >= $2 AND created_at < $3
			ORDER BY created_at ASC
		`, subjectID, from, to)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}
