package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"atmbank/internal/models"
)

func TestAuditStoreLogReturnsID(t *testing.T) {
	var insertedID string
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO audit_logs") {
				t.Fatalf("unexpected query: %s", query)
			}
			insertedID = args[0].(string)
			if args[1] != "acc-1" || args[2] != "deposit 5.00" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewAuditStore(stubDB{})
	logID, err := store.Log(context.Background(), execer, "acc-1", "deposit 5.00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logID == "" || logID != insertedID {
		t.Fatalf("expected returned id %q to match inserted id %q", logID, insertedID)
	}
}

func TestAuditStoreList(t *testing.T) {
	store := NewAuditStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY created_at DESC") {
				t.Fatalf("unexpected query: %s", query)
			}
			if strings.Contains(query, "WHERE subject_id") {
				t.Fatalf("unfiltered list must not constrain subject: %s", query)
			}
			if args[0] != 10 || args[1] != 5 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.AuditLogEntry) = []models.AuditLogEntry{{ID: "log-1"}}
			return nil
		},
	})
	entries, err := store.List(context.Background(), "", 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "log-1" {
		t.Fatalf("unexpected entries: %#v", entries)
	}
}

func TestAuditStoreListFiltersBySubject(t *testing.T) {
	store := NewAuditStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE subject_id = $1") {
				t.Fatalf("expected subject filter, got: %s", query)
			}
			if args[0] != "acc-1" || args[1] != 10 || args[2] != 0 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.AuditLogEntry) = []models.AuditLogEntry{{ID: "log-2", SubjectID: "acc-1"}}
			return nil
		},
	})
	entries, err := store.List(context.Background(), "acc-1", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].SubjectID != "acc-1" {
		t.Fatalf("unexpected entries: %#v", entries)
	}
}

func TestAuditStoreListRange(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	store := NewAuditStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "created_at >= $1 AND created_at < $2") {
				t.Fatalf("expected date bounds, got: %s", query)
			}
			if !strings.Contains(query, "ORDER BY created_at ASC") {
				t.Fatalf("export must be oldest first: %s", query)
			}
			if args[0] != from || args[1] != to {
				t.Fatalf("unexpected args: %#v", args)
			}
			return nil
		},
	})
	if _, err := store.ListRange(context.Background(), "", from, to); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuditStoreListRangeFiltersBySubject(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	store := NewAuditStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE subject_id = $1 AND created_at >= $2") {
				t.Fatalf("expected subject and date bounds, got: %s", query)
			}
			if args[0] != "acc-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return nil
		},
	})
	if _, err := store.ListRange(context.Background(), "acc-1", from, to); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
