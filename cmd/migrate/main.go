package main

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"atmbank/internal/config"
	"atmbank/internal/db"

	"github.com/jmoiron/sqlx"
)

// Applies every pending .sql file from the configured migrations
// directory in lexical order. Files may carry a "-- +migrate Down"
// marker; everything after it is ignored here, only the up section
// runs.
func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	m := migrator{db: database, dir: cfg.MigrationsDir}
	applied, err := m.run()
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Printf("schema up to date, %d migration(s) applied from %s", applied, cfg.MigrationsDir)
}

type migrator struct {
	db  *sqlx.DB
	dir string
}

func (m migrator) run() (int, error) {
	if _, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		return 0, err
	}
	names, err := m.pending()
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if err := m.apply(name); err != nil {
			return i, err
		}
		log.Printf("applied %s", name)
	}
	return len(names), nil
}

// pending returns the migration filenames not yet recorded, sorted.
func (m migrator) pending() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(m.dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var done []string
	if err := m.db.Select(&done, `SELECT filename FROM schema_migrations`); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(done))
	for _, name := range done {
		seen[name] = true
	}

	var names []string
	for _, path := range paths {
		if name := filepath.Base(path); !seen[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m migrator) apply(name string) error {
	content, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return err
	}
	for _, stmt := range upStatements(string(content)) {
		if _, err := m.db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err = m.db.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, name)
	return err
}

// upStatements strips the down section and comment lines, then splits
// the remainder on statement-terminating semicolons.
func upStatements(content string) []string {
	up, _, _ := strings.Cut(content, "-- +migrate Down")

	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(up))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.Contains(line, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
