package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/issuetracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const sqliteIssueColumns = `id, project, issue_title, issue_text, created_by, assigned_to, status_text, open, created_on, updated_on`

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single connection
	// serializes all DB access through Go's connection pool, preventing
	// "database is locked" errors from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sqliteColumn maps an issue field name to its column.
func sqliteColumn(name string) string {
	if name == models.FieldID {
		return "id"
	}
	return name
}

// sqliteValue converts a field value to its stored representation.
func sqliteValue(v any) any {
	switch v := v.(type) {
	case models.ID:
		return v.Hex()
	case bool:
		return boolToInt(v)
	case time.Time:
		return models.FormatTime(v)
	default:
		return v
	}
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertIssue(ctx context.Context, issue *models.Issue) error {
	prepareInsert(issue)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (`+sqliteIssueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID.Hex(), issue.Project, issue.Title, issue.Text, issue.CreatedBy,
		issue.AssignedTo, issue.StatusText, boolToInt(issue.Open),
		models.FormatTime(issue.CreatedOn), models.FormatTime(issue.UpdatedOn),
	)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindIssues(ctx context.Context, project string, filter IssueFilter) ([]*models.Issue, error) {
	if filter.Unsatisfiable {
		return []*models.Issue{}, nil
	}

	conditions := []string{"project = ?"}
	args := []any{project}
	for _, f := range filter.fields() {
		conditions = append(conditions, sqliteColumn(f.name)+" = ?")
		args = append(args, sqliteValue(f.value))
	}

	query := `SELECT ` + sqliteIssueColumns + ` FROM issues WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	issues := []*models.Issue{}
	for rows.Next() {
		issue, err := scanSQLiteIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, project string, id models.ID, patch IssuePatch) error {
	fields := patch.fields()
	if len(fields) == 0 {
		return fmt.Errorf("update issue: empty patch")
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+2)
	for _, f := range fields {
		setClauses = append(setClauses, sqliteColumn(f.name)+" = ?")
		args = append(args, sqliteValue(f.value))
	}
	args = append(args, id.Hex(), project)

	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET `+strings.Join(setClauses, ", ")+` WHERE id = ? AND project = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id.Hex())
	}
	return nil
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, project string, id models.ID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ? AND project = ?", id.Hex(), project)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id.Hex())
	}
	return nil
}

func scanSQLiteIssue(rows *sql.Rows) (*models.Issue, error) {
	issue := &models.Issue{}
	var id, createdOn, updatedOn string
	var open int

	if err := rows.Scan(&id, &issue.Project, &issue.Title, &issue.Text, &issue.CreatedBy,
		&issue.AssignedTo, &issue.StatusText, &open, &createdOn, &updatedOn); err != nil {
		return nil, fmt.Errorf("scan issue: %w", err)
	}

	var err error
	if issue.ID, err = models.ParseID(id); err != nil {
		return nil, fmt.Errorf("scan issue: %w", err)
	}
	if issue.CreatedOn, err = time.Parse(models.TimeLayout, createdOn); err != nil {
		return nil, fmt.Errorf("scan issue created_on: %w", err)
	}
	if issue.UpdatedOn, err = time.Parse(models.TimeLayout, updatedOn); err != nil {
		return nil, fmt.Errorf("scan issue updated_on: %w", err)
	}
	issue.CreatedOn = issue.CreatedOn.UTC()
	issue.UpdatedOn = issue.UpdatedOn.UTC()
	issue.Open = open != 0
	return issue, nil
}
