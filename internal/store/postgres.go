package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joescharf/issuetracker/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS issues (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	project TEXT NOT NULL,
	issue_title TEXT NOT NULL,
	issue_text TEXT NOT NULL,
	created_by TEXT NOT NULL,
	assigned_to TEXT NOT NULL DEFAULT '',
	status_text TEXT NOT NULL DEFAULT '',
	"open" BOOLEAN NOT NULL DEFAULT TRUE,
	created_on TIMESTAMPTZ NOT NULL,
	updated_on TIMESTAMPTZ NOT NULL
)`

const postgresProjectIndex = `CREATE INDEX IF NOT EXISTS idx_issues_project ON issues(project)`

const postgresIssueColumns = `id, project, issue_title, issue_text, created_by, assigned_to, status_text, "open", created_on, updated_on`

// PostgresStore implements Store on PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// postgresColumn maps an issue field name to its quoted column.
func postgresColumn(name string) string {
	if name == models.FieldID {
		return `"id"`
	}
	return `"` + name + `"`
}

func postgresValue(v any) any {
	if id, ok := v.(models.ID); ok {
		return id.Hex()
	}
	return v
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create issues table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, postgresProjectIndex); err != nil {
		return fmt.Errorf("create project index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertIssue(ctx context.Context, issue *models.Issue) error {
	prepareInsert(issue)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO issues (`+postgresIssueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		issue.ID.Hex(), issue.Project, issue.Title, issue.Text, issue.CreatedBy,
		issue.AssignedTo, issue.StatusText, issue.Open, issue.CreatedOn, issue.UpdatedOn,
	)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindIssues(ctx context.Context, project string, filter IssueFilter) ([]*models.Issue, error) {
	if filter.Unsatisfiable {
		return []*models.Issue{}, nil
	}

	conditions := []string{"project = $1"}
	args := []any{project}
	for _, f := range filter.fields() {
		args = append(args, postgresValue(f.value))
		conditions = append(conditions, fmt.Sprintf("%s = $%d", postgresColumn(f.name), len(args)))
	}

	query := `SELECT ` + postgresIssueColumns + ` FROM issues WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer rows.Close()

	issues := []*models.Issue{}
	for rows.Next() {
		issue, err := scanPostgresIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *PostgresStore) UpdateIssue(ctx context.Context, project string, id models.ID, patch IssuePatch) error {
	fields := patch.fields()
	if len(fields) == 0 {
		return fmt.Errorf("update issue: empty patch")
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+2)
	for _, f := range fields {
		args = append(args, postgresValue(f.value))
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", postgresColumn(f.name), len(args)))
	}
	args = append(args, id.Hex(), project)

	query := fmt.Sprintf(`UPDATE issues SET %s WHERE id = $%d AND project = $%d`,
		strings.Join(setClauses, ", "), len(args)-1, len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id.Hex())
	}
	return nil
}

func (s *PostgresStore) DeleteIssue(ctx context.Context, project string, id models.ID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM issues WHERE id = $1 AND project = $2`, id.Hex(), project)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id.Hex())
	}
	return nil
}

func scanPostgresIssue(rows pgx.Rows) (*models.Issue, error) {
	issue := &models.Issue{}
	var id string
	if err := rows.Scan(&id, &issue.Project, &issue.Title, &issue.Text, &issue.CreatedBy,
		&issue.AssignedTo, &issue.StatusText, &issue.Open, &issue.CreatedOn, &issue.UpdatedOn); err != nil {
		return nil, fmt.Errorf("scan issue: %w", err)
	}
	parsed, err := models.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("scan issue: %w", err)
	}
	issue.ID = parsed
	issue.CreatedOn = models.Timestamp(issue.CreatedOn)
	issue.UpdatedOn = models.Timestamp(issue.UpdatedOn)
	return issue, nil
}
