// Package audit records entity change events in the change_log table and
// answers queries over that history.
//
// Repository implements controller.Publisher, so every successful insert,
// update and remove issued through a controller configured with it leaves
// one entry behind.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quells/managedmodel/internal/infrastructure/database"
	"github.com/quells/managedmodel/internal/model"
	"github.com/quells/managedmodel/internal/value"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed width so created_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Entry is one recorded change.
type Entry struct {
	ID        string       `json:"id"`
	Table     string       `json:"table"`
	Action    model.Action `json:"action"`
	Key       string       `json:"key,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	Table  string       // optional
	Action model.Action // optional
	Key    string       // optional
	Limit  int          // default 50, max 200
	Offset int
}

// ListResult contains a page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Executor is the subset of *database.DB the repository needs.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (database.Result, error)
	Query(ctx context.Context, query string, args ...any) ([]value.Row, error)
}

// Repository stores change entries through the database executor.
type Repository struct {
	db Executor
}

// NewRepository creates a change log repository. The change_log table is
// created by the embedded migrations.
func NewRepository(db Executor) *Repository {
	return &Repository{db: db}
}

// PublishChange records ev.
func (r *Repository) PublishChange(ctx context.Context, ev model.ChangeEvent) error {
	e := &Entry{
		Table:     ev.Table,
		Action:    ev.Action,
		CreatedAt: ev.At,
	}
	if ev.Key != nil {
		e.Key = fmt.Sprint(ev.Key)
	}
	return r.Create(ctx, e)
}

// Create inserts an entry. The ID and CreatedAt are generated if empty.
func (r *Repository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "chg-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO change_log (id, entity_table, action, entity_key, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Table, string(e.Action), nullableString(e.Key),
		e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting change log entry: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *Repository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Table != "" {
		conditions = append(conditions, "entity_table = ?")
		args = append(args, filter.Table)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Key != "" {
		conditions = append(conditions, "entity_key = ?")
		args = append(args, filter.Key)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) AS total FROM change_log " + where //nolint:gosec // WHERE built from parameterised conditions
	rows, err := r.db.Query(ctx, countQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("counting change log: %w", err)
	}
	total := 0
	if len(rows) > 0 {
		total = int(rows[0].Value("total").Int())
	}

	query := "SELECT id, entity_table, action, entity_key, created_at FROM change_log " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err = r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying change log: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e := Entry{
			ID:     row.Value("id").String(),
			Table:  row.Value("entity_table").String(),
			Action: model.Action(row.Value("action").String()),
		}
		if k := row.Value("entity_key"); !k.IsNull() {
			e.Key = k.String()
		}
		createdAt := row.Value("created_at").String()
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing change log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
