package controller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quells/managedmodel/internal/command"
	"github.com/quells/managedmodel/internal/infrastructure/database"
	"github.com/quells/managedmodel/internal/model"
	"github.com/quells/managedmodel/internal/value"
)

// Executor is the database surface the controller needs.
// *database.DB satisfies it.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (database.Result, error)
	Query(ctx context.Context, query string, args ...any) ([]value.Row, error)
	SchemaVersion(ctx context.Context) (int, error)
	IncrementSchemaVersion(ctx context.Context) (int, error)
}

// Publisher receives change events after successful mutations.
type Publisher interface {
	PublishChange(ctx context.Context, ev model.ChangeEvent) error
}

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher adds a change event publisher. Publishers are called in the
// order they were added.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) {
		c.publishers = append(c.publishers, p)
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithClock overrides the time source used for change events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller maps entities onto the database.
//
// All public methods are thread-safe; statement ordering is provided by the
// Executor.
type Controller struct {
	db         Executor
	publishers []Publisher
	logger     Logger
	now        func() time.Time

	mu       sync.RWMutex
	registry map[string]func() model.Entity // factory by table name
}

// New creates a Controller backed by db.
func New(db Executor, opts ...Option) *Controller {
	c := &Controller{
		db:       db,
		logger:   noopLogger{},
		now:      time.Now,
		registry: make(map[string]func() model.Entity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Insert stores e as a new row and returns the row's rowid.
func (c *Controller) Insert(ctx context.Context, e model.Entity) (int64, error) {
	if err := model.BeforeInsert(e); err != nil {
		return 0, err
	}
	d, err := describe(e)
	if err != nil {
		return 0, err
	}

	st, err := command.Insert(d.Table, d.Fields, d.Values)
	if err != nil {
		return 0, fmt.Errorf("building insert for %s: %w", d.Table, err)
	}
	res, err := c.db.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", d.Table, err)
	}

	c.publish(ctx, d, model.ActionInsert)
	return res.LastInsertID, nil
}

// Update writes every managed field of e to the rows whose whereField
// equals the given value.
func (c *Controller) Update(ctx context.Context, e model.Entity, whereField string, equals any) error {
	if err := model.BeforeUpdate(e); err != nil {
		return err
	}
	d, err := describe(e)
	if err != nil {
		return err
	}
	if _, ok := d.Lookup(whereField); !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, d.Table, whereField)
	}

	st, err := command.Update(d.Table, d.Fields, d.Values, whereField, equals)
	if err != nil {
		return fmt.Errorf("building update for %s: %w", d.Table, err)
	}
	if _, err := c.db.Exec(ctx, st.SQL, st.Args...); err != nil {
		return fmt.Errorf("updating %s: %w", d.Table, err)
	}

	c.publish(ctx, d, model.ActionUpdate)
	return nil
}

// Remove deletes the row matching e's primary key.
func (c *Controller) Remove(ctx context.Context, e model.Entity) error {
	if err := model.BeforeDelete(e); err != nil {
		return err
	}
	d, err := describe(e)
	if err != nil {
		return err
	}

	st, err := command.Delete(d.Table, d.PrimaryKey(), d.PrimaryKeyValue())
	if err != nil {
		return fmt.Errorf("building delete for %s: %w", d.Table, err)
	}
	if st.Empty() {
		return fmt.Errorf("%w: %s", ErrNoPrimaryKey, d.Table)
	}
	if _, err := c.db.Exec(ctx, st.SQL, st.Args...); err != nil {
		return fmt.Errorf("removing from %s: %w", d.Table, err)
	}

	c.publish(ctx, d, model.ActionRemove)
	return nil
}

// FirstInstanceOf loads into e the first row whose whereField equals the
// given value and reports whether one was found. With an empty whereField
// the first row of the table is loaded.
func (c *Controller) FirstInstanceOf(ctx context.Context, e model.Entity, whereField string, equals any) (bool, error) {
	d, err := describe(e)
	if err != nil {
		return false, err
	}

	var st command.Statement
	if whereField == "" {
		st, err = command.SelectAll(d.Table)
	} else {
		if _, ok := d.Lookup(whereField); !ok {
			return false, fmt.Errorf("%w: %s.%s", ErrUnknownField, d.Table, whereField)
		}
		st, err = command.Select(d.Table, whereField, equals)
	}
	if err != nil {
		return false, fmt.Errorf("building select for %s: %w", d.Table, err)
	}

	rows, err := c.db.Query(ctx, st.SQL+" LIMIT 1", st.Args...)
	if err != nil {
		return false, fmt.Errorf("selecting from %s: %w", d.Table, err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	if err := model.Load(e, rows[0]); err != nil {
		return false, err
	}
	return true, nil
}

// AllInstancesOf returns every row of the table newFn's entities map to,
// each loaded into a fresh entity from newFn.
func (c *Controller) AllInstancesOf(ctx context.Context, newFn func() model.Entity) ([]model.Entity, error) {
	d, err := describe(newFn())
	if err != nil {
		return nil, err
	}
	st, err := command.SelectAll(d.Table)
	if err != nil {
		return nil, fmt.Errorf("building select for %s: %w", d.Table, err)
	}

	rows, err := c.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", d.Table, err)
	}

	out := make([]model.Entity, 0, len(rows))
	for _, row := range rows {
		e := newFn()
		if err := model.Load(e, row); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// CountInstancesOf returns the number of rows in e's table.
func (c *Controller) CountInstancesOf(ctx context.Context, e model.Entity) (int, error) {
	d, err := describe(e)
	if err != nil {
		return 0, err
	}
	return c.count(ctx, d.Table)
}

// CreateTable creates e's table if it does not exist.
func (c *Controller) CreateTable(ctx context.Context, e model.Entity) error {
	return CreateTable(ctx, c.db, e)
}

// CreateIndex creates an index on one of e's managed fields.
func (c *Controller) CreateIndex(ctx context.Context, e model.Entity, field string, unique bool) error {
	return CreateIndex(ctx, c.db, e, field, unique)
}

// SchemaVersion returns the stored schema version.
func (c *Controller) SchemaVersion(ctx context.Context) (int, error) {
	return c.db.SchemaVersion(ctx)
}

// IncrementSchemaVersion raises the schema version by one.
func (c *Controller) IncrementSchemaVersion(ctx context.Context) (int, error) {
	return c.db.IncrementSchemaVersion(ctx)
}

// Register records an entity type so it can be addressed by table name.
func (c *Controller) Register(newFn func() model.Entity) error {
	d, err := describe(newFn())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry[d.Table] = newFn
	return nil
}

// Tables returns the registered table names in sorted order.
func (c *Controller) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tables := make([]string, 0, len(c.registry))
	for table := range c.registry {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

// Fields returns the managed fields of a registered table.
func (c *Controller) Fields(table string) ([]model.FieldDescriptor, error) {
	newFn, err := c.lookup(table)
	if err != nil {
		return nil, err
	}
	d, err := describe(newFn())
	if err != nil {
		return nil, err
	}
	return d.Fields, nil
}

// CountTable returns the row count of a registered table.
func (c *Controller) CountTable(ctx context.Context, table string) (int, error) {
	if _, err := c.lookup(table); err != nil {
		return 0, err
	}
	return c.count(ctx, table)
}

// RowsOf returns the raw rows of a registered table. With a non-empty
// whereField only rows whose field equals the given value are returned.
func (c *Controller) RowsOf(ctx context.Context, table, whereField string, equals any) ([]value.Row, error) {
	newFn, err := c.lookup(table)
	if err != nil {
		return nil, err
	}

	var st command.Statement
	if whereField == "" {
		st, err = command.SelectAll(table)
	} else {
		d, derr := describe(newFn())
		if derr != nil {
			return nil, derr
		}
		if _, ok := d.Lookup(whereField); !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, table, whereField)
		}
		st, err = command.Select(table, whereField, equals)
	}
	if err != nil {
		return nil, fmt.Errorf("building select for %s: %w", table, err)
	}

	rows, err := c.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", table, err)
	}
	return rows, nil
}

func (c *Controller) lookup(table string) (func() model.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	newFn, ok := c.registry[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, table)
	}
	return newFn, nil
}

func (c *Controller) count(ctx context.Context, table string) (int, error) {
	st, err := command.Count(table)
	if err != nil {
		return 0, fmt.Errorf("building count for %s: %w", table, err)
	}
	rows, err := c.db.Query(ctx, st.SQL)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(rows[0].Value("count").Int()), nil
}

// publish sends a change event to every publisher. Publish failures are
// logged; the mutation has already been committed.
func (c *Controller) publish(ctx context.Context, d model.Description, action model.Action) {
	ev := model.ChangeEvent{
		Table:  d.Table,
		Action: action,
		Key:    d.PrimaryKeyValue(),
		At:     c.now(),
	}
	c.logger.Debug("entity changed", "table", ev.Table, "action", ev.Action, "key", ev.Key)

	for _, p := range c.publishers {
		if err := p.PublishChange(ctx, ev); err != nil {
			c.logger.Warn("publishing change failed", "table", ev.Table, "action", ev.Action, "error", err)
		}
	}
}

// describe reflects e and rejects entities without a primary key.
func describe(e model.Entity) (model.Description, error) {
	d, err := model.Describe(e)
	if err != nil {
		return model.Description{}, err
	}
	if d.PrimaryKey() == "" {
		return model.Description{}, fmt.Errorf("%w: %s", ErrNoPrimaryKey, d.Table)
	}
	return d, nil
}
