// Package sqldriver implements storage.Driver over database/sql. Queries are
// built with ent's dialect-aware SQL builder so one implementation serves
// both SQLite and PostgreSQL.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/storage"
)

const table = "journal_entries"

var columns = []string{
	"id",
	"recorded_at",
	"type",
	"message",
	"route",
	"request_id",
	"streaming",
	"status",
	"frames",
	"bytes",
	"duration_ms",
}

var (
	entriesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 64},
		{Name: "recorded_at", Type: field.TypeInt64},
		{Name: "type", Type: field.TypeString, Size: 16},
		{Name: "message", Type: field.TypeString, Size: 2147483647},
		{Name: "route", Type: field.TypeString},
		{Name: "request_id", Type: field.TypeString},
		{Name: "streaming", Type: field.TypeBool},
		{Name: "status", Type: field.TypeInt},
		{Name: "frames", Type: field.TypeInt64},
		{Name: "bytes", Type: field.TypeInt64},
		{Name: "duration_ms", Type: field.TypeInt64},
	}

	entriesTable = &schema.Table{
		Name:       table,
		Columns:    entriesColumns,
		PrimaryKey: []*schema.Column{entriesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "journalentry_recorded_at", Columns: []*schema.Column{entriesColumns[1]}},
		},
	}
)

// Driver stores journal entries in a SQL table.
type Driver struct {
	DB      *sql.DB
	dialect string
}

// New wraps db and creates the journal table if needed. dialect is one of
// ent's dialect names (dialect.SQLite, dialect.Postgres).
func New(ctx context.Context, db *sql.DB, dialect string) (*Driver, error) {
	d := &Driver{DB: db, dialect: dialect}
	if err := d.migrate(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(entsql.OpenDB(d.dialect, d.DB))
	if err != nil {
		return fmt.Errorf("preparing %s migration: %w", table, err)
	}

	if err := m.Create(ctx, entriesTable); err != nil {
		return fmt.Errorf("creating %s table: %w", table, err)
	}

	return nil
}

func (d *Driver) Put(ctx context.Context, entry *journal.Entry) error {
	if entry == nil {
		return storage.ErrNilEntry
	}

	query, args := entsql.Dialect(d.dialect).
		Insert(table).
		Columns(columns...).
		Values(
			entry.ID,
			entry.Timestamp.UnixNano(),
			string(entry.Type),
			entry.Message,
			entry.Route,
			entry.RequestID,
			entry.Streaming,
			entry.Status,
			entry.Frames,
			entry.Bytes,
			entry.DurationMs,
		).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()

	if _, err := d.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting journal entry %s: %w", entry.ID, err)
	}

	return nil
}

func (d *Driver) Get(ctx context.Context, id string) (*journal.Entry, error) {
	query, args := d.selector().Where(entsql.EQ("id", id)).Query()

	entries, err := d.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}

	return entries[0], nil
}

func (d *Driver) List(ctx context.Context, limit int) ([]*journal.Entry, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	query, args := d.selector().
		OrderExpr(entsql.Expr("recorded_at DESC, id DESC")).
		Limit(limit).
		Query()

	return d.query(ctx, query, args)
}

func (d *Driver) Close() error {
	return d.DB.Close()
}

func (d *Driver) selector() *entsql.Selector {
	return entsql.Dialect(d.dialect).Select(columns...).From(entsql.Table(table))
}

func (d *Driver) query(ctx context.Context, query string, args []any) ([]*journal.Entry, error) {
	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		var (
			e          journal.Entry
			recordedAt int64
			entryType  string
		)

		if err := rows.Scan(
			&e.ID,
			&recordedAt,
			&entryType,
			&e.Message,
			&e.Route,
			&e.RequestID,
			&e.Streaming,
			&e.Status,
			&e.Frames,
			&e.Bytes,
			&e.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		e.Timestamp = time.Unix(0, recordedAt).UTC()
		e.Type = journal.Type(entryType)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading journal entries: %w", err)
	}

	return entries, nil
}
