// Package sqlite provides a SQLite-backed journal store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/streamrelay/pkg/storage/sqldriver"
)

const memoryPath = ":memory:"

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver opens the database at dbPath, which may be ":memory:".
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Registered by github.com/mattn/go-sqlite3 as "sqlite3".
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	drv, err := sqldriver.New(ctx, db, dialect.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Driver: drv}, nil
}

// dsn enables foreign keys and WAL on every pooled connection. A ":memory:"
// path becomes a uniquely named shared-cache database so all connections of
// one driver see the same tables.
func dsn(dbPath string) string {
	params := "_fk=1&_journal_mode=WAL"

	if dbPath == memoryPath {
		return fmt.Sprintf("file:relay-%s?mode=memory&cache=shared&%s", uuid.NewString(), params)
	}

	if strings.Contains(dbPath, "?") {
		return dbPath + "&" + params
	}
	return dbPath + "?" + params
}
