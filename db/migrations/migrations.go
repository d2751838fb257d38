// Package migrations embeds the goose SQL migrations so the binary can
// migrate a database without the source tree.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

const TableName = "schema_migrations"

//go:embed *.sql
var Migrations embed.FS

// NewProvider returns a goose provider versioned in TableName. A nil fsys
// uses the embedded migrations.
func NewProvider(dialect goose.Dialect, db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if fsys == nil {
		fsys = Migrations
	}
	store, err := database.NewStore(dialect, TableName)
	if err != nil {
		return nil, fmt.Errorf("migration store: %w", err)
	}
	provider, err := goose.NewProvider("", db, fsys,
		goose.WithStore(store),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return nil, fmt.Errorf("migration provider: %w", err)
	}
	return provider, nil
}
