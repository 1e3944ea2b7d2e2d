package history

import (
	"context"
	"fmt"

	"github.com/flowforge/flowgraph/ir"
	"github.com/flowforge/flowgraph/registry"
)

// Register binds the memory/sqlite/mysql/pgx history factories into reg.
// Config keys: sqlite reads "path", mysql and pgx read "dsn".
func Register(reg *registry.Registry) {
	reg.RegisterHistoryFactory("memory", func(_ ir.HistoryDescriptor) (interface{}, error) {
		return NewMemStore(), nil
	})

	reg.RegisterHistoryFactory("sqlite", func(desc ir.HistoryDescriptor) (interface{}, error) {
		path, _ := desc.Config["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("history: sqlite requires a \"path\" config")
		}
		return NewSQLiteStore(path)
	})

	reg.RegisterHistoryFactory("mysql", func(desc ir.HistoryDescriptor) (interface{}, error) {
		dsn, _ := desc.Config["dsn"].(string)
		if dsn == "" {
			return nil, fmt.Errorf("history: mysql requires a \"dsn\" config")
		}
		return NewMySQLStore(dsn)
	})

	reg.RegisterHistoryFactory("pgx", func(desc ir.HistoryDescriptor) (interface{}, error) {
		dsn, _ := desc.Config["dsn"].(string)
		if dsn == "" {
			return nil, fmt.Errorf("history: pgx requires a \"dsn\" config")
		}
		return NewPgxStore(context.Background(), dsn)
	})
}
