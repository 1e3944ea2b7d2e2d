package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowgraph/ir"
	"github.com/flowforge/flowgraph/registry"
)

func newResolvedRegistry(t *testing.T, histories []ir.HistoryDescriptor) *registry.Registry {
	t.Helper()
	order := make([]string, len(histories))
	byID := make(map[string]ir.HistoryDescriptor, len(histories))
	for i, h := range histories {
		order[i] = h.ID
		byID[h.ID] = h
	}
	reg := registry.New(&ir.IR{Histories: byID, HistoryOrder: order})
	Register(reg)
	return reg
}

func TestRegisterMemoryFactoryProducesAWorkingStore(t *testing.T) {
	reg := newResolvedRegistry(t, []ir.HistoryDescriptor{{ID: "h1", Type: "memory"}})
	require.NoError(t, reg.Resolve())
	instance, ok := reg.History("h1")
	require.True(t, ok)
	_, ok = instance.(Store)
	require.True(t, ok)
}

func TestRegisterSQLiteFactoryRequiresPath(t *testing.T) {
	reg := newResolvedRegistry(t, []ir.HistoryDescriptor{{ID: "h1", Type: "sqlite"}})
	require.Error(t, reg.Resolve())
}

func TestRegisterSQLiteFactoryUsesConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	reg := newResolvedRegistry(t, []ir.HistoryDescriptor{
		{ID: "h1", Type: "sqlite", Config: map[string]interface{}{"path": path}},
	})
	require.NoError(t, reg.Resolve())
	instance, ok := reg.History("h1")
	require.True(t, ok)
	_, ok = instance.(*SQLiteStore)
	require.True(t, ok)
}

func TestRegisterMySQLFactoryRequiresDSN(t *testing.T) {
	reg := newResolvedRegistry(t, []ir.HistoryDescriptor{{ID: "h1", Type: "mysql"}})
	require.Error(t, reg.Resolve())
}

func TestRegisterPgxFactoryRequiresDSN(t *testing.T) {
	reg := newResolvedRegistry(t, []ir.HistoryDescriptor{{ID: "h1", Type: "pgx"}})
	require.Error(t, reg.Resolve())
}
