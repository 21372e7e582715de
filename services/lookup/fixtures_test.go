package lookup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"macfinder/pkg/db"
)

type inventoryRow struct {
	switchName string
	switchIP   string
	vendor     string
	mac        string
	port       string
	access     string
}

const insertRow = `INSERT INTO network_inventory
    (switch_name, switch_ip, vendor, mac_address, port_name, access, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, '2024-01-02 03:04:05', '2024-01-02 03:04:05')`

// seedInventory creates a migrated SQLite file holding rows and returns it opened read-only.
func seedInventory(t *testing.T, rows ...inventoryRow) *db.DB {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "network_inventory.db")

	writer, err := db.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, writer))
	for _, row := range rows {
		_, err := db.Exec(ctx, writer, insertRow, row.switchName, row.switchIP, row.vendor, row.mac, row.port, row.access)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return openReadOnly(t, path)
}

func openReadOnly(t *testing.T, path string) *db.DB {
	t.Helper()

	store, err := db.Open(context.Background(), path, db.ReadOnly())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T, store *db.DB, excluded []string) *Service {
	t.Helper()

	svc, err := NewService(store, Config{ExcludedPorts: excluded}, zerolog.Nop())
	require.NoError(t, err)
	return svc
}
