package collector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macfinder/pkg/db"
)

type storedRow struct {
	SwitchIP  string `db:"switch_ip"`
	Vendor    string `db:"vendor"`
	MAC       string `db:"mac_address"`
	Port      string `db:"port_name"`
	Access    string `db:"access"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func newTestStore(t *testing.T) (*Store, *db.DB) {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.Migrate(ctx, database))

	store, err := NewStore(database)
	require.NoError(t, err)
	return store, database
}

func loadRows(t *testing.T, database *db.DB) []storedRow {
	t.Helper()
	var rows []storedRow
	require.NoError(t, db.Select(context.Background(), database, &rows, `
SELECT switch_ip, vendor, mac_address, port_name, access, created_at, updated_at
FROM network_inventory ORDER BY mac_address, port_name`))
	return rows
}

func TestStoreUpsert(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()

	host := Host{Name: "core-sw1", IP: "10.0.0.1", Vendor: "Cisco"}
	first := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	n, err := store.Upsert(ctx, host, []Entry{
		{MAC: "AA:BB:CC:DD:EE:FF", Port: "Gi1/0/1", Access: "1"},
		{MAC: "00:11:22:33:44:55", Port: "Gi1/0/2", Access: "0"},
	}, first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	second := first.Add(time.Hour)
	host.IP = "10.0.0.10"
	n, err = store.Upsert(ctx, host, []Entry{
		{MAC: "AA:BB:CC:DD:EE:FF", Port: "Gi1/0/1", Access: "0"},
	}, second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows := loadRows(t, database)
	require.Len(t, rows, 2)

	assert.Equal(t, storedRow{
		SwitchIP: "10.0.0.1", Vendor: "Cisco", MAC: "00:11:22:33:44:55", Port: "Gi1/0/2", Access: "0",
		CreatedAt: "2024-01-02 03:04:05", UpdatedAt: "2024-01-02 03:04:05",
	}, rows[0])
	assert.Equal(t, storedRow{
		SwitchIP: "10.0.0.10", Vendor: "Cisco", MAC: "AA:BB:CC:DD:EE:FF", Port: "Gi1/0/1", Access: "0",
		CreatedAt: "2024-01-02 03:04:05", UpdatedAt: "2024-01-02 04:04:05",
	}, rows[1])
}

func TestStoreUpsertSameMACOnAnotherSwitch(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	entries := []Entry{{MAC: "AA:BB:CC:DD:EE:FF", Port: "Gi1/0/1", Access: "1"}}
	_, err := store.Upsert(ctx, Host{Name: "sw1", IP: "10.0.0.1", Vendor: "Cisco"}, entries, now)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, Host{Name: "sw2", IP: "10.0.0.2", Vendor: "Cisco"}, entries, now)
	require.NoError(t, err)

	assert.Len(t, loadRows(t, database), 2)
}

func TestStoreUpsertEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	n, err := store.Upsert(context.Background(), Host{Name: "sw1"}, nil, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewStoreRequiresDatabase(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}
