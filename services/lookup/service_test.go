package lookup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macfinder/pkg/db"
)

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(nil, Config{}, zerolog.Nop())
	require.Error(t, err)
}

func TestSearchFindsRecord(t *testing.T) {
	store := seedInventory(t,
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "AA:BB:CC:DD:EE:FF", "Gi1/0/1", "1"},
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "11:22:33:44:55:66", "Gi1/0/2", "1"},
	)
	svc := newTestService(t, store, nil)

	for _, input := range []string{"aabbccddeeff", "aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF", "aabb.ccdd.eeff", "  aabbccddeeff  "} {
		t.Run(input, func(t *testing.T) {
			records, err := svc.Search(context.Background(), input)
			require.NoError(t, err)
			require.Len(t, records, 1)

			got := records[0]
			assert.Equal(t, "core-sw1", got.SwitchName)
			assert.Equal(t, "10.0.0.1", got.SwitchIP)
			assert.Equal(t, "Cisco", got.Vendor)
			assert.Equal(t, "AA:BB:CC:DD:EE:FF", got.MACAddress)
			assert.Equal(t, "Gi1/0/1", got.PortName)
			assert.Equal(t, "1", got.Access)
			assert.Equal(t, "Access Port", got.AccessVal)
			assert.Equal(t, "2024-01-02 03:04:05", got.CreatedAt)
			assert.Equal(t, "2024-01-02 03:04:05", got.UpdatedAt)
		})
	}
}

func TestSearchLabelsTrunkPorts(t *testing.T) {
	store := seedInventory(t,
		inventoryRow{"edge-sw2", "10.0.0.2", "ProCurve", "AA:BB:CC:DD:EE:FF", "A1", "0"},
	)
	svc := newTestService(t, store, nil)

	records, err := svc.Search(context.Background(), "aabbccddeeff")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Trunk port", records[0].AccessVal)
}

func TestSearchExcludesAggregatePorts(t *testing.T) {
	store := seedInventory(t,
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "AA:BB:CC:DD:EE:FF", "Port-Channel1", "0"},
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "AA:BB:CC:DD:EE:FF", "Po2", "0"},
		inventoryRow{"aruba-sw", "10.0.0.3", "Aruba", "AA:BB:CC:DD:EE:FF", "lag 3", "0"},
		inventoryRow{"aruba-sw", "10.0.0.3", "Aruba", "AA:BB:CC:DD:EE:FF", "1/1/4", "1"},
	)
	svc := newTestService(t, store, nil)

	records, err := svc.Search(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1/1/4", records[0].PortName)
}

func TestSearchOnlyAggregatePortsIsNotFound(t *testing.T) {
	store := seedInventory(t,
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "AA:BB:CC:DD:EE:FF", "Port-Channel1", "0"},
	)
	svc := newTestService(t, store, nil)

	_, err := svc.Search(context.Background(), "aabbccddeeff")
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestSearchCustomExclusions(t *testing.T) {
	store := seedInventory(t,
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "AA:BB:CC:DD:EE:FF", "Port-Channel1", "0"},
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "AA:BB:CC:DD:EE:FF", "Trk1", "0"},
	)
	svc := newTestService(t, store, []string{"Trk"})

	records, err := svc.Search(context.Background(), "aabbccddeeff")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Port-Channel1", records[0].PortName)
}

func TestSearchNotFound(t *testing.T) {
	store := seedInventory(t,
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "11:22:33:44:55:66", "Gi1/0/2", "1"},
	)
	svc := newTestService(t, store, nil)

	records, err := svc.Search(context.Background(), "aabbccddeeff")
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.Empty(t, records)
}

func TestSearchRejectsInputBeforeStorage(t *testing.T) {
	// The store points at a missing file; any storage access would fail with
	// ErrStorageUnavailable instead of the input errors below.
	store := openReadOnly(t, filepath.Join(t.TempDir(), "missing.db"))
	svc := newTestService(t, store, nil)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "empty", input: "", want: ErrInputMissing},
		{name: "blank", input: "   ", want: ErrInputMissing},
		{name: "short", input: "1234", want: ErrInvalidMACFormat},
		{name: "no hex", input: "zzzzzzzzzzzz", want: ErrInvalidMACFormat},
		{name: "too long", input: "aabbccddeeff00", want: ErrInvalidMACFormat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tc.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.False(t, errors.Is(err, ErrStorageUnavailable))
			assert.False(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestSearchStorageUnavailable(t *testing.T) {
	store := openReadOnly(t, filepath.Join(t.TempDir(), "missing.db"))
	svc := newTestService(t, store, nil)

	_, err := svc.Search(context.Background(), "aabbccddeeff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageUnavailable), "got %v", err)
	assert.Equal(t, outcomeStorageUnavailable, Outcome(err))

	require.Error(t, svc.Ping(context.Background()))
}

func TestSearchQueryFailed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "other.db")

	writer, err := db.Open(ctx, path)
	require.NoError(t, err)
	_, err = db.Exec(ctx, writer, `CREATE TABLE unrelated (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	svc := newTestService(t, openReadOnly(t, path), nil)

	_, err = svc.Search(ctx, "aabbccddeeff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueryFailed), "got %v", err)
	require.NoError(t, svc.Ping(ctx))
}

func TestFilterRecords(t *testing.T) {
	rows := []Record{
		{PortName: "Gi1/0/1", Access: "1"},
		{PortName: "Po10", Access: "1"},
		{PortName: "port-channel5", Access: "0"},
		{PortName: "LAG1", Access: "0"},
		{PortName: "Te1/1/1", Access: ""},
	}

	got := FilterRecords(rows, DefaultExcludedPorts())
	require.Len(t, got, 4)
	assert.Equal(t, "Gi1/0/1", got[0].PortName)
	assert.Equal(t, "Access Port", got[0].AccessVal)
	// Matching is case sensitive.
	assert.Equal(t, "port-channel5", got[1].PortName)
	assert.Equal(t, "LAG1", got[2].PortName)
	assert.Equal(t, "Trunk port", got[3].AccessVal)

	assert.Len(t, FilterRecords(rows, []string{""}), len(rows))
	assert.Empty(t, FilterRecords(nil, DefaultExcludedPorts()))
}

func TestAccessLabel(t *testing.T) {
	assert.Equal(t, "Access Port", AccessLabel("1"))
	assert.Equal(t, "Trunk port", AccessLabel("0"))
	assert.Equal(t, "Trunk port", AccessLabel(""))
	assert.Equal(t, "Trunk port", AccessLabel("true"))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, outcomeFound, Outcome(nil))
	assert.Equal(t, outcomeNotFound, Outcome(ErrNotFound))
	assert.Equal(t, outcomeInvalidFormat, Outcome(errors.Mark(errors.New("bad"), ErrInvalidMACFormat)))
	assert.Equal(t, outcomeError, Outcome(errors.New("other")))
}

func TestNewServiceKeepsQueryTimeout(t *testing.T) {
	store := openReadOnly(t, filepath.Join(t.TempDir(), "missing.db"))

	svc, err := NewService(store, Config{QueryTimeout: 30 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, svc.config.QueryTimeout)

	svc, err = NewService(store, Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, db.DefaultTimeout, svc.config.QueryTimeout)
}

func TestSearchMulticastAddress(t *testing.T) {
	store := seedInventory(t,
		inventoryRow{"core-sw1", "10.0.0.1", "Cisco", "01:00:5E:00:00:FB", "Gi1/0/7", "1"},
	)
	svc := newTestService(t, store, nil)

	records, err := svc.Search(context.Background(), "01005e0000fb")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Gi1/0/7", records[0].PortName)
}
