package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"macfinder/pkg/db"
)

// TimestampLayout is the text form of created_at and updated_at.
const TimestampLayout = "2006-01-02 15:04:05"

const upsertBatchSize = 200

type inventoryRecord struct {
	SwitchName string `gorm:"column:switch_name"`
	SwitchIP   string `gorm:"column:switch_ip"`
	Vendor     string `gorm:"column:vendor"`
	MACAddress string `gorm:"column:mac_address"`
	PortName   string `gorm:"column:port_name"`
	Access     string `gorm:"column:access"`
	FirstSeen  string `gorm:"column:created_at"`
	LastSeen   string `gorm:"column:updated_at"`
}

func (inventoryRecord) TableName() string { return "network_inventory" }

// Store writes collected entries into network_inventory.
type Store struct {
	orm *gorm.DB
}

// NewStore wraps an open database.
func NewStore(database *db.DB) (*Store, error) {
	if database == nil {
		return nil, errors.New("database is required")
	}
	orm, err := database.ORM()
	if err != nil {
		return nil, fmt.Errorf("orm: %w", err)
	}
	return &Store{orm: orm}, nil
}

// Upsert inserts entries for host in one transaction. Rows already present for the same
// switch, MAC and port keep their created_at and get the new switch ip, vendor, access
// flag and updated_at.
func (s *Store) Upsert(ctx context.Context, host Host, entries []Entry, now time.Time) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	stamp := now.UTC().Format(TimestampLayout)
	rows := make([]inventoryRecord, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, inventoryRecord{
			SwitchName: host.Name,
			SwitchIP:   host.IP,
			Vendor:     host.Vendor,
			MACAddress: e.MAC,
			PortName:   e.Port,
			Access:     e.Access,
			FirstSeen:  stamp,
			LastSeen:   stamp,
		})
	}

	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "switch_name"},
				{Name: "mac_address"},
				{Name: "port_name"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"switch_ip", "vendor", "access", "updated_at"}),
		}).CreateInBatches(&rows, upsertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", host.Name, err)
	}
	return len(rows), nil
}
