package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
)

// Standard and vendor MIB tables walked for every switch.
const (
	OIDBridgeFDBPort     = "1.3.6.1.2.1.17.4.3.1.2"       // dot1dTpFdbPort
	OIDBridgePortIfIndex = "1.3.6.1.2.1.17.1.4.1.2"       // dot1dBasePortIfIndex
	OIDIfDescr           = "1.3.6.1.2.1.2.2.1.2"          // ifDescr
	OIDIfName            = "1.3.6.1.2.1.31.1.1.1.1"       // ifName
	OIDCiscoVlanType     = "1.3.6.1.4.1.9.9.68.1.2.2.1.2" // vmVlanType
)

// VendorOIDs names the interface-name table and, when the platform exposes one, the
// port mode table for a vendor.
type VendorOIDs struct {
	InterfaceNames string
	PortMode       string
}

var vendorOIDs = map[string]VendorOIDs{
	"Cisco":    {InterfaceNames: OIDIfDescr, PortMode: OIDCiscoVlanType},
	"Aruba":    {InterfaceNames: OIDIfDescr},
	"ProCurve": {InterfaceNames: OIDIfName},
}

// OIDsFor returns the tables for vendor, defaulting to ifName without a mode table.
func OIDsFor(vendor string) VendorOIDs {
	if oids, ok := vendorOIDs[vendor]; ok {
		return oids
	}
	return VendorOIDs{InterfaceNames: OIDIfName}
}

// Target identifies the switch to walk.
type Target struct {
	Host      string
	IP        string
	Community string
	Vendor    string
}

// Tables holds the raw walk results for one switch.
type Tables struct {
	FDB         []gosnmp.SnmpPDU
	BridgePorts []gosnmp.SnmpPDU
	Interfaces  []gosnmp.SnmpPDU
	PortModes   []gosnmp.SnmpPDU
	// HasPortModes is set when the vendor exposes a mode table, even if it came back empty.
	HasPortModes bool
}

// SNMPWalker walks switches with SNMP v2c bulk requests.
type SNMPWalker struct {
	port    uint16
	timeout time.Duration
	retries int
}

// NewSNMPWalker applies defaults for zero values in cfg.
func NewSNMPWalker(cfg SNMPConfig) *SNMPWalker {
	w := &SNMPWalker{port: cfg.Port, timeout: cfg.Timeout, retries: cfg.Retries}
	if w.port == 0 {
		w.port = 161
	}
	if w.timeout <= 0 {
		w.timeout = 5 * time.Second
	}
	return w
}

// Walk fetches the forwarding, bridge port, interface name and port mode tables. The
// forwarding table is required; the others degrade to empty on error.
func (w *SNMPWalker) Walk(ctx context.Context, target Target) (Tables, error) {
	client := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    target.IP,
		Port:      w.port,
		Community: target.Community,
		Version:   gosnmp.Version2c,
		Timeout:   w.timeout,
		Retries:   w.retries,
	}

	if err := client.Connect(); err != nil {
		return Tables{}, fmt.Errorf("snmp connect %s: %w", target.IP, err)
	}
	defer client.Conn.Close()

	oids := OIDsFor(target.Vendor)

	var tables Tables
	var err error
	if tables.FDB, err = client.BulkWalkAll(OIDBridgeFDBPort); err != nil {
		return Tables{}, fmt.Errorf("walk forwarding table on %s: %w", target.IP, err)
	}
	tables.BridgePorts, _ = client.BulkWalkAll(OIDBridgePortIfIndex)
	tables.Interfaces, _ = client.BulkWalkAll(oids.InterfaceNames)
	if oids.PortMode != "" {
		tables.HasPortModes = true
		tables.PortModes, _ = client.BulkWalkAll(oids.PortMode)
	}
	return tables, nil
}
