package collector

import (
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
)

func intPDU(name string, v int) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: name, Type: gosnmp.Integer, Value: v}
}

func strPDU(name, v string) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: name, Type: gosnmp.OctetString, Value: []byte(v)}
}

func ciscoTables() Tables {
	return Tables{
		FDB: []gosnmp.SnmpPDU{
			// 170.187.204.221.238.255 = AA:BB:CC:DD:EE:FF on bridge port 1
			intPDU("."+OIDBridgeFDBPort+".170.187.204.221.238.255", 1),
			// 0.17.34.51.68.85 = 00:11:22:33:44:55 on bridge port 2
			intPDU("."+OIDBridgeFDBPort+".0.17.34.51.68.85", 2),
			// bridge port 3 has no ifIndex mapping and no name
			intPDU("."+OIDBridgeFDBPort+".1.2.3.4.5.6", 3),
			// malformed index
			intPDU("."+OIDBridgeFDBPort+".1.2", 1),
		},
		BridgePorts: []gosnmp.SnmpPDU{
			intPDU("."+OIDBridgePortIfIndex+".1", 10101),
			intPDU("."+OIDBridgePortIfIndex+".2", 10102),
		},
		Interfaces: []gosnmp.SnmpPDU{
			strPDU("."+OIDIfDescr+".10101", "GigabitEthernet1/0/1"),
			strPDU("."+OIDIfDescr+".10102", "Port-channel1"),
		},
		PortModes: []gosnmp.SnmpPDU{
			intPDU("."+OIDCiscoVlanType+".10101", 1),
			intPDU("."+OIDCiscoVlanType+".10102", 2),
		},
		HasPortModes: true,
	}
}

func TestBuildEntriesAccessOnly(t *testing.T) {
	got := BuildEntries(ciscoTables(), true)
	assert.Equal(t, []Entry{{MAC: "AA:BB:CC:DD:EE:FF", Port: "GigabitEthernet1/0/1", Access: "1"}}, got)
}

func TestBuildEntriesAllPorts(t *testing.T) {
	got := BuildEntries(ciscoTables(), false)
	assert.Equal(t, []Entry{
		{MAC: "AA:BB:CC:DD:EE:FF", Port: "GigabitEthernet1/0/1", Access: "1"},
		{MAC: "00:11:22:33:44:55", Port: "Port-channel1", Access: "0"},
		{MAC: "01:02:03:04:05:06", Port: UnknownPort, Access: "0"},
	}, got)
}

func TestBuildEntriesWithoutModeTable(t *testing.T) {
	// ProCurve style: no bridge port table, bridge port doubles as ifIndex, no mode table.
	tables := Tables{
		FDB: []gosnmp.SnmpPDU{
			intPDU(OIDBridgeFDBPort+".170.187.204.221.238.255", 5),
			intPDU(OIDBridgeFDBPort+".170.187.204.221.238.255", 5),
		},
		Interfaces: []gosnmp.SnmpPDU{
			{Name: OIDIfName + ".5", Type: gosnmp.OctetString, Value: "A5"},
		},
	}

	got := BuildEntries(tables, true)
	assert.Equal(t, []Entry{{MAC: "AA:BB:CC:DD:EE:FF", Port: "A5", Access: "0"}}, got)
}

func TestBuildEntriesSkipsNonIntegerPorts(t *testing.T) {
	tables := Tables{
		FDB: []gosnmp.SnmpPDU{strPDU(OIDBridgeFDBPort+".170.187.204.221.238.255", "x")},
	}
	assert.Empty(t, BuildEntries(tables, false))
}

func TestOIDsFor(t *testing.T) {
	assert.Equal(t, VendorOIDs{InterfaceNames: OIDIfDescr, PortMode: OIDCiscoVlanType}, OIDsFor("Cisco"))
	assert.Equal(t, VendorOIDs{InterfaceNames: OIDIfDescr}, OIDsFor("Aruba"))
	assert.Equal(t, VendorOIDs{InterfaceNames: OIDIfName}, OIDsFor("ProCurve"))
	assert.Equal(t, VendorOIDs{InterfaceNames: OIDIfName}, OIDsFor("Juniper"))
}

func TestNewSNMPWalkerDefaults(t *testing.T) {
	w := NewSNMPWalker(SNMPConfig{})
	assert.Equal(t, uint16(161), w.port)
	assert.Positive(t, w.timeout)
}
