package collector

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/gosnmp/gosnmp"

	"macfinder/pkg/mac"
)

const (
	// UnknownPort is stored when a bridge port has no interface name.
	UnknownPort = "Unknown Port"

	accessModeValue = 1
)

// Entry is one learned MAC address on a switch port.
type Entry struct {
	MAC    string `json:"mac"`
	Port   string `json:"port"`
	Access string `json:"access"`
}

// BuildEntries joins the walked tables into entries. The forwarding table, indexed by the
// six MAC octets, maps MACs to bridge ports, which map to ifIndexes, which map to names
// and port modes. A bridge port missing from the bridge port table is used as the
// ifIndex. With accessOnly set and a mode table available, entries on non-access ports
// are dropped.
func BuildEntries(tables Tables, accessOnly bool) []Entry {
	bridgeToIf := make(map[string]string, len(tables.BridgePorts))
	for _, pdu := range tables.BridgePorts {
		if v, ok := pduInt(pdu); ok {
			bridgeToIf[lastIndex(pdu.Name)] = v.String()
		}
	}

	names := make(map[string]string, len(tables.Interfaces))
	for _, pdu := range tables.Interfaces {
		if name, ok := pduString(pdu); ok {
			names[lastIndex(pdu.Name)] = name
		}
	}

	access := make(map[string]bool, len(tables.PortModes))
	for _, pdu := range tables.PortModes {
		if v, ok := pduInt(pdu); ok && v.Int64() == accessModeValue {
			access[lastIndex(pdu.Name)] = true
		}
	}

	entries := make([]Entry, 0, len(tables.FDB))
	type key struct{ mac, port string }
	seen := make(map[key]struct{}, len(tables.FDB))
	for _, pdu := range tables.FDB {
		address, err := mac.FromOctets(indexAfter(pdu.Name, OIDBridgeFDBPort))
		if err != nil {
			continue
		}

		bridgePort, ok := pduInt(pdu)
		if !ok {
			continue
		}
		ifIndex, ok := bridgeToIf[bridgePort.String()]
		if !ok {
			ifIndex = bridgePort.String()
		}

		port, ok := names[ifIndex]
		if !ok || port == "" {
			port = UnknownPort
		}

		flag := "0"
		if access[ifIndex] {
			flag = "1"
		}
		if accessOnly && tables.HasPortModes && flag != "1" {
			continue
		}

		k := key{address, port}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		entries = append(entries, Entry{MAC: address, Port: port, Access: flag})
	}
	return entries
}

func indexParts(oid string) []string {
	return strings.Split(strings.TrimPrefix(oid, "."), ".")
}

// indexAfter returns the index components of oid below table, or nil when oid is not in
// table.
func indexAfter(oid, table string) []string {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(oid, "."), table+".")
	if !ok {
		return nil
	}
	return strings.Split(rest, ".")
}

func lastIndex(oid string) string {
	parts := indexParts(oid)
	return parts[len(parts)-1]
}

func pduString(pdu gosnmp.SnmpPDU) (string, bool) {
	switch v := pdu.Value.(type) {
	case string:
		return strings.Trim(v, `"`), true
	case []byte:
		return strings.Trim(string(v), `"`), true
	case int, uint, int64, uint64, uint32:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

func pduInt(pdu gosnmp.SnmpPDU) (*big.Int, bool) {
	switch pdu.Type {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Counter64, gosnmp.Uinteger32, gosnmp.TimeTicks:
		return gosnmp.ToBigInt(pdu.Value), true
	}
	switch pdu.Value.(type) {
	case int, int64, uint, uint32, uint64:
		return gosnmp.ToBigInt(pdu.Value), true
	}
	return nil, false
}
