package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// IDModulus is the size of the short id space (20 bits)
const IDModulus = 1 << 20

// ErrUnsupportedDiscoveryType is returned when a record type has no hash key format
var ErrUnsupportedDiscoveryType = errors.New("unsupported discovery type")

// UniqueID folds a hash key into a 20-bit checksum used as a short,
// human-facing label. It is lossy: distinct keys may share an id.
func UniqueID(key string) uint32 {
	var h uint32
	for i := 0; i < len(key); i++ {
		h = (h << 4) + uint32(key[i])
		g := h & 0xF0000000
		if g != 0 {
			h ^= g >> 23
		}
		h &^= g
	}
	return h % IDModulus
}

// FormatID renders a short id the way it is shown to operators
func FormatID(id uint32) string {
	return fmt.Sprintf("%06x", id)
}

// ParseID parses a hex short id as printed by FormatID
func ParseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q: %w", s, err)
	}
	if v >= IDModulus {
		return 0, fmt.Errorf("invalid record id %q: exceeds 20 bits", s)
	}
	return uint32(v), nil
}

// HashKeyDiscovery derives the storage key of a discovery record.
// Only sendtargets records have an address to key on.
func HashKeyDiscovery(rec *DiscoveryRecord) (string, error) {
	if rec.Type != DiscoveryTypeSendTargets {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDiscoveryType, rec.Type)
	}
	key := fmt.Sprintf("%s:%d", rec.SendTargets.Address, rec.SendTargets.Port)
	return Truncate(key, HashMaxLen), nil
}

// HashKeyNode derives the storage key of a node record. When drec is
// non-nil its key prefixes the node portal, which is the only link between
// a node and the discovery record it came from.
func HashKeyNode(drec *DiscoveryRecord, nrec *NodeRecord) (string, error) {
	addr, port := nrec.Portal()
	if drec == nil {
		return Truncate(fmt.Sprintf("%s:%d,%d", addr, port, nrec.TPGT), HashMaxLen), nil
	}

	parent, err := HashKeyDiscovery(drec)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s#%s:%d,%d", parent, addr, port, nrec.TPGT)
	return Truncate(key, HashMaxLen), nil
}
