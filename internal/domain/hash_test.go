package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueID(t *testing.T) {
	tests := []struct {
		key  string
		want uint32
	}{
		{"", 0},
		{"a", 0x61},
		{"10.0.0.1:3260", 0x0f0730},
		{"10.1.1.2:3260", 0x0fe750},
		{"10.1.1.1:3260,1", 0x0740b1},
		{"10.1.1.2:3260#10.1.1.1:3260,1", 0x07ff91},
		{"192.168.1.10:3260", 0x0851f0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := UniqueID(tt.key)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, UniqueID(tt.key), "must be deterministic")
			assert.Less(t, got, uint32(IDModulus))
		})
	}
}

func TestFormatAndParseID(t *testing.T) {
	assert.Equal(t, "0f0730", FormatID(0x0f0730))
	assert.Equal(t, "000061", FormatID(0x61))

	id, err := ParseID("0fe750")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0fe750), id)

	_, err = ParseID("zzz")
	assert.Error(t, err)

	_, err = ParseID("100000")
	assert.Error(t, err, "ids are 20 bits wide")
}

func TestHashKeyDiscovery(t *testing.T) {
	rec := DefaultDiscovery(DiscoveryTypeSendTargets)
	rec.SendTargets.Address = "10.1.1.2"
	rec.SendTargets.Port = 3260

	key, err := HashKeyDiscovery(rec)
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.2:3260", key)

	for _, typ := range []DiscoveryType{DiscoveryTypeSLP, DiscoveryTypeISNS} {
		_, err := HashKeyDiscovery(DefaultDiscovery(typ))
		assert.ErrorIs(t, err, ErrUnsupportedDiscoveryType, typ.String())
	}
}

func TestHashKeyNode(t *testing.T) {
	drec := DefaultDiscovery(DiscoveryTypeSendTargets)
	drec.SendTargets.Address = "10.1.1.2"
	drec.SendTargets.Port = 3260

	nrec := DefaultNode()
	nrec.TPGT = 1
	nrec.Conns[0].Address = "10.1.1.1"
	nrec.Conns[0].Port = 3260

	t.Run("with parent discovery", func(t *testing.T) {
		key, err := HashKeyNode(drec, nrec)
		require.NoError(t, err)
		assert.Equal(t, "10.1.1.2:3260#10.1.1.1:3260,1", key)
	})

	t.Run("without parent discovery", func(t *testing.T) {
		key, err := HashKeyNode(nil, nrec)
		require.NoError(t, err)
		assert.Equal(t, "10.1.1.1:3260,1", key)
	})

	t.Run("slp parent has no key", func(t *testing.T) {
		_, err := HashKeyNode(DefaultDiscovery(DiscoveryTypeSLP), nrec)
		assert.ErrorIs(t, err, ErrUnsupportedDiscoveryType)
	})

	t.Run("long keys are truncated", func(t *testing.T) {
		long := *nrec
		long.Conns[0].Address = "fd00:1111:2222:3333:4444:5555:6666:7777%storage-vlan0"
		key, err := HashKeyNode(drec, &long)
		require.NoError(t, err)
		assert.Len(t, key, HashMaxLen)
	})
}
