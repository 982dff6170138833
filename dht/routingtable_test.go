package dht

import (
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// idLeadByte builds an ID whose most significant byte is lead and whose
// remaining bytes are zero, e.g. idLeadByte(0x80) == 0x80...00.
func idLeadByte(lead byte) ID {
	var id ID
	id[0] = lead
	return id
}

func TestRoutingTableAddAndFindNode(t *testing.T) {
	self := idWithLastByte(1)
	rt := NewRoutingTable(self, DefaultK)

	addr, _ := net.ResolveUDPAddr("udp4", "1.2.3.4:6881")
	n := NewNode(idWithLastByte(2), addr)

	assert.True(t, rt.AddNode(n))
	found := rt.FindNode(n.ID)
	require.NotNil(t, found)
	assert.True(t, found.ID.Equal(n.ID))

	assert.Nil(t, rt.FindNode(idWithLastByte(99)))
}

func TestRoutingTableFindClosestEmptyTable(t *testing.T) {
	rt := NewRoutingTable(idWithLastByte(1), DefaultK)
	assert.Empty(t, rt.FindClosest(idWithLastByte(2), 8))
}

func TestRoutingTableFindClosestSortedAndBounded(t *testing.T) {
	rt := NewRoutingTable(idWithLastByte(1), DefaultK)
	addr, _ := net.ResolveUDPAddr("udp4", "1.2.3.4:6881")

	for _, b := range []byte{1, 2, 3, 0xFF, 0x10} {
		rt.AddNode(NewNode(idWithLastByte(b), addr))
	}

	target := idWithLastByte(0)
	closest := rt.FindClosest(target, 3)
	require.Len(t, closest, 3)

	for i := 1; i < len(closest); i++ {
		prev := Distance(target, closest[i-1].ID)
		cur := Distance(target, closest[i].ID)
		assert.True(t, prev.Cmp(cur) <= 0)
	}
}

func TestRoutingTableSplitScenario(t *testing.T) {
	// spec scenario: local ID 0x80...00, K=2, insert three nodes with IDs
	// 0x00...01, 0xC0...00, 0xE0...00. Afterward 0xC0.. and 0xE0.. must
	// share a bucket that excludes 0x00...01.
	self := idLeadByte(0x80)
	rt := NewRoutingTable(self, 2)

	addr, _ := net.ResolveUDPAddr("udp4", "1.2.3.4:6881")
	n1 := NewNode(idWithLastByte(1), addr)
	n2 := NewNode(idLeadByte(0xC0), addr)
	n3 := NewNode(idLeadByte(0xE0), addr)

	require.True(t, rt.AddNode(n1))
	require.True(t, rt.AddNode(n2))
	require.True(t, rt.AddNode(n3))

	assert.GreaterOrEqual(t, rt.BucketCount(), 2)

	idxC0 := rt.bucketIndexLocked(n2.ID)
	idxE0 := rt.bucketIndexLocked(n3.ID)
	idx01 := rt.bucketIndexLocked(n1.ID)

	assert.Equal(t, idxC0, idxE0, "0xC0.. and 0xE0.. should share a bucket")
	assert.NotEqual(t, idxC0, idx01, "the shared bucket must not contain 0x00...01")

	assertPartitionContiguousAndDisjoint(t, rt)
}

func assertPartitionContiguousAndDisjoint(t *testing.T, rt *RoutingTable) {
	t.Helper()
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	one := big.NewInt(1)
	for i, b := range rt.buckets {
		assert.True(t, b.Low.Cmp(b.High) <= 0)
		if i == 0 {
			assert.Equal(t, 0, b.Low.Sign())
		}
		if i > 0 {
			prevHigh := rt.buckets[i-1].High
			expectedLow := new(big.Int).Add(prevHigh, one)
			assert.Equal(t, 0, expectedLow.Cmp(b.Low), "bucket %d is not contiguous with bucket %d", i, i-1)
		}
	}
	last := rt.buckets[len(rt.buckets)-1]
	assert.Equal(t, 0, last.High.Cmp(maxID160()))
}

func TestRoutingTableRefreshReturnsTargetsForStaleBuckets(t *testing.T) {
	rt := NewRoutingTable(idWithLastByte(1), DefaultK)
	targets := rt.Refresh(-1 * time.Second) // everything is "stale"
	require.Len(t, targets, 1)
	assert.True(t, rt.buckets[0].ContainsID(targets[0]))
}
