package dht

import (
	"math/big"
	"sort"
	"sync"
	"time"
)

// maxSplitDepth bounds the recursive add_node/split cascade. 160 matches the
// ID space's bit width: a bucket cannot usefully split more than 160 times.
const maxSplitDepth = 160

// maxID160 returns 2^160 - 1, the upper bound of the ID space.
func maxID160() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 160)
	return max.Sub(max, big.NewInt(1))
}

// RoutingTable is an ordered partition of the 160-bit ID space into Buckets.
// It begins as the single bucket [0, 2^160-1] and only ever grows via
// splits; buckets are never merged.
type RoutingTable struct {
	mu      sync.RWMutex
	buckets []*Bucket // ascending order of Low
	self    ID
	k       int
}

// NewRoutingTable creates a routing table for the given local ID, with each
// bucket capped at k nodes (DefaultK if k <= 0).
func NewRoutingTable(self ID, k int) *RoutingTable {
	if k <= 0 {
		k = DefaultK
	}
	root := NewBucket(big.NewInt(0), maxID160(), k)
	return &RoutingTable{
		buckets: []*Bucket{root},
		self:    self,
		k:       k,
	}
}

// bucketIndexLocked returns the index of the bucket containing id. Callers
// must hold rt.mu.
func (rt *RoutingTable) bucketIndexLocked(id ID) int {
	n := id.Int()
	// Buckets are ascending, contiguous and disjoint by construction: find
	// the last bucket whose Low is <= n.
	i := sort.Search(len(rt.buckets), func(i int) bool {
		return rt.buckets[i].Low.Cmp(n) > 0
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// AddNode attempts to insert node into the appropriate bucket, splitting
// and retrying when the bucket is full and covers the local ID, or
// dropping the candidate when the bucket is full and out of local range.
// The drop is deliberate and silent: a full, out-of-range bucket at
// capacity is a normal steady state, not an error condition.
func (rt *RoutingTable) AddNode(node *Node) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.addNodeLocked(node, 0)
}

func (rt *RoutingTable) addNodeLocked(node *Node, depth int) bool {
	if depth > maxSplitDepth {
		return false
	}

	idx := rt.bucketIndexLocked(node.ID)
	bucket := rt.buckets[idx]

	switch bucket.TryAdd(node) {
	case Added:
		return true
	case Duplicate:
		return false
	case Full:
		if !bucket.ContainsID(rt.self) {
			// Standard Kademlia policy: the existing bucket is authoritative
			// when our own ID isn't in range. A future extension could probe
			// the least-recently-seen node before dropping.
			return false
		}
		rt.splitLocked(idx)
		return rt.addNodeLocked(node, depth+1)
	default: // OutOfRange: unreachable given bucketIndexLocked's search
		return false
	}
}

// splitLocked divides the bucket at idx into two half-range buckets,
// replacing it in place, and redistributes its nodes. Callers must hold
// rt.mu for writing.
func (rt *RoutingTable) splitLocked(idx int) {
	old := rt.buckets[idx]

	mid := new(big.Int).Sub(old.High, old.Low)
	mid.Rsh(mid, 1)
	mid.Add(mid, old.Low) // mid = low + (high-low)/2, integer division

	midPlusOne := new(big.Int).Add(mid, big.NewInt(1))

	lowHalf := NewBucket(old.Low, mid, old.K)
	highHalf := NewBucket(midPlusOne, old.High, old.K)
	lowHalf.RefreshedAt = old.RefreshedAt
	highHalf.RefreshedAt = old.RefreshedAt

	for _, n := range old.clear() {
		if lowHalf.ContainsID(n.ID) {
			lowHalf.TryAdd(n)
		} else {
			highHalf.TryAdd(n)
		}
	}

	rt.buckets = append(rt.buckets[:idx], append([]*Bucket{lowHalf, highHalf}, rt.buckets[idx+1:]...)...)
}

// FindNode locates a node with the given exact ID, or nil if not present.
func (rt *RoutingTable) FindNode(id ID) *Node {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	idx := rt.bucketIndexLocked(id)
	for _, n := range rt.buckets[idx].Nodes() {
		if n.ID.Equal(id) {
			return n
		}
	}
	return nil
}

// FindClosest returns up to k nodes (or DefaultK-sourced rt.k if k <= 0)
// from the entire table with the smallest XOR distance to target, ordered
// by increasing distance. Ties break by insertion order (stable sort).
func (rt *RoutingTable) FindClosest(target ID, k int) []*Node {
	if k <= 0 {
		k = rt.k
	}

	rt.mu.RLock()
	all := make([]*Node, 0)
	for _, b := range rt.buckets {
		all = append(all, b.Nodes()...)
	}
	rt.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return closer(target, all[i].ID, all[j].ID)
	})

	if len(all) > k {
		all = all[:k]
	}
	return all
}

// Refresh scans buckets whose RefreshedAt is older than staleAfter and
// returns, for each, a random target ID within that bucket's range. The
// caller (typically a Maintainer) originates a find_node query for each
// returned target via the KRPC engine; this method performs no I/O itself,
// keeping the routing table free of any dependency on the engine.
func (rt *RoutingTable) Refresh(staleAfter time.Duration) []ID {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	var targets []ID
	for _, b := range rt.buckets {
		if b.Stale(staleAfter) {
			targets = append(targets, randomIDInRange(b.Low, b.High))
		}
	}
	return targets
}

// BucketCount returns the number of buckets currently in the table.
func (rt *RoutingTable) BucketCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.buckets)
}

// NodeCount returns the total number of nodes across all buckets.
func (rt *RoutingTable) NodeCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	count := 0
	for _, b := range rt.buckets {
		count += b.Len()
	}
	return count
}

// BucketStats summarizes one bucket for diagnostic/admin use.
type BucketStats struct {
	Low, High string
	Nodes     int
}

// Stats returns a snapshot of every bucket's range and occupancy, in
// ascending ID order.
func (rt *RoutingTable) Stats() []BucketStats {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	out := make([]BucketStats, len(rt.buckets))
	for i, b := range rt.buckets {
		out[i] = BucketStats{Low: b.Low.Text(16), High: b.High.Text(16), Nodes: b.Len()}
	}
	return out
}
