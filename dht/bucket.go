package dht

import (
	"math/big"
	"sync"
	"time"
)

// AddResult describes the outcome of attempting to add a node to a Bucket.
type AddResult uint8

const (
	Added AddResult = iota
	Full
	Duplicate
	OutOfRange
)

// DefaultK is the default bucket size and closeness fan-out.
const DefaultK = 8

// Bucket is a bounded set of nodes covering a contiguous, inclusive range
// of the 160-bit ID space, plus a last-refresh timestamp.
//
// Invariants (enforced by RoutingTable, which owns bucket placement):
//   - every node's ID lies in [Low, High];
//   - |Nodes| <= K at all observation points.
type Bucket struct {
	Low, High   *big.Int
	RefreshedAt time.Time
	K           int

	mu    sync.RWMutex
	nodes []*Node
}

// NewBucket creates a bucket spanning the inclusive range [low, high] with
// capacity k.
func NewBucket(low, high *big.Int, k int) *Bucket {
	if k <= 0 {
		k = DefaultK
	}
	return &Bucket{
		Low:         new(big.Int).Set(low),
		High:        new(big.Int).Set(high),
		RefreshedAt: time.Now(),
		K:           k,
	}
}

// ContainsID reports whether id falls within this bucket's inclusive range.
func (b *Bucket) ContainsID(id ID) bool {
	n := id.Int()
	return n.Cmp(b.Low) >= 0 && n.Cmp(b.High) <= 0
}

// TryAdd attempts to add node to the bucket, enforcing the bucket's range
// and capacity. Nodes carry no back-reference to their bucket; lookups
// always go through RoutingTable.FindNode by ID instead.
func (b *Bucket) TryAdd(node *Node) AddResult {
	if !b.ContainsID(node.ID) {
		return OutOfRange
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.nodes {
		if existing.ID.Equal(node.ID) {
			return Duplicate
		}
	}

	if len(b.nodes) >= b.K {
		return Full
	}

	b.nodes = append(b.nodes, node)
	return Added
}

// Nodes returns a snapshot copy of the bucket's current node list.
func (b *Bucket) Nodes() []*Node {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Node, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// Len returns the current number of nodes in the bucket.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// Remove deletes the node with the given ID from the bucket, if present.
func (b *Bucket) Remove(id ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, n := range b.nodes {
		if n.ID.Equal(id) {
			last := len(b.nodes) - 1
			b.nodes[i] = b.nodes[last]
			b.nodes = b.nodes[:last]
			return true
		}
	}
	return false
}

// Touch refreshes the bucket's last-activity timestamp.
func (b *Bucket) Touch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.RefreshedAt = time.Now()
}

// Stale reports whether the bucket has not been refreshed within maxAge.
func (b *Bucket) Stale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return time.Since(b.RefreshedAt) > maxAge
}

// clear empties the node list; used internally by RoutingTable.split when
// redistributing nodes into new half-range buckets.
func (b *Bucket) clear() []*Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.nodes
	b.nodes = nil
	return old
}
