package dht

import (
	"net"
	"time"
)

// NodeStatus tracks the maintenance subsystem's view of a node's
// reachability. It does not affect routing-table invariants; a bad node is
// still a valid bucket member until pruned.
type NodeStatus uint8

const (
	StatusUnknown NodeStatus = iota
	StatusGood
	StatusBad
)

// Node is a participant in the overlay, addressed by a 160-bit ID and a UDP
// endpoint. Nodes are value-compared by ID.
//
// Nodes carry no bucket back-reference. The routing table locates a node's
// bucket by ID lookup when needed instead of storing a pointer on the node
// itself, avoiding the owning-cycle a Node<->Bucket pointer pair would
// otherwise create as nodes move between buckets on a split.
type Node struct {
	ID   ID
	Addr *net.UDPAddr

	LastSeen time.Time
	Status   NodeStatus
}

// NewNode constructs a Node for the given ID and endpoint.
func NewNode(id ID, addr *net.UDPAddr) *Node {
	return &Node{ID: id, Addr: addr}
}

// Equal reports whether two nodes share the same ID.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.ID.Equal(other.ID)
}

// Touch marks the node as freshly seen and updates its status.
func (n *Node) Touch(status NodeStatus) {
	n.LastSeen = time.Now()
	n.Status = status
}

// IsStale reports whether the node has not been seen within maxAge.
func (n *Node) IsStale(maxAge time.Duration) bool {
	if n.LastSeen.IsZero() {
		return false
	}
	return time.Since(n.LastSeen) > maxAge
}
