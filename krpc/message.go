package krpc

import (
	"github.com/chainflux/mldht/dht"
)

// Query is a decoded KRPC query (y='q').
type Query struct {
	TransactionID []byte
	Method        string // ping, find_node, get_peers, announce_peer
	SenderID      dht.ID

	Target   dht.ID // find_node
	InfoHash dht.ID // get_peers, announce_peer

	NoSeed bool // get_peers
	Scrape bool // get_peers, reserved

	Port        uint16 // announce_peer
	ImpliedPort bool   // announce_peer
	Seed        bool   // announce_peer
	Token       dht.Token
}

// Response is a decoded KRPC response (y='r'). Method is not carried on the
// wire; it is inferred from the outstanding transaction the response
// correlates to.
type Response struct {
	TransactionID []byte
	Method        string
	SenderID      dht.ID

	Nodes []*dht.Node // find_node; get_peers miss
	Peers []dht.Peer  // get_peers hit
	Token dht.Token   // get_peers
}

// Error is a decoded KRPC error (y='e').
type Error struct {
	TransactionID []byte
	Method        string
	Code          int
	Message       string
}

// Methods recognized by the protocol.
const (
	MethodPing         = "ping"
	MethodFindNode     = "find_node"
	MethodGetPeers     = "get_peers"
	MethodAnnouncePeer = "announce_peer"
)

func isKnownMethod(m string) bool {
	switch m {
	case MethodPing, MethodFindNode, MethodGetPeers, MethodAnnouncePeer:
		return true
	default:
		return false
	}
}
