// Package dht implements the Kademlia-style routing table and supporting
// types for a Mainline BitTorrent DHT (BEP-5) node.
//
// # Architecture
//
// A node's view of the overlay is a RoutingTable of Buckets, each covering
// a disjoint, contiguous slice of the 160-bit ID space. Buckets hold up to
// K nodes and split when full and the local ID falls in their range.
//
// Key components:
//
//   - ID: a 160-bit identifier with XOR distance
//   - Node / Peer: addressing records (a Node also tracks when it was last seen)
//   - Bucket: a bounded set of nodes covering an ID range
//   - RoutingTable: the ordered partition of buckets, insert/find/closest-K
//   - TokenIssuer: time-rotating write-authorization tokens for announce_peer
//
// The wire protocol (KRPC) and peer persistence live in the sibling krpc
// and store packages; this package owns only routing-table state.
package dht
