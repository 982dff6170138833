// Package krpc implements the KRPC wire protocol of the Mainline BitTorrent
// DHT (BEP-5): bencoded query/response/error messages, compact node/peer
// encoding, transaction correlation, and the engine that dispatches inbound
// messages against a routing table and peer store and originates outbound
// queries.
//
// Messages are bencoded with github.com/zeebo/bencode. Compact node and
// peer lists are fixed-width binary records packed byte by byte in
// big-endian order, not bencoded lists, per BEP-5.
package krpc
