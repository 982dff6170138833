package dht

import "net"

// Peer is a participant announcing a torrent identified by an info-hash: an
// IPv4 endpoint and a seeder flag. Two peers are equal iff all three fields
// match.
type Peer struct {
	IP     net.IP
	Port   uint16
	Seeder bool
}

// Equal reports whether two peers share the same address, port and seeder
// flag.
func (p Peer) Equal(other Peer) bool {
	return p.IP.Equal(other.IP) && p.Port == other.Port && p.Seeder == other.Seeder
}
