package krpc

import (
	"fmt"
	"net"

	"github.com/chainflux/mldht/dht"
)

const (
	compactPeerSize = 6  // 4-byte IPv4 + 2-byte port, big-endian
	compactNodeSize = dht.IDLength + compactPeerSize
)

// encodeCompactPeer packs a Peer into its 6-byte compact form.
func encodeCompactPeer(p dht.Peer) ([]byte, error) {
	ip4 := p.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("krpc: peer address %s is not IPv4", p.IP)
	}
	b := make([]byte, compactPeerSize)
	copy(b[:4], ip4)
	b[4] = byte(p.Port >> 8)
	b[5] = byte(p.Port)
	return b, nil
}

// decodeCompactPeer unpacks a 6-byte compact peer record.
func decodeCompactPeer(b []byte) (dht.Peer, error) {
	if len(b) != compactPeerSize {
		return dht.Peer{}, fmt.Errorf("%w: compact peer must be 6 bytes", ErrMalformedMessage)
	}
	ip := net.IPv4(b[0], b[1], b[2], b[3])
	port := uint16(b[4])<<8 | uint16(b[5])
	return dht.Peer{IP: ip, Port: port}, nil
}

// encodeCompactPeers concatenates each peer's 6-byte record. Peers whose
// address is not IPv4 are skipped: compact addressing is IPv4-only.
func encodeCompactPeers(peers []dht.Peer) []byte {
	out := make([]byte, 0, len(peers)*compactPeerSize)
	for _, p := range peers {
		rec, err := encodeCompactPeer(p)
		if err != nil {
			continue
		}
		out = append(out, rec...)
	}
	return out
}

// decodeCompactPeers splits a byte string into 6-byte peer records. The
// length must be an exact multiple of 6; otherwise ErrMalformedMessage.
func decodeCompactPeers(b []byte) ([]dht.Peer, error) {
	if len(b)%compactPeerSize != 0 {
		return nil, fmt.Errorf("%w: compact peer list length not a multiple of 6", ErrMalformedMessage)
	}
	peers := make([]dht.Peer, 0, len(b)/compactPeerSize)
	for i := 0; i < len(b); i += compactPeerSize {
		p, err := decodeCompactPeer(b[i : i+compactPeerSize])
		if err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}
	return peers, nil
}

// encodeCompactNode packs a Node into its 26-byte compact form: 20-byte ID
// followed by the 6-byte compact peer.
func encodeCompactNode(n *dht.Node) ([]byte, error) {
	peerRec, err := encodeCompactPeer(dht.Peer{IP: n.Addr.IP, Port: uint16(n.Addr.Port)})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, compactNodeSize)
	out = append(out, n.ID.Bytes()...)
	out = append(out, peerRec...)
	return out, nil
}

// decodeCompactNode unpacks a 26-byte compact node record.
func decodeCompactNode(b []byte) (*dht.Node, error) {
	if len(b) != compactNodeSize {
		return nil, fmt.Errorf("%w: compact node must be 26 bytes", ErrMalformedMessage)
	}
	id, err := dht.IDFromBytes(b[:dht.IDLength])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	peer, err := decodeCompactPeer(b[dht.IDLength:])
	if err != nil {
		return nil, err
	}
	return dht.NewNode(id, &net.UDPAddr{IP: peer.IP, Port: int(peer.Port)}), nil
}

// encodeCompactNodes concatenates each node's 26-byte record, skipping any
// node whose address is not IPv4.
func encodeCompactNodes(nodes []*dht.Node) []byte {
	out := make([]byte, 0, len(nodes)*compactNodeSize)
	for _, n := range nodes {
		rec, err := encodeCompactNode(n)
		if err != nil {
			continue
		}
		out = append(out, rec...)
	}
	return out
}

// decodeCompactNodes splits a byte string into 26-byte node records. The
// length must be an exact multiple of 26; otherwise ErrMalformedMessage.
func decodeCompactNodes(b []byte) ([]*dht.Node, error) {
	if len(b)%compactNodeSize != 0 {
		return nil, fmt.Errorf("%w: compact node list length not a multiple of 26", ErrMalformedMessage)
	}
	nodes := make([]*dht.Node, 0, len(b)/compactNodeSize)
	for i := 0; i < len(b); i += compactNodeSize {
		n, err := decodeCompactNode(b[i : i+compactNodeSize])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
