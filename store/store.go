package store

import (
	"errors"

	"github.com/chainflux/mldht/dht"
)

// ErrTorrentNotTracked is returned by GetPeers for an info-hash that has
// never had a peer announced against it.
var ErrTorrentNotTracked = errors.New("store: torrent not tracked")

// DefaultMaxPeersPerTorrent bounds how many peers a single swarm may hold
// when a backend is not given an explicit override. Announces past the
// cap are silently rejected (AddPeer returns false, nil), matching the
// prototype's behavior rather than erroring.
const DefaultMaxPeersPerTorrent = 6000

// Store is the content-addressed peer directory consulted by get_peers
// and written to by announce_peer.
type Store interface {
	// TorrentExists reports whether any peer has ever announced for hash.
	TorrentExists(hash dht.ID) bool

	// GetPeers returns the peers currently tracked for hash. Returns
	// ErrTorrentNotTracked if TorrentExists(hash) is false.
	GetPeers(hash dht.ID) ([]dht.Peer, error)

	// AddPeer records peer against hash, creating the swarm if this is
	// its first announce. Returns (false, nil) if peer is already
	// present or the swarm is at MaxPeersPerTorrent, neither of which is
	// an error.
	AddPeer(hash dht.ID, peer dht.Peer) (bool, error)

	// Count returns the number of distinct info-hashes with at least one
	// tracked peer.
	Count() (int, error)
}
