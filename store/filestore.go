package store

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chainflux/mldht/dht"
)

// peerRecordSize is the width of one on-disk peer record: 4-byte IPv4 +
// 2-byte big-endian port + 1-byte seeder flag.
const peerRecordSize = 7

// FileStore persists each swarm as its own append-only file named "0x"
// followed by the lowercase hex of its info-hash, one peerRecordSize-byte record per
// announce. It is the default backend and needs no external service.
type FileStore struct {
	dir      string
	maxPeers int
	mu       sync.Mutex
}

// NewFileStore opens (creating if necessary) dir as the storage root.
// maxPeers caps each swarm's size; 0 takes DefaultMaxPeersPerTorrent.
func NewFileStore(dir string, maxPeers int) (*FileStore, error) {
	if maxPeers <= 0 {
		maxPeers = DefaultMaxPeersPerTorrent
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create storage dir: %w", err)
	}
	return &FileStore{dir: dir, maxPeers: maxPeers}, nil
}

func (fs *FileStore) path(hash dht.ID) string {
	return filepath.Join(fs.dir, "0x"+hash.String())
}

func (fs *FileStore) TorrentExists(hash dht.ID) bool {
	_, err := os.Stat(fs.path(hash))
	return err == nil
}

// Count returns the number of swarm files in the storage directory, each
// of which corresponds to one tracked info-hash.
func (fs *FileStore) Count() (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return 0, fmt.Errorf("store: read storage dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "0x") {
			n++
		}
	}
	return n, nil
}

func (fs *FileStore) GetPeers(hash dht.ID) ([]dht.Peer, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.readPeersLocked(hash)
}

// readPeersLocked loads the swarm file and decodes it, discarding any
// partial trailing record left by a crash mid-write. Callers must hold
// fs.mu.
func (fs *FileStore) readPeersLocked(hash dht.ID) ([]dht.Peer, error) {
	data, err := os.ReadFile(fs.path(hash))
	if os.IsNotExist(err) {
		return nil, ErrTorrentNotTracked
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", hash, err)
	}

	n := len(data) / peerRecordSize
	peers := make([]dht.Peer, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*peerRecordSize : (i+1)*peerRecordSize]
		peers = append(peers, decodePeerRecord(rec))
	}
	return peers, nil
}

func (fs *FileStore) AddPeer(hash dht.ID, peer dht.Peer) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	existing, err := fs.readPeersLocked(hash)
	if err != nil && err != ErrTorrentNotTracked {
		return false, err
	}

	for _, p := range existing {
		if p.Equal(peer) {
			return false, nil
		}
	}
	if len(existing) >= fs.maxPeers {
		logrus.WithFields(logrus.Fields{
			"function": "AddPeer",
			"hash":     hash.String(),
		}).Debug("swarm at capacity, rejecting announce")
		return false, nil
	}

	f, err := os.OpenFile(fs.path(hash), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("store: open %s: %w", hash, err)
	}
	defer f.Close()

	if _, err := f.Write(encodePeerRecord(peer)); err != nil {
		return false, fmt.Errorf("store: write %s: %w", hash, err)
	}
	return true, nil
}

func encodePeerRecord(p dht.Peer) []byte {
	ip4 := p.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	rec := make([]byte, peerRecordSize)
	copy(rec[0:4], ip4)
	rec[4] = byte(p.Port >> 8)
	rec[5] = byte(p.Port)
	if p.Seeder {
		rec[6] = 1
	}
	return rec
}

func decodePeerRecord(rec []byte) dht.Peer {
	ip := net.IPv4(rec[0], rec[1], rec[2], rec[3])
	port := uint16(rec[4])<<8 | uint16(rec[5])
	return dht.Peer{IP: ip, Port: port, Seeder: rec[6] != 0}
}
