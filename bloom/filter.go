package bloom

import (
	"crypto/sha1"
	"math"
	"net"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// k is the number of hash indices set per insert and used by estimate's
// formula; m is the filter's bit width. Both match the prototype this
// estimator is grounded on.
const (
	k = 2
	m = 2048
)

// Filter is a fixed-size, two-hash Bloom filter used only to estimate
// cardinality, never membership. It is safe for concurrent use.
type Filter struct {
	mu   sync.Mutex
	bits *bitset.BitSet
}

// New returns an empty Filter.
func New() *Filter {
	return &Filter{bits: bitset.New(m)}
}

// InsertIP records ip's presence. IPv4 and IPv6 addresses are both
// accepted; only their SHA1 digest is used.
func (f *Filter) InsertIP(ip net.IP) {
	sum := sha1.Sum([]byte(ip))

	idx1 := (uint(sum[0]) | uint(sum[1])<<8) % m
	idx2 := (uint(sum[2]) | uint(sum[3])<<8) % m

	f.mu.Lock()
	defer f.mu.Unlock()
	f.bits.Set(idx1)
	f.bits.Set(idx2)
}

// Estimate returns the approximate number of distinct IPs inserted, using
// the standard zero-bits cardinality estimator for a k=2 Bloom filter. The
// result is approximate by construction and must never be used for
// anything but display.
func (f *Filter) Estimate() float64 {
	f.mu.Lock()
	zeroBits := m - f.bits.Count()
	f.mu.Unlock()

	if zeroBits >= m {
		return 0
	}
	c := float64(zeroBits)
	if c <= 0 {
		return 0
	}
	return math.Log(c/m) / (k * math.Log(1-1.0/m))
}
