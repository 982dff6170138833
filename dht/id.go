package dht

import (
	"crypto/sha1"
	"errors"
	"math/big"
)

// IDLength is the fixed size, in bytes, of a DHT identifier (160 bits).
const IDLength = 20

// ErrMalformedID is returned when a byte slice cannot be interpreted as an ID.
var ErrMalformedID = errors.New("dht: malformed id: expected 20 bytes")

// ID is a 160-bit opaque identifier shared by nodes and info-hashes.
//
// Equality is byte equality. Ordering and distance are defined via the XOR
// metric, interpreted as an unsigned 160-bit integer (see Distance).
type ID [IDLength]byte

// IDFromBytes parses a 20-byte slice into an ID. It fails with ErrMalformedID
// if the slice is not exactly 20 bytes.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDLength {
		return id, ErrMalformedID
	}
	copy(id[:], b)
	return id, nil
}

// IDFromName derives a node ID from an arbitrary name via SHA-1, as specified
// for local node ID derivation at startup.
func IDFromName(name []byte) ID {
	sum := sha1.Sum(name)
	return ID(sum)
}

// Bytes returns the raw 20-byte representation of the ID.
func (id ID) Bytes() []byte {
	b := make([]byte, IDLength)
	copy(b, id[:])
	return b
}

// Int returns the big-endian unsigned integer view of the ID.
func (id ID) Int() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// String returns the lowercase hex encoding of the ID, matching the peer
// store's on-disk file naming convention.
func (id ID) String() string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 2*IDLength)
	for i, b := range id {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

// Equal reports whether two IDs are byte-identical.
func (id ID) Equal(other ID) bool {
	return id == other
}

// Distance computes the XOR metric d(a,b) between two IDs, interpreted as an
// unsigned 160-bit integer. Distance is symmetric and obeys the strict
// triangle inequality of the XOR metric.
func Distance(a, b ID) *big.Int {
	var x [IDLength]byte
	for i := range x {
		x[i] = a[i] ^ b[i]
	}
	return new(big.Int).SetBytes(x[:])
}

// closer reports whether a is strictly closer to target than b, breaking ties
// by returning false (stable order is the caller's responsibility).
func closer(target, a, b ID) bool {
	return Distance(target, a).Cmp(Distance(target, b)) < 0
}
