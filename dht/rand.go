package dht

import (
	"crypto/rand"
	"math/big"
)

// randomIDInRange returns a uniformly random ID in the inclusive range
// [low, high], used to pick a refresh target within a stale bucket.
func randomIDInRange(low, high *big.Int) ID {
	span := new(big.Int).Sub(high, low)
	span.Add(span, big.NewInt(1))

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		// crypto/rand failure is not recoverable in a meaningful way here;
		// fall back to the range's low bound rather than panicking.
		n = big.NewInt(0)
	}
	n.Add(n, low)

	b := n.Bytes()
	var id ID
	copy(id[IDLength-len(b):], b)
	return id
}
