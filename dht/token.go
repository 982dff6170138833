package dht

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"math/big"
	"net"
	"time"
)

// tokenWindow is the width of one token epoch: tokens rotate every 5
// minutes, and are accepted for the current and immediately preceding
// window (5-10 minutes of validity).
const tokenWindow = 5 * time.Minute

// Token is an unforgeable-without-the-secret, time-rotating write
// authorization value returned by get_peers and consumed by announce_peer.
type Token [sha1.Size]byte

// Equal reports byte equality between two tokens.
func (t Token) Equal(other Token) bool { return t == other }

// TokenIssuer derives and validates per-querier tokens from a single
// process-wide secret generated at startup and never rotated; freshness
// comes from the time component, not the secret.
//
// The derivation (decimal-sum-then-SHA1) intentionally matches the
// prototype's wire format for compatibility. It is a weak construction:
// summation loses information, so this is not a keyed MAC. Kept for wire
// compatibility; a proper hmac.New(sha1.New, secret) would be stronger.
type TokenIssuer struct {
	secret *big.Int
}

// NewTokenIssuer generates a fresh 160-bit process-wide token secret.
func NewTokenIssuer() *TokenIssuer {
	secret, err := rand.Int(rand.Reader, maxID160())
	if err != nil {
		// crypto/rand failure leaves tokens predictable; fail safe toward an
		// all-zero secret rather than panicking the caller.
		secret = big.NewInt(0)
	}
	return &TokenIssuer{secret: secret}
}

// epoch returns floor(now/300s) + skew.
func epoch(now time.Time, skew int) int64 {
	return now.Unix()/int64(tokenWindow.Seconds()) + int64(skew)
}

// addrSum folds an IPv4 address (as a little-endian u32) and UDP port into
// the token's running sum, matching the prototype's struct.unpack("<L", ...)
// interpretation of the address.
func addrSum(addr *net.UDPAddr) (ip uint32, port uint16) {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	return binary.LittleEndian.Uint32(ip4), uint16(addr.Port)
}

// Issue derives the token for addr at the given skew (0 for "now", -1 for
// the previous 5-minute window).
func (ti *TokenIssuer) Issue(addr *net.UDPAddr, skew int, now time.Time) Token {
	ip, port := addrSum(addr)

	sum := big.NewInt(epoch(now, skew))
	sum.Add(sum, big.NewInt(int64(ip)))
	sum.Add(sum, big.NewInt(int64(port)))
	sum.Add(sum, ti.secret)

	return sha1.Sum([]byte(sum.String()))
}

// Validate reports whether token was issued for addr within the last 5-10
// minutes (skew 0 or -1).
func (ti *TokenIssuer) Validate(addr *net.UDPAddr, token Token, now time.Time) bool {
	return token.Equal(ti.Issue(addr, 0, now)) || token.Equal(ti.Issue(addr, -1, now))
}
