package dht

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenIdempotentWithinWindow(t *testing.T) {
	ti := NewTokenIssuer()
	addr, _ := net.ResolveUDPAddr("udp4", "10.0.0.1:4000")
	// Anchor to a window boundary so now and now+30s share one window.
	now := time.Unix(0, 0)

	a := ti.Issue(addr, 0, now)
	b := ti.Issue(addr, 0, now.Add(30*time.Second))
	assert.Equal(t, a, b, "token should be stable within the same 5-minute window")
}

func TestTokenDriftTolerance(t *testing.T) {
	ti := NewTokenIssuer()
	addr, _ := net.ResolveUDPAddr("udp4", "10.0.0.1:4000")

	// Anchor to an exact 5-minute window boundary so the elapsed windows
	// below are unambiguous regardless of wall-clock phase.
	issued := time.Unix(0, 0)

	tok := ti.Issue(addr, 0, issued)

	assert.True(t, ti.Validate(addr, tok, issued.Add(1*time.Minute)))
	assert.True(t, ti.Validate(addr, tok, issued.Add(9*time.Minute)))
	assert.False(t, ti.Validate(addr, tok, issued.Add(11*time.Minute)))
}

func TestTokenBoundToAddress(t *testing.T) {
	ti := NewTokenIssuer()
	a1, _ := net.ResolveUDPAddr("udp4", "10.0.0.1:4000")
	a2, _ := net.ResolveUDPAddr("udp4", "10.0.0.2:4000")
	now := time.Now()

	tok := ti.Issue(a1, 0, now)
	assert.False(t, ti.Validate(a2, tok, now), "a token must not validate for a different address")
}
