package krpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBootstrapSendsFindNodeToEachHost(t *testing.T) {
	engine, _, sender, _ := newTestEngine(t, 8)

	engine.Bootstrap([]string{"127.0.0.1", "127.0.0.1"}, []int{6881, 6882})

	assert.Equal(t, 2, sender.count())
	assert.Equal(t, 2, engine.txns.len())
}

func TestBootstrapMismatchedListsSendsNothing(t *testing.T) {
	engine, _, sender, _ := newTestEngine(t, 8)

	engine.Bootstrap([]string{"127.0.0.1", "127.0.0.1"}, []int{6881})

	assert.Equal(t, 0, sender.count())
}

func TestBootstrapSkipsUnresolvableHost(t *testing.T) {
	engine, _, sender, _ := newTestEngine(t, 8)

	// "::1" combined with ":6881" via host:port formatting yields an
	// ambiguous address string that net.ResolveUDPAddr rejects outright,
	// without needing a real DNS lookup.
	engine.Bootstrap([]string{"::1"}, []int{6881})

	assert.Equal(t, 0, sender.count())
	assert.Equal(t, 0, engine.txns.len())
}
