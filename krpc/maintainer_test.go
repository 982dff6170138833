package krpc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainflux/mldht/dht"
)

func TestMaintainerRefreshStaleBucketsSendsFindNode(t *testing.T) {
	engine, table, sender, _ := newTestEngine(t, 8)

	addr := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 6881}
	table.AddNode(dht.NewNode(dht.IDFromName([]byte("seed")), addr))

	m := NewMaintainer(engine, table, &MaintainerConfig{
		HeartbeatInterval:  time.Hour,
		StaleAfter:         -1 * time.Second, // everything is stale
		TransactionTimeout: defaultTransactionTimeout,
	})

	m.refreshStaleBuckets()
	assert.Greater(t, sender.count(), 0, "a stale bucket should trigger at least one find_node query")
}

func TestMaintainerReapOutstandingClearsTimedOutTransactions(t *testing.T) {
	engine, table, _, _ := newTestEngine(t, 8)
	m := NewMaintainer(engine, table, &MaintainerConfig{
		HeartbeatInterval:  time.Hour,
		StaleAfter:         time.Hour,
		TransactionTimeout: 5 * time.Millisecond,
	})

	addr := &net.UDPAddr{IP: net.IPv4(9, 9, 9, 9), Port: 6881}
	node := dht.NewNode(dht.IDFromName([]byte("n")), addr)
	require.NoError(t, engine.SendQuery(MethodPing, node, nil))
	assert.Equal(t, 1, engine.txns.len())

	time.Sleep(20 * time.Millisecond)
	m.reapOutstanding()
	assert.Equal(t, 0, engine.txns.len())
}

func TestMaintainerStartStopIsIdempotentAndClean(t *testing.T) {
	engine, table, _, _ := newTestEngine(t, 8)
	m := NewMaintainer(engine, table, &MaintainerConfig{
		HeartbeatInterval:  10 * time.Millisecond,
		StaleAfter:         time.Hour,
		TransactionTimeout: defaultTransactionTimeout,
	})

	m.Start()
	m.Start() // second call must be a no-op, not a second goroutine
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop() // must not block or panic when already stopped
}

func TestNewMaintainerAppliesDefaultConfigWhenNil(t *testing.T) {
	engine, table, _, _ := newTestEngine(t, 8)
	m := NewMaintainer(engine, table, nil)
	assert.Equal(t, DefaultMaintainerConfig().HeartbeatInterval, m.config.HeartbeatInterval)
	assert.Equal(t, DefaultMaintainerConfig().StaleAfter, m.config.StaleAfter)
}
