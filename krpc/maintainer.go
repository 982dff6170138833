package krpc

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chainflux/mldht/dht"
)

// MaintainerConfig tunes the periodic upkeep Maintainer performs.
type MaintainerConfig struct {
	// HeartbeatInterval is how often the refresh and reap passes run.
	HeartbeatInterval time.Duration
	// StaleAfter is how long a bucket may go unrefreshed before Refresh
	// picks it for a lookup.
	StaleAfter time.Duration
	// TransactionTimeout is how long an outbound query waits for a reply.
	TransactionTimeout time.Duration
}

// DefaultMaintainerConfig matches the node's default HEARTBEAT interval.
func DefaultMaintainerConfig() *MaintainerConfig {
	return &MaintainerConfig{
		HeartbeatInterval:  5 * time.Minute,
		StaleAfter:         15 * time.Minute,
		TransactionTimeout: defaultTransactionTimeout,
	}
}

// Maintainer drives the engine's periodic work: refreshing stale buckets
// by originating find_node lookups against random targets in their
// range, and reaping outbound queries that never received a reply. It
// lives in this package, not dht, because it must originate queries
// through an Engine and dht must not import krpc.
type Maintainer struct {
	engine *Engine
	table  *dht.RoutingTable
	config *MaintainerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	active bool
}

// NewMaintainer builds a Maintainer. config may be nil to take defaults.
func NewMaintainer(engine *Engine, table *dht.RoutingTable, config *MaintainerConfig) *Maintainer {
	if config == nil {
		config = DefaultMaintainerConfig()
	}
	engine.timeout = config.TransactionTimeout

	ctx, cancel := context.WithCancel(context.Background())
	return &Maintainer{
		engine: engine,
		table:  table,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the background heartbeat loop. Calling Start twice is a
// no-op.
func (m *Maintainer) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}
	m.active = true
	m.wg.Add(1)
	go m.run()
}

// Stop halts the heartbeat loop and waits for it to exit.
func (m *Maintainer) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Maintainer) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.heartbeat()
		}
	}
}

// heartbeat performs one refresh-and-reap pass; run calls it on every
// ticker tick.
func (m *Maintainer) heartbeat() {
	m.refreshStaleBuckets()
	m.reapOutstanding()
}

func (m *Maintainer) refreshStaleBuckets() {
	targets := m.table.Refresh(m.config.StaleAfter)
	if len(targets) == 0 {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "refreshStaleBuckets",
		"targets":  len(targets),
	}).Debug("refreshing stale buckets")

	for _, target := range targets {
		closest := m.table.FindClosest(target, 3)
		for _, node := range closest {
			t := target
			err := m.engine.SendQuery(MethodFindNode, node, func(q *Query) {
				q.Target = t
			})
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "refreshStaleBuckets",
					"node":     node.ID.String(),
					"error":    err,
				}).Debug("refresh query send failed")
			}
		}
	}
}

func (m *Maintainer) reapOutstanding() {
	timedOut := m.engine.ReapTimeouts()
	if len(timedOut) == 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "reapOutstanding",
		"count":    len(timedOut),
	}).Debug("reaped timed-out transactions")
}
