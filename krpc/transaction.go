package krpc

import (
	"sync"
	"time"

	"github.com/chainflux/mldht/dht"
)

// defaultTransactionTimeout is how long an outbound query waits for a
// reply before it is reaped as timed out.
const defaultTransactionTimeout = 15 * time.Second

// pendingQuery is what the engine remembers about a query it originated,
// so that the eventual response or error (or its absence) can be
// correlated back to the node it was sent to and the method it was for.
type pendingQuery struct {
	Method string
	Node   *dht.Node
	SentAt time.Time
}

// transactionTable tracks outstanding queries by transaction ID. It is
// the only mutable state in the krpc package that isn't already guarded
// by the dht package's own locking, so it gets its own mutex.
type transactionTable struct {
	mu      sync.RWMutex
	pending map[string]pendingQuery
}

func newTransactionTable() *transactionTable {
	return &transactionTable{pending: make(map[string]pendingQuery)}
}

func (t *transactionTable) add(tid []byte, method string, node *dht.Node, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[string(tid)] = pendingQuery{Method: method, Node: node, SentAt: now}
}

// tryAdd records tid only if it is not already outstanding, reporting
// whether it did. Callers generating transaction IDs from a small space
// (BEP-5's 2-byte convention) use this to detect a collision with an
// in-flight query before sending.
func (t *transactionTable) tryAdd(tid []byte, method string, node *dht.Node, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := string(tid)
	if _, exists := t.pending[key]; exists {
		return false
	}
	t.pending[key] = pendingQuery{Method: method, Node: node, SentAt: now}
	return true
}

// take looks up and removes the pending entry for tid, reporting whether
// one existed. A response or error with no matching entry is unsolicited
// and must be dropped rather than acted on.
func (t *transactionTable) take(tid []byte) (pendingQuery, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pq, ok := t.pending[string(tid)]
	if ok {
		delete(t.pending, string(tid))
	}
	return pq, ok
}

// reapTimeouts removes and returns every entry older than timeout,
// relative to now.
func (t *transactionTable) reapTimeouts(timeout time.Duration, now time.Time) []pendingQuery {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []pendingQuery
	for tid, pq := range t.pending {
		if now.Sub(pq.SentAt) >= timeout {
			expired = append(expired, pq)
			delete(t.pending, tid)
		}
	}
	return expired
}

func (t *transactionTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}
