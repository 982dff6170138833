package krpc

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chainflux/mldht/bloom"
	"github.com/chainflux/mldht/dht"
	"github.com/chainflux/mldht/store"
)

// Sender is the minimal outbound capability the engine needs from a
// transport. It is satisfied by transport.UDPTransport as well as any
// test double.
type Sender interface {
	Send(b []byte, addr *net.UDPAddr) error
}

// Engine dispatches inbound KRPC datagrams against a routing table and
// peer store, and originates outbound queries on behalf of callers such
// as Maintainer. It is the only stateful half of the krpc package; the
// Decode* and Encode* functions in codec.go remain pure functions of their
// arguments.
type Engine struct {
	selfID  dht.ID
	table   *dht.RoutingTable
	store   store.Store
	tokens  *dht.TokenIssuer
	sender  Sender
	txns    *transactionTable
	k       int
	timeout time.Duration
	filter  *bloom.Filter

	txSalt    [2]byte
	txCounter uint32
}

// SetPeerFilter attaches an optional estimator that observes every
// announcing IP. It is consulted by nothing on the query path; callers
// such as the admin stats surface read it independently. Passing nil
// detaches it.
func (e *Engine) SetPeerFilter(f *bloom.Filter) {
	e.filter = f
}

// NewEngine builds an Engine. k is the routing table's bucket size, used
// to size find_node/get_peers replies.
func NewEngine(selfID dht.ID, table *dht.RoutingTable, st store.Store, sender Sender, k int) *Engine {
	salt := uuid.New()
	return &Engine{
		selfID:  selfID,
		table:   table,
		store:   st,
		tokens:  dht.NewTokenIssuer(),
		sender:  sender,
		txns:    newTransactionTable(),
		k:       k,
		timeout: defaultTransactionTimeout,
		txSalt:  [2]byte{salt[0], salt[1]},
	}
}

// HandleDatagram is the entry point for every inbound UDP packet. It never
// returns an error to the caller: malformed or unsolicited messages are
// logged and dropped, exactly as BEP-5 implementations must tolerate
// arbitrary garbage from the network.
func (e *Engine) HandleDatagram(data []byte, from *net.UDPAddr) {
	raw, err := DecodeRaw(data)
	if err != nil {
		if raw != nil && raw.Type == typeQuery {
			e.replyError(from, raw.TransactionID, ErrCodeUnknownMethod, ErrMessageUnknownMeth)
			return
		}
		logrus.WithFields(logrus.Fields{
			"function": "HandleDatagram",
			"address":  from.String(),
			"error":    err,
		}).Debug("dropping malformed datagram")
		return
	}

	switch raw.Type {
	case typeQuery:
		e.handleQuery(raw, from)
	case typeResponse, typeError:
		e.handleReply(raw, from)
	}
}

func (e *Engine) handleQuery(raw *RawMessage, from *net.UDPAddr) {
	q, err := DecodeQuery(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleQuery",
			"address":  from.String(),
			"error":    err,
		}).Debug("dropping malformed query")
		return
	}

	e.learn(q.SenderID, from)

	switch q.Method {
	case MethodPing:
		e.replyPing(q, from)
	case MethodFindNode:
		e.replyFindNode(q, from)
	case MethodGetPeers:
		e.replyGetPeers(q, from)
	case MethodAnnouncePeer:
		e.replyAnnouncePeer(q, from)
	}
}

func (e *Engine) handleReply(raw *RawMessage, from *net.UDPAddr) {
	pq, ok := e.txns.take(raw.TransactionID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "handleReply",
			"address":  from.String(),
		}).Debug("dropping unsolicited reply")
		return
	}

	if pq.Node != nil && pq.Node.Addr != nil {
		if !addrEqual(pq.Node.Addr, from) {
			logrus.WithFields(logrus.Fields{
				"function": "handleReply",
				"expected": pq.Node.Addr.String(),
				"actual":   from.String(),
			}).Warn("response address mismatch")
			return
		}
	}

	if raw.Type == typeError {
		kerr, err := DecodeError(raw, pq.Method)
		if err != nil {
			return
		}
		logrus.WithFields(logrus.Fields{
			"function": "handleReply",
			"method":   kerr.Method,
			"code":     kerr.Code,
			"message":  kerr.Message,
		}).Debug("query answered with error")
		return
	}

	resp, err := DecodeResponse(raw, pq.Method)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleReply",
			"address":  from.String(),
			"error":    err,
		}).Debug("dropping malformed response")
		return
	}

	e.learn(resp.SenderID, from)
	for _, n := range resp.Nodes {
		e.learn(n.ID, n.Addr)
	}
}

// learn adds a node observed on the wire (as a query sender or response
// source) to the routing table. Every inbound message is an opportunity
// to discover a node.
func (e *Engine) learn(id dht.ID, addr *net.UDPAddr) {
	if id.Equal(e.selfID) || addr == nil {
		return
	}
	if existing := e.table.FindNode(id); existing != nil {
		existing.Touch(dht.StatusGood)
		return
	}
	n := dht.NewNode(id, addr)
	n.Touch(dht.StatusGood)
	e.table.AddNode(n)
}

func (e *Engine) replyPing(q *Query, from *net.UDPAddr) {
	resp := &Response{TransactionID: q.TransactionID, Method: MethodPing, SenderID: e.selfID}
	e.sendResponse(resp, from)
}

func (e *Engine) replyFindNode(q *Query, from *net.UDPAddr) {
	resp := &Response{TransactionID: q.TransactionID, Method: MethodFindNode, SenderID: e.selfID}
	if exact := e.table.FindNode(q.Target); exact != nil {
		resp.Nodes = []*dht.Node{exact}
	} else {
		resp.Nodes = e.table.FindClosest(q.Target, e.k)
	}
	e.sendResponse(resp, from)
}

func (e *Engine) replyGetPeers(q *Query, from *net.UDPAddr) {
	resp := &Response{TransactionID: q.TransactionID, Method: MethodGetPeers, SenderID: e.selfID}
	resp.Token = e.tokens.Issue(from, 0, time.Now())

	if e.store != nil && e.store.TorrentExists(q.InfoHash) {
		peers, err := e.store.GetPeers(q.InfoHash)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "replyGetPeers",
				"error":    err,
			}).Warn("peer store lookup failed")
		} else {
			if q.NoSeed {
				peers = filterSeeds(peers)
			}
			resp.Peers = peers
		}
	}

	if resp.Peers == nil {
		resp.Nodes = e.table.FindClosest(q.InfoHash, e.k)
	}
	e.sendResponse(resp, from)
}

func filterSeeds(peers []dht.Peer) []dht.Peer {
	out := make([]dht.Peer, 0, len(peers))
	for _, p := range peers {
		if !p.Seeder {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) replyAnnouncePeer(q *Query, from *net.UDPAddr) {
	if !e.tokens.Validate(from, q.Token, time.Now()) {
		e.replyError(from, q.TransactionID, ErrCodeProtocol, ErrMessageInvalidTok)
		return
	}

	port := q.Port
	if q.ImpliedPort {
		port = uint16(from.Port)
	}
	peer := dht.Peer{IP: from.IP, Port: port, Seeder: q.Seed}

	if e.filter != nil {
		e.filter.InsertIP(from.IP)
	}

	if e.store != nil {
		if _, err := e.store.AddPeer(q.InfoHash, peer); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "replyAnnouncePeer",
				"error":    err,
			}).Warn("peer store write failed")
		}
	}

	resp := &Response{TransactionID: q.TransactionID, Method: MethodAnnouncePeer, SenderID: e.selfID}
	e.sendResponse(resp, from)
}

func (e *Engine) sendResponse(resp *Response, to *net.UDPAddr) {
	b, err := EncodeResponse(resp, e.selfID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"function": "sendResponse", "error": err}).Warn("encode failed")
		return
	}
	if err := e.sender.Send(b, to); err != nil {
		logrus.WithFields(logrus.Fields{"function": "sendResponse", "error": err}).Debug("send failed")
	}
}

func (e *Engine) replyError(to *net.UDPAddr, tid []byte, code int, message string) {
	b, err := EncodeError(&Error{TransactionID: tid, Code: code, Message: message})
	if err != nil {
		return
	}
	_ = e.sender.Send(b, to)
}

// SendQuery originates an outbound query to node, recording it in the
// transaction table so the eventual response can be correlated.
func (e *Engine) SendQuery(method string, node *dht.Node, build func(*Query)) error {
	tid, ok := e.reserveTransactionID(method, node)
	if !ok {
		return fmt.Errorf("krpc: no free transaction ID")
	}

	q := &Query{
		TransactionID: tid,
		Method:        method,
		SenderID:      e.selfID,
	}
	if build != nil {
		build(q)
	}

	b, err := EncodeQuery(q, e.selfID)
	if err != nil {
		e.txns.take(tid)
		return err
	}

	if err := e.sender.Send(b, node.Addr); err != nil {
		e.txns.take(tid)
		return err
	}
	return nil
}

// reserveTransactionID generates the next transaction ID from a
// monotonic counter salted once at startup with a random value, and
// atomically records it as outstanding. If the 2-byte ID space wraps
// around into a still-outstanding transaction it keeps advancing the
// counter until a free ID is found, bounded by the size of that space.
func (e *Engine) reserveTransactionID(method string, node *dht.Node) ([]byte, bool) {
	now := time.Now()
	for attempt := 0; attempt < 1<<16; attempt++ {
		n := atomic.AddUint32(&e.txCounter, 1)
		tid := []byte{byte(n>>8) ^ e.txSalt[0], byte(n) ^ e.txSalt[1]}
		if e.txns.tryAdd(tid, method, node, now) {
			return tid, true
		}
	}
	return nil, false
}

// ReapTimeouts drops outstanding queries older than the engine's
// transaction timeout. Called periodically by Maintainer.
func (e *Engine) ReapTimeouts() []dht.ID {
	expired := e.txns.reapTimeouts(e.timeout, time.Now())
	ids := make([]dht.ID, 0, len(expired))
	for _, pq := range expired {
		if pq.Node != nil {
			ids = append(ids, pq.Node.ID)
		}
	}
	return ids
}

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
