package krpc

import (
	"fmt"

	"github.com/zeebo/bencode"

	"github.com/chainflux/mldht/dht"
)

const (
	typeQuery    = "q"
	typeResponse = "r"
	typeError    = "e"
)

// wireMsg is the top-level KRPC dictionary shape, bencode-tagged the way
// the struct-tagged KRPC message model in the reference pack (yarikk-dht's
// krpc.Msg/MsgArgs/Return) tags its own envelope. Fields are declared in
// the lexicographic order of their tag names, matching canonical bencode
// dictionary key ordering.
type wireMsg struct {
	A *wireArgs     `bencode:"a,omitempty"`
	E []interface{} `bencode:"e,omitempty"`
	Q string        `bencode:"q,omitempty"`
	R *wireReturn   `bencode:"r,omitempty"`
	T string        `bencode:"t"`
	Y string        `bencode:"y"`
}

// wireArgs covers every named argument used by any of the four query
// methods. Only the subset relevant to the method being sent is
// populated on encode; only the subset relevant to the method being
// decoded is read back.
type wireArgs struct {
	ID          string `bencode:"id"`
	ImpliedPort int64  `bencode:"implied_port,omitempty"`
	InfoHash    string `bencode:"info_hash,omitempty"`
	NoSeed      int64  `bencode:"noseed,omitempty"`
	Port        *int64 `bencode:"port,omitempty"`
	Scrape      int64  `bencode:"scrape,omitempty"`
	Seed        int64  `bencode:"seed,omitempty"`
	Target      string `bencode:"target,omitempty"`
	Token       string `bencode:"token,omitempty"`
}

// wireReturn covers every field any response may carry. Which of
// Nodes/Values is populated depends on the method being replied to, not
// on this type.
type wireReturn struct {
	ID     string   `bencode:"id"`
	Nodes  string   `bencode:"nodes,omitempty"`
	Token  string   `bencode:"token,omitempty"`
	Values []string `bencode:"values,omitempty"`
}

// RawMessage is the minimally-parsed shape of an inbound KRPC datagram:
// just enough to tell a query from a response from an error, and to
// recover the transaction ID. Everything method- and argument-specific is
// decoded afterward by the engine, once it knows (from the transaction
// table, for responses/errors) which query a reply belongs to.
type RawMessage struct {
	TransactionID []byte
	Type          string // "q", "r", "e"
	Query         string // set only when Type == "q"
	args          *wireArgs
	result        *wireReturn
	errList       []interface{}
}

// DecodeRaw performs the stateless, non-authoritative half of message
// decoding: bencode unmarshal plus extraction of the envelope fields. It
// never consults the transaction table and never checks the sender's
// address, so it is safe to call, and to test, without an Engine.
func DecodeRaw(data []byte) (*RawMessage, error) {
	var w wireMsg
	if err := bencode.DecodeBytes(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if w.T == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrMalformedMessage)
	}
	if w.Y == "" {
		return nil, fmt.Errorf("%w: missing message type", ErrMalformedMessage)
	}

	msg := &RawMessage{
		TransactionID: []byte(w.T),
		Type:          w.Y,
	}

	switch w.Y {
	case typeQuery:
		if w.Q == "" {
			return nil, fmt.Errorf("%w: missing query method", ErrMalformedMessage)
		}
		msg.Query = w.Q
		if !isKnownMethod(w.Q) {
			return msg, ErrUnknownMethod
		}
		if w.A == nil {
			return nil, fmt.Errorf("%w: missing query arguments", ErrMalformedMessage)
		}
		msg.args = w.A
	case typeResponse:
		if w.R == nil {
			return nil, fmt.Errorf("%w: missing response dict", ErrMalformedMessage)
		}
		msg.result = w.R
	case typeError:
		if len(w.E) == 0 {
			return nil, fmt.Errorf("%w: missing error list", ErrMalformedMessage)
		}
		msg.errList = w.E
	default:
		return nil, fmt.Errorf("%w: unrecognized message type %q", ErrMalformedMessage, w.Y)
	}

	return msg, nil
}

// DecodeQuery converts a RawMessage of Type "q" into a Query. The caller
// is expected to have already validated msg.Query via isKnownMethod.
func DecodeQuery(msg *RawMessage) (*Query, error) {
	if msg.args.ID == "" {
		return nil, fmt.Errorf("%w: missing sender id", ErrMalformedMessage)
	}
	senderID, err := dht.IDFromBytes([]byte(msg.args.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	q := &Query{
		TransactionID: msg.TransactionID,
		Method:        msg.Query,
		SenderID:      senderID,
	}

	switch msg.Query {
	case MethodFindNode:
		if msg.args.Target == "" {
			return nil, fmt.Errorf("%w: find_node missing target", ErrMalformedMessage)
		}
		target, err := dht.IDFromBytes([]byte(msg.args.Target))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		q.Target = target

	case MethodGetPeers:
		if msg.args.InfoHash == "" {
			return nil, fmt.Errorf("%w: get_peers missing info_hash", ErrMalformedMessage)
		}
		infoHash, err := dht.IDFromBytes([]byte(msg.args.InfoHash))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		q.InfoHash = infoHash
		q.NoSeed = msg.args.NoSeed != 0
		q.Scrape = msg.args.Scrape != 0

	case MethodAnnouncePeer:
		if msg.args.InfoHash == "" {
			return nil, fmt.Errorf("%w: announce_peer missing info_hash", ErrMalformedMessage)
		}
		infoHash, err := dht.IDFromBytes([]byte(msg.args.InfoHash))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		q.InfoHash = infoHash

		if msg.args.Port == nil {
			return nil, fmt.Errorf("%w: announce_peer missing port", ErrMalformedMessage)
		}
		q.Port = uint16(*msg.args.Port)

		q.ImpliedPort = msg.args.ImpliedPort != 0
		q.Seed = msg.args.Seed != 0

		if msg.args.Token == "" {
			return nil, fmt.Errorf("%w: announce_peer missing token", ErrMalformedMessage)
		}
		if len(msg.args.Token) != len(dht.Token{}) {
			return nil, fmt.Errorf("%w: malformed token", ErrMalformedMessage)
		}
		copy(q.Token[:], msg.args.Token)

	case MethodPing:
		// no additional arguments
	}

	return q, nil
}

// DecodeResponse converts a RawMessage of Type "r" into a Response. method
// comes from the outstanding transaction this response correlates to,
// since the wire format does not repeat it.
func DecodeResponse(msg *RawMessage, method string) (*Response, error) {
	if msg.result.ID == "" {
		return nil, fmt.Errorf("%w: missing sender id", ErrMalformedMessage)
	}
	senderID, err := dht.IDFromBytes([]byte(msg.result.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	resp := &Response{
		TransactionID: msg.TransactionID,
		Method:        method,
		SenderID:      senderID,
	}

	if msg.result.Nodes != "" {
		nodes, err := decodeCompactNodes([]byte(msg.result.Nodes))
		if err != nil {
			return nil, err
		}
		resp.Nodes = nodes
	}

	if msg.result.Values != nil {
		peers := make([]dht.Peer, 0, len(msg.result.Values))
		for _, v := range msg.result.Values {
			p, err := decodeCompactPeer([]byte(v))
			if err != nil {
				return nil, err
			}
			peers = append(peers, p)
		}
		resp.Peers = peers
	}

	if msg.result.Token != "" {
		if len(msg.result.Token) != len(dht.Token{}) {
			return nil, fmt.Errorf("%w: malformed token", ErrMalformedMessage)
		}
		copy(resp.Token[:], msg.result.Token)
	}

	return resp, nil
}

// DecodeError converts a RawMessage of Type "e" into an Error.
func DecodeError(msg *RawMessage, method string) (*Error, error) {
	if len(msg.errList) != 2 {
		return nil, fmt.Errorf("%w: error list must have 2 elements", ErrMalformedMessage)
	}
	code, ok := msg.errList[0].(int64)
	if !ok {
		if c, ok := msg.errList[0].(int); ok {
			code = int64(c)
		} else {
			return nil, fmt.Errorf("%w: error code not an integer", ErrMalformedMessage)
		}
	}
	text, ok := msg.errList[1].(string)
	if !ok {
		return nil, fmt.Errorf("%w: error message not a string", ErrMalformedMessage)
	}
	return &Error{
		TransactionID: msg.TransactionID,
		Method:        method,
		Code:          int(code),
		Message:       text,
	}, nil
}

// EncodeQuery bencodes a Query via the tagged wireMsg/wireArgs model.
func EncodeQuery(q *Query, selfID dht.ID) ([]byte, error) {
	args := &wireArgs{ID: string(selfID.Bytes())}

	switch q.Method {
	case MethodFindNode:
		args.Target = string(q.Target.Bytes())
	case MethodGetPeers:
		args.InfoHash = string(q.InfoHash.Bytes())
		if q.NoSeed {
			args.NoSeed = 1
		}
		if q.Scrape {
			args.Scrape = 1
		}
	case MethodAnnouncePeer:
		args.InfoHash = string(q.InfoHash.Bytes())
		port := int64(q.Port)
		args.Port = &port
		if q.ImpliedPort {
			args.ImpliedPort = 1
		}
		if q.Seed {
			args.Seed = 1
		}
		args.Token = string(q.Token[:])
	case MethodPing:
		// id only
	default:
		return nil, fmt.Errorf("krpc: cannot encode unknown method %q", q.Method)
	}

	w := wireMsg{
		T: string(q.TransactionID),
		Y: typeQuery,
		Q: q.Method,
		A: args,
	}
	return bencode.EncodeBytes(w)
}

// EncodeResponse bencodes a Response via the tagged wireMsg/wireReturn
// model. Which fields are present depends on the method the caller is
// replying to, determined by the engine from the inbound query it is
// answering.
func EncodeResponse(r *Response, selfID dht.ID) ([]byte, error) {
	res := &wireReturn{ID: string(selfID.Bytes())}

	switch r.Method {
	case MethodFindNode:
		res.Nodes = string(encodeCompactNodes(r.Nodes))
	case MethodGetPeers:
		if r.Peers != nil {
			values := make([]string, 0, len(r.Peers))
			for _, p := range r.Peers {
				rec, err := encodeCompactPeer(p)
				if err != nil {
					continue
				}
				values = append(values, string(rec))
			}
			res.Values = values
		} else {
			res.Nodes = string(encodeCompactNodes(r.Nodes))
		}
		res.Token = string(r.Token[:])
	case MethodAnnouncePeer, MethodPing:
		// id only
	default:
		return nil, fmt.Errorf("krpc: cannot encode response for unknown method %q", r.Method)
	}

	w := wireMsg{
		T: string(r.TransactionID),
		Y: typeResponse,
		R: res,
	}
	return bencode.EncodeBytes(w)
}

// EncodeError bencodes an Error via the tagged wireMsg model.
func EncodeError(e *Error) ([]byte, error) {
	w := wireMsg{
		T: string(e.TransactionID),
		Y: typeError,
		E: []interface{}{int64(e.Code), e.Message},
	}
	return bencode.EncodeBytes(w)
}
