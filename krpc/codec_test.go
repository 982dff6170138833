package krpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"

	"github.com/chainflux/mldht/dht"
)

func mustTransactionID() []byte { return []byte("aa") }

func TestEncodeDecodePingQueryRoundTrip(t *testing.T) {
	selfID := dht.IDFromName([]byte("self"))
	q := &Query{
		TransactionID: mustTransactionID(),
		Method:        MethodPing,
		SenderID:      selfID,
	}

	wire, err := EncodeQuery(q, selfID)
	require.NoError(t, err)

	raw, err := DecodeRaw(wire)
	require.NoError(t, err)
	assert.Equal(t, typeQuery, raw.Type)
	assert.Equal(t, MethodPing, raw.Query)

	got, err := DecodeQuery(raw)
	require.NoError(t, err)
	assert.Equal(t, q.TransactionID, got.TransactionID)
	assert.True(t, got.SenderID.Equal(selfID))
}

func TestEncodeDecodeFindNodeQueryRoundTrip(t *testing.T) {
	selfID := dht.IDFromName([]byte("self"))
	target := dht.IDFromName([]byte("target"))
	q := &Query{
		TransactionID: mustTransactionID(),
		Method:        MethodFindNode,
		SenderID:      selfID,
		Target:        target,
	}

	wire, err := EncodeQuery(q, selfID)
	require.NoError(t, err)

	raw, err := DecodeRaw(wire)
	require.NoError(t, err)
	got, err := DecodeQuery(raw)
	require.NoError(t, err)
	assert.True(t, got.Target.Equal(target))
}

func TestEncodeDecodeGetPeersQueryRoundTrip(t *testing.T) {
	selfID := dht.IDFromName([]byte("self"))
	infoHash := dht.IDFromName([]byte("torrent"))
	q := &Query{
		TransactionID: mustTransactionID(),
		Method:        MethodGetPeers,
		SenderID:      selfID,
		InfoHash:      infoHash,
		NoSeed:        true,
	}

	wire, err := EncodeQuery(q, selfID)
	require.NoError(t, err)

	raw, err := DecodeRaw(wire)
	require.NoError(t, err)
	got, err := DecodeQuery(raw)
	require.NoError(t, err)
	assert.True(t, got.InfoHash.Equal(infoHash))
	assert.True(t, got.NoSeed)
	assert.False(t, got.Scrape)
}

func TestEncodeDecodeAnnouncePeerQueryRoundTrip(t *testing.T) {
	selfID := dht.IDFromName([]byte("self"))
	infoHash := dht.IDFromName([]byte("torrent"))
	var tok dht.Token
	copy(tok[:], "0123456789abcdef0123")

	q := &Query{
		TransactionID: mustTransactionID(),
		Method:        MethodAnnouncePeer,
		SenderID:      selfID,
		InfoHash:      infoHash,
		Port:          6881,
		ImpliedPort:   false,
		Seed:          true,
		Token:         tok,
	}

	wire, err := EncodeQuery(q, selfID)
	require.NoError(t, err)

	raw, err := DecodeRaw(wire)
	require.NoError(t, err)
	got, err := DecodeQuery(raw)
	require.NoError(t, err)
	assert.True(t, got.InfoHash.Equal(infoHash))
	assert.Equal(t, uint16(6881), got.Port)
	assert.True(t, got.Seed)
	assert.Equal(t, tok, got.Token)
}

func TestEncodeDecodeFindNodeResponseRoundTrip(t *testing.T) {
	selfID := dht.IDFromName([]byte("self"))
	addr := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 6881}
	nodes := []*dht.Node{
		dht.NewNode(dht.IDFromName([]byte("n1")), addr),
		dht.NewNode(dht.IDFromName([]byte("n2")), addr),
	}
	r := &Response{
		TransactionID: mustTransactionID(),
		Method:        MethodFindNode,
		SenderID:      selfID,
		Nodes:         nodes,
	}

	wire, err := EncodeResponse(r, selfID)
	require.NoError(t, err)

	raw, err := DecodeRaw(wire)
	require.NoError(t, err)
	assert.Equal(t, typeResponse, raw.Type)

	got, err := DecodeResponse(raw, MethodFindNode)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)
	assert.True(t, got.Nodes[0].ID.Equal(nodes[0].ID))
	assert.True(t, got.Nodes[1].ID.Equal(nodes[1].ID))
}

func TestEncodeDecodeGetPeersResponseWithValues(t *testing.T) {
	selfID := dht.IDFromName([]byte("self"))
	peers := []dht.Peer{
		{IP: net.IPv4(9, 9, 9, 9), Port: 1000},
	}
	var tok dht.Token
	copy(tok[:], "abcdefghijabcdefghij")

	r := &Response{
		TransactionID: mustTransactionID(),
		Method:        MethodGetPeers,
		SenderID:      selfID,
		Peers:         peers,
		Token:         tok,
	}

	wire, err := EncodeResponse(r, selfID)
	require.NoError(t, err)

	raw, err := DecodeRaw(wire)
	require.NoError(t, err)
	got, err := DecodeResponse(raw, MethodGetPeers)
	require.NoError(t, err)
	require.Len(t, got.Peers, 1)
	assert.True(t, got.Peers[0].IP.Equal(peers[0].IP))
	assert.Equal(t, tok, got.Token)
}

func TestEncodeDecodeGetPeersResponseWithNodesFallback(t *testing.T) {
	selfID := dht.IDFromName([]byte("self"))
	addr := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 6881}
	nodes := []*dht.Node{dht.NewNode(dht.IDFromName([]byte("n1")), addr)}
	var tok dht.Token
	copy(tok[:], "abcdefghijabcdefghij")

	r := &Response{
		TransactionID: mustTransactionID(),
		Method:        MethodGetPeers,
		SenderID:      selfID,
		Nodes:         nodes,
		Token:         tok,
	}

	wire, err := EncodeResponse(r, selfID)
	require.NoError(t, err)

	raw, err := DecodeRaw(wire)
	require.NoError(t, err)
	got, err := DecodeResponse(raw, MethodGetPeers)
	require.NoError(t, err)
	assert.Nil(t, got.Peers)
	require.Len(t, got.Nodes, 1)
}

func TestEncodeDecodeErrorRoundTrip(t *testing.T) {
	e := &Error{
		TransactionID: mustTransactionID(),
		Code:          ErrCodeProtocol,
		Message:       ErrMessageInvalidTok,
	}

	wire, err := EncodeError(e)
	require.NoError(t, err)

	raw, err := DecodeRaw(wire)
	require.NoError(t, err)
	assert.Equal(t, typeError, raw.Type)

	got, err := DecodeError(raw, MethodAnnouncePeer)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeProtocol, got.Code)
	assert.Equal(t, ErrMessageInvalidTok, got.Message)
}

func TestDecodeRawRejectsGarbage(t *testing.T) {
	_, err := DecodeRaw([]byte("not bencode"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeRawUnknownMethodStillReturnsQueryName(t *testing.T) {
	top := map[string]interface{}{
		"t": "aa",
		"y": "q",
		"q": "nonexistent_method",
		"a": map[string]interface{}{"id": string(dht.IDFromName([]byte("x")).Bytes())},
	}
	wire, err := bencode.EncodeBytes(top)
	require.NoError(t, err)

	msg, err := DecodeRaw(wire)
	require.ErrorIs(t, err, ErrUnknownMethod)
	require.NotNil(t, msg)
	assert.Equal(t, "nonexistent_method", msg.Query)
}

func TestDecodeRawMissingQueryKeyIsMalformed(t *testing.T) {
	top := map[string]interface{}{
		"t": "aa",
		"y": "q",
		"a": map[string]interface{}{"id": string(dht.IDFromName([]byte("x")).Bytes())},
	}
	wire, err := bencode.EncodeBytes(top)
	require.NoError(t, err)

	_, err = DecodeRaw(wire)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMessage)
	assert.NotErrorIs(t, err, ErrUnknownMethod)
}
