package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenBindsLocalAddr(t *testing.T) {
	tr, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer tr.Close()

	assert.NotNil(t, tr.LocalAddr())
	assert.Greater(t, tr.LocalAddr().Port, 0)
}

func TestServeDispatchesReceivedDatagram(t *testing.T) {
	tr, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer tr.Close()

	received := make(chan []byte, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tr.Serve(ctx, func(data []byte, addr *net.UDPAddr) {
			received <- data
		})
	}()

	sender, err := net.DialUDP("udp4", nil, tr.LocalAddr())
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case data := <-received:
		assert.Equal(t, "hello", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Serve to dispatch the datagram")
	}

	cancel()
	wg.Wait()
}

func TestServeDispatchesDatagramsInArrivalOrder(t *testing.T) {
	tr, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer tr.Close()

	const n = 20
	var seen []byte // unguarded: proves Serve calls handler on one goroutine, not one per datagram
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tr.Serve(ctx, func(data []byte, addr *net.UDPAddr) {
		seen = append(seen, data[0])
		if len(seen) == n {
			close(done)
		}
	})

	sender, err := net.DialUDP("udp4", nil, tr.LocalAddr())
	require.NoError(t, err)
	defer sender.Close()

	for i := 0; i < n; i++ {
		_, err := sender.Write([]byte{byte(i)})
		require.NoError(t, err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Serve to dispatch every datagram")
	}

	want := make([]byte, n)
	for i := range want {
		want[i] = byte(i)
	}
	assert.Equal(t, want, seen, "datagrams from one sender must be handled in arrival order")
}

func TestSendRoundTrip(t *testing.T) {
	a, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer a.Close()

	b, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer b.Close()

	err = a.Send([]byte("ping"), b.LocalAddr())
	require.NoError(t, err)

	buf := make([]byte, 16)
	_ = b.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := b.conn.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestCloseStopsServe(t *testing.T) {
	tr, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tr.Serve(context.Background(), func(data []byte, addr *net.UDPAddr) {})
		close(done)
	}()

	require.NoError(t, tr.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}
