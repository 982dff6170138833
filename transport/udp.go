// Package transport provides the UDP socket the KRPC engine sends and
// receives datagrams over. It deliberately does not do NAT traversal,
// multi-network addressing, or any handshake: the wire protocol here is
// plain bencoded KRPC over IPv4 UDP.
package transport

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// DatagramHandler processes one inbound UDP payload from addr.
type DatagramHandler func(data []byte, addr *net.UDPAddr)

// Transport is the socket abstraction the krpc.Engine depends on. It is
// small enough that tests can substitute an in-memory double.
type Transport interface {
	Send(data []byte, addr *net.UDPAddr) error
	LocalAddr() *net.UDPAddr
	Close() error
}

// UDPTransport is the production Transport: a single IPv4 UDP socket
// read by one loop and written to by any number of goroutines.
type UDPTransport struct {
	conn   *net.UDPConn
	ctx    context.Context
	cancel context.CancelFunc
}

// Listen binds addr (e.g. ":6881") and returns a ready-to-serve transport.
func Listen(addr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &UDPTransport{conn: conn, ctx: ctx, cancel: cancel}, nil
}

// Serve reads datagrams until the context is cancelled or Close is
// called, dispatching each to handler synchronously on the read loop's own
// goroutine, in the order the socket delivered them.
func (t *UDPTransport) Serve(ctx context.Context, handler DatagramHandler) {
	buf := make([]byte, 2048) // BEP-5 messages are small; generous headroom for compact lists

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.ctx.Done():
			return
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if t.ctx.Err() != nil {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "Serve",
				"error":    err,
			}).Debug("udp read error")
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		handler(payload, addr)
	}
}

// Send writes data to addr.
func (t *UDPTransport) Send(data []byte, addr *net.UDPAddr) error {
	_, err := t.conn.WriteToUDP(data, addr)
	return err
}

// LocalAddr returns the bound local address.
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// Close cancels Serve and closes the socket.
func (t *UDPTransport) Close() error {
	t.cancel()
	return t.conn.Close()
}
