package spanz

import (
	"fmt"
	"net"
	"sync"
)

// Transport delivers one datagram per Send. Implementations must not
// retain the slice after Send returns; the Outbox reuses it.
type Transport interface {
	Send(datagram []byte) error
	Close() error
}

// UDPTransport sends datagrams over a connected UDP socket. The socket
// is opened on the first Send and kept for the life of the transport.
// Sends are fire-and-forget: no acknowledgement, no retry.
type UDPTransport struct {
	conn *net.UDPConn
	addr string
	mu   sync.Mutex
}

// NewUDPTransport creates a transport targeting addr. No socket is
// opened until the first Send.
func NewUDPTransport(addr string) *UDPTransport {
	return &UDPTransport{addr: addr}
}

// Addr returns the target address.
func (u *UDPTransport) Addr() string {
	return u.addr
}

// Send writes datagram as a single packet.
func (u *UDPTransport) Send(datagram []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.openLocked(); err != nil {
		return err
	}
	if _, err := u.conn.Write(datagram); err != nil {
		return fmt.Errorf("send to %s: %w", u.addr, err)
	}
	return nil
}

// Close releases the socket. A later Send opens a new one.
func (u *UDPTransport) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}

// openLocked dials the collector if not already connected.
func (u *UDPTransport) openLocked() error {
	if u.conn != nil {
		return nil
	}
	raddr, err := net.ResolveUDPAddr("udp", u.addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", u.addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.addr, err)
	}
	u.conn = conn
	return nil
}
