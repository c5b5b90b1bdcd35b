package gatt

import (
	"net"
	"sync"
)

// DefaultMTU is the ATT MTU of a link before any MTU exchange.
const DefaultMTU = 23

// A BDAddr (Bluetooth Device Address) is a hardware-addressed-based net.Addr.
type BDAddr struct{ net.HardwareAddr }

func (a BDAddr) Network() string { return "BLE" }

// A Conn describes the link to the connected central.
type Conn struct {
	Interface  Interface
	ID         ConnID
	RemoteAddr BDAddr
	MTU        int
}

// valid reports whether both the interface and the connection id are set.
func (c Conn) valid() bool {
	return c.Interface != InterfaceNone && c.ID != ConnIDNone
}

var noConn = Conn{Interface: InterfaceNone, ID: ConnIDNone}

// session holds the single peripheral link.
type session struct {
	mu sync.RWMutex
	c  Conn
}

func newSession() *session {
	return &session{c: noConn}
}

func (s *session) get() (Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c, s.c.valid()
}

func (s *session) set(c Conn) {
	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
}

// clear drops the link and returns the one it replaced.
func (s *session) clear() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.c
	s.c = noConn
	return prev
}

// setMTU records the negotiated MTU if id is the current link.
func (s *session) setMTU(id ConnID, mtu int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.c.valid() || s.c.ID != id {
		return false
	}
	s.c.MTU = mtu
	return true
}
