package wire

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/sandertv/go-raknet"
)

// Session is one player's connection: a pair of RakNet connections, one
// per Lane. RakNet's own connections are already reliable and ordered,
// so the BestEffort lane is a second, independent connection rather than
// a flag on a single one — a lost or stalled entity-frame connection
// then never head-of-line-blocks the command/ack connection behind it,
// and vice versa.
type Session struct {
	reliable   net.Conn
	bestEffort net.Conn

	reliableR   *bufio.Reader
	bestEffortR *bufio.Reader
}

// Dial opens both lanes of a session against addr, reliable lane first.
// It sends no handshake; the caller writes one on each lane, and the
// server pairs the two lanes by session token in whichever order they
// arrive (see Listener.AcceptLane).
func Dial(ctx context.Context, addr string) (*Session, error) {
	reliable, err := raknet.DialContext(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("wire: dial reliable lane: %w", err)
	}
	bestEffort, err := raknet.DialContext(ctx, addr)
	if err != nil {
		reliable.Close()
		return nil, fmt.Errorf("wire: dial best-effort lane: %w", err)
	}
	return newSession(reliable, bestEffort), nil
}

func newSession(reliable, bestEffort net.Conn) *Session {
	return &Session{
		reliable:    reliable,
		bestEffort:  bestEffort,
		reliableR:   bufio.NewReader(reliable),
		bestEffortR: bufio.NewReader(bestEffort),
	}
}

// Listener accepts the connections of two-lane sessions one lane at a
// time through AcceptLane. Each lane is its own connection and sends its
// own handshake carrying the session token; the two lanes of a session
// may arrive in either order.
type Listener struct {
	inner *raknet.Listener
}

// Listen starts accepting RakNet connections on addr.
func Listen(addr string) (*Listener, error) {
	inner, err := raknet.Listen(addr)
	if err != nil {
		return nil, fmt.Errorf("wire: listen: %w", err)
	}
	return &Listener{inner: inner}, nil
}

// AcceptLane accepts the next raw RakNet connection, leaving it to the
// caller (the server's session manager, which can see the GameBegin
// token) to pair reliable and best-effort connections into a Session.
func (l *Listener) AcceptLane() (net.Conn, error) { return l.inner.Accept() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.inner.Close() }

// NewSession pairs two already-accepted lanes (see Listener.AcceptLane)
// into a Session, for the server side of the handshake.
func NewSession(reliable, bestEffort net.Conn) *Session { return newSession(reliable, bestEffort) }

// Send writes a packet on the given lane.
func (s *Session) Send(lane Lane, id PacketID, body []byte) error {
	conn := s.reliable
	if lane == BestEffort {
		conn = s.bestEffort
	}
	return WritePacket(conn, id, body)
}

// Receive reads the next packet from the given lane, blocking until one
// arrives or the lane errors (typically disconnect).
func (s *Session) Receive(lane Lane) (PacketID, []byte, error) {
	r := s.reliableR
	if lane == BestEffort {
		r = s.bestEffortR
	}
	return ReadPacket(r)
}

// Close closes both lanes. Safe to call more than once.
func (s *Session) Close() error {
	err1 := s.reliable.Close()
	err2 := s.bestEffort.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// RemoteAddr returns the reliable lane's remote address, used as the
// session's identity for logging.
func (s *Session) RemoteAddr() net.Addr { return s.reliable.RemoteAddr() }
