package univercity

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thinkofname/univercity-core/command"
	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/netsnap"
	"github.com/thinkofname/univercity-core/wire"
)

// gameBeginTimeout bounds how long a lane waits for its partner before
// the connection is dropped as a half-open session.
const gameBeginTimeout = 10 * time.Second

// Player is one connected client: its two-lane session, its replication
// channel and the server-assigned identity commands are attributed to.
type Player struct {
	ID      ids.PlayerId
	Name    string
	Session *wire.Session
	Channel *netsnap.PlayerChannel
}

// AccountManager is the subset of game.World a Server needs to keep a
// connected player's wallet in sync with its session: minted on join,
// dropped on disconnect. Declared here rather than importing the game
// package directly, so this package stays agnostic of how a particular
// deployment wires simulation state together, matching the teacher's
// split between Config (policy) and Server (mechanism).
type AccountManager interface {
	AddPlayer(id ids.PlayerId, startingBalance int64)
	RemoveAccount(id ids.PlayerId)
}

// Server owns a listener, the connected player set and the command
// pipeline commands are submitted through. It does not own the entity
// store or scripting engine directly — those are supplied by the caller
// through the command.ServerPipeline passed to New and through
// SetAccountManager, so this package stays agnostic of how a particular
// deployment wires simulation state together, matching the teacher's
// split between Config (policy) and Server (mechanism).
type Server struct {
	conf      Config
	log       *slog.Logger
	allowlist *Allowlist
	listener  *wire.Listener
	pipeline  *command.ServerPipeline
	accounts  AccountManager

	mu        sync.Mutex
	players   map[ids.PlayerId]*Player
	nextID    int32
	pairing   map[uuid.UUID]net.Conn
	closing   chan struct{}
	closeOnce sync.Once
}

// SetAccountManager installs m as the account ledger players are
// registered with and removed from as they join and disconnect. Nil is
// valid (the default) and simply skips account bookkeeping, matching a
// deployment that has not wired a game.World in yet.
func (s *Server) SetAccountManager(m AccountManager) {
	s.mu.Lock()
	s.accounts = m
	s.mu.Unlock()
}

// New applies conf's defaults (matching the teacher's Config.New) and
// builds a Server ready to Listen.
func New(conf Config, pipeline *command.ServerPipeline, allowlist *Allowlist) *Server {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Name == "" {
		conf.Name = "A UniverCity Server"
	}
	if conf.Address == "" {
		conf.Address = ":19132"
	}
	if conf.TickRate <= 0 {
		conf.TickRate = 30
	}
	if conf.StartingBalance <= 0 {
		conf.StartingBalance = 10000
	}
	return &Server{
		conf:      conf,
		log:       conf.Log,
		allowlist: allowlist,
		pipeline:  pipeline,
		players:   make(map[ids.PlayerId]*Player),
		pairing:   make(map[uuid.UUID]net.Conn),
		closing:   make(chan struct{}),
	}
}

// Listen starts accepting lane connections on conf.Address.
func (s *Server) Listen() error {
	l, err := wire.Listen(s.conf.Address)
	if err != nil {
		return fmt.Errorf("univercity: listen: %w", err)
	}
	s.listener = l
	return nil
}

// Serve accepts lane connections until Close is called or ctx is done.
// Each accepted lane first sends a raw, unframed handshake (see
// WriteGameBegin): a 16-byte session token (a uuid), a byte for which
// lane it is, and the player name. The first lane of a token
// waits in the pairing table for its partner, and once both arrive the
// pair becomes a Player.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.AcceptLane()
		if err != nil {
			select {
			case <-s.closing:
				return nil
			default:
			}
			return fmt.Errorf("univercity: accept: %w", err)
		}
		go s.handleLane(ctx, conn)
	}
}

func (s *Server) handleLane(ctx context.Context, conn net.Conn) {
	token, lane, name, err := readGameBegin(conn)
	if err != nil {
		s.log.Warn("dropping connection with invalid handshake", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
		return
	}

	s.mu.Lock()
	partner, ok := s.pairing[token]
	if !ok {
		s.pairing[token] = conn
		s.mu.Unlock()
		go s.expirePairing(token, conn)
		return
	}
	delete(s.pairing, token)
	s.mu.Unlock()

	var reliable, bestEffort net.Conn
	if lane == wire.Reliable {
		reliable, bestEffort = conn, partner
	} else {
		reliable, bestEffort = partner, conn
	}
	s.admit(ctx, reliable, bestEffort, name)
}

// expirePairing drops a half-open lane if its partner never arrives.
func (s *Server) expirePairing(token uuid.UUID, conn net.Conn) {
	select {
	case <-time.After(gameBeginTimeout):
		s.mu.Lock()
		if s.pairing[token] == conn {
			delete(s.pairing, token)
			s.mu.Unlock()
			s.log.Warn("closing half-open session, partner lane never arrived", "remote", conn.RemoteAddr())
			conn.Close()
			return
		}
		s.mu.Unlock()
	case <-s.closing:
	}
}

func (s *Server) admit(ctx context.Context, reliable, bestEffort net.Conn, name string) {
	if reason, ok := s.allowlist.Allow(name); !ok {
		s.log.Info("rejected join", "name", name, "reason", reason)
		reliable.Close()
		bestEffort.Close()
		return
	}

	s.mu.Lock()
	if s.conf.MaxPlayers > 0 && len(s.players) >= s.conf.MaxPlayers {
		s.mu.Unlock()
		reliable.Close()
		bestEffort.Close()
		s.log.Info("rejected join, server full", "name", name)
		return
	}
	s.nextID++
	id := ids.PlayerId(s.nextID)
	p := &Player{
		ID:      id,
		Name:    name,
		Session: wire.NewSession(reliable, bestEffort),
		Channel: netsnap.NewPlayerChannel(),
	}
	s.players[id] = p
	accounts := s.accounts
	s.mu.Unlock()

	if accounts != nil {
		accounts.AddPlayer(id, s.conf.StartingBalance)
	}

	s.log.Info("player joined", "name", name, "id", id)
	go s.keepAlive(ctx, p)
	go s.commandLoop(p)
}

// commandLoop reads p's reliable lane until it errors (including a clean
// PacketDisconnect), dispatching every batch of client-submitted commands
// through the pipeline and relaying the outcome back to p and every other
// connected player (spec §4.7's Ack/Reject/RemoteExecutedCommands trio).
func (s *Server) commandLoop(p *Player) {
	for {
		id, body, err := p.Session.Receive(wire.Reliable)
		if err != nil {
			s.disconnect(p, err)
			return
		}
		switch id {
		case wire.PacketExecutedCommands:
			batch, err := wire.UnmarshalExecutedCommands(body)
			if err != nil {
				s.disconnect(p, fmt.Errorf("univercity: decode executed commands: %w", err))
				return
			}
			s.applyBatch(p, batch)
		case wire.PacketAckRemoteCommands:
			// A client's own bookkeeping; the server has no pending state
			// to reconcile against it.
		case wire.PacketDisconnect:
			s.disconnect(p, nil)
			return
		default:
			s.log.Warn("ignoring unexpected packet on reliable lane", "id", id, "player", p.ID)
		}
	}
}

// applyBatch submits every command in batch in order under its own
// server-assigned id, stopping at the first one whose preconditions no
// longer hold. Every command up to that point (or the whole batch, if none
// failed) is acknowledged; everything from the failure on is rejected in
// one shot, matching ClientPipeline.RejectCommands' expectation that a
// single reject covers the remainder of a submitter's history.
func (s *Server) applyBatch(p *Player, batch wire.ExecutedCommands) {
	clientID := batch.StartID
	lastAccepted := clientID - 1
	for _, cmd := range batch.Commands {
		serverID, err := s.pipeline.Submit(p.ID, clientID, cmd)
		if err != nil {
			reject := wire.RejectCommands{AcceptedID: lastAccepted, RejectedID: clientID}
			if sendErr := p.Session.Send(wire.Reliable, wire.PacketRejectCommands, reject.Marshal()); sendErr != nil {
				s.disconnect(p, sendErr)
			}
			return
		}
		lastAccepted = clientID
		s.broadcastRemote(p, serverID, cmd)
		clientID++
	}
	ack := wire.AckCommands{AcceptedID: lastAccepted}
	if err := p.Session.Send(wire.Reliable, wire.PacketAckCommands, ack.Marshal()); err != nil {
		s.disconnect(p, err)
	}
}

// broadcastRemote relays a just-executed command to every player other
// than the one that submitted it, so their own ClientPipeline can apply it
// without having optimistically executed it themselves.
func (s *Server) broadcastRemote(origin *Player, serverID ids.CommandId, cmd command.Command) {
	batch := wire.RemoteExecutedCommands{
		StartID: serverID,
		Entries: []wire.RemoteCommand{{Player: origin.ID, Cmd: cmd}},
	}
	body, err := batch.Marshal()
	if err != nil {
		s.log.Error("failed to encode remote command broadcast", "err", err)
		return
	}
	for _, other := range s.Players() {
		if other.ID == origin.ID {
			continue
		}
		if err := other.Session.Send(wire.Reliable, wire.PacketRemoteExecutedCommands, body); err != nil {
			s.disconnect(other, err)
		}
	}
}

// keepAlive sends PacketKeepAlive on the reliable lane every 15 seconds
// and removes the player when such a send fails. It does not track
// incoming traffic, so a connection that stays open but never answers is
// not timed out.
func (s *Server) keepAlive(ctx context.Context, p *Player) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := p.Session.Send(wire.Reliable, wire.PacketKeepAlive, nil); err != nil {
				s.disconnect(p, err)
				return
			}
		case <-ctx.Done():
			s.disconnect(p, ctx.Err())
			return
		case <-s.closing:
			return
		}
	}
}

func (s *Server) disconnect(p *Player, reason error) {
	s.mu.Lock()
	if _, ok := s.players[p.ID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.players, p.ID)
	accounts := s.accounts
	s.mu.Unlock()

	if accounts != nil {
		accounts.RemoveAccount(p.ID)
	}

	p.Session.Close()
	s.log.Info("player left", "name", p.Name, "id", p.ID, "reason", reason)
}

// Players returns a snapshot of currently connected players.
func (s *Server) Players() []*Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out
}

// Close stops accepting connections and disconnects every player.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	if s.listener != nil {
		s.listener.Close()
	}
	for _, p := range s.Players() {
		s.disconnect(p, nil)
	}
	return nil
}

// readGameBegin reads the handshake packet sent on a freshly accepted
// lane: a 16-byte session token, a 1-byte lane flag, then the player's
// display name.
func readGameBegin(conn net.Conn) (token uuid.UUID, lane wire.Lane, name string, err error) {
	buf := make([]byte, 17)
	if _, err = readFull(conn, buf); err != nil {
		return uuid.UUID{}, 0, "", fmt.Errorf("univercity: read handshake header: %w", err)
	}
	copy(token[:], buf[:16])
	lane = wire.Lane(buf[16])

	nameLen := make([]byte, 1)
	if _, err = readFull(conn, nameLen); err != nil {
		return uuid.UUID{}, 0, "", fmt.Errorf("univercity: read handshake name length: %w", err)
	}
	nameBuf := make([]byte, nameLen[0])
	if _, err = readFull(conn, nameBuf); err != nil {
		return uuid.UUID{}, 0, "", fmt.Errorf("univercity: read handshake name: %w", err)
	}
	return token, lane, string(nameBuf), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteGameBegin writes the handshake packet a client sends on each lane
// it opens, pairing both under the same token.
func WriteGameBegin(conn net.Conn, token uuid.UUID, lane wire.Lane, name string) error {
	if len(name) > 255 {
		name = name[:255]
	}
	buf := make([]byte, 0, 18+len(name))
	buf = append(buf, token[:]...)
	buf = append(buf, byte(lane))
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	_, err := conn.Write(buf)
	return err
}
