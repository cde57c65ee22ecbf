package univercity

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/thinkofname/univercity-core/command"
	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/room"
	"github.com/thinkofname/univercity-core/tile"
	"github.com/thinkofname/univercity-core/wire"
)

// fakeWorld implements command.World with just enough behavior for the
// commandLoop tests: a single principal whose balance PayStaff can charge.
type fakeWorld struct {
	grid    *tile.Grid
	rooms   *room.Registry
	balance int64
}

func (w *fakeWorld) Player(id ids.PlayerId) (command.Principal, bool) {
	if id != 1 {
		return nil, false
	}
	return &fakePrincipal{w: w}, true
}
func (w *fakeWorld) Rooms() *room.Registry { return w.rooms }
func (w *fakeWorld) Grid() *tile.Grid      { return w.grid }
func (w *fakeWorld) Descriptor(ids.ResourceKey) (room.Descriptor, bool) {
	return room.Descriptor{}, false
}
func (w *fakeWorld) SpawnRoomController(ids.RoomId) ids.EntityId        { return ids.EntityId{} }
func (w *fakeWorld) DestroyEntity(ids.EntityId)                         {}
func (w *fakeWorld) RunRoomEntry(ids.RoomId, ids.EntryPoint) error      { return nil }
func (w *fakeWorld) RunIdleEntry(ids.EntityId, ids.EntryPoint) error    { return nil }

type fakePrincipal struct{ w *fakeWorld }

func (p *fakePrincipal) ID() ids.PlayerId { return 1 }
func (p *fakePrincipal) Balance() int64   { return p.w.balance }
func (p *fakePrincipal) Charge(amount int64) bool {
	if p.w.balance < amount {
		return false
	}
	p.w.balance -= amount
	return true
}
func (p *fakePrincipal) Refund(amount int64) { p.w.balance += amount }

func TestGameBeginRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	token := uuid.New()
	go WriteGameBegin(client, token, wire.BestEffort, "Dana")

	gotToken, lane, name, err := readGameBegin(server)
	if err != nil {
		t.Fatalf("readGameBegin: %v", err)
	}
	if gotToken != token || lane != wire.BestEffort || name != "Dana" {
		t.Fatalf("got token=%v lane=%v name=%q", gotToken, lane, name)
	}
}

func TestServerAdmitRejectsDisallowedName(t *testing.T) {
	a, err := LoadAllowlist(t.TempDir() + "/allow.toml")
	if err != nil {
		t.Fatalf("LoadAllowlist: %v", err)
	}
	a.SetEnabled(true)

	s := New(DefaultConfig(), nil, a)
	reliable, rEnd := net.Pipe()
	bestEffort, bEnd := net.Pipe()
	defer rEnd.Close()
	defer bEnd.Close()

	s.admit(context.Background(), reliable, bestEffort, "nobody")

	if len(s.Players()) != 0 {
		t.Fatalf("expected admit to reject an unlisted name")
	}
}

func TestApplyBatchAcksAndBroadcastsToOtherPlayers(t *testing.T) {
	w := &fakeWorld{grid: tile.NewGrid(0, 0, 4, 4), rooms: room.NewRegistry(), balance: 1000}
	s := New(DefaultConfig(), command.NewServerPipeline(w), nil)

	submitterReliable, submitterConn := net.Pipe()
	defer submitterConn.Close()
	submitter := &Player{ID: 1, Name: "Fiona", Session: wire.NewSession(submitterReliable, submitterReliable)}

	otherReliable, otherConn := net.Pipe()
	defer otherConn.Close()
	other := &Player{ID: 2, Name: "Gale", Session: wire.NewSession(otherReliable, otherReliable)}

	s.mu.Lock()
	s.players[submitter.ID] = submitter
	s.players[other.ID] = other
	s.mu.Unlock()

	go s.applyBatch(submitter, wire.ExecutedCommands{
		StartID:  5,
		Commands: []command.Command{&command.PayStaff{Player: 1, Amount: 100}},
	})

	remoteBody := readPacketBody(t, otherConn, wire.PacketRemoteExecutedCommands)
	remote, err := wire.UnmarshalRemoteExecutedCommands(remoteBody)
	if err != nil || len(remote.Entries) != 1 || remote.Entries[0].Player != 1 {
		t.Fatalf("expected remote broadcast attributed to player 1, got %+v err=%v", remote, err)
	}

	ackBody := readPacketBody(t, submitterConn, wire.PacketAckCommands)
	ack, err := wire.UnmarshalAckCommands(ackBody)
	if err != nil || ack.AcceptedID != 5 {
		t.Fatalf("expected ack for id 5, got %+v err=%v", ack, err)
	}
	if w.balance != 900 {
		t.Fatalf("expected balance charged to 900, got %d", w.balance)
	}
}

// readPacketBody reads the next packet applyBatch/broadcastRemote wrote
// to conn via Session.Send, asserting it carries the expected id.
func readPacketBody(t *testing.T, conn net.Conn, want wire.PacketID) []byte {
	t.Helper()
	done := make(chan struct{})
	var gotID wire.PacketID
	var body []byte
	var err error
	go func() {
		defer close(done)
		r := wire.NewSession(conn, conn)
		gotID, body, err = r.Receive(wire.Reliable)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for packet %v", want)
	}
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if gotID != want {
		t.Fatalf("got packet %v, want %v", gotID, want)
	}
	return body
}

func TestServerHandleLanePairsBothConnections(t *testing.T) {
	s := New(DefaultConfig(), nil, nil)
	token := uuid.New()

	reliableClient, reliableServer := net.Pipe()
	bestEffortClient, bestEffortServer := net.Pipe()
	defer reliableClient.Close()
	defer bestEffortClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go WriteGameBegin(reliableClient, token, wire.Reliable, "Erin")
	go WriteGameBegin(bestEffortClient, token, wire.BestEffort, "Erin")

	go s.handleLane(ctx, reliableServer)
	go s.handleLane(ctx, bestEffortServer)

	deadline := time.After(time.Second)
	for {
		if len(s.Players()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected both lanes to pair into a single player")
		case <-time.After(5 * time.Millisecond):
		}
	}

	players := s.Players()
	if players[0].Name != "Erin" {
		t.Fatalf("got player name %q", players[0].Name)
	}
}
