package command

import (
	"sync"

	"github.com/thinkofname/univercity-core/ids"
)

// ServerPipeline is the server-side half of the command protocol: every
// submitted command is executed immediately (the server has no need to
// execute optimistically since it is already authoritative) under a
// globally-ordered id, independent of the per-client id the submitter
// used locally.
type ServerPipeline struct {
	mu      sync.Mutex
	world   World
	handler Handler
	nextID  uint32
	undoLog []Entry
}

// NewServerPipeline returns a pipeline bound to world, with no handler
// installed.
func NewServerPipeline(world World) *ServerPipeline {
	return &ServerPipeline{world: world, handler: wrapHandler(NopHandler{})}
}

// SetHandler installs h as the pipeline's event handler, normalising a
// nil h to NopHandler{} and running it through the registered wrap hook.
func (p *ServerPipeline) SetHandler(h Handler) {
	if h == nil {
		h = NopHandler{}
	}
	p.mu.Lock()
	p.handler = wrapHandler(h)
	p.mu.Unlock()
}

// Submit executes cmd under a freshly allocated, globally-ordered
// server id. clientID is the id the submitting client used locally (0
// and Player.IsServer() both valid for server-originated commands); it
// is threaded through only so the caller can correlate the resulting
// Ack/Reject with the client's own history, never used for ordering.
//
// Returns the server-assigned id, and an error if cmd's preconditions no
// longer hold (in which case the caller should send a Reject for
// clientID rather than an Ack).
func (p *ServerPipeline) Submit(player ids.PlayerId, clientID ids.CommandId, cmd Command) (ids.CommandId, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := ids.CommandId(p.nextID)
	p.nextID++
	entry := Entry{ID: id, Player: player, Command: cmd}

	if err := cmd.Execute(p.world); err != nil {
		return id, err
	}

	p.undoLog = append(p.undoLog, entry)
	dispatchExecute(p.handler, entry)
	return id, nil
}

// Undo reverses the most recently executed command still in the undo
// log matching player, if any, returning false if none is found (either
// the player has never submitted a command, or everything they
// submitted has already been undone).
func (p *ServerPipeline) Undo(player ids.PlayerId) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.undoLog) - 1; i >= 0; i-- {
		if p.undoLog[i].Player != player {
			continue
		}
		entry := p.undoLog[i]
		p.undoLog = append(p.undoLog[:i], p.undoLog[i+1:]...)
		entry.Command.Undo(p.world)
		dispatchUndo(p.handler, entry)
		return true
	}
	return false
}
