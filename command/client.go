package command

import (
	"sync/atomic"

	"github.com/thinkofname/univercity-core/ids"
)

// HistoryLimit bounds how many optimistically-executed commands a
// client keeps around waiting for acknowledgement. Older entries are
// dropped without being undone: by the time history is that deep behind
// the server, a full resync (the snapshot channel's baseline-refresh
// path) is already coming and an explicit undo of ancient local state
// would just be redone a moment later.
const HistoryLimit = 256

// ClientPipeline is the client-side half of the command protocol:
// commands execute immediately against the local world (optimistic
// execution) and are kept in a bounded history until the server
// acknowledges or rejects them.
type ClientPipeline struct {
	world   World
	handler Handler
	nextID  uint32 // atomic; ids.CommandId is just a wrapping view of this
	history []Entry
}

// NewClientPipeline returns a pipeline bound to world, with no handler
// installed (events are dropped until SetHandler is called).
func NewClientPipeline(world World) *ClientPipeline {
	return &ClientPipeline{world: world, handler: wrapHandler(NopHandler{})}
}

// SetHandler installs h as the pipeline's event handler, normalising a
// nil h to NopHandler{} and running it through the registered wrap hook.
func (p *ClientPipeline) SetHandler(h Handler) {
	if h == nil {
		h = NopHandler{}
	}
	p.handler = wrapHandler(h)
}

// Submit optimistically executes cmd against the local world under a
// freshly allocated, locally-scoped id, recording it in history for
// later reconciliation. Returns the allocated id and any execution
// error; a failed command is never added to history.
func (p *ClientPipeline) Submit(player ids.PlayerId, cmd Command) (ids.CommandId, error) {
	id := ids.CommandId(atomic.AddUint32(&p.nextID, 1) - 1)
	entry := Entry{ID: id, Player: player, Command: cmd}

	if err := cmd.Execute(p.world); err != nil {
		return id, err
	}

	p.history = append(p.history, entry)
	if len(p.history) > HistoryLimit {
		p.history = p.history[len(p.history)-HistoryLimit:]
	}
	dispatchExecute(p.handler, entry)
	return id, nil
}

// AckCommands removes history up to and including acceptedID: the server
// has confirmed every entry up to it happened exactly as the client
// already applied it.
func (p *ClientPipeline) AckCommands(acceptedID ids.CommandId) {
	p.dropThrough(acceptedID)
}

// RejectCommands reconciles the client's history against a server
// refusal (spec §4.7): the accepted prefix up to and including
// acceptedID is dropped exactly as AckCommands would, then every
// remaining entry is undone in reverse (most recently executed first).
// p's next-id clock is then reset to rejectedID so the next Submit
// allocates the same id the server now expects, and a Sorry command is
// pushed onto history in its place so that id is still accounted for
// the next time this same history is reconciled.
func (p *ClientPipeline) RejectCommands(rejectedID, acceptedID ids.CommandId, reason error) {
	p.dropThrough(acceptedID)

	for i := len(p.history) - 1; i >= 0; i-- {
		e := p.history[i]
		e.Command.Undo(p.world)
		dispatchUndo(p.handler, e)
		p.handler.OnReject(e, reason)
	}
	p.history = nil

	atomic.StoreUint32(&p.nextID, uint32(rejectedID))
	sorryEntry := Entry{ID: rejectedID, Player: ids.Server, Command: &Sorry{Reason: reason.Error()}}
	p.history = append(p.history, sorryEntry)
	atomic.AddUint32(&p.nextID, 1)
}

// dropThrough removes every history entry up to and including
// throughID, the prefix both AckCommands and RejectCommands discard
// without undoing.
func (p *ClientPipeline) dropThrough(throughID ids.CommandId) {
	cut := 0
	for _, e := range p.history {
		if e.ID != throughID && !e.ID.Before(throughID) {
			break
		}
		cut++
	}
	p.history = append([]Entry(nil), p.history[cut:]...)
}

// RemoteExecutedCommands applies commands the server executed on
// another player's behalf (or its own), which never went through this
// client's own Submit and so were never optimistically applied locally.
func (p *ClientPipeline) RemoteExecutedCommands(entries []Entry) {
	for _, e := range entries {
		if err := e.Command.Execute(p.world); err == nil {
			dispatchExecute(p.handler, e)
		}
	}
}

// History returns a copy of the currently pending (unacknowledged)
// entries, oldest first.
func (p *ClientPipeline) History() []Entry {
	out := make([]Entry, len(p.history))
	copy(out, p.history)
	return out
}
