package command

import "sync/atomic"

// Handler observes command lifecycle events with one hook per command
// variant, for both its execute and undo phase, matching spec §4.7's
// "small trait with one hook per command variant (execute_place_staff,
// execute_exec_idle, execute_edit_room, …) defaulting to a no-op" so a
// client or server can customize policy around specific commands (e.g. a
// client that forbids editing booked rooms) without touching the rest.
// Embed NopHandler to implement only the hooks you need.
type Handler interface {
	OnPlaceRoomExecute(Entry, *PlaceRoom)
	OnPlaceRoomUndo(Entry, *PlaceRoom)
	OnResizeRoomExecute(Entry, *ResizeRoom)
	OnResizeRoomUndo(Entry, *ResizeRoom)
	OnCancelRoomPlacementExecute(Entry, *CancelRoomPlacement)
	OnCancelRoomPlacementUndo(Entry, *CancelRoomPlacement)
	OnFinalizeRoomPlacementExecute(Entry, *FinalizeRoomPlacement)
	OnFinalizeRoomPlacementUndo(Entry, *FinalizeRoomPlacement)
	OnPlaceObjectExecute(Entry, *PlaceObject)
	OnPlaceObjectUndo(Entry, *PlaceObject)
	OnRemoveObjectExecute(Entry, *RemoveObject)
	OnRemoveObjectUndo(Entry, *RemoveObject)
	OnPayStaffExecute(Entry, *PayStaff)
	OnPayStaffUndo(Entry, *PayStaff)
	OnExecRoomExecute(Entry, *ExecRoom)
	OnExecRoomUndo(Entry, *ExecRoom)
	OnExecIdleExecute(Entry, *ExecIdle)
	OnExecIdleUndo(Entry, *ExecIdle)
	OnSorryExecute(Entry, *Sorry)
	OnSorryUndo(Entry, *Sorry)
	// OnReject fires once per entry a RejectCommands call undoes,
	// alongside that entry's own OnXxxUndo hook, carrying the reason the
	// server gave for refusing it.
	OnReject(Entry, error)
}

// NopHandler implements Handler with every hook a no-op. Embed it in a
// partial handler to only override the events you care about.
type NopHandler struct{}

func (NopHandler) OnPlaceRoomExecute(Entry, *PlaceRoom)                         {}
func (NopHandler) OnPlaceRoomUndo(Entry, *PlaceRoom)                            {}
func (NopHandler) OnResizeRoomExecute(Entry, *ResizeRoom)                       {}
func (NopHandler) OnResizeRoomUndo(Entry, *ResizeRoom)                          {}
func (NopHandler) OnCancelRoomPlacementExecute(Entry, *CancelRoomPlacement)     {}
func (NopHandler) OnCancelRoomPlacementUndo(Entry, *CancelRoomPlacement)        {}
func (NopHandler) OnFinalizeRoomPlacementExecute(Entry, *FinalizeRoomPlacement) {}
func (NopHandler) OnFinalizeRoomPlacementUndo(Entry, *FinalizeRoomPlacement)    {}
func (NopHandler) OnPlaceObjectExecute(Entry, *PlaceObject)                     {}
func (NopHandler) OnPlaceObjectUndo(Entry, *PlaceObject)                        {}
func (NopHandler) OnRemoveObjectExecute(Entry, *RemoveObject)                   {}
func (NopHandler) OnRemoveObjectUndo(Entry, *RemoveObject)                      {}
func (NopHandler) OnPayStaffExecute(Entry, *PayStaff)                           {}
func (NopHandler) OnPayStaffUndo(Entry, *PayStaff)                              {}
func (NopHandler) OnExecRoomExecute(Entry, *ExecRoom)                           {}
func (NopHandler) OnExecRoomUndo(Entry, *ExecRoom)                              {}
func (NopHandler) OnExecIdleExecute(Entry, *ExecIdle)                           {}
func (NopHandler) OnExecIdleUndo(Entry, *ExecIdle)                              {}
func (NopHandler) OnSorryExecute(Entry, *Sorry)                                 {}
func (NopHandler) OnSorryUndo(Entry, *Sorry)                                    {}
func (NopHandler) OnReject(Entry, error)                                        {}

// dispatchExecute calls the Handler hook matching e.Command's concrete
// type, the bridge spec §4.7 describes between the tagged-union Command
// and the handler's per-variant trait. Commands this package does not
// recognise (a caller's own Command implementation) are silently
// ignored; Handler is strictly an observer here, Execute itself already
// ran by the time dispatchExecute is called.
func dispatchExecute(h Handler, e Entry) {
	switch cmd := e.Command.(type) {
	case *PlaceRoom:
		h.OnPlaceRoomExecute(e, cmd)
	case *ResizeRoom:
		h.OnResizeRoomExecute(e, cmd)
	case *CancelRoomPlacement:
		h.OnCancelRoomPlacementExecute(e, cmd)
	case *FinalizeRoomPlacement:
		h.OnFinalizeRoomPlacementExecute(e, cmd)
	case *PlaceObject:
		h.OnPlaceObjectExecute(e, cmd)
	case *RemoveObject:
		h.OnRemoveObjectExecute(e, cmd)
	case *PayStaff:
		h.OnPayStaffExecute(e, cmd)
	case *ExecRoom:
		h.OnExecRoomExecute(e, cmd)
	case *ExecIdle:
		h.OnExecIdleExecute(e, cmd)
	case *Sorry:
		h.OnSorryExecute(e, cmd)
	}
}

// dispatchUndo is dispatchExecute's counterpart for the undo phase.
func dispatchUndo(h Handler, e Entry) {
	switch cmd := e.Command.(type) {
	case *PlaceRoom:
		h.OnPlaceRoomUndo(e, cmd)
	case *ResizeRoom:
		h.OnResizeRoomUndo(e, cmd)
	case *CancelRoomPlacement:
		h.OnCancelRoomPlacementUndo(e, cmd)
	case *FinalizeRoomPlacement:
		h.OnFinalizeRoomPlacementUndo(e, cmd)
	case *PlaceObject:
		h.OnPlaceObjectUndo(e, cmd)
	case *RemoveObject:
		h.OnRemoveObjectUndo(e, cmd)
	case *PayStaff:
		h.OnPayStaffUndo(e, cmd)
	case *ExecRoom:
		h.OnExecRoomUndo(e, cmd)
	case *ExecIdle:
		h.OnExecIdleUndo(e, cmd)
	case *Sorry:
		h.OnSorryUndo(e, cmd)
	}
}

type handlerWrapper func(Handler) Handler

var commandHandlerWrap atomic.Value

func init() {
	commandHandlerWrap.Store(handlerWrapper(func(h Handler) Handler { return h }))
}

// SetHandlerWrap installs a function that may wrap handlers assigned
// through ClientPipeline.SetHandler or ServerPipeline.SetHandler. The wrapper runs after the handler has
// been normalised (nil replaced with NopHandler{}) and may replace it
// with an alternate implementation, e.g. one that logs every event
// before forwarding to the original.
func SetHandlerWrap(w func(Handler) Handler) {
	if w == nil {
		commandHandlerWrap.Store(handlerWrapper(func(h Handler) Handler { return h }))
		return
	}
	commandHandlerWrap.Store(handlerWrapper(w))
}

func wrapHandler(h Handler) Handler {
	return commandHandlerWrap.Load().(handlerWrapper)(h)
}
