package script

// Scheduler drives one tick's worth of script invocations in the fixed
// order every tick follows, regardless of how many entities or rooms
// are involved: free-roam movement scripts never fire after a room has
// already claimed an entity this tick, and idle choices never run ahead
// of the room/mission scripts that might claim their entity out from
// under them.
//
//  1. Free-roam (unclaimed entity) behaviour scripts
//  2. Room controller update/tick scripts, in room id order
//  3. Idle choice scripts, for entities still unclaimed after (2)
//  4. The active mission handler, if any
//  5. Queued ExecRoom/ExecIdle commands submitted during this tick
type Scheduler struct {
	engine *Engine

	freeRoam []func()
	rooms    []func()
	idle     []func()
	mission  func()
	queued   []func()
}

// NewScheduler returns an empty Scheduler bound to engine for panic-safe
// invocation.
func NewScheduler(engine *Engine) *Scheduler { return &Scheduler{engine: engine} }

// AddFreeRoam registers a free-roam behaviour script invocation for this
// tick.
func (s *Scheduler) AddFreeRoam(fn func()) { s.freeRoam = append(s.freeRoam, fn) }

// AddRoom registers a room controller tick invocation for this tick. Call
// in ascending room id order; Scheduler does not re-sort.
func (s *Scheduler) AddRoom(fn func()) { s.rooms = append(s.rooms, fn) }

// AddIdle registers an idle choice script invocation for this tick.
func (s *Scheduler) AddIdle(fn func()) { s.idle = append(s.idle, fn) }

// SetMission sets the single active mission handler invocation for this
// tick, if any.
func (s *Scheduler) SetMission(fn func()) { s.mission = fn }

// Queue registers a command (ExecRoom/ExecIdle) to run after every
// script stage has finished, the position queued commands always run
// from so their effects never get stepped on the same tick they were
// submitted from.
func (s *Scheduler) Queue(fn func()) { s.queued = append(s.queued, fn) }

// Run executes every registered stage in the fixed order, then clears
// the scheduler so it is ready for the next tick.
func (s *Scheduler) Run() {
	defer s.reset()

	for _, fn := range s.freeRoam {
		fn()
	}
	for _, fn := range s.rooms {
		fn()
	}
	for _, fn := range s.idle {
		fn()
	}
	if s.mission != nil {
		s.mission()
	}
	for _, fn := range s.queued {
		fn()
	}
}

func (s *Scheduler) reset() {
	s.freeRoam = s.freeRoam[:0]
	s.rooms = s.rooms[:0]
	s.idle = s.idle[:0]
	s.mission = nil
	s.queued = s.queued[:0]
}
