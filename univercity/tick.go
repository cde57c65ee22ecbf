package univercity

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	tpsSampleSize       = 20
	tpsWarningThreshold = 0.9 // fraction of the configured rate
)

// Ticker drives the server's fixed-rate simulation loop: it calls a
// TickFunc once per interval and tracks the achieved ticks per second;
// what a tick does is entirely up to that function. Modelled on
// the teacher's world ticker, trimmed to this server's single-threaded
// tick (there is no per-dimension fan-out here).
type Ticker struct {
	interval time.Duration
	log      Logger

	tps      atomic.Uint64
	running  sync.WaitGroup
	closing  chan struct{}
	closeMu  sync.Mutex
	stopped  bool
}

// TickFunc is run once per tick with the tick's sequence number,
// starting at 1.
type TickFunc func(tick uint64)

// NewTicker builds a Ticker at the given rate (e.g. cfg.TickRate Hz).
// A non-positive rate is treated as 30.
func NewTicker(ratePerSecond int, log Logger) *Ticker {
	if ratePerSecond <= 0 {
		ratePerSecond = 30
	}
	return &Ticker{
		interval: time.Second / time.Duration(ratePerSecond),
		log:      log,
		closing:  make(chan struct{}),
	}
}

// TPS returns the measured ticks-per-second over the last sample window.
func (t *Ticker) TPS() float64 { return math.Float64frombits(t.tps.Load()) }

// Run blocks, invoking fn once per tick, until Stop is called.
func (t *Ticker) Run(fn TickFunc) {
	t.running.Add(1)
	defer t.running.Done()

	tc := time.NewTicker(t.interval)
	defer tc.Stop()

	var (
		tick        uint64
		lastTick    = time.Now()
		durationSum time.Duration
		ticksCount  int
		warned      bool
		targetHz    = 1.0 / t.interval.Seconds()
	)
	for {
		select {
		case now := <-tc.C:
			tick++
			duration := now.Sub(lastTick)
			lastTick = now
			if duration > 0 {
				durationSum += duration
				ticksCount++
				if ticksCount >= tpsSampleSize {
					avg := durationSum / time.Duration(ticksCount)
					hz := 1.0 / avg.Seconds()
					t.tps.Store(math.Float64bits(hz))
					if hz < targetHz*tpsWarningThreshold {
						if !warned && t.log != nil {
							t.log.Warn("tick rate dropped below threshold", "tps", hz)
							warned = true
						}
					} else {
						warned = false
					}
					durationSum = 0
					ticksCount = 0
				}
			}
			fn(tick)
		case <-t.closing:
			return
		}
	}
}

// Stop signals Run to return and waits for it to finish.
func (t *Ticker) Stop() {
	t.closeMu.Lock()
	if !t.stopped {
		t.stopped = true
		close(t.closing)
	}
	t.closeMu.Unlock()
	t.running.Wait()
}

// Logger is the minimal structured-logging surface this package depends
// on, satisfied by *slog.Logger, so a caller that hasn't set up slog yet
// can still pass something else (or nil: every call site nil-checks
// before logging).
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}
