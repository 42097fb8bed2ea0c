// Package poller owns the recurring latest-entity fetch. Each tick issues
// one request; successful decodes go to the event bridge and failures are
// dropped until the next tick.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tamos/tamos-client-go/internal/models"
	"github.com/tamos/tamos-client-go/internal/spatial"
	"github.com/tamos/tamos-client-go/internal/stats"
)

const latencySamples = 128

// State is the coordinator lifecycle state
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// EntityFetcher fetches the latest entity position
type EntityFetcher interface {
	FetchLatestEntity(ctx context.Context) (models.EntityPosition, error)
}

// SimulationStarter starts the remote simulation
type SimulationStarter interface {
	StartSimulation(ctx context.Context) error
}

// PositionPublisher receives decoded positions. It is called with the
// delivery lock held and must not call Stop synchronously.
type PositionPublisher interface {
	PublishEntityPosition(pos models.EntityPosition) int
}

// Options configures a Coordinator
type Options struct {
	// Period is used by StartServerSimulation and when Start gets a
	// non-positive period
	Period time.Duration
	// StartDelay is the wait between asking the server to start and the
	// first poll
	StartDelay time.Duration
	// StrictOrdering drops a result whose tick is older than one already
	// delivered. Without it the last response to arrive wins.
	StrictOrdering bool
	Logger         *log.Logger
}

// Stats are coordinator counters since construction
type Stats struct {
	State          string  `json:"state"`
	Ticks          uint64  `json:"ticks"`
	Delivered      uint64  `json:"delivered"`
	Failed         uint64  `json:"failed"`
	Discarded      uint64  `json:"discarded"`
	Stale          uint64  `json:"stale"`
	DistanceMeters float64 `json:"distance_meters"`
	LatencyP50Ms   float64 `json:"latency_p50_ms"`
	LatencyP95Ms   float64 `json:"latency_p95_ms"`
}

// Coordinator drives the polling timer
type Coordinator struct {
	fetcher EntityFetcher
	starter SimulationStarter
	pub     PositionPublisher
	opts    Options
	log     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	generation uint64
	done       chan struct{}
	startTimer *time.Timer
	seq        uint64
	lastSeq    uint64
	last       *models.EntityPosition
	stats      Stats
	latency    *stats.LatencyWindow
	closed     bool

	// beforeDelayedStart runs with mu held just before a delayed start
	// begins polling; nil outside tests
	beforeDelayedStart func()

	// deliverMu is held while a result is handed to the publisher; Stop
	// takes it after changing state so no delivery outlives Stop.
	deliverMu sync.Mutex
}

// New creates an idle coordinator
func New(fetcher EntityFetcher, starter SimulationStarter, pub PositionPublisher, opts Options) *Coordinator {
	if opts.Period <= 0 {
		opts.Period = time.Second
	}
	if opts.StartDelay < 0 {
		opts.StartDelay = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		fetcher: fetcher,
		starter: starter,
		pub:     pub,
		opts:    opts,
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
		latency: stats.NewLatencyWindow(latencySamples),
	}
}

// Start arms the recurring timer, restarting it if already polling. It is
// a no-op after Close.
func (c *Coordinator) Start(period time.Duration) {
	if period <= 0 {
		period = c.opts.Period
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLocked(period)
}

func (c *Coordinator) startLocked(period time.Duration) {
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.generation++
	c.state = Polling
	c.done = make(chan struct{})

	gen, done := c.generation, c.done
	ticker := time.NewTicker(period)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.tick(gen)
			}
		}
	}()
	c.log.Printf("[poller] polling every %v", period)
}

// Stop cancels future ticks. A request already on the wire completes but
// its result is discarded; nothing is published after Stop returns.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	wasPolling := c.state == Polling
	c.stopTimerLocked()
	c.generation++
	c.state = Idle
	c.mu.Unlock()

	// Wait out a delivery that passed the state check before we got here.
	c.deliverMu.Lock()
	c.deliverMu.Unlock()

	if wasPolling {
		c.log.Printf("[poller] stopped")
	}
}

// StartServerSimulation asks the server to start and, after the configured
// delay and whatever the outcome, begins polling. The delay gives the server
// time to produce its first position.
func (c *Coordinator) StartServerSimulation(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.starter.StartSimulation(ctx); err != nil {
			c.log.Printf("[poller] start simulation failed: %v", err)
		}
	}()

	if c.startTimer != nil {
		c.startTimer.Stop()
	}
	gen := c.generation
	var timer *time.Timer
	timer = time.AfterFunc(c.opts.StartDelay, func() {
		// The check and the start share one critical section so a Stop
		// either supersedes this start or stops the polling it began.
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.startTimer != timer {
			return
		}
		c.startTimer = nil
		// A Stop, Start or newer StartServerSimulation supersedes this one.
		if c.generation != gen {
			return
		}
		if c.beforeDelayedStart != nil {
			c.beforeDelayedStart()
		}
		c.startLocked(c.opts.Period)
	})
	c.startTimer = timer
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the counters
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	s := c.stats
	s.State = c.state.String()
	c.mu.Unlock()
	s.LatencyP50Ms, s.LatencyP95Ms = c.latency.Summary()
	return s
}

// Close stops polling and waits for outstanding requests to finish
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Stop()
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) stopTimerLocked() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.startTimer != nil {
		c.startTimer.Stop()
		c.startTimer = nil
	}
}

func (c *Coordinator) tick(gen uint64) {
	c.mu.Lock()
	if c.generation != gen || c.state != Polling {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	c.stats.Ticks++
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		start := time.Now()
		pos, err := c.fetcher.FetchLatestEntity(c.ctx)
		c.latency.Observe(time.Since(start))
		c.handleResult(gen, seq, pos, err)
	}()
}

func (c *Coordinator) handleResult(gen, seq uint64, pos models.EntityPosition, err error) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if err != nil {
		c.stats.Failed++
		c.mu.Unlock()
		c.log.Printf("[poller] tick %d dropped: %v", seq, err)
		return
	}
	if c.generation != gen || c.state != Polling {
		c.stats.Discarded++
		c.mu.Unlock()
		return
	}
	if c.opts.StrictOrdering && seq < c.lastSeq {
		c.stats.Stale++
		c.mu.Unlock()
		return
	}
	if seq > c.lastSeq {
		c.lastSeq = seq
	}
	if c.last != nil && c.last.ID == pos.ID {
		c.stats.DistanceMeters += spatial.HaversineDistance(c.last.Latitude, c.last.Longitude, pos.Latitude, pos.Longitude)
	}
	p := pos
	c.last = &p
	c.stats.Delivered++
	c.mu.Unlock()

	c.pub.PublishEntityPosition(pos)
}
