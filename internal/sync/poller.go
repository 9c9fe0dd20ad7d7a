package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SyncState represents what the poller is doing.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus is a snapshot of the poller's last cycle.
type SyncStatus struct {
	State      SyncState
	Runs       int
	LastSync   time.Time
	LastResult CycleResult
	Error      error
}

// Cycler runs one polling cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// DefaultInterval is the pause between cycle starts.
const DefaultInterval = 300 * time.Second

// Poller runs a Cycler on a fixed interval. Cycles never overlap: a cycle
// that outlasts the interval pushes the next one to the following slot.
type Poller struct {
	cycler   Cycler
	interval time.Duration
	log      *zap.Logger

	mu     gosync.Mutex
	status SyncStatus
}

// NewPoller creates a poller. A zero interval uses DefaultInterval.
func NewPoller(c Cycler, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		cycler:   c,
		interval: interval,
		log:      log.With(zap.String("component", "poller")),
	}
}

// Run starts the first cycle immediately and then one every interval. It
// blocks until ctx is done and returns after the running cycle, if any,
// has stopped. Cycle errors are logged and do not stop the poller.
func (p *Poller) Run(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(func() {
			p.poll(ctx)
		}),
		gocron.WithName("poll-mailbox"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to create polling job: %w", err)
	}

	p.log.Info("polling started", zap.Duration("interval", p.interval))
	s.Start()

	<-ctx.Done()

	p.log.Info("polling stopping")
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("stopping scheduler: %w", err)
	}
	return nil
}

func (p *Poller) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	p.status.State = SyncRunning
	p.mu.Unlock()

	res, err := p.cycler.RunCycle(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Runs++
	p.status.LastSync = time.Now()
	p.status.LastResult = res
	p.status.Error = err
	if err != nil {
		p.status.State = SyncError
		p.log.Warn("cycle failed", zap.Error(err), zap.Int("run", p.status.Runs))
		return
	}
	p.status.State = SyncIdle
}

// Status returns the state after the most recent cycle.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
