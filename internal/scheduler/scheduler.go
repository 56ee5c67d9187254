// Package scheduler runs named background jobs off pluggable triggers.
// The jobs themselves are the same ledger functions request handlers call;
// the scheduler only decides when they fire.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"finledger/internal/logger"
)

// Job is a unit of periodic work. Run receives the trigger time so jobs
// can be tested with fixed clocks.
type Job struct {
	Name string
	Run  func(ctx context.Context, now time.Time) error
}

// Trigger produces firing times. C must not be closed while the scheduler
// is running; Stop releases the trigger's resources.
type Trigger interface {
	C() <-chan time.Time
	Stop()
}

// TickerTrigger fires at a fixed interval.
type TickerTrigger struct {
	ticker *time.Ticker
}

// NewTickerTrigger creates a trigger firing every interval.
func NewTickerTrigger(interval time.Duration) *TickerTrigger {
	return &TickerTrigger{ticker: time.NewTicker(interval)}
}

func (t *TickerTrigger) C() <-chan time.Time { return t.ticker.C }
func (t *TickerTrigger) Stop()               { t.ticker.Stop() }

// ManualTrigger fires when Fire is called. Used in tests and for
// operator-initiated runs.
type ManualTrigger struct {
	ch chan time.Time
}

// NewManualTrigger creates an unfired manual trigger.
func NewManualTrigger() *ManualTrigger {
	return &ManualTrigger{ch: make(chan time.Time, 1)}
}

func (t *ManualTrigger) C() <-chan time.Time { return t.ch }
func (t *ManualTrigger) Stop()               {}

// Fire queues one firing at the given time. A firing queued while the job
// is still running is delivered after it finishes; extra firings are dropped.
func (t *ManualTrigger) Fire(now time.Time) {
	select {
	case t.ch <- now:
	default:
	}
}

type entry struct {
	job      Job
	trigger  Trigger
	inFlight atomic.Bool
}

// Scheduler owns a set of job/trigger pairs and runs each job in its own
// goroutine. A trigger firing while its job is still running is skipped,
// so a slow sweep never re-enters itself.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a job with its trigger. Must be called before Start.
func (s *Scheduler) Add(job Job, trigger Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{job: job, trigger: trigger})
}

// Start runs all jobs until ctx is cancelled, then stops every trigger
// and waits for in-flight runs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	entries := s.entries
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			defer e.trigger.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-e.trigger.C():
					s.runJob(ctx, e, now)
				}
			}
		}(e)
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, e *entry, now time.Time) {
	if !e.inFlight.CompareAndSwap(false, true) {
		logger.Get().Warnw("skipping job, previous run still in flight", "job", e.job.Name)
		return
	}
	defer e.inFlight.Store(false)

	start := time.Now()
	if err := e.job.Run(ctx, now); err != nil {
		logger.Get().Errorw("job failed",
			"job", e.job.Name,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	logger.Get().Infow("job completed",
		"job", e.job.Name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
