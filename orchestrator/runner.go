package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/metrics"
)

// Runner repeats a cycle until stopped. The first cycle runs immediately; after a
// failed or panicking cycle the next one waits backoff instead of interval.
type Runner struct {
	cycle    func(ctx context.Context) error
	interval time.Duration
	backoff  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	status  RunnerStatus
	running bool
}

type RunnerStatus struct {
	Cycles    int       `json:"cycles"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

func NewRunner(cycle func(ctx context.Context) error, interval, backoff time.Duration) *Runner {
	return &Runner{cycle: cycle, interval: interval, backoff: backoff}
}

// Start launches the loop in the background; a second call is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	go func() {
		defer close(r.done)
		r.loop(ctx)
	}()
}

// Stop cancels the loop and waits for the current cycle to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.running = false
	r.mu.Unlock()

	cancel()
	<-done
}

func (r *Runner) Status() RunnerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) loop(ctx context.Context) {
	log.Printf("refresh runner started (interval=%s, backoff=%s)", r.interval, r.backoff)
	for {
		wait := r.interval
		if err := r.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("refresh cycle failed, retrying in %s: %v", r.backoff, err)
			wait = r.backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Printf("refresh runner stopped")
			return
		case <-timer.C:
		}
	}
	log.Printf("refresh runner stopped")
}

func (r *Runner) runOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CycleFailures.Inc()
		}

		r.mu.Lock()
		r.status.Cycles++
		r.status.LastRun = start
		r.status.LastError = ""
		if err != nil {
			r.status.Failures++
			r.status.LastError = err.Error()
		}
		r.mu.Unlock()
	}()
	return r.cycle(ctx)
}
