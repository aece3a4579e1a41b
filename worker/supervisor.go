package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mapslead/metrics"
	"mapslead/utils"
)

// ErrRecordGone is returned by a simulation whose record was deleted or left
// the running state underneath it. The run stops without touching the store.
var ErrRecordGone = errors.New("record no longer running")

// Supervisor runs background simulations, one per (kind, id), and owns their
// cancellation. A failing run (error or panic) is reported through its
// FailFunc so the owning record can be moved to a terminal state.
type Supervisor struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logrus.Entry
	metrics *metrics.Metrics

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
	wg    sync.WaitGroup
}

// FailFunc records a terminal failure with a human readable reason.
type FailFunc func(reason string)

func NewSupervisor(logger *logrus.Entry, m *metrics.Metrics) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		metrics: m,
		tasks:   make(map[string]context.CancelFunc),
	}
}

func taskKey(kind, id string) string {
	return kind + ":" + id
}

// Go starts run in its own goroutine and returns immediately. It returns false
// when a task with the same kind and id is already running or the supervisor
// has been shut down.
func (s *Supervisor) Go(kind, id string, run func(ctx context.Context) error, onFail FailFunc) bool {
	key := taskKey(kind, id)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if _, exists := s.tasks[key]; exists {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.tasks[key] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.tasks, key)
			s.mu.Unlock()
			cancel()
		}()
		s.execute(ctx, kind, id, run, onFail)
	}()
	return true
}

func (s *Supervisor) execute(ctx context.Context, kind, id string, run func(ctx context.Context) error, onFail FailFunc) {
	log := s.logger.WithFields(logrus.Fields{"kind": kind, "id": id})
	started := time.Now()

	s.metrics.SimulationsStarted.WithLabelValues(kind).Inc()
	s.metrics.SimulationsRunning.WithLabelValues(kind).Inc()
	defer s.metrics.SimulationsRunning.WithLabelValues(kind).Dec()

	outcome := "completed"
	defer func() {
		s.metrics.SimulationsFinished.WithLabelValues(kind, outcome).Inc()
		s.metrics.SimulationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	}()

	err := protect(ctx, run)
	switch {
	case err == nil:
		log.Debug("Simulation finished")
	case ctx.Err() != nil:
		outcome = "canceled"
		log.Info("Simulation canceled")
	case errors.Is(err, ErrRecordGone):
		outcome = "abandoned"
		log.Info("Simulation stopped: record was deleted or is no longer running")
	default:
		outcome = "failed"
		utils.LogError("simulation_failed", err, map[string]interface{}{"kind": kind, "id": id})
		if onFail != nil {
			onFail(err.Error())
		}
	}
}

// protect turns a panic inside run into an error.
func protect(ctx context.Context, run func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}

// Cancel stops the task for (kind, id). It reports whether a task was running.
func (s *Supervisor) Cancel(kind, id string) bool {
	s.mu.Lock()
	cancel, ok := s.tasks[taskKey(kind, id)]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether a task for (kind, id) is in flight.
func (s *Supervisor) Running(kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[taskKey(kind, id)]
	return ok
}

// Wait blocks until every started task has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Shutdown cancels all tasks and waits for them, or for ctx to expire.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
