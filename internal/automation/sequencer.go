package automation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/intellagent/scheduling-service/internal/observability/metrics"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// ErrRunActive is returned when a trigger arrives while a run is already
// pending or executing. Runs are strictly single-flight; concurrent fills
// against the same booking session would interleave and corrupt the draft.
var ErrRunActive = errors.New("automation: a run is already active")

// StageObserver is notified after every stage transition. errMsg is empty
// except for StageError.
type StageObserver func(stage Stage, errMsg string)

// Sequencer owns the process-wide automation state: the single registration
// slot for the live booking session, the current stage, and the in-flight
// run. The payload producer (chat service) and the target registrant (booking
// session manager) may appear in either order; the run starts exactly once
// when both are present.
type Sequencer struct {
	logger     *logging.Logger
	metrics    *metrics.AutomationMetrics
	clearDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	events chan stageEvent

	mu         sync.Mutex
	stage      Stage
	errMsg     string
	payload    *Payload
	handle     *TargetHandle
	started    bool
	running    bool
	clearTimer *time.Timer
	observers  []StageObserver
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithClearDelay sets how long a completed run stays visible before the stage
// resets to idle.
func WithClearDelay(d time.Duration) SequencerOption {
	return func(s *Sequencer) { s.clearDelay = d }
}

// WithMetrics attaches automation metrics.
func WithMetrics(m *metrics.AutomationMetrics) SequencerOption {
	return func(s *Sequencer) { s.metrics = m }
}

// NewSequencer creates an idle sequencer.
func NewSequencer(logger *logging.Logger, opts ...SequencerOption) *Sequencer {
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sequencer{
		logger:     logger,
		clearDelay: 4 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan stageEvent, 64),
		stage:      StageIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.dispatch()
	return s
}

type stageEvent struct {
	stage  Stage
	errMsg string
}

// dispatch delivers stage transitions to observers one at a time, in order.
func (s *Sequencer) dispatch() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.mu.Lock()
			observers := make([]StageObserver, len(s.observers))
			copy(observers, s.observers)
			s.mu.Unlock()
			for _, fn := range observers {
				fn(ev.stage, ev.errMsg)
			}
		}
	}
}

// Close cancels any in-flight run and pending clear timer. The sequencer must
// not be reused afterwards.
func (s *Sequencer) Close() {
	s.cancel()
	s.mu.Lock()
	if s.clearTimer != nil {
		s.clearTimer.Stop()
		s.clearTimer = nil
	}
	s.mu.Unlock()
}

// OnStage registers an observer for stage transitions.
func (s *Sequencer) OnStage(fn StageObserver) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Stage returns the current stage and error message (empty unless errored).
func (s *Sequencer) Stage() (Stage, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage, s.errMsg
}

// Active reports whether a run is pending or executing. Producers gate new
// triggers on this.
func (s *Sequencer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage.Active()
}

// Trigger stores a payload and moves to StagePending. The run begins as soon
// as a target handle is registered (it may already be). A trigger during an
// active run is rejected with ErrRunActive rather than interleaving fills.
func (s *Sequencer) Trigger(p Payload) error {
	s.mu.Lock()
	if s.stage.Active() || s.running {
		s.mu.Unlock()
		return ErrRunActive
	}
	if s.clearTimer != nil {
		s.clearTimer.Stop()
		s.clearTimer = nil
	}
	s.payload = &p
	s.started = false
	s.errMsg = ""
	s.setStageLocked(StagePending, "")
	s.maybeStartLocked()
	s.mu.Unlock()
	return nil
}

// Register installs a target handle, replacing any previous registrant
// (last-registered wins). The returned function unregisters the handle but
// only if the caller still owns the slot, so a stale widget tearing down
// cannot clear a fresh registration.
func (s *Sequencer) Register(h *TargetHandle) func() {
	s.mu.Lock()
	s.handle = h
	s.maybeStartLocked()
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if s.handle == h {
			s.handle = nil
		}
		s.mu.Unlock()
	}
}

// Clear resets the sequencer to idle, dropping any stored payload and error.
func (s *Sequencer) Clear() {
	s.mu.Lock()
	if s.clearTimer != nil {
		s.clearTimer.Stop()
		s.clearTimer = nil
	}
	s.payload = nil
	s.started = false
	s.setStageLocked(StageIdle, "")
	s.mu.Unlock()
}

func (s *Sequencer) maybeStartLocked() {
	if s.payload == nil || s.handle == nil || s.started || s.running {
		return
	}
	s.started = true
	s.running = true
	payload := *s.payload
	handle := s.handle
	go s.run(payload, handle)
}

func (s *Sequencer) run(p Payload, h *TargetHandle) {
	start := time.Now()

	// The run is marked finished before the terminal stage is announced, so
	// an observer reacting to it can immediately trigger the next run.
	fail := func(err error) {
		s.logger.Error("automation run failed", "error", err)
		s.finishRun()
		s.metrics.ObserveRun("error", time.Since(start).Seconds())
		s.setStage(StageError, err.Error())
	}

	s.setStage(StageScrolling, "")
	if h.ScrollIntoView != nil {
		if err := h.ScrollIntoView(s.ctx); err != nil {
			fail(err)
			return
		}
	}

	s.setStage(StageFilling, "")
	if h.FillForm != nil {
		if err := h.FillForm(s.ctx, p); err != nil {
			fail(err)
			return
		}
	}

	if h.SubmitForm != nil {
		s.setStage(StageSubmitting, "")
		if err := h.SubmitForm(s.ctx, p); err != nil {
			fail(err)
			return
		}
	}

	s.finishRun()
	s.metrics.ObserveRun("completed", time.Since(start).Seconds())
	s.setStage(StageCompleted, "")
	s.scheduleClear()
}

func (s *Sequencer) finishRun() {
	s.mu.Lock()
	s.running = false
	s.payload = nil
	s.mu.Unlock()
}

// scheduleClear resets a completed run back to idle after the observation
// delay, letting the UI show the confirmation first. A new trigger before the
// timer fires cancels it.
func (s *Sequencer) scheduleClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearTimer != nil {
		s.clearTimer.Stop()
	}
	s.clearTimer = time.AfterFunc(s.clearDelay, func() {
		s.mu.Lock()
		if s.stage == StageCompleted {
			s.setStageLocked(StageIdle, "")
		}
		s.clearTimer = nil
		s.mu.Unlock()
	})
}

func (s *Sequencer) setStage(stage Stage, errMsg string) {
	s.mu.Lock()
	s.setStageLocked(stage, errMsg)
	s.mu.Unlock()
}

// setStageLocked updates the stage and queues the observer notification.
// Callers hold mu. Delivery is asynchronous but ordered; if the queue is
// full the event is dropped rather than deadlocking under the lock.
func (s *Sequencer) setStageLocked(stage Stage, errMsg string) {
	s.stage = stage
	s.errMsg = errMsg
	s.metrics.ObserveStage(string(stage))
	select {
	case s.events <- stageEvent{stage: stage, errMsg: errMsg}:
	default:
		s.logger.Warn("stage event queue full, dropping notification", "stage", string(stage))
	}
}
