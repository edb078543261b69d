package radio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/skobkin/rfmgo/internal/events"
	"github.com/skobkin/rfmgo/internal/openthings"
)

var (
	ErrBusy        = errors.New("an operation is already running on this radio")
	ErrNoActiveRun = errors.New("no operation is running")
)

type Options struct {
	WaitTimeout time.Duration
	// IdentifyStopOnMatch ends identify runs after the first pulse.
	IdentifyStopOnMatch bool
	// OtaSettleDelay overrides DefaultSettleDelay when positive.
	OtaSettleDelay time.Duration
}

// Service runs at most one operation at a time against a radio driver.
type Service struct {
	logger *slog.Logger
	driver Driver
	codec  Codec
	table  openthings.ManufacturerTable
	cfg    Configuration
	events events.Publisher
	opts   Options

	mu     sync.Mutex
	active *Run
}

func NewService(logger *slog.Logger, driver Driver, codec Codec, table openthings.ManufacturerTable, cfg Configuration, pub events.Publisher, opts Options) *Service {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	return &Service{
		logger: logger,
		driver: driver,
		codec:  codec,
		table:  table,
		cfg:    cfg.clone(),
		events: pub,
		opts:   opts,
	}
}

// Run is the handle of one asynchronous operation run.
type Run struct {
	ID        uuid.UUID
	Operation string

	mux   *SignalMux
	done  chan struct{}
	state atomic.Int32

	result Result
	err    error
}

func (r *Run) State() State {
	return State(r.state.Load())
}

// Done is closed once the run has terminated and released the radio.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result blocks until the run terminates.
func (r *Run) Result() (Result, error) {
	<-r.done
	return r.result, r.err
}

// Start launches op on a worker goroutine. It fails with ErrBusy while a
// previous run has not been stopped.
func (s *Service) Start(op Operation) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, fmt.Errorf("start %s: %w", op.Name(), ErrBusy)
	}

	run := &Run{
		ID:        uuid.New(),
		Operation: op.Name(),
		mux:       NewSignalMux(),
		done:      make(chan struct{}),
	}
	run.state.Store(int32(StateIdle))
	s.active = run

	l := &loop{
		logger:      s.logger.With("run_id", run.ID.String(), "operation", op.Name()),
		runID:       run.ID.String(),
		driver:      s.driver,
		cfg:         s.cfg,
		mux:         run.mux,
		decoder:     s.codec,
		table:       s.table,
		op:          op,
		waitTimeout: s.opts.WaitTimeout,
		events:      s.events,
		onState: func(st State) {
			run.state.Store(int32(st))
		},
	}

	s.publishStatus(run, nil)
	go s.work(run, l)
	return run, nil
}

func (s *Service) work(run *Run, l *loop) {
	defer close(run.done)
	defer func() {
		if p := recover(); p != nil {
			run.result = ResultFailed
			run.err = fmt.Errorf("operation %s panicked: %v", run.Operation, p)
			run.state.Store(int32(StateStopped))
			s.logger.Error("operation panicked", "run_id", run.ID.String(), "panic", p)
		}
		s.publishStatus(run, run.err)
	}()

	run.result, run.err = l.run()
	if run.err != nil {
		s.logger.Error("operation failed", "run_id", run.ID.String(), "operation", run.Operation, "error", run.err)
	}
}

func (s *Service) StartListen() (*Run, error) {
	return s.Start(NewListen(s.logger))
}

func (s *Service) StartIdentify(sensorID uint32) (*Run, error) {
	op := NewIdentify(s.logger, sensorID, NewResponder(s.codec, s.table))
	op.StopOnMatch = s.opts.IdentifyStopOnMatch
	return s.Start(op)
}

func (s *Service) StartIntervalUpdate(sensorID uint32, outputPower int8, interval uint32) (*Run, error) {
	return s.Start(NewIntervalUpdate(s.logger, sensorID, outputPower, interval, NewResponder(s.codec, s.table)))
}

func (s *Service) StartOtaUpdate(sensorID uint32, outputPower int8, hexFile string, updater FirmwareUpdater) (*Run, error) {
	op := NewOtaTrigger(s.logger, sensorID, outputPower, hexFile, NewResponder(s.codec, s.table), updater)
	if s.opts.OtaSettleDelay > 0 {
		op.WithSettleDelay(s.opts.OtaSettleDelay)
	}
	return s.Start(op)
}

func (s *Service) StartBootloader(sensorID uint32) (*Run, error) {
	return s.Start(NewEnterBootloader(s.logger, sensorID, NewResponder(s.codec, s.table)))
}

// StartFlash transfers firmware straight away to a device already in its
// bootloader.
func (s *Service) StartFlash(outputPower int8, hexFile string, updater FirmwareUpdater) (*Run, error) {
	return s.Start(NewFlash(s.logger, outputPower, hexFile, updater))
}

func (s *Service) StartRssi() (*Run, error) {
	return s.Start(NewRssi(s.logger))
}

// Stop requests cancellation, waits for the worker to release the radio and
// returns the final result. A run that already ended on its own reports its
// own result.
func (s *Service) Stop() (Result, error) {
	s.mu.Lock()
	run := s.active
	s.mu.Unlock()
	if run == nil {
		return ResultCancelled, ErrNoActiveRun
	}

	run.mux.RequestStop()
	result, err := run.Result()

	s.mu.Lock()
	if s.active == run {
		s.active = nil
	}
	s.mu.Unlock()
	return result, err
}

// Active returns the current run, or nil.
func (s *Service) Active() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Done is closed when the current run terminates. Without a run it is
// already closed.
func (s *Service) Done() <-chan struct{} {
	if run := s.Active(); run != nil {
		return run.Done()
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (s *Service) publishStatus(run *Run, err error) {
	if s.events == nil {
		return
	}
	status := events.RunStatus{
		RunID:     run.ID.String(),
		Operation: run.Operation,
		State:     run.State().String(),
		Timestamp: time.Now(),
	}
	if run.State() == StateStopped {
		status.Result = run.result.String()
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.events.Publish(events.TopicRunStatus, status)
}
