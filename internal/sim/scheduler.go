package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for lifecycle and per-tick messages.
func WithLogger(l logr.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithEngineOptions are applied to the engine created by every Start.
func WithEngineOptions(opts ...physics.Option) Option {
	return func(s *Scheduler) { s.engineOpts = append(s.engineOpts, opts...) }
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
)

type command struct {
	kind     commandKind
	settings Settings
	reply    chan error
}

// session is the state of one start/stop cycle. Only the loop goroutine
// touches it.
type session struct {
	id       string
	engine   *physics.Engine
	settings Settings
	ticker   *time.Ticker
	invalid  bool
}

// Scheduler drives a physics engine on a wall-clock ticker and publishes a
// snapshot after every tick. All engine access happens on a single loop
// goroutine; Start and Stop are commands sent to it, so a tick never
// overlaps a restart.
//
// Ticks that fall due while a previous tick or publish is still running
// are dropped, following time.Ticker semantics.
//
// Start, Stop and Close may be called from inside Publish. Such a call
// cannot wait for the loop, which is busy publishing, so it returns at once
// and takes effect as soon as the current publish returns, before any
// further tick. The same applies to a call from another goroutine that
// lands while a publish is in progress.
type Scheduler struct {
	bodies     []dynamo.Body
	pub        Publisher
	log        logr.Logger
	engineOpts []physics.Option

	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool

	mu         sync.Mutex
	publishing bool
	pending    []command
}

// New returns a stopped scheduler for the given initial bodies. Every Start
// begins again from a copy of them.
func New(bodies []dynamo.Body, pub Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{
		bodies: dynamo.CloneBodies(bodies),
		pub:    pub,
		log:    logr.Discard(),
		cmds:   make(chan command),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pub == nil {
		s.pub = PublisherFunc(func(dynamo.Snapshot) {})
	}

	go s.loop()
	return s
}

// Start begins a new session, stopping the current one first. It returns
// after the first tick has been published. Invalid settings or bodies are
// rejected before the running session is touched. If ctx ends after the
// command was accepted, Start returns ctx.Err() but the restart still happens.
//
// When called during a publish, Start validates, queues the restart and
// returns before the new session's first tick.
func (s *Scheduler) Start(ctx context.Context, settings Settings) error {
	if _, err := s.newEngine(settings); err != nil {
		return err
	}
	return s.send(ctx, command{kind: cmdStart, settings: settings})
}

// Stop ends the current session. No tick runs after Stop returns.
// Stopping a stopped or closed scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	err := s.send(ctx, command{kind: cmdStop})
	if errors.Is(err, dynamo.ErrClosed) {
		return nil
	}
	return err
}

// Running reports whether a session is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// State is Running or Stopped.
func (s *Scheduler) State() State {
	if s.Running() {
		return Running
	}
	return Stopped
}

// Close stops any session and terminates the loop goroutine. Called during
// a publish it returns without waiting for the loop to exit.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.quit) })

	s.mu.Lock()
	publishing := s.publishing
	s.mu.Unlock()
	if publishing {
		return
	}
	<-s.done
}

func (s *Scheduler) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	if s.enqueue(cmd) {
		return nil
	}

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return dynamo.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue defers cmd to the end of the publish in progress, if any.
func (s *Scheduler) enqueue(cmd command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.publishing {
		return false
	}
	s.pending = append(s.pending, cmd)
	return true
}

func (s *Scheduler) takePending() []command {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := s.pending
	s.pending = nil
	return cmds
}

func (s *Scheduler) loop() {
	defer close(s.done)

	var cur *session
	for {
		select {
		case <-s.quit:
			if cur != nil {
				s.halt(cur, "closed")
			}
			return
		default:
		}

		var tickC <-chan time.Time
		if cur != nil {
			tickC = cur.ticker.C
		}

		select {
		case <-s.quit:
			if cur != nil {
				s.halt(cur, "closed")
			}
			return

		case cmd := <-s.cmds:
			cur = s.handle(cur, cmd)

		case <-tickC:
			if reason := s.tick(cur); reason != "" {
				s.halt(cur, reason)
				cur = nil
			}
		}

		// Commands issued while publishing, possibly by the publisher.
		for cmds := s.takePending(); len(cmds) > 0; cmds = s.takePending() {
			for _, cmd := range cmds {
				cur = s.handle(cur, cmd)
			}
		}
	}
}

func (s *Scheduler) handle(cur *session, cmd command) *session {
	switch cmd.kind {
	case cmdStart:
		next, err := s.start(cur, cmd.settings)
		cmd.reply <- err
		if err != nil {
			return cur
		}
		return next
	case cmdStop:
		if cur != nil {
			s.halt(cur, "stop requested")
		}
		cmd.reply <- nil
		return nil
	}
	return cur
}

func (s *Scheduler) newEngine(settings Settings) (*physics.Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	engine, err := physics.NewEngine(s.bodies, settings.StepSeconds, s.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return engine, nil
}

// start builds the next session. On error prev is left untouched; on
// success prev has been halted and the returned session, which may be nil
// if the very first tick ended it, replaces it.
func (s *Scheduler) start(prev *session, settings Settings) (*session, error) {
	engine, err := s.newEngine(settings)
	if err != nil {
		return nil, err
	}

	if prev != nil {
		s.halt(prev, "restart")
	}

	next := &session{
		id:       uuid.NewString(),
		engine:   engine,
		settings: settings,
	}
	s.running.Store(true)
	s.log.Info("simulation started", "session", next.id, "bodies", engine.Len(),
		"interval", settings.Interval, "step", settings.StepSeconds)

	if reason := s.tick(next); reason != "" {
		s.halt(next, reason)
		return nil, nil
	}
	next.ticker = time.NewTicker(settings.Interval)
	return next, nil
}

func (s *Scheduler) halt(sess *session, reason string) {
	if sess.ticker != nil {
		sess.ticker.Stop()
	}
	s.running.Store(false)
	s.log.Info("simulation stopped", "session", sess.id, "reason", reason,
		"ticks", sess.engine.Ticks(), "time", sess.engine.Time())
}

// tick advances the engine once and publishes the result. It returns why
// the session should end, or "" to keep running.
func (s *Scheduler) tick(sess *session) string {
	sess.engine.Advance()

	snap := dynamo.Snapshot{
		Session: sess.id,
		Tick:    sess.engine.Ticks(),
		Time:    sess.engine.Time(),
		Step:    sess.engine.Step(),
		Bodies:  sess.engine.Bodies(),
	}
	s.log.V(2).Info("tick", "session", sess.id, "tick", snap.Tick, "time", snap.Time)

	err := snap.Err()
	if err != nil && !sess.invalid {
		sess.invalid = true
		s.log.Error(err, "simulation state became invalid", "session", sess.id)
	}

	s.publish(snap)

	switch {
	case err != nil && sess.settings.StopOnInvalid:
		return "invalid state"
	case sess.settings.MaxTicks > 0 && snap.Tick >= sess.settings.MaxTicks:
		return "tick limit"
	}
	return ""
}

func (s *Scheduler) publish(snap dynamo.Snapshot) {
	s.mu.Lock()
	s.publishing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.publishing = false
		s.mu.Unlock()

		if r := recover(); r != nil {
			s.log.Error(fmt.Errorf("%v", r), "publisher panicked", "session", snap.Session, "tick", snap.Tick)
		}
	}()
	s.pub.Publish(snap)
}
