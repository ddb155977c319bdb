package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/config"
)

// EventKind distinguishes log lines from state changes.
type EventKind int

const (
	EventLog EventKind = iota
	EventState
)

// Event is delivered to observers for every supervisor log line and every
// state change.
type Event struct {
	Time    time.Time
	Kind    EventKind
	Level   common.LogLevel
	Message string
	State   State
}

// Options configures a Supervisor. Zero fields get production defaults.
type Options struct {
	// Resolver supplies the endpoint at construction and on every restart.
	Resolver    EndpointResolver
	Prober      Prober
	Launcher    Launcher
	Terminators []ProcessTerminator
	LaunchSpec  LaunchSpec
	Timings     config.Timings
	Metrics     *Metrics
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Supervisor owns the gateway lifecycle state. It is the only component
// that terminates a process it launched.
type Supervisor struct {
	resolver    EndpointResolver
	prober      Prober
	launcher    Launcher
	terminators []ProcessTerminator
	spec        LaunchSpec
	timings     config.Timings
	metrics     *Metrics
	sleep       func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	state      State
	statusText string
	endpoint   Endpoint
	handle     Handle
	// stopGen is bumped by every Stop; a start that sees it change abandons
	// its transition.
	stopGen uint64

	flight     singleflight.Group
	restarting atomic.Bool

	obsMu     sync.RWMutex
	observers map[int]func(Event)
	nextObs   int
}

// NewSupervisor builds a supervisor in state Unknown and resolves the
// initial endpoint.
func NewSupervisor(opts Options) *Supervisor {
	s := &Supervisor{
		resolver:    opts.Resolver,
		prober:      opts.Prober,
		launcher:    opts.Launcher,
		terminators: opts.Terminators,
		spec:        opts.LaunchSpec,
		timings:     opts.Timings.WithDefaults(),
		metrics:     opts.Metrics,
		sleep:       opts.Sleep,
		state:       StateUnknown,
		statusText:  "Gateway status unknown",
		observers:   make(map[int]func(Event)),
	}
	if s.resolver == nil {
		s.resolver = StaticResolver(DefaultEndpoint())
	}
	if s.prober == nil {
		s.prober = NewHTTPProber()
	}
	if s.launcher == nil {
		s.launcher = NewExecLauncher()
	}
	if s.terminators == nil {
		s.terminators = DefaultTerminators(NewPortReaper())
	}
	if s.sleep == nil {
		s.sleep = sleepCtx
	}
	if s.spec.Marker == "" {
		s.spec.Marker = common.LaunchMarker
	}
	s.endpoint = s.resolveEndpoint()
	s.metrics.observeState(StateUnknown, StateUnknown)
	return s
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StatusText returns a one-line description of the current state.
func (s *Supervisor) StatusText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusText
}

// Endpoint returns the endpoint currently supervised.
func (s *Supervisor) Endpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// OwnsProcess reports whether a gateway launched by this session is alive.
func (s *Supervisor) OwnsProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && s.handle.Alive()
}

// Subscribe registers fn for every event. Observers run synchronously on the
// goroutine performing the operation and must not block. The returned
// function removes the observer.
func (s *Supervisor) Subscribe(fn func(Event)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

// ReloadEndpoint re-reads the endpoint from the config source.
func (s *Supervisor) ReloadEndpoint() Endpoint {
	ep := s.resolveEndpoint()
	s.mu.Lock()
	old := s.endpoint
	s.endpoint = ep
	s.mu.Unlock()
	if !old.Equal(ep) {
		s.logf(common.LevelInfo, "Gateway endpoint is now %s", ep.BaseURL)
	}
	return ep
}

func (s *Supervisor) resolveEndpoint() Endpoint {
	ep, err := s.resolver()
	if err != nil {
		s.logf(common.LevelWarn, "endpoint unavailable, falling back to default port: %v", err)
	}
	return ep
}

// Start brings the gateway online. If it already answers health checks no
// process is spawned. Otherwise the gateway is launched and polled until
// healthy or the attempt budget runs out, in which case the process is left
// running and ErrStartTimeout is returned. Concurrent calls share one start.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.State() == StateStopping {
		s.logf(common.LevelWarn, "Gateway is stopping; start request rejected")
		s.metrics.observeOp("start", common.ErrStopInProgress)
		return common.ErrStopInProgress
	}

	_, err, shared := s.flight.Do("start", func() (any, error) {
		return nil, s.doStart(ctx)
	})
	if shared {
		s.metrics.observeCoalesced("start")
	}
	s.metrics.observeOp("start", err)
	return err
}

func (s *Supervisor) doStart(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopping {
		s.mu.Unlock()
		return common.ErrStopInProgress
	}
	gen := s.stopGen
	ep := s.endpoint
	s.mu.Unlock()

	s.logf(common.LevelInfo, "Starting gateway...")

	if s.probe(ctx, ep) {
		if s.setStateIf(gen, StateOnline, "") {
			s.logf(common.LevelInfo, "Gateway is already running!")
		}
		return nil
	}

	if !s.setStateIf(gen, StateStarting, "") {
		return fmt.Errorf("%w: stop requested", common.ErrCancelled)
	}

	handle, err := s.ownedOrLaunch(ctx, gen, ep)
	if err != nil {
		return err
	}

	attempts := s.timings.StartPollAttempts
	exitReported := false
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.sleep(ctx, s.timings.StartPollInterval); err != nil {
			msg := "Gateway start cancelled"
			s.setStateIf(gen, StateError, msg)
			s.logf(common.LevelWarn, "%s: %v", msg, err)
			return fmt.Errorf("%w: %v", common.ErrCancelled, err)
		}
		if s.superseded(gen) {
			return fmt.Errorf("%w: stop requested", common.ErrCancelled)
		}
		if !exitReported && !handle.Alive() {
			exitReported = true
			s.logf(common.LevelWarn, "Gateway process %d exited early%s", handle.Pid(), exitDetail(handle))
		}
		if s.probe(ctx, ep) {
			if !s.setStateIf(gen, StateOnline, "") {
				return fmt.Errorf("%w: stop requested", common.ErrCancelled)
			}
			s.logf(common.LevelInfo, "Gateway started successfully!")
			return nil
		}
		s.logf(common.LevelDebug, "Health check %d/%d: gateway not ready", attempt, attempts)
	}

	msg := "Gateway failed to start. Check the terminal for errors."
	if s.setStateIf(gen, StateError, msg) {
		s.logf(common.LevelError, "%s", msg)
	}
	return fmt.Errorf("%w after %d attempts", common.ErrStartTimeout, attempts)
}

// ownedOrLaunch returns the live child from an earlier start, or launches a
// new one. Only one child per session is ever tracked.
func (s *Supervisor) ownedOrLaunch(ctx context.Context, gen uint64, ep Endpoint) (Handle, error) {
	s.mu.Lock()
	if s.handle != nil && !s.handle.Alive() {
		s.handle = nil
	}
	existing := s.handle
	s.mu.Unlock()

	if existing != nil {
		s.logf(common.LevelInfo, "Gateway process %d%s is still running; waiting for %s instead of launching another",
			existing.Pid(), uptime(existing), ep.HealthURL())
		return existing, nil
	}

	handle, err := s.launcher.Launch(ctx, s.spec)
	s.metrics.observeLaunch(err)
	if err != nil {
		if !errors.Is(err, common.ErrLaunchFailed) {
			err = fmt.Errorf("%w: %v", common.ErrLaunchFailed, err)
		}
		msg := fmt.Sprintf("Error starting gateway: %v", err)
		s.setStateIf(gen, StateError, msg)
		s.logf(common.LevelError, "%s", msg)
		return nil, err
	}

	s.mu.Lock()
	if s.stopGen != gen {
		s.mu.Unlock()
		// A stop ran while we were spawning; do not leave this child behind.
		_ = handle.KillTree(ctx)
		return nil, fmt.Errorf("%w: stop requested", common.ErrCancelled)
	}
	s.handle = handle
	s.mu.Unlock()

	s.logf(common.LevelInfo, "Gateway process started (pid %d), waiting for %s", handle.Pid(), ep.HealthURL())
	return handle, nil
}

// uptime renders " (up 2m3s)" for handles that know their start time.
func uptime(h Handle) string {
	if st, ok := h.(interface{ StartedAt() time.Time }); ok {
		return fmt.Sprintf(" (up %s)", time.Since(st.StartedAt()).Round(time.Second))
	}
	return ""
}

// exitDetail renders ": exit status 1" for handles that report their exit.
func exitDetail(h Handle) string {
	if ee, ok := h.(interface{ ExitErr() error }); ok && ee.ExitErr() != nil {
		return ": " + ee.ExitErr().Error()
	}
	return ""
}

// Stop takes the gateway down using every terminator in order, waits for
// the port to settle and confirms with one probe. If the gateway still
// answers the state becomes Error and ErrStopAmbiguous is returned.
// Concurrent calls share one stop.
func (s *Supervisor) Stop(ctx context.Context) error {
	_, err, shared := s.flight.Do("stop", func() (any, error) {
		return nil, s.doStop(ctx)
	})
	if shared {
		s.metrics.observeCoalesced("stop")
	}
	s.metrics.observeOp("stop", err)
	return err
}

func (s *Supervisor) doStop(ctx context.Context) error {
	// The generation bump and the Stopping state land together so a start
	// can never take the new generation without seeing Stopping.
	s.mu.Lock()
	s.stopGen++
	ep := s.endpoint
	handle := s.handle
	from := s.applyLocked(StateStopping, "")
	s.mu.Unlock()
	s.afterTransition(from, StateStopping)

	s.logf(common.LevelInfo, "Stopping gateway...")

	target := TerminationTarget{Handle: handle, Endpoint: ep, Marker: s.spec.Marker}
	for _, t := range s.terminators {
		n, err := t.Terminate(ctx, target)
		s.metrics.observeKills(t.Name(), n)
		if err != nil {
			s.logf(common.LevelWarn, "Stop step %s: %v", t.Name(), err)
			continue
		}
		if n > 0 {
			s.logf(common.LevelDebug, "Stop step %s killed %d process(es)", t.Name(), n)
		}
	}

	if err := s.sleep(ctx, s.timings.StopSettle); err != nil {
		msg := "Gateway stop interrupted"
		s.setState(StateError, msg)
		s.logf(common.LevelWarn, "%s: %v", msg, err)
		return fmt.Errorf("%w: %v", common.ErrCancelled, err)
	}

	if s.probe(ctx, ep) {
		msg := "Warning: Gateway may still be running. Try closing the terminal window manually."
		s.setState(StateError, msg)
		s.logf(common.LevelWarn, "%s", msg)
		return common.ErrStopAmbiguous
	}

	s.mu.Lock()
	if s.handle == handle {
		s.handle = nil
	}
	s.mu.Unlock()
	s.setState(StateOffline, "")
	s.logf(common.LevelInfo, "Gateway stopped")
	return nil
}

// Restart stops the gateway, waits, re-reads the endpoint and starts it
// again. A restart requested while another is running is dropped and
// returns ErrRestartInProgress.
func (s *Supervisor) Restart(ctx context.Context) error {
	return s.RestartWithMessage(ctx, "Restarting gateway...")
}

// RestartWithMessage is Restart with a caller-chosen opening log line.
func (s *Supervisor) RestartWithMessage(ctx context.Context, msg string) error {
	if !s.restarting.CompareAndSwap(false, true) {
		s.logf(common.LevelInfo, "Restart already in progress; request ignored")
		s.metrics.observeCoalesced("restart")
		return common.ErrRestartInProgress
	}
	defer s.restarting.Store(false)

	s.logf(common.LevelInfo, "%s", msg)

	err := s.Stop(ctx)
	if err != nil && !errors.Is(err, common.ErrStopAmbiguous) {
		s.metrics.observeOp("restart", err)
		return err
	}

	if err := s.sleep(ctx, s.timings.RestartSettle); err != nil {
		err = fmt.Errorf("%w: %v", common.ErrCancelled, err)
		s.metrics.observeOp("restart", err)
		return err
	}

	s.ReloadEndpoint()
	err = s.Start(ctx)
	s.metrics.observeOp("restart", err)
	return err
}

// Status probes the gateway once and reports Online or Offline. Outside a
// transition the result also becomes the supervisor state. It never fails.
func (s *Supervisor) Status(ctx context.Context) State {
	ep := s.Endpoint()
	s.logf(common.LevelInfo, "Checking gateway status...")

	observed := StateOffline
	if s.probe(ctx, ep) {
		observed = StateOnline
	}

	s.mu.Lock()
	from := s.state
	to := from
	if !from.Busy() {
		if observed == StateOffline && s.handle != nil && !s.handle.Alive() {
			s.handle = nil
		}
		s.applyLocked(observed, "")
		to = observed
	}
	s.mu.Unlock()

	s.afterTransition(from, to)
	if from == to {
		// Observers still hear about every status check.
		s.emit(Event{Time: time.Now(), Kind: EventState, Level: common.LevelInfo, State: to, Message: to.String()})
	}

	if observed == StateOnline {
		s.logf(common.LevelInfo, "Gateway is ONLINE")
	} else {
		s.logf(common.LevelInfo, "Gateway is OFFLINE")
	}
	s.metrics.observeOp("status", nil)
	return observed
}

func (s *Supervisor) probe(ctx context.Context, ep Endpoint) bool {
	start := time.Now()
	ok := s.prober.Probe(ctx, ep.HealthURL(), s.timings.ProbeTimeout)
	s.metrics.observeProbe(ok, time.Since(start))
	return ok
}

func (s *Supervisor) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopGen != gen
}

// setStateIf transitions only if no stop has run since gen was taken.
func (s *Supervisor) setStateIf(gen uint64, to State, text string) bool {
	s.mu.Lock()
	if s.stopGen != gen {
		s.mu.Unlock()
		return false
	}
	from := s.applyLocked(to, text)
	s.mu.Unlock()
	s.afterTransition(from, to)
	return true
}

func (s *Supervisor) setState(to State, text string) {
	s.mu.Lock()
	from := s.applyLocked(to, text)
	s.mu.Unlock()
	s.afterTransition(from, to)
}

func (s *Supervisor) applyLocked(to State, text string) State {
	from := s.state
	s.state = to
	if text == "" {
		text = defaultStatusText(to)
	}
	s.statusText = text
	return from
}

func (s *Supervisor) afterTransition(from, to State) {
	s.metrics.observeState(from, to)
	if from == to {
		return
	}
	common.LogDebug("Gateway state %s -> %s", from, to)
	s.emit(Event{Time: time.Now(), Kind: EventState, Level: common.LevelInfo, State: to, Message: to.String()})
}

func defaultStatusText(st State) string {
	switch st {
	case StateOnline:
		return "Gateway is ONLINE"
	case StateOffline:
		return "Gateway is OFFLINE"
	case StateStarting:
		return "Starting gateway..."
	case StateStopping:
		return "Stopping gateway..."
	case StateError:
		return "Gateway error"
	default:
		return "Gateway status unknown"
	}
}

func (s *Supervisor) logf(level common.LogLevel, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger := common.GetLogger()
	switch level {
	case common.LevelDebug:
		logger.Debug("%s", msg)
	case common.LevelWarn:
		logger.Warn("%s", msg)
	case common.LevelError:
		logger.Error("%s", msg)
	default:
		logger.Info("%s", msg)
	}
	if level == common.LevelDebug {
		return
	}
	s.emit(Event{Time: time.Now(), Kind: EventLog, Level: level, Message: msg, State: s.State()})
}

func (s *Supervisor) emit(ev Event) {
	s.obsMu.RLock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
