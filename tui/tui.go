// Package tui is a terminal dashboard for the gateway supervisor.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/claw-manager/gateway"
)

// maxLines bounds the scrollback kept in memory.
const maxLines = 500

// Controller is the part of the supervisor the dashboard drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Status(ctx context.Context) gateway.State
	State() gateway.State
	StatusText() string
	Endpoint() gateway.Endpoint
	Subscribe(fn func(gateway.Event)) func()
}

// Options configure the dashboard.
type Options struct {
	// PollInterval re-checks status periodically; zero disables polling.
	PollInterval time.Duration
	// Open launches the web UI; nil hides the shortcut.
	Open func(url string) error
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, ctl Controller, opts Options) error {
	m := newModel(ctx, ctl, opts)
	defer m.unsubscribe()
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type eventMsg struct{ event gateway.Event }

// stateChangedMsg says the supervisor's state moved; the model re-reads it.
type stateChangedMsg struct{}

type opDoneMsg struct {
	op  string
	err error
}

type tickMsg struct{}

type model struct {
	ctx  context.Context
	ctl  Controller
	opts Options

	events      chan gateway.Event
	changed     chan struct{}
	unsubscribe func()

	state      gateway.State
	statusText string
	endpoint   gateway.Endpoint
	busyOp     string
	lastErr    error

	lines    []string
	viewport viewport.Model
	spinner  spinner.Model

	width, height int
	quitting      bool
}

func newModel(ctx context.Context, ctl Controller, opts Options) model {
	events := make(chan gateway.Event, 256)
	// State changes coalesce into one pending signal so a burst of log
	// lines can never crowd them out.
	changed := make(chan struct{}, 1)
	unsubscribe := ctl.Subscribe(func(ev gateway.Event) {
		// Observers must not block the supervisor.
		if ev.Kind == gateway.EventState {
			select {
			case changed <- struct{}{}:
			default:
			}
			return
		}
		select {
		case events <- ev:
		default:
		}
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = busyStyle

	return model{
		ctx:         ctx,
		ctl:         ctl,
		opts:        opts,
		events:      events,
		changed:     changed,
		unsubscribe: unsubscribe,
		state:       ctl.State(),
		statusText:  ctl.StatusText(),
		endpoint:    ctl.Endpoint(),
		viewport:    viewport.New(80, 10),
		spinner:     sp,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		listenEvents(m.events),
		listenChanges(m.changed),
		m.spinner.Tick,
		runOp(m.ctx, "status", func(ctx context.Context) error {
			m.ctl.Status(ctx)
			return nil
		}),
	}
	if m.opts.PollInterval > 0 {
		cmds = append(cmds, tickCmd(m.opts.PollInterval))
	}
	return tea.Batch(cmds...)
}

func listenEvents(ch <-chan gateway.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

func listenChanges(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return tickMsg{} })
}

func runOp(ctx context.Context, op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-headerHeight)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.applyEvent(msg.event)
		return m, listenEvents(m.events)

	case stateChangedMsg:
		m.syncState()
		return m, listenChanges(m.changed)

	case opDoneMsg:
		if msg.op == m.busyOp {
			m.busyOp = ""
		}
		m.lastErr = msg.err
		m.syncState()
		return m, nil

	case tickMsg:
		m.syncState()
		cmds := []tea.Cmd{tickCmd(m.opts.PollInterval)}
		if m.busyOp == "" && !m.state.Busy() {
			cmds = append(cmds, runOp(m.ctx, "status", func(ctx context.Context) error {
				m.ctl.Status(ctx)
				return nil
			}))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "s":
		return m.startOp("start", m.ctl.Start)
	case "x":
		return m.startOp("stop", m.ctl.Stop)
	case "r":
		return m.startOp("restart", m.ctl.Restart)
	case "c":
		return m.startOp("status", func(ctx context.Context) error {
			m.ctl.Status(ctx)
			return nil
		})
	case "o":
		if m.opts.Open == nil {
			return m, nil
		}
		if err := m.opts.Open(m.endpoint.WebURL()); err != nil {
			m.lastErr = err
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// startOp runs one supervisor call at a time from the keyboard; the
// supervisor coalesces anything that still overlaps.
func (m model) startOp(op string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	if m.busyOp != "" {
		return m, nil
	}
	m.busyOp = op
	m.lastErr = nil
	return m, runOp(m.ctx, op, fn)
}

// syncState copies the header fields from the supervisor itself, so a
// missed event never leaves them stale.
func (m *model) syncState() {
	m.state = m.ctl.State()
	m.statusText = m.ctl.StatusText()
	m.endpoint = m.ctl.Endpoint()
}

func (m *model) applyEvent(ev gateway.Event) {
	if ev.Kind == gateway.EventState {
		m.syncState()
		return
	}
	line := fmt.Sprintf("%s %-5s %s", ev.Time.Format("15:04:05"), ev.Level, ev.Message)
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.refreshViewport()
}

func (m *model) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}
