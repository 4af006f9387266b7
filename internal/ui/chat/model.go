// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/controller"
	"github.com/jeranaias/confidant/internal/logging"
	"github.com/jeranaias/confidant/internal/messages"
	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/render"
	"github.com/jeranaias/confidant/internal/ui/styles"
)

// MaxInputLength caps a single message.
const MaxInputLength = 4000

// Conversation is the controller surface the view drives.
// *controller.Controller implements it.
type Conversation interface {
	Store() *messages.Store
	InFlight() int
	Begin(text string) (*controller.Pending, error)
	RetryBegin(id string) (*controller.Pending, error)
	LastFailed() (string, bool)
	LoadExisting(ctx context.Context) error
	Refresh(ctx context.Context) (bool, error)
	ClearMemory(ctx context.Context) (*api.Ack, error)
}

// HealthChecker reports backend health. *api.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) (*api.HealthStatus, error)
}

// Options configures New.
type Options struct {
	Conversation Conversation
	Persona      model.Persona
	Theme        *styles.Theme
	Renderer     *render.Renderer

	// Health is checked once at start-up. Optional.
	Health HealthChecker

	// Changes signals that the binding file was rewritten. Optional.
	Changes <-chan struct{}

	// Logout ends the session. Optional; without it the key is ignored.
	Logout func() error

	// Export saves the conversation and returns the file path. Optional.
	Export func(ctx context.Context) (string, error)

	Logger *slog.Logger
}

// Outcome tells the caller why the view exited.
type Outcome struct {
	LoggedOut   bool
	AuthExpired bool
}

// backendState is what the header shows about the server.
type backendState int

const (
	backendUnknown backendState = iota
	backendWaking
	backendHealthy
	backendOffline
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat view for one persona.
type Model struct {
	conv     Conversation
	persona  model.Persona
	theme    *styles.Theme
	renderer *render.Renderer
	health   HealthChecker
	changes  <-chan struct{}
	logout   func() error
	export   func(context.Context) (string, error)
	logger   *slog.Logger

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width    int
	height   int
	loading  bool
	showHelp bool

	// refreshing is set while a binding check runs; queued holds a change
	// seen while busy so it is checked once idle.
	refreshing    bool
	refreshQueued bool

	backend      backendState
	notice       string
	noticeIsErr  bool
	confirmClear bool

	outcome Outcome
}

// New creates the chat view.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(os.Stdout, styles.ThemeAuto)
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.New(render.Options{Theme: theme.Name})
	}

	input := textinput.New()
	input.Placeholder = "Message " + opts.Persona.Name + "..."
	input.Prompt = "> "
	input.PromptStyle = theme.Prompt
	input.CharLimit = MaxInputLength
	input.Focus()

	sp := spinner.New()
	sp.Spinner = styles.TypingSpinner.Spinner()
	sp.Style = theme.Typing

	return Model{
		conv:     opts.Conversation,
		persona:  opts.Persona,
		theme:    theme,
		renderer: renderer,
		health:   opts.Health,
		changes:  opts.Changes,
		logout:   opts.Logout,
		export:   opts.Export,
		logger:   logging.OrDiscard(opts.Logger),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  sp,
		loading:  true,
	}
}

// Outcome reports why the view exited.
func (m Model) Outcome() Outcome {
	return m.outcome
}

// Init loads the bound conversation and checks the backend.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		loadHistoryCmd(m.conv),
		m.spinner.Tick,
	}
	if m.health != nil {
		cmds = append(cmds, healthCmd(m.health), slowStartCmd())
	}
	if m.changes != nil {
		cmds = append(cmds, waitForChange(m.changes))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case HistoryLoadedMsg:
		return m.handleHistoryLoaded(msg)

	case SendResolvedMsg:
		return m.handleSendResolved(msg)

	case MemoryClearedMsg:
		return m.handleMemoryCleared(msg)

	case ExportedMsg:
		if msg.Err != nil {
			m.setNotice("Could not save: "+msg.Err.Error(), true)
		} else {
			m.setNotice("Saved to "+msg.Path, false)
		}
		return m, nil

	case BindingChangedMsg:
		return m.handleBindingChanged()

	case BindingRefreshedMsg:
		return m.handleBindingRefreshed(msg)

	case HealthMsg:
		if msg.Err != nil || msg.Status == nil || !msg.Status.OK() {
			m.backend = backendOffline
			m.logger.Warn("backend health check failed", "error", msg.Err)
		} else {
			m.backend = backendHealthy
		}
		return m, nil

	case SlowStartMsg:
		if m.backend == backendUnknown {
			m.backend = backendWaking
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// busy reports whether the spinner should animate.
func (m Model) busy() bool {
	return m.loading || m.backend == backendWaking || m.conv.InFlight() > 0
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// header + typing line + notice + input + help
	const reserved = 2 + 1 + 1 + 1 + 1

	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(m.height-reserved, 1)
	m.input.Width = max(m.width-len(m.input.Prompt)-2, 10)
	m.help.Width = m.width

	m.refresh()
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Clear) {
		m.confirmClear = false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Retry):
		return m.retry()

	case key.Matches(msg, m.keys.Clear):
		if !m.confirmClear {
			m.confirmClear = true
			m.setNotice("Press Ctrl+K again to make "+m.persona.Name+" forget this conversation.", false)
			return m, nil
		}
		m.confirmClear = false
		m.setNotice("Clearing memory...", false)
		return m, clearMemoryCmd(m.conv)

	case key.Matches(msg, m.keys.Export):
		if m.export == nil {
			return m, nil
		}
		return m, exportCmd(m.export)

	case key.Matches(msg, m.keys.Logout):
		if m.logout == nil {
			return m, nil
		}
		if err := m.logout(); err != nil {
			m.setNotice("Sign out failed: "+err.Error(), true)
			return m, nil
		}
		m.outcome.LoggedOut = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.loading {
		m.setNotice("Still loading the conversation...", false)
		return m, nil
	}

	p, err := m.conv.Begin(m.input.Value())
	if err != nil {
		if !errors.Is(err, controller.ErrValidation) {
			m.setNotice(err.Error(), true)
		}
		return m, nil
	}

	m.input.Reset()
	m.clearNotice()
	m.refresh()
	m.viewport.GotoBottom()
	return m, tea.Batch(resolveCmd(p), m.spinner.Tick)
}

func (m Model) retry() (tea.Model, tea.Cmd) {
	id, ok := m.conv.LastFailed()
	if !ok {
		m.setNotice("Nothing to retry.", false)
		return m, nil
	}
	p, err := m.conv.RetryBegin(id)
	if err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}

	m.clearNotice()
	m.refresh()
	m.viewport.GotoBottom()
	return m, tea.Batch(resolveCmd(p), m.spinner.Tick)
}

// =============================================================================
// RESULT HANDLING
// =============================================================================

func (m Model) handleHistoryLoaded(msg HistoryLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.Err != nil {
		if errors.Is(msg.Err, api.ErrAuth) {
			m.outcome.AuthExpired = true
			return m, tea.Quit
		}
		m.setNotice("Could not load the conversation: "+api.Reason(msg.Err), true)
	}
	m.refresh()
	m.viewport.GotoBottom()
	return m.flushRefresh()
}

func (m Model) handleSendResolved(msg SendResolvedMsg) (tea.Model, tea.Cmd) {
	m.refresh()
	m.viewport.GotoBottom()

	switch {
	case msg.Err == nil:
		if msg.Exchange != nil && msg.Exchange.NewConversation {
			m.logger.Debug("conversation started", "conversation_id", msg.Exchange.ConversationID)
		}
	case errors.Is(msg.Err, api.ErrAuth):
		m.outcome.AuthExpired = true
		return m, tea.Quit
	case errors.Is(msg.Err, controller.ErrUnknownMessage):
		// Message was cleared while in flight.
	default:
		m.setNotice("Message not delivered. Ctrl+R to retry.", true)
	}
	return m.flushRefresh()
}

func (m Model) handleMemoryCleared(msg MemoryClearedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		if errors.Is(msg.Err, api.ErrAuth) {
			m.outcome.AuthExpired = true
			return m, tea.Quit
		}
		m.setNotice("Could not clear memory: "+api.Reason(msg.Err), true)
		return m, nil
	}

	text := m.persona.Name + " has forgotten this conversation."
	if msg.Ack != nil && msg.Ack.Message != "" {
		text = msg.Ack.Message
	}
	m.setNotice(text, false)
	m.refresh()
	return m, nil
}

// handleBindingChanged checks whether another process switched this
// persona's conversation. The check is deferred while a load or send is
// running and issued once the view is idle.
func (m Model) handleBindingChanged() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.changes != nil {
		cmds = append(cmds, waitForChange(m.changes))
	}
	if m.loading || m.refreshing || m.conv.InFlight() > 0 {
		m.refreshQueued = true
		return m, tea.Batch(cmds...)
	}
	m.refreshing = true
	cmds = append(cmds, refreshCmd(m.conv))
	return m, tea.Batch(cmds...)
}

func (m Model) handleBindingRefreshed(msg BindingRefreshedMsg) (tea.Model, tea.Cmd) {
	m.refreshing = false
	if msg.Err != nil {
		if errors.Is(msg.Err, api.ErrAuth) {
			m.outcome.AuthExpired = true
			return m, tea.Quit
		}
		m.setNotice("Could not load the conversation: "+api.Reason(msg.Err), true)
	}
	if msg.Changed {
		m.refresh()
		m.viewport.GotoBottom()
	}
	return m.flushRefresh()
}

// flushRefresh issues a deferred binding check once nothing is running.
func (m Model) flushRefresh() (tea.Model, tea.Cmd) {
	if !m.refreshQueued || m.loading || m.refreshing || m.conv.InFlight() > 0 {
		return m, nil
	}
	m.refreshQueued = false
	m.refreshing = true
	return m, refreshCmd(m.conv)
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeIsErr = isErr
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeIsErr = false
}

// refresh re-renders the message list into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
}
