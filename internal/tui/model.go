// Package tui is the terminal workshop client. The moderator drives a
// session from it; viewers follow along as steps and scenarios arrive.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"futureslab/internal/pipeline"
	"futureslab/internal/session"
	"futureslab/internal/workshop"
)

// Workshop is the session machine as the client uses it.
type Workshop interface {
	Create(ctx context.Context, lang workshop.Language) (workshop.Session, error)
	Join(ctx context.Context, code string) (session.Snapshot, <-chan workshop.Event, error)
	Subscribe(ctx context.Context, sessionID string) (<-chan workshop.Event, error)
	Advance(ctx context.Context, sessionID string, role workshop.Role, from workshop.Step) (workshop.Step, error)
	SaveInputs(ctx context.Context, in workshop.StepInputs) error
	SubmitIntervention(ctx context.Context, sessionID, text string) error
	SubmitInsight(ctx context.Context, sessionID, text string) error
}

// Generator produces scenario text, locally or through the HTTP endpoint.
type Generator interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Model is the bubbletea model for one participant.
type Model struct {
	ctx      context.Context
	workshop Workshop
	gen      Generator
	logger   *zap.Logger

	state   session.State
	events  <-chan workshop.Event
	created workshop.Session

	code    textinput.Model
	text    textarea.Model
	spinner spinner.Model

	busy         bool
	err          error
	notice       string
	showOriginal bool
	insightSent  bool
	autoJoin     bool
	width        int
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRole skips the role choice, as the host and join commands do.
func WithRole(role workshop.Role) Option {
	return func(m *Model) { m.state.Role = role }
}

// WithLanguage preselects the workshop language.
func WithLanguage(lang workshop.Language) Option {
	return func(m *Model) {
		if lang.Valid() {
			m.state.Language = lang
		}
	}
}

// WithCode joins the session with this code as soon as the program starts.
func WithCode(code string) Option {
	return func(m *Model) {
		code = strings.TrimSpace(code)
		if code == "" {
			return
		}
		m.code.SetValue(code)
		m.code.Focus()
		m.state.Role = workshop.RoleViewer
		m.state.Step = workshop.StepCode
		m.autoJoin = true
		m.busy = true
	}
}

// New builds the client model. ctx bounds every network call it makes.
func New(ctx context.Context, w Workshop, gen Generator, opts ...Option) Model {
	code := textinput.New()
	code.Placeholder = "ALL-XXXX"
	code.CharLimit = 12

	text := textarea.New()
	text.Placeholder = "Type here"
	text.ShowLineNumbers = false
	text.SetHeight(4)

	m := Model{
		ctx:      ctx,
		workshop: w,
		gen:      gen,
		logger:   zap.NewNop(),
		state:    session.NewState(),
		code:     code,
		text:     text,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// State returns the participant's current view of the session.
func (m Model) State() session.State {
	return m.state
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.autoJoin {
		cmds = append(cmds, joinSession(m.ctx, m.workshop, m.code.Value()))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.text.SetWidth(max(min(msg.Width-4, 100), 20))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionStartedMsg:
		m.busy = false
		m.err = nil
		m.created = workshop.Session{}
		m.state = session.FromSnapshot(msg.snapshot, msg.role)
		m.events = msg.events
		m.onStepEntered()
		m.logger.Info("session started",
			zap.String("session_id", m.state.Session.ID),
			zap.String("role", string(msg.role)),
			zap.Stringer("step", m.state.Step))
		return m, waitForEvent(m.events)

	case eventMsg:
		before := m.state.Step
		m.state = session.Reduce(m.state, msg.event)
		if m.state.Step != before {
			m.onStepEntered()
		}
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.events = nil
		if m.state.Step != workshop.LastStep {
			m.notice = "Lost connection to the session."
		}
		return m, nil

	case stepDoneMsg:
		m.busy = false
		m.err = nil
		if msg.output != "" {
			m.state = session.Reduce(m.state, workshop.OutputChanged{
				SessionID: m.state.Session.ID, StepName: msg.output, Content: msg.content,
			})
			if !msg.persisted {
				m.notice = "The scenario was generated but not saved; viewers may not receive it."
			}
		}
		before := m.state.Step
		m.state = session.Reduce(m.state, workshop.StepChanged{SessionID: m.state.Session.ID, Step: msg.step})
		if m.state.Step != before {
			m.onStepEntered()
		}
		return m, nil

	case insightSavedMsg:
		m.busy = false
		m.err = nil
		m.insightSent = true
		m.text.Reset()
		m.text.Blur()
		return m, nil

	case errMsg:
		m.busy = false
		m.autoJoin = false
		m.err = msg.err
		m.logger.Warn("action failed", zap.Error(msg.err))
		return m, nil

	case subscribeFailedMsg:
		m.busy = false
		m.created = msg.session
		m.err = msg.err
		m.logger.Warn("session created but not subscribed",
			zap.String("session_id", msg.session.ID), zap.Error(msg.err))
		return m, nil
	}
	return m, nil
}

// onStepEntered resets per-step widgets.
func (m *Model) onStepEntered() {
	m.showOriginal = false
	m.notice = ""
	m.text.Reset()
	m.text.Blur()
	if m.acceptsText() {
		m.text.Focus()
	}
}

// acceptsText reports whether the current screen has a free-text field.
func (m Model) acceptsText() bool {
	switch m.state.Step {
	case workshop.StepIntervention:
		return m.state.Role == workshop.RoleModerator
	case workshop.StepInsights:
		return !m.insightSent
	}
	return false
}

func (m Model) entersCode() bool {
	return m.state.Step == workshop.StepCode && m.state.Session.ID == ""
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	m.err = nil

	if m.entersCode() {
		switch key {
		case "esc":
			m.state.Step = workshop.StepSetup
			m.code.Blur()
			return m, nil
		case "enter":
			code := strings.TrimSpace(m.code.Value())
			if code == "" {
				return m, nil
			}
			m.busy = true
			return m, joinSession(m.ctx, m.workshop, code)
		}
		var cmd tea.Cmd
		m.code, cmd = m.code.Update(msg)
		return m, cmd
	}

	if m.acceptsText() {
		if key == "ctrl+s" {
			return m.submitText()
		}
		var cmd tea.Cmd
		m.text, cmd = m.text.Update(msg)
		return m, cmd
	}

	if key == "q" {
		return m, tea.Quit
	}

	switch m.state.Step {
	case workshop.StepWelcome:
		if key == "enter" {
			m.state.Step = workshop.StepSetup
		}
		return m, nil
	case workshop.StepSetup:
		return m.handleSetupKey(key)
	case workshop.StepCards:
		if m.state.Role == workshop.RoleModerator {
			if next, ok := cardKey(m.state.Inputs, key); ok {
				m.state.Inputs = next
				return m, nil
			}
		}
	case workshop.StepConsequences:
		if key == "o" {
			m.showOriginal = !m.showOriginal
			return m, nil
		}
	}

	if key == "enter" && m.state.Role == workshop.RoleModerator && !m.state.Step.Terminal() {
		if m.state.Step == workshop.StepCards && !m.state.Inputs.Complete() {
			m.notice = "Choose two technologies and all three axes first. Missing: " + m.state.Inputs.MissingString()
			return m, nil
		}
		m.busy = true
		m.notice = ""
		return m, advance(m.ctx, m.workshop, m.gen, m.state, "")
	}
	return m, nil
}

func (m Model) handleSetupKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "m":
		m.state.Role = workshop.RoleModerator
	case "v":
		m.state.Role = workshop.RoleViewer
	case "l":
		if m.state.Language == workshop.LanguageDutch {
			m.state.Language = workshop.LanguageEnglish
		} else {
			m.state.Language = workshop.LanguageDutch
		}
	case "enter":
		switch m.state.Role {
		case workshop.RoleModerator:
			m.busy = true
			return m, createSession(m.ctx, m.workshop, m.state.Language, m.created)
		case workshop.RoleViewer:
			m.state.Step = workshop.StepCode
			cmd := m.code.Focus()
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) submitText() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.text.Value())
	if text == "" {
		m.notice = "Write something first."
		return m, nil
	}
	m.busy = true
	m.notice = ""
	if m.state.Role == workshop.RoleModerator {
		return m, advance(m.ctx, m.workshop, m.gen, m.state, text)
	}
	return m, submitInsight(m.ctx, m.workshop, m.state.Session.ID, text)
}

// cardKey maps the selection-table keys onto the inputs: 1-6 toggle a
// technology card, r, s and d flip an axis.
func cardKey(in workshop.StepInputs, key string) (workshop.StepInputs, bool) {
	if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(workshop.Technologies) {
		return session.ToggleTechnology(in, workshop.Technologies[key[0]-'1']), true
	}
	switch key {
	case "r":
		if in.Resources == workshop.ResourcesAbundance {
			in.Resources = workshop.ResourcesScarce
		} else {
			in.Resources = workshop.ResourcesAbundance
		}
	case "s":
		if in.System == workshop.SystemStable {
			in.System = workshop.SystemBreaksDown
		} else {
			in.System = workshop.SystemStable
		}
	case "d":
		if in.DominantValue == workshop.ValueCollectivism {
			in.DominantValue = workshop.ValueIndividualism
		} else {
			in.DominantValue = workshop.ValueCollectivism
		}
	default:
		return in, false
	}
	return in, true
}
