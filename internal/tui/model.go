// Package tui renders the calorie client in a terminal. The bubbletea event
// loop is the only writer of view state; every backend operation runs as a
// tea.Cmd and reports back with a message when it settles.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/host"
	"github.com/fdg312/calorie-hub/internal/logger"
	"github.com/fdg312/calorie-hub/internal/syncstate"
)

type focus int

const (
	focusDescription focus = iota
	focusKcal
	focusPhoto
	focusMeals
	focusCount
)

type op string

const (
	opLoad      op = "load"
	opMonth     op = "month"
	opAdd       op = "add"
	opEstimate  op = "estimate"
	opDelete    op = "delete"
	opUpload    op = "upload"
	opCoach     op = "coach"
	opAnalyze   op = "analyze"
	opSubscribe op = "subscribe"
	opExport    op = "export"
)

type changedMsg struct{}

type doneMsg struct {
	op     op
	err    error
	detail string
}

// ReportFunc writes a report for a state snapshot and returns its path.
type ReportFunc func(syncstate.State) (string, error)

type Options struct {
	Store  *syncstate.Store
	Host   host.Adapter
	Scope  *host.Scope
	Report ReportFunc
	Log    *zap.Logger
}

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	store   *syncstate.Store
	host    host.Adapter
	report  ReportFunc
	log     *zap.Logger
	changes chan struct{}
	scope   *host.Scope
	theme   host.ThemeTokens
	styles  styles

	st syncstate.State

	description textinput.Model
	kcal        textinput.Model
	photo       textinput.Model
	focus       focus
	cursor      int

	status  string
	lastErr string
	width   int
}

func New(ctx context.Context, opts Options) *Model {
	h := opts.Host
	if h == nil {
		h = host.Noop{}
	}
	m := &Model{
		ctx:     ctx,
		store:   opts.Store,
		host:    h,
		report:  opts.Report,
		log:     logger.OrNop(opts.Log),
		changes: make(chan struct{}, 1),
		scope:   opts.Scope,
		st:      opts.Store.Snapshot(),
	}
	if m.scope == nil {
		m.scope = host.DefaultScope
	}
	m.restyle()

	m.description = newInput("What did you eat?", 120)
	m.kcal = newInput("kcal", 6)
	m.photo = newInput("path to photo", 256)
	m.description.Focus()

	// Only signal; the loop takes a fresh snapshot when it handles the signal.
	m.store.Subscribe(func(syncstate.State) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	return m
}

// restyle rebuilds the styles when the host has changed the theme since the
// last render.
func (m *Model) restyle() {
	theme := m.scope.Theme()
	if theme == m.theme {
		return
	}
	m.theme = theme
	m.styles = newStyles(m.scope)
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	return ti
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.changes),
		m.run(opLoad, func(ctx context.Context) error {
			m.store.Load(ctx)
			return nil
		}),
		textinput.Blink,
	)
}

// run wraps a store operation as a command.
func (m *Model) run(name op, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{op: name, err: fn(ctx)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changedMsg:
		m.st = m.store.Snapshot()
		m.clampCursor()
		return m, waitForChange(m.changes)

	case doneMsg:
		return m, m.settled(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) settled(msg doneMsg) tea.Cmd {
	m.st = m.store.Snapshot()
	m.clampCursor()

	switch msg.op {
	case opAdd, opEstimate:
		if msg.err == nil {
			m.description.SetValue(m.st.Inputs.Description)
			m.kcal.SetValue(m.st.Inputs.Kcal)
		}
	case opUpload:
		m.photo.SetValue("")
	}

	if msg.err != nil {
		m.log.Warn("operation failed", zap.String("op", string(msg.op)), zap.Error(msg.err))
		m.lastErr = describeError(msg.op, msg.err)
		return nil
	}
	m.lastErr = ""
	switch msg.op {
	case opExport:
		m.status = "Report saved to " + msg.detail
	case opSubscribe:
		m.status = "Invoice opened"
	case opLoad:
		m.status = ""
	}
	return nil
}

func describeError(name op, err error) string {
	var statusErr *syncstate.StatusError
	var decodeErr *syncstate.DecodeError
	switch {
	case errors.As(err, &statusErr) && statusErr.Code == 402:
		return "Subscription required for photo recognition"
	case errors.As(err, &statusErr) && statusErr.Code == 413:
		return "Image too large"
	case errors.As(err, &decodeErr):
		return fmt.Sprintf("%s: unexpected response from server", name)
	case errors.Is(err, host.ErrNoHost):
		return "Open the invoice link below to pay"
	case errors.Is(err, syncstate.ErrInvalidPhotoKind):
		return err.Error()
	default:
		return fmt.Sprintf("%s failed", name)
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab", "shift+tab":
		step := focus(1)
		if msg.String() == "shift+tab" {
			step = focusCount - 1
		}
		m.setFocus((m.focus + step) % focusCount)
		return m, nil
	case "esc":
		m.setFocus(focusMeals)
		return m, nil
	case "enter":
		if m.focus == focusPhoto {
			return m, m.upload(syncstate.PhotoDish)
		}
		return m, m.addManual()
	case "ctrl+e":
		return m, m.estimate()
	case "ctrl+r":
		return m, m.upload(syncstate.PhotoReceipt)
	case "ctrl+o":
		return m, m.upload(syncstate.PhotoDish)
	case "ctrl+d", "delete":
		return m, m.deleteSelected()
	}

	if m.focus == focusMeals {
		return m, m.handleMealsKey(msg)
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusDescription:
		m.description, cmd = m.description.Update(msg)
	case focusKcal:
		m.kcal, cmd = m.kcal.Update(msg)
	case focusPhoto:
		m.photo, cmd = m.photo.Update(msg)
	}
	return m, cmd
}

// handleMealsKey serves the single-letter commands, which only apply while
// no text field has focus.
func (m *Model) handleMealsKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.st.Meals)-1 {
			m.cursor++
		}
	case "d":
		return m.deleteSelected()
	case "c":
		return m.run(opCoach, m.store.FetchCoachText)
	case "a":
		return m.run(opAnalyze, m.store.FetchDayAnalysis)
	case "s":
		return m.run(opSubscribe, m.store.OpenSubscription)
	case "m":
		return m.run(opMonth, m.store.RefreshMonth)
	case "x":
		return m.export()
	case "q":
		return tea.Quit
	}
	return nil
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	m.description.Blur()
	m.kcal.Blur()
	m.photo.Blur()
	switch f {
	case focusDescription:
		m.description.Focus()
	case focusKcal:
		m.kcal.Focus()
	case focusPhoto:
		m.photo.Focus()
	}
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.st.Meals) {
		m.cursor = len(m.st.Meals) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) addManual() tea.Cmd {
	desc, kcal := m.description.Value(), m.kcal.Value()
	m.store.SetInputs(desc, kcal)
	return m.run(opAdd, func(ctx context.Context) error {
		return m.store.AddManual(ctx, desc, kcal)
	})
}

func (m *Model) estimate() tea.Cmd {
	desc := m.description.Value()
	m.store.SetInputs(desc, m.kcal.Value())
	return m.run(opEstimate, func(ctx context.Context) error {
		return m.store.EstimateWithAI(ctx, desc)
	})
}

func (m *Model) deleteSelected() tea.Cmd {
	if len(m.st.Meals) == 0 {
		return nil
	}
	id := m.st.Meals[m.cursor].ID
	return m.run(opDelete, func(ctx context.Context) error {
		return m.store.DeleteMeal(ctx, id)
	})
}

func (m *Model) upload(kind syncstate.PhotoKind) tea.Cmd {
	path := strings.TrimSpace(m.photo.Value())
	return m.run(opUpload, func(ctx context.Context) error {
		photo, err := openPhoto(path)
		if err != nil {
			return err
		}
		return m.store.UploadPhoto(ctx, kind, photo)
	})
}

// openPhoto returns nil for an empty path, meaning nothing is selected.
func openPhoto(path string) (*syncstate.Photo, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	return &syncstate.Photo{
		Name:  filepath.Base(path),
		Data:  f,
		Reset: func() { _ = f.Close() },
	}, nil
}

func (m *Model) export() tea.Cmd {
	if m.report == nil {
		return nil
	}
	st := m.st
	return func() tea.Msg {
		path, err := m.report(st)
		return doneMsg{op: opExport, err: err, detail: path}
	}
}

// Run starts the program on the alternate screen and blocks until exit.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
