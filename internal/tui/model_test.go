package tui

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/calorie-hub/internal/apiclient"
	"github.com/fdg312/calorie-hub/internal/host"
	"github.com/fdg312/calorie-hub/internal/syncstate"
)

type fakeAPI struct {
	mu    sync.Mutex
	day   string
	calls map[string]int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.Method+" "+r.URL.Path]++
	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.RequestURI() {
	case "GET /api/profile":
		_, _ = io.WriteString(w, `{"goal":2000}`)
	case "GET /api/summary?period=day":
		_, _ = io.WriteString(w, f.day)
	case "GET /api/summary?period=month":
		_, _ = io.WriteString(w, `{"total":4000,"avgPerDay":129.4}`)
	case "GET /api/subscribe/status":
		_, _ = io.WriteString(w, `{"plan":"trial"}`)
	case "POST /api/addmeal":
		f.day = `{"total":2500,"remaining":-500,"items":[{"id":3,"time":"19:00","kcal":2500,"item":""}]}`
		_, _ = io.WriteString(w, `{"ok":true}`)
	case "DELETE /api/meal/3":
		f.day = `{"total":0,"remaining":2000,"items":[]}`
		_, _ = io.WriteString(w, `{"ok":true}`)
	case "GET /api/coach":
		_, _ = io.WriteString(w, "Eat more greens.")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func newTestModel(t *testing.T) (*Model, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{day: `{"total":0,"remaining":2000,"items":[]}`, calls: map[string]int{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	h := host.NewNoop(host.NewScope())
	store := syncstate.New(apiclient.New(srv.URL, h), h, nil)
	m := New(context.Background(), Options{Store: store, Host: h, Scope: host.NewScope()})
	store.Load(context.Background())
	m.Update(changedMsg{})
	return m, api
}

func press(m *Model, key tea.KeyMsg) tea.Cmd {
	_, cmd := m.Update(key)
	return cmd
}

func typeText(m *Model, s string) {
	press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// settle runs cmd and feeds its message back, as the program loop would.
func settle(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(doneMsg)
	require.True(t, ok, "expected doneMsg, got %T", msg)
	m.Update(done)
}

func TestThemeChangeRestylesView(t *testing.T) {
	api := &fakeAPI{day: `{"total":0,"remaining":2000,"items":[]}`, calls: map[string]int{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	scope := host.NewScope()
	h := host.NewTelegram(host.Snapshot{ThemeParams: map[string]string{"button_color": "#2481cc"}}, scope, nil)
	store := syncstate.New(apiclient.New(srv.URL, h), h, nil)
	m := New(context.Background(), Options{Store: store, Host: h, Scope: scope})

	m.View()
	assert.Equal(t, lipgloss.Color("#2481cc"), m.styles.accent.GetForeground())

	h.SetThemeParams(map[string]string{"button_color": "#ff8800", "bg_color": "#000000"})
	m.View()
	assert.Equal(t, lipgloss.Color("#ff8800"), m.styles.accent.GetForeground())
	assert.Equal(t, lipgloss.Color("#000000"), m.styles.app.GetBackground())
}

func TestFocusCycles(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, focusDescription, m.focus)

	press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusKcal, m.focus)
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusMeals, m.focus)
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusDescription, m.focus)

	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, focusMeals, m.focus)
}

func TestAddManualFromForm(t *testing.T) {
	m, api := newTestModel(t)

	typeText(m, "Pizza")
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	typeText(m, "2500")
	settle(t, m, press(m, tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Equal(t, 1, api.count("POST /api/addmeal"))
	assert.Empty(t, m.description.Value())
	assert.Empty(t, m.kcal.Value())

	view := m.View()
	assert.Contains(t, view, "Remaining 0")
	assert.Contains(t, view, "100%")
	assert.Contains(t, view, emptyMealName)
}

func TestAddManualInvalidKcalSendsNothing(t *testing.T) {
	m, api := newTestModel(t)

	typeText(m, "Soup")
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	typeText(m, "lots")
	settle(t, m, press(m, tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Zero(t, api.count("POST /api/addmeal"))
	assert.Equal(t, "lots", m.kcal.Value())
}

func TestDeleteSelectedMeal(t *testing.T) {
	m, api := newTestModel(t)
	typeText(m, "Pizza")
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	typeText(m, "2500")
	settle(t, m, press(m, tea.KeyMsg{Type: tea.KeyEnter}))
	require.Len(t, m.st.Meals, 1)

	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	settle(t, m, press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}))

	assert.Equal(t, 1, api.count("DELETE /api/meal/3"))
	assert.Empty(t, m.st.Meals)
	assert.Contains(t, m.View(), "Nothing yet.")
}

func TestLettersTypeWhileEditing(t *testing.T) {
	m, api := newTestModel(t)

	typeText(m, "c")
	assert.Equal(t, "c", m.description.Value())
	assert.Zero(t, api.count("GET /api/coach"))

	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	settle(t, m, press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")}))
	assert.Equal(t, 1, api.count("GET /api/coach"))
	assert.Contains(t, m.View(), "Eat more greens.")
}

func TestUploadWithoutPathIsNoop(t *testing.T) {
	m, api := newTestModel(t)

	settle(t, m, press(m, tea.KeyMsg{Type: tea.KeyCtrlO}))

	assert.Zero(t, api.count("POST /api/upload"))
	assert.Empty(t, m.lastErr)
}

func TestSubscribeWithoutHostShowsHint(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, tea.KeyMsg{Type: tea.KeyEsc})

	settle(t, m, press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}))

	// the stub backend has no invoice endpoint
	assert.Equal(t, "subscribe failed", m.lastErr)
}

func TestExportUsesReportFunc(t *testing.T) {
	m, _ := newTestModel(t)
	var got syncstate.State
	m.report = func(st syncstate.State) (string, error) {
		got = st
		return "/tmp/day.pdf", nil
	}
	press(m, tea.KeyMsg{Type: tea.KeyEsc})

	settle(t, m, press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}))

	assert.Equal(t, 2000, got.Goal)
	assert.Equal(t, "Report saved to /tmp/day.pdf", m.status)
}

func TestPlanBadge(t *testing.T) {
	five := 5
	assert.Equal(t, "Trial 7 d", planBadge(syncstate.State{Plan: syncstate.PlanTrial}))
	assert.Equal(t, "Trial 5 d", planBadge(syncstate.State{Plan: syncstate.PlanTrial, TrialDaysLeft: &five}))
	assert.Equal(t, "PRO", planBadge(syncstate.State{Plan: syncstate.PlanPro}))
}

func TestQuitKeys(t *testing.T) {
	m, _ := newTestModel(t)

	cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	typeText(m, "q")
	assert.Equal(t, "q", m.description.Value())

	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	cmd = press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
