package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fdg312/calorie-hub/internal/host"
	"github.com/fdg312/calorie-hub/internal/ring"
	"github.com/fdg312/calorie-hub/internal/syncstate"
)

const (
	barWidth      = 28
	emptyMealName = "No name"
)

func (m *Model) View() string {
	m.restyle()
	sections := []string{
		m.viewHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.viewGoal(), m.viewToday(), m.viewMonth()),
		m.viewForm(),
	}
	if ai := m.viewAI(); ai != "" {
		sections = append(sections, ai)
	}
	sections = append(sections, m.viewMeals())
	if coach := m.viewCoach(); coach != "" {
		sections = append(sections, coach)
	}
	if inv := m.viewInvoice(); inv != "" {
		sections = append(sections, inv)
	}
	sections = append(sections, m.viewStatus(), m.viewFooter())

	app := m.styles.app
	if m.width > 0 {
		app = app.Width(m.width)
	}
	return app.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) viewHeader() string {
	s := m.styles
	title := s.title.Render("Calorie Hub")
	if !m.st.Loaded {
		return title + " " + s.muted.Render("loading…")
	}
	header := title + " " + s.badge.Render(planBadge(m.st))
	if m.st.Plan != syncstate.PlanPro {
		header += " " + s.accent.Render("s: subscribe 599⭐")
	}
	return header
}

func planBadge(st syncstate.State) string {
	if st.Plan == syncstate.PlanPro {
		return "PRO"
	}
	return fmt.Sprintf("Trial %d d", st.TrialDays())
}

func (m *Model) viewGoal() string {
	s := m.styles
	return s.card.Render(strings.Join([]string{
		s.label.Render("Goal"),
		s.value.Render(fmt.Sprintf("%d kcal", m.st.Goal)),
		s.label.Render(fmt.Sprintf("Remaining %d", m.st.DisplayRemaining())),
	}, "\n"))
}

func (m *Model) viewToday() string {
	s := m.styles
	pct := m.st.DayPercent()
	return s.card.Render(strings.Join([]string{
		s.label.Render("Today"),
		s.value.Render(fmt.Sprintf("%d kcal", m.st.DayTotal)),
		s.accent.Render(ring.Bar(float64(m.st.DayTotal), float64(m.st.Goal), barWidth)) +
			" " + s.muted.Render(fmt.Sprintf("%.0f%%", pct)),
	}, "\n"))
}

func (m *Model) viewMonth() string {
	s := m.styles
	return s.card.Render(strings.Join([]string{
		s.label.Render("Month"),
		s.value.Render(fmt.Sprintf("%d kcal", m.st.MonthTotal)),
		s.label.Render(fmt.Sprintf("avg %d/day", int(math.Round(m.st.AvgPerDay)))),
	}, "\n"))
}

func (m *Model) viewForm() string {
	s := m.styles
	field := func(f focus, label string, in string) string {
		marker := "  "
		if m.focus == f {
			marker = s.cursor.Render("> ")
		}
		return marker + s.label.Render(label) + " " + in
	}
	lines := []string{
		s.title.Render("Add meal"),
		field(focusDescription, "Description", m.description.View()),
		field(focusKcal, "Kcal       ", m.kcal.View()),
		field(focusPhoto, "Photo      ", m.photo.View()),
	}
	switch {
	case m.st.Estimating:
		lines = append(lines, s.muted.Render("Estimating…"))
	case m.st.Uploading:
		lines = append(lines, s.muted.Render("Uploading…"))
	}
	return s.card.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewAI() string {
	ai := m.st.AI
	if ai == nil {
		return ""
	}
	s := m.styles
	lines := []string{s.title.Render("AI estimate")}
	for _, it := range ai.Items {
		lines = append(lines, fmt.Sprintf("%s  %s  %s",
			it.Name,
			s.muted.Render(fmt.Sprintf("%.0f g", it.Grams)),
			s.value.Render(fmt.Sprintf("%d kcal", it.Kcal))))
	}
	lines = append(lines, s.label.Render(fmt.Sprintf("Total %d kcal", ai.TotalKcal)))
	return s.card.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewMeals() string {
	s := m.styles
	lines := []string{s.title.Render("Meals today") + " " + s.muted.Render(fmt.Sprintf("(%d)", len(m.st.Meals)))}
	if len(m.st.Meals) == 0 {
		lines = append(lines, s.muted.Render("Nothing yet."))
	}
	for i, meal := range m.st.Meals {
		marker := "  "
		if m.focus == focusMeals && i == m.cursor {
			marker = s.cursor.Render("> ")
		}
		name := meal.Item
		if strings.TrimSpace(name) == "" {
			name = emptyMealName
		}
		lines = append(lines, fmt.Sprintf("%s%s  %s  %s",
			marker,
			s.muted.Render(meal.Time),
			name,
			s.value.Render(fmt.Sprintf("%d kcal", meal.Kcal))))
	}
	return s.card.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewCoach() string {
	if m.st.CoachText == "" {
		return ""
	}
	return m.styles.card.Render(m.styles.title.Render("Coach") + "\n" + m.st.CoachText)
}

func (m *Model) viewInvoice() string {
	if m.st.InvoiceURL == "" {
		return ""
	}
	s := m.styles
	line := s.label.Render("Invoice") + " " + s.accent.Render(m.st.InvoiceURL)
	if m.st.InvoiceStatus != "" && m.st.InvoiceStatus != host.InvoicePending {
		line += " " + s.muted.Render(string(m.st.InvoiceStatus))
	}
	return line
}

func (m *Model) viewStatus() string {
	if m.lastErr != "" {
		return m.styles.errMsg.Render(m.lastErr)
	}
	return m.styles.muted.Render(m.status)
}

func (m *Model) viewFooter() string {
	help := "tab focus · enter save · ctrl+e AI · ctrl+r receipt · ctrl+o dish · ctrl+d delete · esc meals"
	if m.focus == focusMeals {
		help = "↑/↓ select · d delete · c coach · a analyze · s subscribe · m month · x export · q quit"
	}
	goal := "Daily goal is changed with the bot's /setgoal command"
	if !m.host.Embedded() {
		goal += " · not running inside Telegram, requests are anonymous"
	}
	return m.styles.muted.Render(help + "\n" + goal)
}
