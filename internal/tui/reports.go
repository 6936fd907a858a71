package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/teamclock/internal/store"
)

type reportMode int

const (
	reportDaily reportMode = iota // trailing 7 days
	reportWeekly
	reportMonthly
)

var reportModeNames = []string{"Daily", "Weekly", "Monthly"}

type reportsModel struct {
	env           *env
	width, height int

	mode      reportMode
	wholeTeam bool
	weekStart time.Weekday
	// offset counts periods back from the current one.
	offset int

	summaries []store.DailySummary
	chart     barchart.Model
}

func newReportsModel(e *env) reportsModel {
	return reportsModel{
		env:       e,
		weekStart: time.Monday,
		chart:     barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) { r.width, r.height = w, h }

type reportsDataMsg struct {
	summaries []store.DailySummary
	weekStart time.Weekday
}

func (r reportsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		if v, _ := r.env.store.GetSetting(r.env.ctx, "week_start"); v == "sunday" {
			r.weekStart = time.Sunday
		} else {
			r.weekStart = time.Monday
		}
		from, to := r.dateRange()
		sess := r.env.session()
		f := store.SummaryFilter{TeamID: sess.TeamID, From: from, To: to}
		if !r.wholeTeam {
			f.UserID = sess.UserID
		}
		summaries, err := r.env.store.GetDailySummary(r.env.ctx, f)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Report error: %v", err), isError: true}
		}
		return reportsDataMsg{summaries: summaries, weekStart: r.weekStart}
	}
}

// dateRange returns the half-open UTC day range of the selected period.
func (r reportsModel) dateRange() (time.Time, time.Time) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch r.mode {
	case reportWeekly:
		back := (int(today.Weekday()) - int(r.weekStart) + 7) % 7
		from := today.AddDate(0, 0, -back-7*r.offset)
		return from, from.AddDate(0, 0, 7)
	case reportMonthly:
		from := time.Date(today.Year(), today.Month()-time.Month(r.offset), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0)
	default:
		to := today.AddDate(0, 0, 1-7*r.offset)
		return to.AddDate(0, 0, -7), to
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.summaries = msg.summaries
		r.weekStart = msg.weekStart
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
		case key.Matches(msg, keys.Right):
			r.offset = max(r.offset-1, 0)
		case key.Matches(msg, keys.Enter):
			r.wholeTeam = !r.wholeTeam
		case key.Matches(msg, keys.Tab):
			r.mode = (r.mode + 1) % reportMode(len(reportModeNames))
			r.offset = 0
		default:
			return r, nil
		}
		return r, r.refresh()
	}
	return r, nil
}

// buildChart draws one stacked bar per day, one segment per work type.
func (r *reportsModel) buildChart() {
	height := 12
	if r.height > 30 {
		height = 16
	}
	r.chart = barchart.New(max(r.width-8, 20), height)

	byDate := make(map[string][]barchart.BarValue)
	for _, s := range r.summaries {
		byDate[s.Date] = append(byDate[s.Date], barchart.BarValue{
			Name:  s.WorkTypeName,
			Value: float64(s.TotalSeconds) / 3600,
			Style: lipgloss.NewStyle().Foreground(lipgloss.Color(s.WorkTypeColor)),
		})
	}

	label := "Mon 02"
	if r.mode == reportMonthly {
		label = "02"
	}
	from, to := r.dateRange()
	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		values := byDate[d.Format("2006-01-02")]
		if len(values) == 0 {
			values = []barchart.BarValue{{Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}
		bars = append(bars, barchart.BarData{Label: d.Format(label), Values: values})
	}
	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	tabs := make([]string, len(reportModeNames))
	for i, name := range reportModeNames {
		if reportMode(i) == r.mode {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = inactiveTabStyle.Render(name)
		}
	}

	scope := "Me"
	if r.wholeTeam {
		scope = "Team"
	}
	from, to := r.dateRange()
	period := fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006"))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ",
		lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...), "  ",
		highlightStyle.Render(scope), "  ",
		mutedStyle.Render(period),
	)
	body := []string{header, "", r.chart.View()}
	if legend := r.renderLegend(); legend != "" {
		body = append(body, "", legend)
	}
	body = append(body, "", r.renderSummaryTable(w), "",
		mutedStyle.Render("  ←/→: navigate  tab: switch mode  enter: me/team"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func (r reportsModel) renderSummaryTable(w int) string {
	if len(r.summaries) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %-12s %-20s %10s %14s %8s", "Date", "Work type", "Duration", "Amount", "Entries")))
	b.WriteString("\n" + mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 69))))
	for _, s := range r.summaries {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(s.WorkTypeColor)).Render("●")
		amount := s.TotalAmount
		fmt.Fprintf(&b, "\n  %-12s %s %-18s %10s %14s %8d",
			s.Date, dot, s.WorkTypeName, formatSeconds(s.TotalSeconds), formatAmount(&amount, s.Unit), s.EntryCount)
	}
	return b.String()
}

func (r reportsModel) renderLegend() string {
	seen := make(map[string]bool)
	var items []string
	for _, s := range r.summaries {
		if seen[s.WorkTypeID] {
			continue
		}
		seen[s.WorkTypeID] = true
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(s.WorkTypeColor)).Render("●")
		items = append(items, dot+" "+s.WorkTypeName)
	}
	if len(items) == 0 {
		return ""
	}
	return "  " + strings.Join(items, "  ")
}
