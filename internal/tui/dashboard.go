package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

type pickStep int

const (
	pickNone pickStep = iota
	pickWorkType
	pickLocation
)

type dashboardModel struct {
	env    *env
	timer  timerModel
	width  int
	height int

	todayTotal    int64
	dailyGoal     int64
	todaySummary  []store.DailySummary
	recentEntries []timer.TimeEntry
	workTypes     []store.WorkType
	locations     []store.Location

	// Work type then location picker
	picking        pickStep
	pickerCursor   int
	chosenWorkType string

	// Work amount form shown after stop
	formActive bool
	form       *huh.Form
	formAmount *string
	stoppedID  string
}

func newDashboardModel(e *env) dashboardModel {
	amount := ""
	return dashboardModel{
		env:        e,
		timer:      newTimerModel(e),
		formAmount: &amount,
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) isRunning() bool { return d.timer.running() }
func (d dashboardModel) isPaused() bool  { return d.timer.paused() }
func (d dashboardModel) elapsed() int64  { return d.timer.currentElapsed() }

type dashboardDataMsg struct {
	todayTotal    int64
	dailyGoal     int64
	todaySummary  []store.DailySummary
	recentEntries []timer.TimeEntry
	workTypes     []store.WorkType
	locations     []store.Location
	names         store.Names
}

func (d dashboardModel) loadData() tea.Cmd {
	e := d.env
	return func() tea.Msg {
		sess := e.session()
		total, _ := e.store.GetTodayTotal(e.ctx, sess.TeamID, sess.UserID)

		now := time.Now().UTC()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		summary, _ := e.store.GetDailySummary(e.ctx, store.SummaryFilter{
			TeamID: sess.TeamID,
			UserID: sess.UserID,
			From:   dayStart,
			To:     dayStart.Add(24 * time.Hour),
		})

		entries, _ := e.store.QueryEntries(e.ctx, timer.EntryFilter{
			UserID: sess.UserID,
			TeamID: sess.TeamID,
			Limit:  5,
		})
		workTypes, _ := e.store.ListWorkTypes(e.ctx, sess.TeamID, false)
		locations, _ := e.store.ListLocations(e.ctx, sess.TeamID, false)
		names, _ := e.store.LoadNames(e.ctx, sess.TeamID)
		goal, _ := e.store.GetSetting(e.ctx, "daily_goal")
		goalSecs, _ := strconv.ParseInt(goal, 10, 64)

		return dashboardDataMsg{
			todayTotal:    total,
			dailyGoal:     goalSecs,
			todaySummary:  summary,
			recentEntries: entries,
			workTypes:     workTypes,
			locations:     locations,
			names:         names,
		}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if data, ok := msg.(dashboardDataMsg); ok {
		d.todayTotal = data.todayTotal
		d.dailyGoal = data.dailyGoal
		d.todaySummary = data.todaySummary
		d.recentEntries = data.recentEntries
		d.workTypes = data.workTypes
		d.locations = data.locations
		d.timer.names = data.names
		// A stopped entry restored from the store still needs its amount.
		if cur := d.env.machine.Current(); !d.formActive && cur.State() == timer.StateStopped {
			return d.showAmountForm(cur)
		}
		return d, nil
	}
	if d.formActive && d.form != nil {
		return d.updateForm(msg)
	}

	switch msg := msg.(type) {

	case tickMsg:
		if d.timer.changed() {
			return d, d.loadData()
		}
		return d, nil

	case tea.KeyMsg:
		if d.picking != pickNone {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if d.timer.running() {
				return d, nil
			}
			if len(d.workTypes) == 0 || len(d.locations) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "Add a work type and a location first. Press 4 to open the Catalog.", isError: true}
				}
			}
			return d.beginPick()

		case key.Matches(msg, keys.Stop):
			return d.stopTimer()

		case key.Matches(msg, keys.Pause):
			if _, err := d.timer.toggle(); err != nil {
				return d, errCmd("Error", err)
			}
			return d, nil

		case key.Matches(msg, keys.Cancel):
			if !d.timer.running() {
				return d, nil
			}
			if err := d.timer.cancel(); err != nil {
				return d, errCmd("Error", err)
			}
			return d, tea.Batch(d.loadData(), statusCmd("Timer cancelled"))
		}
	}
	return d, nil
}

// beginPick skips any step that has a single option.
func (d dashboardModel) beginPick() (dashboardModel, tea.Cmd) {
	d.pickerCursor = 0
	if len(d.workTypes) == 1 {
		d.chosenWorkType = d.workTypes[0].ID
		if len(d.locations) == 1 {
			return d.startTimer(d.chosenWorkType, d.locations[0].ID)
		}
		d.picking = pickLocation
		return d, nil
	}
	d.picking = pickWorkType
	return d, nil
}

func (d dashboardModel) pickerLen() int {
	if d.picking == pickWorkType {
		return len(d.workTypes)
	}
	return len(d.locations)
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < d.pickerLen()-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		if d.picking == pickWorkType {
			d.chosenWorkType = d.workTypes[d.pickerCursor].ID
			d.pickerCursor = 0
			if len(d.locations) == 1 {
				d.picking = pickNone
				return d.startTimer(d.chosenWorkType, d.locations[0].ID)
			}
			d.picking = pickLocation
			return d, nil
		}
		loc := d.locations[d.pickerCursor]
		d.picking = pickNone
		return d.startTimer(d.chosenWorkType, loc.ID)
	case key.Matches(msg, keys.Back):
		d.picking = pickNone
	}
	return d, nil
}

func (d dashboardModel) startTimer(workTypeID, locationID string) (dashboardModel, tea.Cmd) {
	d.picking = pickNone
	entry, err := d.timer.start(workTypeID, locationID)
	if err != nil {
		if errors.Is(err, timer.ErrConflictingActiveTimer) {
			return d, errCmd("Cannot start", err)
		}
		return d, errCmd("Error", err)
	}
	d.timer.changed()
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return timerStartedMsg{entry: entry} },
	)
}

func (d dashboardModel) stopTimer() (dashboardModel, tea.Cmd) {
	entry, err := d.timer.stop()
	if err != nil {
		return d, errCmd("Error", err)
	}
	d.timer.changed()
	d, cmd := d.showAmountForm(entry)
	return d, tea.Batch(
		cmd,
		func() tea.Msg { return timerStoppedMsg{entry: entry} },
	)
}

func (d dashboardModel) showAmountForm(e *timer.TimeEntry) (dashboardModel, tea.Cmd) {
	*d.formAmount = ""
	d.stoppedID = e.ID
	title := "Work amount"
	if unit := d.timer.names.Units[e.WorkTypeID]; unit != "" {
		title += " (" + unit + ")"
	}

	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description("Leave empty to decide later").
				Value(d.formAmount).
				Validate(validateAmount),
		),
	).WithShowHelp(true).WithShowErrors(true)

	d.formActive = true
	return d, d.form.Init()
}

func validateAmount(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("not a number")
	}
	if v <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func (d dashboardModel) updateForm(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		d.formActive = false
		d.form = nil
		return d.postpone()
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}

	if d.form.State == huh.StateCompleted {
		d.formActive = false
		d.form = nil
		raw := strings.TrimSpace(*d.formAmount)
		if raw == "" {
			return d.postpone()
		}
		amount, _ := strconv.ParseFloat(raw, 64)
		entry, err := d.timer.record(d.stoppedID, amount)
		if err != nil {
			return d, errCmd("Error", err)
		}
		d.timer.changed()
		return d, tea.Batch(
			d.loadData(),
			func() tea.Msg { return entryResolvedMsg{entry: entry} },
		)
	}

	return d, cmd
}

func (d dashboardModel) postpone() (dashboardModel, tea.Cmd) {
	entry, err := d.timer.postpone()
	if err != nil {
		return d, errCmd("Error", err)
	}
	d.timer.changed()
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return entryResolvedMsg{entry: entry, postponed: true} },
	)
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	if d.formActive && d.form != nil {
		title := titleStyle.Render("Timer stopped")
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", d.form.View())
		return activePanelStyle.Width(contentWidth).Render(content)
	}

	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderSummaryPanel(contentWidth)

	var bottomPanel string
	if d.picking != pickNone {
		bottomPanel = d.renderPicker(contentWidth)
	} else {
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, summaryPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	if d.timer.running() {
		timeStr := formatSeconds(d.timer.currentElapsed())

		var timeDisplay, indicator string
		if d.timer.paused() {
			timeDisplay = timerPausedStyle.Width(w - 6).Render(timeStr)
			indicator = warningStyle.Render("⏸  PAUSED")
		} else {
			timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
			indicator = successStyle.Render("●  RUNNING")
		}

		workType, location := d.timer.label()
		labelLine := highlightStyle.Render(workType) + mutedStyle.Render(" @ "+location)

		content := lipgloss.JoinVertical(lipgloss.Center,
			timeDisplay,
			indicator,
			labelLine,
		)
		return activePanelStyle.Width(w).Render(content)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		timerStyle.Width(w-6).Render("00:00:00"),
		mutedStyle.Render("■  STOPPED"),
		mutedStyle.Render("Press s to start tracking"),
	)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	title := titleStyle.Render("Today")
	total := highlightStyle.Render(formatSeconds(d.todayTotal))
	header := fmt.Sprintf("%s  %s", title, total)
	if d.dailyGoal > 0 {
		header += mutedStyle.Render(fmt.Sprintf("  of %s goal", formatHours(d.dailyGoal)))
	}

	if len(d.todaySummary) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("No entries today"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, header)
	for _, s := range d.todaySummary {
		colorDot := lipgloss.NewStyle().Foreground(lipgloss.Color(s.WorkTypeColor)).Render("●")
		amount := s.TotalAmount
		row := fmt.Sprintf("  %s %-20s %s  %-12s (%d entries)",
			colorDot,
			s.WorkTypeName,
			formatSeconds(s.TotalSeconds),
			formatAmount(&amount, s.Unit),
			s.EntryCount,
		)
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Entries")
	if len(d.recentEntries) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No entries yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	names := d.timer.names
	var rows []string
	rows = append(rows, title)
	for _, e := range d.recentEntries {
		name := names.WorkTypes[e.WorkTypeID]
		if name == "" {
			name = "?"
		}
		dur := formatSeconds(e.Duration)
		amount := formatAmount(e.WorkAmount, names.Units[e.WorkTypeID])
		status := "✓"
		switch {
		case e.Open():
			status = "●"
			dur = "running"
		case e.Status == timer.StatusPending:
			status = "…"
		}
		row := fmt.Sprintf("  %s %s  %-16s %s  %s",
			status, e.StartTime.Local().Format("15:04"), name, dur, amount)
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderPicker(w int) string {
	var title string
	var items []string
	if d.picking == pickWorkType {
		title = "Select Work Type"
		for _, wt := range d.workTypes {
			dot := lipgloss.NewStyle().Foreground(lipgloss.Color(wt.Color)).Render("●")
			items = append(items, fmt.Sprintf("%s %s", dot, wt.Name))
		}
	} else {
		title = "Select Location"
		for _, l := range d.locations {
			items = append(items, l.Name)
		}
	}

	var rows []string
	rows = append(rows, titleStyle.Render(title))
	for i, item := range items {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+item))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
