package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/teamclock/internal/export"
	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

type exportFormat struct {
	name  string
	ext   string
	write func([]timer.TimeEntry, store.Names, string) error
}

var exportFormats = []exportFormat{
	{"CSV", ".csv", export.ToCSV},
	{"JSON", ".json", export.ToJSON},
	{"ICS", ".ics", export.ToICS},
}

// App is the root Bubble Tea model. It owns tab switching, the footer status
// line and the export overlay; everything else is delegated to the views.
type App struct {
	env           *env
	width, height int

	activeView viewState
	help       help.Model

	dashboard dashboardModel
	pending   pendingModel
	reports   reportsModel
	catalog   catalogModel
	settings  settingsModel

	exportPicking bool
	exportCursor  int

	status      string
	statusIsErr bool
}

// NewApp builds the UI around a restored machine. The machine and queue
// must belong to the same session.
func NewApp(ctx context.Context, s *store.Store, m *timer.Machine, q *timer.PendingQueue) App {
	e := &env{ctx: ctx, store: s, machine: m, pending: q}
	return App{
		env:        e,
		activeView: viewDashboard,
		help:       help.New(),
		dashboard:  newDashboardModel(e),
		pending:    newPendingModel(e),
		reports:    newReportsModel(e),
		catalog:    newCatalogModel(e),
		settings:   newSettingsModel(e),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.dashboard.Init(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) setStatus(text string, isErr bool) {
	a.status, a.statusIsErr = text, isErr
}

// tabKeys maps direct view shortcuts, in viewState order.
func tabKeys() []key.Binding {
	return []key.Binding{keys.Tab1, keys.Tab2, keys.Tab3, keys.Tab4, keys.Tab5}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.help.Width = msg.Width
		h := a.height - 4
		a.dashboard.setSize(a.width, h)
		a.pending.setSize(a.width, h)
		a.reports.setSize(a.width, h)
		a.catalog.setSize(a.width, h)
		a.settings.setSize(a.width, h)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}
		if next, cmd, ok := a.handleGlobalKey(msg); ok {
			return next, cmd
		}

	case tickMsg:
		// Ticks always reach the dashboard so remote changes are noticed.
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, tea.Batch(tickCmd(), cmd)

	case dashboardDataMsg:
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd

	case statusMsg:
		a.setStatus(msg.text, msg.isError)
		return a, nil

	case timerStartedMsg:
		a.setStatus("Timer started", false)
		return a, nil

	case timerStoppedMsg:
		a.setStatus("Timer stopped", false)
		return a, nil

	case entryResolvedMsg:
		if msg.postponed {
			a.setStatus("Entry moved to pending", false)
		} else {
			a.setStatus("Work amount recorded", false)
		}
		var cmd tea.Cmd
		a.pending, cmd = a.pending.update(msg)
		return a, cmd

	case exportDoneMsg:
		a.exportPicking = false
		a.setStatus("Exported to "+msg.path, false)
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a App) handleGlobalKey(msg tea.KeyMsg) (App, tea.Cmd, bool) {
	for i, b := range tabKeys() {
		if key.Matches(msg, b) {
			a.activeView = viewState(i)
			return a, a.refreshCurrentView(), true
		}
	}
	switch {
	case key.Matches(msg, keys.Tab):
		a.activeView = (a.activeView + 1) % viewState(len(viewNames))
		return a, a.refreshCurrentView(), true
	case key.Matches(msg, keys.Export):
		a.exportPicking, a.exportCursor = true, 0
		return a, nil, true
	case key.Matches(msg, keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil, true
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit, true
	}
	return a, nil, false
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewPending:
		a.pending, cmd = a.pending.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewCatalog:
		a.catalog, cmd = a.catalog.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

// isFormActive reports whether the active view is capturing raw keys.
func (a App) isFormActive() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.formActive || a.dashboard.picking != pickNone
	case viewPending:
		return a.pending.formActive
	case viewCatalog:
		return a.catalog.formActive
	case viewSettings:
		return a.settings.formActive
	default:
		return false
	}
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewPending:
		return a.pending.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewCatalog:
		return a.catalog.refresh()
	case viewSettings:
		return a.settings.refresh()
	default:
		return nil
	}
}

func (a App) activeContent() string {
	switch a.activeView {
	case viewPending:
		return a.pending.view()
	case viewReports:
		return a.reports.view()
	case viewCatalog:
		return a.catalog.view()
	case viewSettings:
		return a.settings.view()
	default:
		return a.dashboard.view()
	}
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}
	header, footer := a.renderHeader(), a.renderFooter()

	content := a.activeContent()
	if a.exportPicking {
		content = a.renderExportPicker()
	}
	h := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)
	content = lipgloss.NewStyle().Width(a.width).Height(h).Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

// spread lays left and right out on one row, pushed to the edges of width.
func spread(left, right string, width int) string {
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, strings.Repeat(" ", gap), right)
}

func (a App) renderHeader() string {
	tabs := make([]string, len(viewNames))
	for i, name := range viewNames {
		style := inactiveTabStyle
		if viewState(i) == a.activeView {
			style = activeTabStyle
		}
		tabs[i] = style.Render(name)
	}
	title := titleStyle.Render("teamclock")
	return headerStyle.Render(spread(title, lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...), a.width-4))
}

func (a App) renderFooter() string {
	var right string
	if a.dashboard.isRunning() {
		elapsed := formatSeconds(a.dashboard.elapsed())
		if a.dashboard.isPaused() {
			right = warningStyle.Render(" ⏸ " + elapsed)
		} else {
			right = successStyle.Render(" ● " + elapsed)
		}
	}
	if a.status != "" {
		style := mutedStyle
		if a.statusIsErr {
			style = errorStyle
		}
		right += style.Render(" " + a.status)
	}
	return spread(footerStyle.Render(a.help.View(keys)), right, a.width-2)
}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export Format"), ""}
	for i, f := range exportFormats {
		if i == a.exportCursor {
			rows = append(rows, selectedItemStyle.Render("> "+f.name))
		} else {
			rows = append(rows, normalItemStyle.Render("  "+f.name))
		}
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))
	return activePanelStyle.Width(a.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		a.exportCursor = max(a.exportCursor-1, 0)
	case key.Matches(msg, keys.Down):
		a.exportCursor = min(a.exportCursor+1, len(exportFormats)-1)
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(exportFormats[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

// doExport writes the session's entries to the home directory.
func (a App) doExport(f exportFormat) tea.Cmd {
	e := a.env
	return func() tea.Msg {
		sess := e.session()
		entries, err := e.store.QueryEntries(e.ctx, timer.EntryFilter{UserID: sess.UserID, TeamID: sess.TeamID})
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		names, err := e.store.LoadNames(e.ctx, sess.TeamID)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		path := filepath.Join(home, "teamclock-export-"+time.Now().Format("2006-01-02")+f.ext)
		if err := f.write(entries, names, path); err != nil {
			return statusMsg{text: fmt.Sprintf("%s error: %v", f.name, err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}
