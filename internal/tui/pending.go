package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

// pendingModel lists stopped entries still waiting for a work amount.
type pendingModel struct {
	env    *env
	width  int
	height int

	entries []timer.TimeEntry
	names   store.Names
	cursor  int

	formActive bool
	form       *huh.Form
	formAmount *string
}

func newPendingModel(e *env) pendingModel {
	amount := ""
	return pendingModel{env: e, formAmount: &amount}
}

func (p *pendingModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type pendingDataMsg struct {
	entries []timer.TimeEntry
	names   store.Names
}

func (p pendingModel) refresh() tea.Cmd {
	e := p.env
	return func() tea.Msg {
		sess := e.session()
		entries, err := e.pending.List(e.ctx, sess.UserID, sess.TeamID)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Pending error: %v", err), isError: true}
		}
		names, _ := e.store.LoadNames(e.ctx, sess.TeamID)
		return pendingDataMsg{entries: entries, names: names}
	}
}

func (p pendingModel) update(msg tea.Msg) (pendingModel, tea.Cmd) {
	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case pendingDataMsg:
		p.entries = msg.entries
		p.names = msg.names
		if p.cursor >= len(p.entries) {
			p.cursor = max(0, len(p.entries)-1)
		}
		return p, nil

	case entryResolvedMsg:
		return p, p.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, keys.Down):
			if p.cursor < len(p.entries)-1 {
				p.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if len(p.entries) > 0 {
				return p.showForm()
			}
		}
	}
	return p, nil
}

func (p pendingModel) showForm() (pendingModel, tea.Cmd) {
	e := p.entries[p.cursor]
	*p.formAmount = ""
	title := "Work amount"
	if unit := p.names.Units[e.WorkTypeID]; unit != "" {
		title += " (" + unit + ")"
	}

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Value(p.formAmount).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("enter an amount or press esc")
					}
					return validateAmount(s)
				}),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p pendingModel) updateForm(msg tea.Msg) (pendingModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		p.formActive = false
		p.form = nil
		return p, nil
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		p.form = nil
		if p.cursor >= len(p.entries) {
			return p, p.refresh()
		}
		amount, _ := strconv.ParseFloat(strings.TrimSpace(*p.formAmount), 64)
		entry, err := p.env.machine.RecordWorkAmount(p.env.ctx, p.entries[p.cursor].ID, amount)
		if err != nil {
			return p, tea.Batch(errCmd("Error", err), p.refresh())
		}
		return p, tea.Batch(
			p.refresh(),
			func() tea.Msg { return entryResolvedMsg{entry: entry} },
		)
	}

	return p, cmd
}

func (p pendingModel) view() string {
	w := p.width - 4
	title := titleStyle.Render("Pending")

	if p.formActive && p.form != nil {
		e := p.entries[p.cursor]
		sub := mutedStyle.Render(fmt.Sprintf("%s @ %s, %s",
			p.names.WorkTypes[e.WorkTypeID], p.names.Locations[e.LocationID], formatSeconds(e.Duration)))
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, sub, "", p.form.View()),
		)
	}

	if len(p.entries) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("Nothing pending. Every stopped timer has its work amount."),
		))
	}

	var rows []string
	rows = append(rows, fmt.Sprintf("%s  %s", title, pendingBadgeStyle.Render(fmt.Sprintf("%d awaiting amount", len(p.entries)))))
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-16s %-20s %-16s %10s", "Started", "Work type", "Location", "Duration")))

	for i, e := range p.entries {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%-16s %-20s %-16s %10s",
			cursor,
			humanize.Time(e.StartTime),
			lookupName(p.names.WorkTypes, e.WorkTypeID),
			lookupName(p.names.Locations, e.LocationID),
			formatSeconds(e.Duration),
		)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: record amount"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func lookupName(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return "?"
}
