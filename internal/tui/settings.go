package tui

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/teamclock/internal/store"
)

// settingField describes one editable key and its default.
type settingField struct {
	key      string
	label    string
	fallback string
}

var settingFields = []settingField{
	{"daily_goal", "Daily goal", "28800"},
	{"week_start", "Week starts on", "monday"},
	{"purge_mode", "Purge mode", "zero_fill"},
	{"pending_reminder", "Pending reminder", "true"},
}

type settingsModel struct {
	env           *env
	width, height int

	stored     map[string]string
	formActive bool
	form       *huh.Form

	// Bound to the form; pointers so the values survive model copies.
	dailyGoal       *string
	weekStart       *string
	purgeMode       *string
	pendingReminder *bool
}

func newSettingsModel(e *env) settingsModel {
	return settingsModel{
		env:             e,
		dailyGoal:       new(string),
		weekStart:       new(string),
		purgeMode:       new(string),
		pendingReminder: new(bool),
	}
}

func (s *settingsModel) setSize(w, h int) { s.width, s.height = w, h }

type settingsDataMsg struct {
	settings []store.Setting
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, _ := s.env.store.GetAllSettings(s.env.ctx)
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}
	switch msg := msg.(type) {
	case settingsDataMsg:
		s.stored = make(map[string]string, len(msg.settings))
		for _, st := range msg.settings {
			s.stored[st.Key] = st.Value
		}
	case tea.KeyMsg:
		if key.Matches(msg, keys.Enter, keys.New) {
			return s.openForm()
		}
	}
	return s, nil
}

func (s settingsModel) openForm() (settingsModel, tea.Cmd) {
	*s.dailyGoal = secsToHours(s.getVal("daily_goal", "28800"))
	*s.weekStart = s.getVal("week_start", "monday")
	*s.purgeMode = s.getVal("purge_mode", "zero_fill")
	*s.pendingReminder = s.getVal("pending_reminder", "true") == "true"

	general := huh.NewGroup(
		huh.NewInput().Title("Daily goal (hours)").Value(s.dailyGoal).
			Validate(func(v string) error {
				if h, err := strconv.ParseFloat(v, 64); err != nil || h < 0 {
					return errors.New("enter a number of hours")
				}
				return nil
			}),
		huh.NewSelect[string]().Title("Week starts on").
			Options(huh.NewOption("Monday", "monday"), huh.NewOption("Sunday", "sunday")).
			Value(s.weekStart),
	).Title("General")
	pending := huh.NewGroup(
		huh.NewSelect[string]().Title("Purge unresolved entries by").
			Options(
				huh.NewOption("Completing with amount 0", "zero_fill"),
				huh.NewOption("Deleting them", "delete"),
			).
			Value(s.purgeMode),
		huh.NewConfirm().Title("Remind about pending entries").Value(s.pendingReminder),
	).Title("Pending")

	s.form = huh.NewForm(general, pending).WithShowHelp(true).WithShowErrors(true)
	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		s.formActive, s.form = false, nil
		return s, nil
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}
	if s.form.State != huh.StateCompleted {
		return s, cmd
	}
	s.formActive = false
	if err := s.saveSettings(); err != nil {
		return s, errCmd("Settings error", err)
	}
	return s, tea.Batch(s.refresh(), statusCmd("Settings saved"))
}

func (s settingsModel) saveSettings() error {
	values := map[string]string{
		"daily_goal":       hoursToSecs(*s.dailyGoal),
		"week_start":       *s.weekStart,
		"purge_mode":       *s.purgeMode,
		"pending_reminder": strconv.FormatBool(*s.pendingReminder),
	}
	for k, v := range values {
		if err := s.env.store.SetSetting(s.env.ctx, k, v); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return nil
}

func (s settingsModel) getVal(k, fallback string) string {
	v, err := s.env.store.GetSetting(s.env.ctx, k)
	if err != nil || v == "" {
		return fallback
	}
	return v
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")
	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()))
	}

	rows := []string{title, ""}
	label := lipgloss.NewStyle().Width(24)
	for _, f := range settingFields {
		v, ok := s.stored[f.key]
		if !ok || v == "" {
			v = f.fallback
		}
		rows = append(rows, "  "+label.Render(f.label)+" "+highlightStyle.Render(formatSettingValue(f.key, v)))
	}
	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings"))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case "purge_mode":
		if v == "delete" {
			return "delete entries"
		}
		return "complete with 0"
	case "daily_goal":
		if secs, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%.1f hours", float64(secs)/3600)
		}
	case "pending_reminder":
		if v == "false" {
			return "off"
		}
		return "on"
	}
	return v
}

// secsToHours and hoursToSecs convert between the stored goal and the form
// value. Unparseable input passes through unchanged.
func secsToHours(s string) string {
	secs, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(float64(secs)/3600, 'f', 1, 64)
}

func hoursToSecs(s string) string {
	hours, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.Itoa(int(hours * 3600))
}
