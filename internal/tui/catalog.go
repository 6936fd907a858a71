package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/teamclock/internal/store"
)

var workTypeColors = []string{"#6C63FF", "#2EC4B6", "#FF6B6B", "#F39C12", "#2ECC71", "#E74C3C", "#9B59B6", "#3498DB"}
var workTypeUnits = []string{"units", "pieces", "m²", "m", "kg", "hours"}

type catalogSection int

const (
	sectionWorkTypes catalogSection = iota
	sectionLocations
)

// catalogModel manages the team's work types and locations. Changes are
// limited to team admins.
type catalogModel struct {
	env    *env
	width  int
	height int

	section   catalogSection
	workTypes []store.WorkType
	locations []store.Location
	isAdmin   bool
	cursor    int

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formName  *string
	formUnit  *string
	formColor *string
}

func newCatalogModel(e *env) catalogModel {
	name, unit, color := "", workTypeUnits[0], workTypeColors[0]
	return catalogModel{
		env:       e,
		formName:  &name,
		formUnit:  &unit,
		formColor: &color,
	}
}

func (c *catalogModel) setSize(w, h int) {
	c.width = w
	c.height = h
}

type catalogDataMsg struct {
	workTypes []store.WorkType
	locations []store.Location
	isAdmin   bool
}

func (c catalogModel) refresh() tea.Cmd {
	e := c.env
	return func() tea.Msg {
		sess := e.session()
		workTypes, _ := e.store.ListWorkTypes(e.ctx, sess.TeamID, false)
		locations, _ := e.store.ListLocations(e.ctx, sess.TeamID, false)
		isAdmin, _ := e.store.IsTeamAdmin(e.ctx, sess.TeamID, sess.UserID)
		return catalogDataMsg{workTypes: workTypes, locations: locations, isAdmin: isAdmin}
	}
}

func (c catalogModel) itemCount() int {
	if c.section == sectionWorkTypes {
		return len(c.workTypes)
	}
	return len(c.locations)
}

func (c catalogModel) update(msg tea.Msg) (catalogModel, tea.Cmd) {
	if c.formActive && c.form != nil {
		return c.updateForm(msg)
	}

	switch msg := msg.(type) {
	case catalogDataMsg:
		c.workTypes = msg.workTypes
		c.locations = msg.locations
		c.isAdmin = msg.isAdmin
		if c.cursor >= c.itemCount() {
			c.cursor = max(0, c.itemCount()-1)
		}
		return c, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left), key.Matches(msg, keys.Right):
			if c.section == sectionWorkTypes {
				c.section = sectionLocations
			} else {
				c.section = sectionWorkTypes
			}
			c.cursor = 0
		case key.Matches(msg, keys.Up):
			if c.cursor > 0 {
				c.cursor--
			}
		case key.Matches(msg, keys.Down):
			if c.cursor < c.itemCount()-1 {
				c.cursor++
			}
		case key.Matches(msg, keys.New):
			if !c.isAdmin {
				return c, errCmd("Catalog", store.ErrNotAdmin)
			}
			return c.showForm()
		case key.Matches(msg, keys.Delete):
			if c.itemCount() == 0 {
				return c, nil
			}
			if !c.isAdmin {
				return c, errCmd("Catalog", store.ErrNotAdmin)
			}
			return c, c.archiveSelected()
		}
	}
	return c, nil
}

func (c catalogModel) archiveSelected() tea.Cmd {
	var err error
	var name string
	if c.section == sectionWorkTypes {
		wt := c.workTypes[c.cursor]
		name = wt.Name
		err = c.env.store.ArchiveWorkType(c.env.ctx, wt.ID)
	} else {
		loc := c.locations[c.cursor]
		name = loc.Name
		err = c.env.store.ArchiveLocation(c.env.ctx, loc.ID)
	}
	if err != nil {
		return errCmd("Archive error", err)
	}
	return tea.Batch(c.refresh(), statusCmd("Archived "+name))
}

func (c catalogModel) showForm() (catalogModel, tea.Cmd) {
	*c.formName = ""
	*c.formUnit = workTypeUnits[0]
	*c.formColor = workTypeColors[0]

	nameInput := huh.NewInput().Title("Name").Value(c.formName)
	if c.section == sectionLocations {
		c.form = huh.NewForm(huh.NewGroup(nameInput)).WithShowHelp(true).WithShowErrors(true)
		c.formActive = true
		return c, c.form.Init()
	}

	unitOptions := make([]huh.Option[string], len(workTypeUnits))
	for i, u := range workTypeUnits {
		unitOptions[i] = huh.NewOption(u, u)
	}
	colorOptions := make([]huh.Option[string], len(workTypeColors))
	for i, col := range workTypeColors {
		colorOptions[i] = huh.NewOption(fmt.Sprintf("● %s", col), col)
	}

	c.form = huh.NewForm(
		huh.NewGroup(
			nameInput,
			huh.NewSelect[string]().Title("Unit").Options(unitOptions...).Value(c.formUnit),
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(c.formColor),
		),
	).WithShowHelp(true).WithShowErrors(true)

	c.formActive = true
	return c, c.form.Init()
}

func (c catalogModel) updateForm(msg tea.Msg) (catalogModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		c.formActive = false
		c.form = nil
		return c, nil
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	if c.form.State == huh.StateCompleted {
		c.formActive = false
		c.form = nil
		name := strings.TrimSpace(*c.formName)
		if name == "" {
			return c, nil
		}
		teamID := c.env.session().TeamID
		var err error
		if c.section == sectionWorkTypes {
			_, err = c.env.store.CreateWorkType(c.env.ctx, teamID, name, *c.formUnit, *c.formColor)
		} else {
			_, err = c.env.store.CreateLocation(c.env.ctx, teamID, name)
		}
		if err != nil {
			return c, errCmd("Catalog error", err)
		}
		return c, c.refresh()
	}

	return c, cmd
}

func (c catalogModel) view() string {
	w := c.width - 4

	wtTab := inactiveTabStyle.Render("Work types")
	locTab := inactiveTabStyle.Render("Locations")
	if c.section == sectionWorkTypes {
		wtTab = activeTabStyle.Render("Work types")
	} else {
		locTab = activeTabStyle.Render("Locations")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom, titleStyle.Render("Catalog"), "  ", wtTab, locTab)
	if c.isAdmin {
		header = lipgloss.JoinHorizontal(lipgloss.Bottom, header, "  ", adminBadgeStyle.Render("admin"))
	}

	if c.formActive && c.form != nil {
		title := "New Work Type"
		if c.section == sectionLocations {
			title = "New Location"
		}
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", c.form.View()),
		)
	}

	var rows []string
	rows = append(rows, header, "")

	if c.itemCount() == 0 {
		hint := "Nothing here yet. Press n to add one."
		if !c.isAdmin {
			hint = "Nothing here yet. Ask a team admin to add one."
		}
		rows = append(rows, mutedStyle.Render(hint))
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}

	if c.section == sectionWorkTypes {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-3s %-24s %-12s", "", "Name", "Unit")))
		for i, wt := range c.workTypes {
			dot := lipgloss.NewStyle().Foreground(lipgloss.Color(wt.Color)).Render("●")
			rows = append(rows, c.renderRow(i, fmt.Sprintf("%s %-24s %-12s", dot, wt.Name, wt.Unit)))
		}
	} else {
		for i, loc := range c.locations {
			rows = append(rows, c.renderRow(i, loc.Name))
		}
	}

	rows = append(rows, "")
	if c.isAdmin {
		rows = append(rows, mutedStyle.Render("  n: new  d: archive  ←/→: switch list"))
	} else {
		rows = append(rows, mutedStyle.Render("  ←/→: switch list  (read only, admin required)"))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (c catalogModel) renderRow(i int, text string) string {
	cursor := "  "
	style := normalItemStyle
	if i == c.cursor {
		cursor = "> "
		style = selectedItemStyle
	}
	return style.Render(cursor + text)
}
