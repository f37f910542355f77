package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
)

const clearScreen = "\033[H\033[2J"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)

	priorityStyles = map[model.Priority]lipgloss.Style{
		model.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		model.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}

	boxChecked   = "☑"
	boxUnchecked = "☐"
)

func success(msg string) {
	fmt.Println(successStyle.Render("✔ " + msg))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✖ "+msg))
}

func panel(lines []string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)
	return border.Render(strings.Join(lines, "\n"))
}

func renderItem(it model.Item) string {
	box := boxUnchecked
	title := it.Title
	if it.Completed {
		box = boxChecked
		title = doneStyle.Render(title)
	}

	parts := []string{box, title}
	if it.Priority != nil {
		style, ok := priorityStyles[*it.Priority]
		if !ok {
			style = mutedStyle
		}
		parts = append(parts, style.Render("["+string(*it.Priority)+"]"))
	}
	if it.DueAt != nil {
		parts = append(parts, accentStyle.Render("due "+*it.DueAt))
	}
	if len(it.Tags) > 0 {
		parts = append(parts, mutedStyle.Render("#"+strings.Join(it.Tags, " #")))
	}
	return strings.Join(parts, " ")
}

func renderItems(scope model.Scope, items []model.Item) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("Tasks · %s (%d)", scope, len(items)))}
	if len(items) == 0 {
		lines = append(lines, mutedStyle.Render("nothing here"))
	}
	for _, it := range items {
		lines = append(lines, renderItem(it))
	}
	return panel(lines)
}

func renderDrafts(items []model.Item) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("Drafts (%d)", len(items)))}
	if len(items) == 0 {
		lines = append(lines, mutedStyle.Render("no drafts"))
	}
	for _, it := range items {
		lines = append(lines, renderItem(it)+" "+mutedStyle.Render(model.ScopeOf(it.ProjectID).String()))
	}
	return panel(lines)
}

func renderProjects(projects []model.Project, current *int64) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("Projects (%d)", len(projects)))}
	marker := func(active bool) string {
		if active {
			return accentStyle.Render("●")
		}
		return " "
	}
	lines = append(lines, marker(current == nil)+" personal")
	for _, p := range projects {
		active := current != nil && *current == p.ID
		line := fmt.Sprintf("%s #%d %s", marker(active), p.ID, p.Name)
		if p.Description != nil && *p.Description != "" {
			line += " " + mutedStyle.Render(*p.Description)
		}
		lines = append(lines, line)
	}
	return panel(lines)
}

func renderProfile(u model.UserProfile) string {
	lines := []string{titleStyle.Render(u.Email), mutedStyle.Render(fmt.Sprintf("user #%d", u.ID))}
	if u.FullName != nil && *u.FullName != "" {
		lines = append(lines, *u.FullName)
	}
	if u.Bio != nil && *u.Bio != "" {
		lines = append(lines, mutedStyle.Render(*u.Bio))
	}
	return panel(lines)
}
