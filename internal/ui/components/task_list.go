package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nick-dorsch/tasklist/pkg/models"
)

var (
	doneIconStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	openIconStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	doneTextStyle = lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("245"))

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	listHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// TaskList renders tasks as checkbox rows with a movable cursor.
type TaskList struct {
	Tasks   []*models.Task
	Cursor  int
	Width   int
	Title   string
	Focused bool
}

func NewTaskList(width int) *TaskList {
	return &TaskList{
		Tasks: make([]*models.Task, 0),
		Width: width,
		Title: "To-Do List",
	}
}

// SetTasks replaces the rows, keeping the cursor on the same task when it is
// still present and clamping it otherwise.
func (l *TaskList) SetTasks(tasks []*models.Task) {
	var selectedID string
	if sel := l.Selected(); sel != nil {
		selectedID = sel.ID
	}

	l.Tasks = tasks
	for i, t := range tasks {
		if t.ID == selectedID {
			l.Cursor = i
			return
		}
	}
	l.Cursor = clamp(l.Cursor, len(tasks))
}

func (l *TaskList) MoveCursor(delta int) {
	l.Cursor = clamp(l.Cursor+delta, len(l.Tasks))
}

// Selected returns the task under the cursor, or nil when the list is empty.
func (l *TaskList) Selected() *models.Task {
	if l.Cursor < 0 || l.Cursor >= len(l.Tasks) {
		return nil
	}
	return l.Tasks[l.Cursor]
}

func (l *TaskList) View() string {
	var b strings.Builder

	if l.Title != "" {
		b.WriteString(listHeaderStyle.Render(l.Title))
		b.WriteString("\n")
	}

	if len(l.Tasks) == 0 {
		b.WriteString(placeholderStyle.Render("No tasks yet"))
		return b.String()
	}

	textWidth := l.Width - 6
	for i, t := range l.Tasks {
		cursor := " "
		if l.Focused && i == l.Cursor {
			cursor = selectedRowStyle.Render(">")
		}

		icon := openIconStyle.Render("[ ]")
		text := t.Description
		if t.Completed {
			icon = doneIconStyle.Render("[x]")
			text = doneTextStyle.Render(text)
		} else if l.Focused && i == l.Cursor {
			text = selectedRowStyle.Render(text)
		}

		if textWidth > 0 {
			text = lipgloss.NewStyle().MaxWidth(textWidth).Render(text)
		}

		b.WriteString(fmt.Sprintf("%s %s %s", cursor, icon, text))
		if i < len(l.Tasks)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func clamp(idx, length int) int {
	if length == 0 || idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}
