// Package ui holds the terminal list screen for tasklist.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nick-dorsch/tasklist/internal/db"
	"github.com/nick-dorsch/tasklist/internal/tasklist"
	"github.com/nick-dorsch/tasklist/internal/ui/components"
	"github.com/nick-dorsch/tasklist/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	errorStatusStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Controller is the subset of the task list controller the screen drives.
type Controller interface {
	AddTask(ctx context.Context, description string) tasklist.Result
	ToggleCompletion(ctx context.Context, id string) tasklist.Result
	Tasks(ctx context.Context) ([]*models.Task, error)
}

// Notifier publishes store changes to the screen while it runs.
type Notifier interface {
	Subscribe(fn db.ChangeFunc) func()
}

// StoreChangedMsg tells the screen the store was written and must be re-read.
type StoreChangedMsg struct {
	Kind   db.ChangeKind
	TaskID string
}

type tasksLoadedMsg struct {
	tasks []*models.Task
	err   error
}

type actionResultMsg struct {
	result tasklist.Result
}

type focus int

const (
	focusInput focus = iota
	focusList
)

type ListModel struct {
	ctx      context.Context
	ctrl     Controller
	list     *components.TaskList
	input    textinput.Model
	focus    focus
	status   string
	isError  bool
	width    int
	quitting bool
}

func NewListModel(ctx context.Context, ctrl Controller) *ListModel {
	ti := textinput.New()
	ti.Placeholder = "What needs doing?"
	ti.Prompt = "+ "
	ti.CharLimit = 256
	ti.Width = 40
	ti.Focus()

	return &ListModel{
		ctx:    ctx,
		ctrl:   ctrl,
		list:   components.NewTaskList(80),
		input:  ti,
		focus:  focusInput,
		status: "Type a task and press enter to add it.",
	}
}

func (m *ListModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadTasks())
}

func (m *ListModel) loadTasks() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		tasks, err := ctrl.Tasks(ctx)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (m *ListModel) addTask(description string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return actionResultMsg{result: ctrl.AddTask(ctx, description)}
	}
}

func (m *ListModel) toggleTask(id string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return actionResultMsg{result: ctrl.ToggleCompletion(ctx, id)}
	}
}

func (m *ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.focus == focusInput {
			return m.updateInput(msg)
		}
		return m.updateList(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.list.Width = msg.Width
		if msg.Width > 10 {
			m.input.Width = msg.Width - 10
		}

	case StoreChangedMsg:
		return m, m.loadTasks()

	case tasksLoadedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Failed to load tasks: %v", msg.err), true)
			return m, nil
		}
		m.list.SetTasks(msg.tasks)

	case actionResultMsg:
		m.applyResult(msg.result)

	default:
		// Cursor blink and other textinput internals.
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *ListModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := m.input.Value()
		// Cleared on every submit, including rejected ones.
		m.input.SetValue("")
		return m, m.addTask(text)
	case "esc", "tab":
		m.setFocus(focusList)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ListModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "j", "down":
		m.list.MoveCursor(1)
	case "k", "up":
		m.list.MoveCursor(-1)
	case " ", "enter", "x":
		if sel := m.list.Selected(); sel != nil {
			return m, m.toggleTask(sel.ID)
		}
	case "tab", "a":
		return m, m.setFocus(focusInput)
	}
	return m, nil
}

func (m *ListModel) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.list.Focused = f == focusList
	if f == focusInput {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m *ListModel) applyResult(res tasklist.Result) {
	switch res.Outcome {
	case tasklist.OutcomeAdded:
		m.setStatus(fmt.Sprintf("Added %q", res.Task.Description), false)
	case tasklist.OutcomeToggled:
		verb := "Reopened"
		if res.Task.Completed {
			verb = "Completed"
		}
		m.setStatus(fmt.Sprintf("%s %q", verb, res.Task.Description), false)
	case tasklist.OutcomeRejected:
		m.setStatus("Description cannot be empty", false)
	case tasklist.OutcomeNotFound:
		m.setStatus("Task no longer exists", false)
	default:
		m.setStatus(fmt.Sprintf("Save failed: %v", res.Err), true)
	}
}

func (m *ListModel) setStatus(s string, isError bool) {
	m.status = s
	m.isError = isError
}

func (m *ListModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("tasklist"))
	b.WriteString("\n\n")
	b.WriteString(m.list.View())
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.isError {
		b.WriteString(errorStatusStyle.Render(m.status))
	} else {
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	b.WriteString("\n")

	return b.String()
}

func (m *ListModel) renderHelp() string {
	help := "enter to add • tab/esc for list • ctrl+c to quit"
	if m.focus == focusList {
		help = "space to toggle • 'j'/'k' to navigate • tab/'a' to add • 'q' to quit"
	}
	return helpStyle.Render(help)
}

// forwardChanges delivers every store change to send as a StoreChangedMsg
// until the returned func is called.
func forwardChanges(notifier Notifier, send func(tea.Msg)) func() {
	return notifier.Subscribe(func(_ context.Context, ev db.ChangeEvent) {
		send(StoreChangedMsg{Kind: ev.Kind, TaskID: ev.TaskID})
	})
}

// Run shows the list screen until the user quits or ctx is cancelled. Store
// changes published through notifier are forwarded to the screen, which
// re-reads the task list on each one.
func Run(ctx context.Context, ctrl Controller, notifier Notifier) error {
	m := NewListModel(ctx, ctrl)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if notifier != nil {
		defer forwardChanges(notifier, p.Send)()
	}

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
