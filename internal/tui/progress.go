package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/feedsync/internal/backend"
)

// PhaseDoneMsg reports one completed fetch phase.
type PhaseDoneMsg struct {
	Phase backend.Phase
}

// DoneMsg reports the end of content initialization.
type DoneMsg struct {
	Unread int
	Err    error
}

// ProgressModel renders fetch-phase progress while a backend builds
// the content tree. It quits on DoneMsg or Ctrl+C.
type ProgressModel struct {
	phases   []backend.Phase
	done     map[backend.Phase]bool
	finished bool
	unread   int
	err      error
}

func NewProgressModel(phases []backend.Phase) ProgressModel {
	return ProgressModel{
		phases: phases,
		done:   make(map[backend.Phase]bool, len(phases)),
	}
}

func (m ProgressModel) Err() error {
	return m.err
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PhaseDoneMsg:
		m.done[msg.Phase] = true
		return m, nil
	case DoneMsg:
		m.finished = true
		m.unread = msg.Unread
		m.err = msg.Err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString("Syncing feeds\n")
	for _, p := range m.phases {
		marker := "[ ]"
		if m.done[p] {
			marker = "[x]"
		}
		fmt.Fprintf(&b, "  %s %s\n", marker, p)
	}
	if m.finished {
		if m.err != nil {
			fmt.Fprintf(&b, "sync failed: %v\n", m.err)
		} else {
			fmt.Fprintf(&b, "done, %d unread\n", m.unread)
		}
	}
	return b.String()
}
