package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/feedsync/internal/backend"
)

func TestProgressModel_MarksPhases(t *testing.T) {
	m := NewProgressModel(backend.Phases)
	if strings.Contains(m.View(), "[x]") {
		t.Fatalf("expected no completed phases initially: %q", m.View())
	}

	updated, cmd := m.Update(PhaseDoneMsg{Phase: backend.PhaseFolders})
	if cmd != nil {
		t.Fatal("phase completion must not quit")
	}
	view := updated.View()
	if !strings.Contains(view, "[x] folders") {
		t.Fatalf("expected folders marked done: %q", view)
	}
	if !strings.Contains(view, "[ ] items") {
		t.Fatalf("expected items still pending: %q", view)
	}
}

func TestProgressModel_DoneQuitsWithSummary(t *testing.T) {
	m := NewProgressModel(backend.Phases)
	updated, cmd := m.Update(DoneMsg{Unread: 42})
	if cmd == nil {
		t.Fatal("expected quit command on DoneMsg")
	}
	if !strings.Contains(updated.View(), "done, 42 unread") {
		t.Fatalf("expected summary line: %q", updated.View())
	}
}

func TestProgressModel_DoneCarriesError(t *testing.T) {
	m := NewProgressModel(backend.Phases)
	updated, _ := m.Update(DoneMsg{Err: errors.New("boom")})
	pm, ok := updated.(ProgressModel)
	if !ok {
		t.Fatalf("unexpected model type %T", updated)
	}
	if pm.Err() == nil {
		t.Fatal("expected error kept on model")
	}
	if !strings.Contains(pm.View(), "sync failed") {
		t.Fatalf("expected failure line: %q", pm.View())
	}
}

func TestProgressModel_CtrlCQuits(t *testing.T) {
	m := NewProgressModel(backend.Phases)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command on ctrl+c")
	}
}
