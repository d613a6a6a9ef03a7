package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type fakeChat struct {
	queries []string
	answer  domain.FinalAnswer
	err     error
}

func (f *fakeChat) HandleQuery(_ context.Context, q string) (domain.FinalAnswer, error) {
	f.queries = append(f.queries, q)
	return f.answer, f.err
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func TestModel_AskFlow(t *testing.T) {
	chat := &fakeChat{answer: domain.FinalAnswer{Reply: "Staff get 20 days.", Sources: []string{"hr.pdf"}}}
	m := sized(New(context.Background(), chat))
	m = typeText(m, "leave policy?")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.pending)
	assert.Equal(t, "Thinking...", m.status)
	assert.Empty(t, m.input.Value())

	msg := cmd()
	next, _ = m.Update(msg)
	m = next.(Model)
	assert.False(t, m.pending)
	assert.Equal(t, []string{"leave policy?"}, chat.queries)
	require.Len(t, m.transcript, 1)
	assert.Contains(t, m.View(), "Staff get 20 days.")
	assert.Contains(t, renderTranscript(m.transcript), "Sources: hr.pdf")
}

func TestModel_IgnoresEnterWhilePending(t *testing.T) {
	m := sized(New(context.Background(), &fakeChat{}))
	m.pending = true
	m = typeText(m, "another")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_ShowsErrors(t *testing.T) {
	m := sized(New(context.Background(), &fakeChat{}))
	next, _ := m.Update(answerMsg{query: "q", err: errors.New("retrieval failed: boom")})
	m = next.(Model)
	assert.Equal(t, "Error: retrieval failed: boom", m.status)
	assert.Contains(t, renderTranscript(m.transcript), "Request failed: retrieval failed: boom")
}

func TestModel_QuitKeys(t *testing.T) {
	m := New(context.Background(), &fakeChat{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestRenderTranscript_Empty(t *testing.T) {
	assert.Equal(t, "No questions yet.", renderTranscript(nil))
}
