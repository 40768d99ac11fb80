package command

import (
	"context"
	"fmt"
	"sync"
)

// MockExecutor is a mock implementation of Executor for testing.
// Outputs are keyed by the command's String() form; unknown commands
// fall back to DefaultOutput.
type MockExecutor struct {
	Outputs       map[string]Output
	DefaultOutput Output
	Err           error

	mu    sync.Mutex
	calls []Command
}

func (m *MockExecutor) Run(ctx context.Context, cmd Command) (Output, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	m.mu.Unlock()

	if m.Err != nil {
		return Output{}, m.Err
	}
	if out, ok := m.Outputs[cmd.String()]; ok {
		return out, nil
	}
	return m.DefaultOutput, nil
}

// Calls returns a copy of every command run so far.
func (m *MockExecutor) Calls() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.calls...)
}

// CallCount returns how many commands matched the given String() form.
func (m *MockExecutor) CallCount(cmd string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.String() == cmd {
			n++
		}
	}
	return n
}

// ScriptedExecutor returns canned outputs in sequence for a single command
// form, for exercising retry behavior.
type ScriptedExecutor struct {
	Script []Output

	mu   sync.Mutex
	next int
}

func (s *ScriptedExecutor) Run(ctx context.Context, cmd Command) (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.Script) {
		return Output{}, fmt.Errorf("scripted executor exhausted after %d calls", s.next)
	}
	out := s.Script[s.next]
	s.next++
	return out, nil
}
