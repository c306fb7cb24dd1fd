package regeneration

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State constants for statekit. They stay untyped strings so they can be
// used as statekit.StateID values directly.
const (
	StateIdle               = "idle"
	StatePlaceholderWritten = "placeholder_written"
	StateStreaming          = "streaming"
	StateFinalized          = "finalized"
	StateFailed             = "failed"
)

// Run machine events
const (
	eventPlaceholderWritten = "placeholder_written"
	eventStreamOpened       = "stream_opened"
	eventFinalize           = "finalize"
	eventFail               = "fail"
)

// runContext is the statekit context of a run.
type runContext struct {
	RunID string
}

// RunMachine tracks one run through
// idle -> placeholder_written -> streaming -> finalized, with failed reachable
// from placeholder_written and streaming.
type RunMachine struct {
	interpreter *statekit.Interpreter[runContext]
}

// NewRunMachine builds a machine in the idle state.
func NewRunMachine(runID string) (*RunMachine, error) {
	builder := statekit.NewMachine[runContext]("plan-regeneration").
		WithInitial(statekit.StateID(StateIdle)).
		WithContext(runContext{RunID: runID})

	builder.State(StateIdle).
		On(eventPlaceholderWritten).Target(StatePlaceholderWritten).
		Done()

	builder.State(StatePlaceholderWritten).
		On(eventStreamOpened).Target(StateStreaming).
		On(eventFail).Target(StateFailed).
		Done()

	builder.State(StateStreaming).
		On(eventFinalize).Target(StateFinalized).
		On(eventFail).Target(StateFailed).
		Done()

	builder.State(StateFinalized).Done()
	builder.State(StateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build run state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &RunMachine{interpreter: interpreter}, nil
}

// Transition sends event. An event the current state does not accept leaves
// the state unchanged and returns ErrInvalidTransition.
func (m *RunMachine) Transition(event string) error {
	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.Current() != before {
		return nil
	}
	return fmt.Errorf("%w: event %q in state %q", ErrInvalidTransition, event, before)
}

// Current returns the current state.
func (m *RunMachine) Current() string {
	return string(m.interpreter.State().Value)
}

// IsTerminal reports whether the run has finished.
func (m *RunMachine) IsTerminal() bool {
	switch m.Current() {
	case StateFinalized, StateFailed:
		return true
	}
	return false
}
