// Package state implements the kernel's finite-state lifecycle (C4). It
// enforces the exhaustive transition table of the spec and refuses any
// move not in that table, signalling a fatal condition the kernel core
// turns into a HALT.
package state

import "fmt"

// State is one of the kernel's lifecycle states.
type State string

const (
	Booting     State = "BOOTING"
	Idle        State = "IDLE"
	Validating  State = "VALIDATING"
	Arbitrating State = "ARBITRATING"
	Executing   State = "EXECUTING"
	Auditing    State = "AUDITING"
	Halted      State = "HALTED"
)

// Trigger names the event driving a transition. Triggers exist so that
// the same (from, to) pair can be disambiguated where the spec lists it
// more than once (e.g. ARBITRATING -> AUDITING fires for both "ALLOW
// without tool_call" and "DENY").
type Trigger string

const (
	TriggerBootOK           Trigger = "boot_ok"
	TriggerBootFailed       Trigger = "boot_failed"
	TriggerRequestReceived  Trigger = "request_received"
	TriggerHaltCommand      Trigger = "halt_command"
	TriggerValidationPassed Trigger = "validation_passed"
	TriggerValidationFailed Trigger = "validation_failed"
	TriggerUnhandledFailure Trigger = "unhandled_failure"
	TriggerAllowWithTool    Trigger = "allow_with_tool"
	TriggerAllowNoTool      Trigger = "allow_no_tool_or_deny"
	TriggerHaltDecision     Trigger = "halt_decision"
	TriggerToolReturned     Trigger = "tool_returned"
	TriggerAppendSucceeded  Trigger = "append_succeeded"
	TriggerAppendFailed     Trigger = "append_failed"
)

type edge struct {
	from, to State
}

// transitions is the exhaustive table from spec §4.4. Any (from, trigger)
// pair absent from this table is an undefined move.
var transitions = map[State]map[Trigger]State{
	Booting: {
		TriggerBootOK:     Idle,
		TriggerBootFailed: Halted,
	},
	Idle: {
		TriggerRequestReceived: Validating,
		TriggerHaltCommand:     Halted,
	},
	Validating: {
		TriggerValidationPassed: Arbitrating,
		TriggerValidationFailed: Auditing,
		TriggerUnhandledFailure: Halted,
	},
	Arbitrating: {
		TriggerAllowWithTool:    Executing,
		TriggerAllowNoTool:      Auditing,
		TriggerHaltDecision:     Halted,
		TriggerUnhandledFailure: Halted,
	},
	Executing: {
		TriggerToolReturned:     Auditing,
		TriggerUnhandledFailure: Halted,
	},
	Auditing: {
		TriggerAppendSucceeded: Idle,
		TriggerAppendFailed:    Halted,
	},
	// Halted is terminal: no outgoing edges.
}

// ErrUndefinedTransition is returned by Apply for any (state, trigger)
// pair not present in the transition table, including every attempt to
// leave Halted.
type ErrUndefinedTransition struct {
	From    State
	Trigger Trigger
}

func (e *ErrUndefinedTransition) Error() string {
	return fmt.Sprintf("state: undefined transition from %s on trigger %q", e.From, e.Trigger)
}

// Machine holds the kernel's current state and enforces the transition
// table. It is not safe for concurrent use without external
// synchronization — single-writer discipline is the caller's (kernel
// core's) responsibility, per spec §5.
type Machine struct {
	current State
}

// New returns a Machine in BOOTING, the spec's initial state.
func New() *Machine {
	return &Machine{current: Booting}
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	return m.current
}

// Apply attempts the transition named by trigger from the machine's
// current state. On success it mutates the machine and returns the new
// state. On failure the machine is left unchanged and an
// *ErrUndefinedTransition is returned.
func (m *Machine) Apply(trigger Trigger) (State, error) {
	edges, ok := transitions[m.current]
	if !ok {
		// Halted (or any state with no outgoing edges).
		return m.current, &ErrUndefinedTransition{From: m.current, Trigger: trigger}
	}
	to, ok := edges[trigger]
	if !ok {
		return m.current, &ErrUndefinedTransition{From: m.current, Trigger: trigger}
	}
	m.current = to
	return to, nil
}

// IsTerminal reports whether the machine is in the Halted state, which
// has no outgoing transitions by invariant.
func (m *Machine) IsTerminal() bool {
	return m.current == Halted
}
