// Package models defines the shared domain types for the medical intake
// dialogue engine: the conversation state graph, consultation records, and
// NLU result shapes.
package models

import "fmt"

// DialogueState identifies one stage of the intake conversation.
type DialogueState string

// Dialogue state constants. The set is closed; StateEnded is terminal.
const (
	StateInitial        DialogueState = "initial"
	StateCollectingInfo DialogueState = "collecting_info"
	StateLifeStyle      DialogueState = "life_style"
	StateDiagnosis      DialogueState = "diagnosis"
	StateMedicalAdvice  DialogueState = "medical_advice"
	StateReferral       DialogueState = "referral"
	StateEducation      DialogueState = "education"
	StateEnded          DialogueState = "ended"
)

// AllStates lists every dialogue state, in conversation order.
var AllStates = []DialogueState{
	StateInitial,
	StateCollectingInfo,
	StateLifeStyle,
	StateDiagnosis,
	StateMedicalAdvice,
	StateReferral,
	StateEducation,
	StateEnded,
}

// stateTransitions is the static transition table. The first entry of each
// successor list is the default next state when no branching condition
// applies. The table is total over all states.
var stateTransitions = map[DialogueState][]DialogueState{
	StateInitial:        {StateCollectingInfo},
	StateCollectingInfo: {StateLifeStyle, StateReferral},
	StateLifeStyle:      {StateDiagnosis},
	StateDiagnosis:      {StateMedicalAdvice, StateReferral},
	StateMedicalAdvice:  {StateEducation},
	StateReferral:       {StateEducation},
	StateEducation:      {StateEnded},
	StateEnded:          {StateEnded},
}

// Successors returns the priority-ordered successor states for s. The
// returned slice must not be modified.
func Successors(s DialogueState) []DialogueState {
	return stateTransitions[s]
}

// IsTerminal reports whether s is the terminal dialogue state.
func (s DialogueState) IsTerminal() bool {
	return s == StateEnded
}

// IsOutputState reports whether s is an output-only stage: a stage that
// generates a response from collected context instead of asking collection
// questions.
func (s DialogueState) IsOutputState() bool {
	switch s {
	case StateDiagnosis, StateMedicalAdvice, StateReferral, StateEducation:
		return true
	}
	return false
}

// ValidateTransitions checks that the transition table is total: every state
// has at least one successor, every successor is a known state, and the
// terminal state only transitions to itself.
func ValidateTransitions() error {
	known := make(map[DialogueState]bool, len(AllStates))
	for _, s := range AllStates {
		known[s] = true
	}
	for _, s := range AllStates {
		succs := stateTransitions[s]
		if len(succs) == 0 {
			return fmt.Errorf("state %s has no successors", s)
		}
		for _, n := range succs {
			if !known[n] {
				return fmt.Errorf("state %s has unknown successor %s", s, n)
			}
		}
	}
	if len(stateTransitions[StateEnded]) != 1 || stateTransitions[StateEnded][0] != StateEnded {
		return fmt.Errorf("terminal state must only self-transition")
	}
	return nil
}
