package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the internal lifecycle label of a drawing. It is tracked by this
// tool only and is independent of the CAD revision letters.
type State string

const (
	StateDevelopment   State = "projeto"
	StateIssued        State = "emissao"
	StateNeedsRevision State = "needs_revision"
	StateBuilt         State = "built"
	StateOverdue       State = "em_atraso"
)

// DefaultState is assigned to drawings created by an import.
const DefaultState = StateDevelopment

// ErrInvalidState is returned when a value outside the closed set of states
// is supplied.
var ErrInvalidState = errors.New("invalid workflow state")

// StateInfo describes a state for display.
type StateInfo struct {
	Code  State  `json:"code"`
	Label string `json:"label"`
	Color string `json:"color"`
}

var states = []StateInfo{
	{Code: StateDevelopment, Label: "Projeto", Color: "#3498db"},
	{Code: StateIssued, Label: "Emissão", Color: "#9b59b6"},
	{Code: StateNeedsRevision, Label: "Precisa Revisão", Color: "#f39c12"},
	{Code: StateBuilt, Label: "Construído", Color: "#27ae60"},
	{Code: StateOverdue, Label: "Em Atraso", Color: "#e74c3c"},
}

// States returns the closed set of states in display order.
func States() []StateInfo {
	out := make([]StateInfo, len(states))
	copy(out, states)
	return out
}

// Label returns the display label of s, or s itself when unknown.
func (s State) Label() string {
	for _, info := range states {
		if info.Code == s {
			return info.Label
		}
	}
	return string(s)
}

// Valid reports whether s belongs to the closed set.
func (s State) Valid() bool {
	for _, info := range states {
		if info.Code == s {
			return true
		}
	}
	return false
}

// ParseState validates a state code. Labels are accepted too, so a value
// picked from a dropdown showing "Precisa Revisão" resolves to the code.
func ParseState(value string) (State, error) {
	v := strings.TrimSpace(value)
	for _, info := range states {
		if string(info.Code) == v || strings.EqualFold(info.Label, v) {
			return info.Code, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, value)
}

// CanTransition reports whether an explicit user action may move a drawing
// from one state to another. Every state is reachable from every other one.
func CanTransition(from, to State) bool {
	return from.Valid() && to.Valid()
}

// deadlineLayouts are tried in order.
var deadlineLayouts = []string{
	"2006-01-02",
	"02-01-2006",
}

// ParseDeadline parses a stored deadline. The second return value is false
// when the text is empty or not in a recognised form, which callers treat as
// "no deadline".
func ParseDeadline(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EffectiveState applies the automatic overdue rule: a drawing waiting for a
// revision whose deadline day is strictly before the current day is overdue.
// All other combinations keep the stored state.
func EffectiveState(state State, deadline string, now time.Time) State {
	if state != StateNeedsRevision {
		return state
	}
	due, ok := ParseDeadline(deadline)
	if !ok {
		return state
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if due.Before(today) {
		return StateOverdue
	}
	return state
}
