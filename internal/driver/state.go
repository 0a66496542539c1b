package driver

import "fmt"

//go:generate go run variantgen/cmd/variantgen -type=State

// State is the stage a target has reached. A target moves
// Parsing -> Generating -> Done, or to Failed from either of the first two.
type State int

const (
	StateParsing State = iota
	StateGenerating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateParsing:
		return "parsing"
	case StateGenerating:
		return "generating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state for YAML and JSON reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether a target may move from s to next.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StateParsing:
		return next == StateGenerating || next == StateFailed
	case StateGenerating:
		return next == StateDone || next == StateFailed
	}
	return false
}
