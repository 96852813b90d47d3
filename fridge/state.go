package fridge

// Lifecycle state of the store
type State int

const (
	Uninitialized State = iota // No table, only init is allowed
	Active                     // Table is live, init is denied
)

// Allowed state transitions, there is no self transition: a second init or
// destroy is a lifecycle violation
var stateTransitionMap = map[State][]State{
	Uninitialized: {Active},
	Active:        {Uninitialized},
}

// Verify if a state transition is legal
func ValidStateTransition(current, target State) bool {
	for _, s := range stateTransitionMap[current] {
		if s == target {
			return true
		}
	}
	return false
}

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}
