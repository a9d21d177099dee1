package runner

// State is a step of the run state machine.
type State string

const (
	StateIdle      State = "Idle"
	StateResolving State = "Resolving"
	StateReading   State = "Reading"
	StateCompiling State = "Compiling"
	StateExecuting State = "Executing"
	StateDone      State = "Done"
	StateErrored   State = "Errored"
)

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateIdle:      {StateResolving},
	StateResolving: {StateReading},
	StateReading:   {StateCompiling, StateErrored},
	StateCompiling: {StateExecuting, StateErrored},
	StateExecuting: {StateDone, StateErrored},
}

// CanTransition reports whether the machine may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}
