package signing

import "fmt"

// State is a stage of one submission's lifecycle.
type State string

const (
	StateIdle              State = "IDLE"
	StateValidating        State = "VALIDATING"
	StateCheckingDuplicate State = "CHECKING_DUPLICATE"
	StateComposing         State = "COMPOSING"
	StateDelivering        State = "DELIVERING"
	StateRecording         State = "RECORDING"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

// StateMachine enforces submission stage transitions. Recording is only
// reachable from Delivering, which is what guarantees the registry is never
// written before delivery succeeds.
type StateMachine struct {
	allowedTransitions map[State][]State
}

// NewStateMachine creates the submission state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[State][]State{
			StateIdle:              {StateValidating},
			StateValidating:        {StateCheckingDuplicate, StateFailed},
			StateCheckingDuplicate: {StateComposing, StateFailed},
			StateComposing:         {StateDelivering, StateFailed},
			StateDelivering:        {StateRecording, StateFailed},
			StateRecording:         {StateDone, StateFailed},
			StateDone:              {},
			StateFailed:            {},
		},
	}
}

// CanTransition checks if a stage transition is allowed.
func (sm *StateMachine) CanTransition(from, to State) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the allowed next stages for a given stage.
func (sm *StateMachine) AllowedTransitions(from State) []State {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []State{}
	}
	return allowed
}

// run tracks one submission through the state machine.
type run struct {
	sm      *StateMachine
	current State
}

func newRun(sm *StateMachine) *run {
	return &run{sm: sm, current: StateIdle}
}

// advance moves the submission to the next stage. An illegal transition is
// a programming error in the pipeline, not a user-facing failure.
func (r *run) advance(to State) error {
	if !r.sm.CanTransition(r.current, to) {
		return fmt.Errorf("illegal submission transition %s -> %s", r.current, to)
	}
	r.current = to
	return nil
}

// fail moves the submission to Failed and returns the terminal error.
func (r *run) fail(kind FailureKind, err error) *Error {
	r.current = StateFailed
	return failure(kind, err)
}
