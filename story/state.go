package story

// StateType represents the current state of a storytelling session.
type StateType int

const (
	// StateIdle indicates no session is active.
	StateIdle StateType = iota
	// StateInitializing indicates the first chapter is being generated.
	StateInitializing
	// StateReady indicates the first chapter and audio buffer are prepared.
	StateReady
	// StatePlaying indicates narration is advancing.
	StatePlaying
	// StatePaused indicates narration and the session clock are paused.
	StatePaused
	// StateStalled indicates playback ran out of sentences and is waiting on
	// an in-flight chapter generation.
	StateStalled
	// StateEnded indicates the session finished (timer expiry or user stop).
	StateEnded
	// StateError indicates a blocking failure stopped the session.
	StateError
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStalled:
		return "stalled"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsActive returns true while a session is consuming the clock or audio.
func (s StateType) IsActive() bool {
	return s == StatePlaying || s == StatePaused || s == StateStalled
}

// StateMachine manages session state transitions.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
}

// NewStateMachine creates a state machine with the valid session transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:         {StateInitializing},
			StateInitializing: {StateReady, StateError},
			StateReady:        {StatePlaying, StateEnded, StateError},
			StatePlaying:      {StatePaused, StateStalled, StateEnded, StateError},
			StatePaused:       {StatePlaying, StateEnded},
			StateStalled:      {StatePlaying, StateEnded, StateError},
			StateEnded:        {StateIdle},
			StateError:        {StateIdle},
		},
		onEnter: make(map[StateType]func()),
	}
}

// Transition attempts to move to the given state, returning false when the
// transition is not allowed from the current state.
func (sm *StateMachine) Transition(to StateType) bool {
	valid := false
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	sm.current = to
	if fn, ok := sm.onEnter[to]; ok && fn != nil {
		fn()
	}
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback invoked after entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}
