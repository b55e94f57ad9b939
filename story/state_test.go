package story

import "testing"

func TestStateStrings(t *testing.T) {
	cases := map[StateType]string{
		StateIdle:         "idle",
		StateInitializing: "initializing",
		StateReady:        "ready",
		StatePlaying:      "playing",
		StatePaused:       "paused",
		StateStalled:      "stalled",
		StateEnded:        "ended",
		StateError:        "error",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

func TestStateMachineHappyPath(t *testing.T) {
	sm := NewStateMachine()

	path := []StateType{StateInitializing, StateReady, StatePlaying, StatePaused, StatePlaying, StateEnded}
	for _, next := range path {
		if !sm.Transition(next) {
			t.Fatalf("transition %v -> %v rejected", sm.Current(), next)
		}
	}
	if sm.Current() != StateEnded {
		t.Errorf("final state %v, want ended", sm.Current())
	}
}

func TestStateMachineRejectsInvalidTransitions(t *testing.T) {
	sm := NewStateMachine()

	if sm.Transition(StatePlaying) {
		t.Error("idle -> playing should be rejected")
	}
	if sm.Current() != StateIdle {
		t.Errorf("state changed on rejected transition: %v", sm.Current())
	}

	sm.Transition(StateInitializing)
	if sm.Transition(StatePaused) {
		t.Error("initializing -> paused should be rejected")
	}
}

func TestStateMachineStallAndRecover(t *testing.T) {
	sm := NewStateMachine()
	for _, next := range []StateType{StateInitializing, StateReady, StatePlaying, StateStalled} {
		if !sm.Transition(next) {
			t.Fatalf("transition to %v rejected", next)
		}
	}
	if !sm.Transition(StatePlaying) {
		t.Error("stalled -> playing should be allowed")
	}
}

func TestStateMachineOnEnterCallback(t *testing.T) {
	sm := NewStateMachine()

	entered := 0
	sm.OnEnter(StateReady, func() {
		entered++
	})

	sm.Transition(StateInitializing)
	if entered != 0 {
		t.Error("callback fired for the wrong state")
	}
	sm.Transition(StateReady)
	if entered != 1 {
		t.Errorf("callback fired %d times, want 1", entered)
	}
}

func TestIsActive(t *testing.T) {
	for _, s := range []StateType{StatePlaying, StatePaused, StateStalled} {
		if !s.IsActive() {
			t.Errorf("%v should be active", s)
		}
	}
	for _, s := range []StateType{StateIdle, StateInitializing, StateReady, StateEnded, StateError} {
		if s.IsActive() {
			t.Errorf("%v should not be active", s)
		}
	}
}
