package takeover

import (
	"testing"
	"time"
)

func TestRouteAutomated(t *testing.T) {
	states := newFakeStateStore()
	r := NewRouter(newTestProtocol(states, newFakeSessionStore()))

	action, err := r.Route(100, "hello", testNow)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if action.Kind != RespondAutomated {
		t.Errorf("Route with no claim = %v, expected RespondAutomated", action.Kind)
	}
	if action.Text != "hello" {
		t.Errorf("Route text = %q, expected %q", action.Text, "hello")
	}
}

func TestRouteForwardsToClaimingOperator(t *testing.T) {
	states := newFakeStateStore()
	states.states[100] = claimedState(100, 7, testNow.Add(-5*time.Minute))
	r := NewRouter(newTestProtocol(states, newFakeSessionStore()))

	action, err := r.Route(100, "help", testNow)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if action.Kind != ForwardToOperator || action.OperatorID != 7 {
		t.Errorf("Route with active claim = %+v, expected ForwardToOperator(7)", action)
	}
}

func TestRouteExpiredClaimFallsBackToAutomated(t *testing.T) {
	states := newFakeStateStore()
	states.states[100] = claimedState(100, 7, testNow.Add(-25*time.Minute))
	r := NewRouter(newTestProtocol(states, newFakeSessionStore()))

	action, err := r.Route(100, "still there?", testNow)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if action.Kind != RespondAutomated {
		t.Errorf("Route after claim expiry = %v, expected RespondAutomated", action.Kind)
	}
}
