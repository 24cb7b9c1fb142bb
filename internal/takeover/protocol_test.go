package takeover

import (
	"testing"
	"time"

	"relaydesk/pkg/models"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestProtocol(states *fakeStateStore, sessions *fakeSessionStore) *Protocol {
	return NewProtocol(states, sessions, DefaultConfig())
}

func TestResolveNoStateRow(t *testing.T) {
	states := newFakeStateStore()
	p := newTestProtocol(states, newFakeSessionStore())

	v, err := p.Resolve(100, testNow)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v.Kind != Automated {
		t.Errorf("Resolve with no state row = %s, expected Automated", describeVerdict(v))
	}
	if states.upserts != 0 {
		t.Errorf("Resolve with no state row performed %d upserts, expected 0", states.upserts)
	}
}

func TestResolveAutomatedMode(t *testing.T) {
	states := newFakeStateStore()
	states.states[100] = &models.ConversationState{UserTelegramID: 100, Mode: models.ModeAutomated}
	p := newTestProtocol(states, newFakeSessionStore())

	v, err := p.Resolve(100, testNow)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v.Kind != Automated {
		t.Errorf("Resolve in automated mode = %s, expected Automated", describeVerdict(v))
	}
}

func TestResolveClaimWithinWindow(t *testing.T) {
	states := newFakeStateStore()
	states.states[100] = claimedState(100, 7, testNow.Add(-5*time.Minute))
	p := newTestProtocol(states, newFakeSessionStore())

	v, err := p.Resolve(100, testNow)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v.Kind != Operator || v.OperatorID != 7 {
		t.Errorf("Resolve within window = %s, expected Operator(7)", describeVerdict(v))
	}
	if states.upserts != 0 {
		t.Errorf("Resolve within window performed %d upserts, expected no mutation", states.upserts)
	}
}

func TestResolveExpiredClaimReverts(t *testing.T) {
	states := newFakeStateStore()
	states.states[100] = claimedState(100, 7, testNow.Add(-25*time.Minute))
	p := newTestProtocol(states, newFakeSessionStore())

	v, err := p.Resolve(100, testNow)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v.Kind != Automated {
		t.Errorf("Resolve after timeout = %s, expected Automated", describeVerdict(v))
	}
	state := states.states[100]
	if state.Mode != models.ModeAutomated || state.ClaimedBy != nil || state.ClaimedAt != nil {
		t.Errorf("expired claim not fully cleared: %+v", state)
	}
	if states.upserts != 1 {
		t.Errorf("revert performed %d upserts, expected exactly 1", states.upserts)
	}

	// Second call is idempotent: no further mutation.
	v, err = p.Resolve(100, testNow)
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}
	if v.Kind != Automated {
		t.Errorf("second Resolve = %s, expected Automated", describeVerdict(v))
	}
	if states.upserts != 1 {
		t.Errorf("second Resolve performed extra upserts: %d total", states.upserts)
	}
}

func TestResolveCorruptRecordSelfHeals(t *testing.T) {
	tests := []struct {
		name  string
		state *models.ConversationState
	}{
		{
			name:  "claimed_by missing",
			state: func() *models.ConversationState { s := claimedState(100, 7, testNow); s.ClaimedBy = nil; return s }(),
		},
		{
			name:  "claimed_at missing",
			state: func() *models.ConversationState { s := claimedState(100, 7, testNow); s.ClaimedAt = nil; return s }(),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			states := newFakeStateStore()
			states.states[100] = test.state
			p := newTestProtocol(states, newFakeSessionStore())

			v, err := p.Resolve(100, testNow)
			if err != nil {
				t.Fatalf("Resolve returned error for corrupt record: %v", err)
			}
			if v.Kind != Automated {
				t.Errorf("Resolve on corrupt record = %s, expected Automated", describeVerdict(v))
			}
			if states.states[100].Mode != models.ModeAutomated {
				t.Errorf("corrupt record not reset: %+v", states.states[100])
			}
		})
	}
}

func TestResolveNaiveTimestampTreatedAsUTC(t *testing.T) {
	// A claim stored with a non-UTC location must still compare by
	// absolute time.
	loc := time.FixedZone("UTC+3", 3*60*60)
	states := newFakeStateStore()
	states.states[100] = claimedState(100, 7, testNow.Add(-5*time.Minute).In(loc))
	p := newTestProtocol(states, newFakeSessionStore())

	v, err := p.Resolve(100, testNow)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v.Kind != Operator {
		t.Errorf("Resolve with zoned claimed_at = %s, expected Operator(7)", describeVerdict(v))
	}
}

func TestClaimThenResolve(t *testing.T) {
	states := newFakeStateStore()
	p := newTestProtocol(states, newFakeSessionStore())

	if err := p.Claim(100, 7, testNow); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	v, err := p.Resolve(100, testNow)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v.Kind != Operator || v.OperatorID != 7 {
		t.Errorf("Resolve right after Claim = %s, expected Operator(7)", describeVerdict(v))
	}
}

func TestClaimLastWriterWins(t *testing.T) {
	states := newFakeStateStore()
	p := newTestProtocol(states, newFakeSessionStore())

	if err := p.Claim(100, 7, testNow); err != nil {
		t.Fatalf("first Claim returned error: %v", err)
	}
	if err := p.Claim(100, 8, testNow.Add(time.Second)); err != nil {
		t.Fatalf("second Claim returned error: %v", err)
	}

	v, err := p.Resolve(100, testNow.Add(2*time.Second))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v.Kind != Operator || v.OperatorID != 8 {
		t.Errorf("Resolve after competing claims = %s, expected Operator(8)", describeVerdict(v))
	}
}

func TestReleaseWithoutSessionIsNoop(t *testing.T) {
	sessions := newFakeSessionStore()
	p := newTestProtocol(newFakeStateStore(), sessions)

	if err := p.Release(7); err != nil {
		t.Fatalf("Release without session returned error: %v", err)
	}
	if sessions.upserts != 0 {
		t.Errorf("Release without session performed %d upserts, expected 0", sessions.upserts)
	}
}

func TestReleaseKeepsConversationClaimed(t *testing.T) {
	states := newFakeStateStore()
	sessions := newFakeSessionStore()
	p := newTestProtocol(states, sessions)

	if err := p.Claim(100, 7, testNow); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	userID := int64(100)
	sessions.sessions[7] = &models.OperatorSession{OperatorTelegramID: 7, ActiveUserID: &userID, PendingInput: models.PendingIdle}

	if err := p.Release(7); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if sessions.sessions[7].ActiveUserID != nil {
		t.Error("Release did not clear active session pointer")
	}

	// Closing the view does not unclaim the conversation.
	v, err := p.Resolve(100, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if v.Kind != Operator || v.OperatorID != 7 {
		t.Errorf("Resolve after Release = %s, expected Operator(7)", describeVerdict(v))
	}
}

func TestReturnToAutomatedClearsBoth(t *testing.T) {
	states := newFakeStateStore()
	sessions := newFakeSessionStore()
	p := newTestProtocol(states, sessions)

	// Claim held by operator 7, but operator 8 has the active session:
	// the reversion is not gated on the claim holder.
	if err := p.Claim(100, 7, testNow); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	userID := int64(100)
	sessions.sessions[8] = &models.OperatorSession{OperatorTelegramID: 8, ActiveUserID: &userID, PendingInput: models.PendingIdle}

	if err := p.ReturnToAutomated(100, 8); err != nil {
		t.Fatalf("ReturnToAutomated returned error: %v", err)
	}

	state := states.states[100]
	if state.Mode != models.ModeAutomated || state.ClaimedBy != nil || state.ClaimedAt != nil {
		t.Errorf("conversation state not cleared: %+v", state)
	}
	if sessions.sessions[8].ActiveUserID != nil {
		t.Error("operator session pointer not cleared")
	}
}
