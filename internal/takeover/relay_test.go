package takeover

import (
	"errors"
	"testing"
	"time"

	"relaydesk/pkg/models"
)

func newTestRelay(states *fakeStateStore, sessions *fakeSessionStore, messages *fakeMessageLog, transport *fakeTransport) *Relay {
	p := newTestProtocol(states, sessions)
	return NewRelay(p, sessions, messages, transport)
}

func TestOperatorReplyNoSession(t *testing.T) {
	messages := newFakeMessageLog()
	relay := newTestRelay(newFakeStateStore(), newFakeSessionStore(), messages, &fakeTransport{})

	_, err := relay.OperatorReply(7, "hi")
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("OperatorReply without session returned %v, expected ErrNoActiveSession", err)
	}
	if len(messages.byUser) != 0 {
		t.Error("OperatorReply without session persisted a message")
	}
}

func TestOperatorReplyClearedPointer(t *testing.T) {
	sessions := newFakeSessionStore()
	sessions.sessions[7] = &models.OperatorSession{OperatorTelegramID: 7, PendingInput: models.PendingIdle}
	relay := newTestRelay(newFakeStateStore(), sessions, newFakeMessageLog(), &fakeTransport{})

	_, err := relay.OperatorReply(7, "hi")
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("OperatorReply with cleared pointer returned %v, expected ErrNoActiveSession", err)
	}
}

func TestOperatorReplyDelivers(t *testing.T) {
	sessions := newFakeSessionStore()
	userID := int64(100)
	sessions.sessions[7] = &models.OperatorSession{OperatorTelegramID: 7, ActiveUserID: &userID, PendingInput: models.PendingIdle}
	messages := newFakeMessageLog()
	transport := &fakeTransport{}
	relay := newTestRelay(newFakeStateStore(), sessions, messages, transport)

	deliveredTo, err := relay.OperatorReply(7, "we are on it")
	if err != nil {
		t.Fatalf("OperatorReply returned error: %v", err)
	}
	if deliveredTo != 100 {
		t.Errorf("OperatorReply delivered to %d, expected 100", deliveredTo)
	}
	if len(transport.sent) != 1 || transport.sent[0].chatID != 100 || transport.sent[0].text != "we are on it" {
		t.Errorf("unexpected transport calls: %+v", transport.sent)
	}
	stored := messages.byUser[100]
	if len(stored) != 1 || stored[0].Role != models.RoleOperator || stored[0].Content != "we are on it" {
		t.Errorf("unexpected persisted messages: %+v", stored)
	}
}

// A stale session can still relay even after the conversation reverted
// to automated; the relay path does not consult conversation mode.
func TestOperatorReplyIgnoresConversationMode(t *testing.T) {
	states := newFakeStateStore()
	states.states[100] = &models.ConversationState{UserTelegramID: 100, Mode: models.ModeAutomated}
	sessions := newFakeSessionStore()
	userID := int64(100)
	sessions.sessions[7] = &models.OperatorSession{OperatorTelegramID: 7, ActiveUserID: &userID, PendingInput: models.PendingIdle}
	relay := newTestRelay(states, sessions, newFakeMessageLog(), &fakeTransport{})

	if _, err := relay.OperatorReply(7, "late reply"); err != nil {
		t.Fatalf("OperatorReply into reverted conversation returned error: %v", err)
	}
}

func TestOperatorReplyDeliveryFailureKeepsMessage(t *testing.T) {
	sessions := newFakeSessionStore()
	userID := int64(100)
	sessions.sessions[7] = &models.OperatorSession{OperatorTelegramID: 7, ActiveUserID: &userID, PendingInput: models.PendingIdle}
	messages := newFakeMessageLog()
	relay := newTestRelay(newFakeStateStore(), sessions, messages, &fakeTransport{fail: true})

	deliveredTo, err := relay.OperatorReply(7, "hello?")
	if err == nil {
		t.Fatal("OperatorReply with failing transport returned no error")
	}
	if errors.Is(err, ErrNoActiveSession) {
		t.Fatal("delivery failure misreported as missing session")
	}
	if deliveredTo != 100 {
		t.Errorf("OperatorReply returned user %d, expected 100", deliveredTo)
	}
	if len(messages.byUser[100]) != 1 {
		t.Error("message not persisted despite delivery attempt")
	}
}

func TestOpenSessionClaimsAndReturnsHistory(t *testing.T) {
	states := newFakeStateStore()
	sessions := newFakeSessionStore()
	messages := newFakeMessageLog()
	for i := 0; i < 25; i++ {
		messages.Append(100, models.RoleUser, "msg")
	}
	relay := newTestRelay(states, sessions, messages, &fakeTransport{})

	history, err := relay.OpenSession(7, 100, testNow)
	if err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}
	if len(history) != 20 {
		t.Errorf("OpenSession returned %d messages, expected 20", len(history))
	}

	state := states.states[100]
	if state == nil || state.Mode != models.ModeOperator || state.ClaimedBy == nil || *state.ClaimedBy != 7 {
		t.Errorf("OpenSession did not claim the conversation: %+v", state)
	}
	session := sessions.sessions[7]
	if session == nil || session.ActiveUserID == nil || *session.ActiveUserID != 100 {
		t.Errorf("OpenSession did not set the session pointer: %+v", session)
	}
}

func TestOpenSessionPreservesPendingInput(t *testing.T) {
	sessions := newFakeSessionStore()
	sessions.sessions[7] = &models.OperatorSession{OperatorTelegramID: 7, PendingInput: models.PendingAwaitingPrompt}
	relay := newTestRelay(newFakeStateStore(), sessions, newFakeMessageLog(), &fakeTransport{})

	if _, err := relay.OpenSession(7, 100, testNow); err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}
	if sessions.sessions[7].PendingInput != models.PendingAwaitingPrompt {
		t.Errorf("OpenSession reset pending input to %q", sessions.sessions[7].PendingInput)
	}
}

// Takeover lifecycle across protocol, router and relay: claim at t0,
// forwarded at t0+5m, reverted and automated at t0+25m.
func TestTakeoverLifecycle(t *testing.T) {
	states := newFakeStateStore()
	sessions := newFakeSessionStore()
	messages := newFakeMessageLog()
	relay := newTestRelay(states, sessions, messages, &fakeTransport{})
	router := NewRouter(relay.protocol)

	t0 := testNow
	if _, err := relay.OpenSession(7, 100, t0); err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}

	action, err := router.Route(100, "help", t0.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if action.Kind != ForwardToOperator || action.OperatorID != 7 {
		t.Fatalf("Route at t0+5m = %+v, expected ForwardToOperator(7)", action)
	}

	action, err = router.Route(100, "still there?", t0.Add(25*time.Minute))
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if action.Kind != RespondAutomated {
		t.Fatalf("Route at t0+25m = %+v, expected RespondAutomated", action)
	}
	if states.states[100].Mode != models.ModeAutomated {
		t.Errorf("conversation not reverted after timeout: %+v", states.states[100])
	}
}
