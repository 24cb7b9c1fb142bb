package takeover

import (
	"errors"
	"fmt"
	"time"

	"relaydesk/pkg/models"
)

// In-memory stores standing in for the gorm-backed repositories.

type fakeStateStore struct {
	states  map[int64]*models.ConversationState
	upserts int
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[int64]*models.ConversationState)}
}

func (f *fakeStateStore) Get(id int64) (*models.ConversationState, error) {
	if s, ok := f.states[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStateStore) Upsert(s *models.ConversationState) error {
	f.upserts++
	cp := *s
	f.states[s.UserTelegramID] = &cp
	return nil
}

type fakeSessionStore struct {
	sessions map[int64]*models.OperatorSession
	upserts  int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[int64]*models.OperatorSession)}
}

func (f *fakeSessionStore) Get(id int64) (*models.OperatorSession, error) {
	if s, ok := f.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeSessionStore) Upsert(s *models.OperatorSession) error {
	f.upserts++
	cp := *s
	f.sessions[s.OperatorTelegramID] = &cp
	return nil
}

type fakeMessageLog struct {
	byUser map[int64][]models.Message
}

func newFakeMessageLog() *fakeMessageLog {
	return &fakeMessageLog{byUser: make(map[int64][]models.Message)}
}

func (f *fakeMessageLog) Append(userID int64, role, content string) error {
	msg := models.Message{Role: role, Content: content}
	msg.CreatedAt = time.Now()
	f.byUser[userID] = append(f.byUser[userID], msg)
	return nil
}

func (f *fakeMessageLog) Recent(userID int64, limit int) ([]models.Message, error) {
	msgs := f.byUser[userID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

type fakeTransport struct {
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	chatID int64
	text   string
}

func (f *fakeTransport) SendMessage(chatID int64, text string) error {
	if f.fail {
		return errors.New("delivery refused")
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func claimedState(userID, operatorID int64, claimedAt time.Time) *models.ConversationState {
	t := claimedAt
	return &models.ConversationState{
		UserTelegramID: userID,
		Mode:           models.ModeOperator,
		ClaimedBy:      &operatorID,
		ClaimedAt:      &t,
	}
}

func describeVerdict(v Verdict) string {
	if v.Kind == Operator {
		return fmt.Sprintf("Operator(%d)", v.OperatorID)
	}
	return "Automated"
}
