package takeover

import (
	"time"

	"github.com/rs/zerolog/log"

	"relaydesk/pkg/models"
)

// VerdictKind says who should answer an inbound message.
type VerdictKind int

const (
	// Automated routes the message to the language-model responder.
	Automated VerdictKind = iota
	// Operator routes the message to the claiming human operator.
	Operator
)

// Verdict is the result of resolving a conversation's current mode.
type Verdict struct {
	Kind       VerdictKind
	OperatorID int64 // set when Kind == Operator
}

// Protocol implements the claim state machine over the conversation
// ledger.
type Protocol struct {
	states   StateStore
	sessions SessionStore
	cfg      Config
}

// NewProtocol creates a new claim protocol.
func NewProtocol(states StateStore, sessions SessionStore, cfg Config) *Protocol {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	return &Protocol{states: states, sessions: sessions, cfg: cfg}
}

// Config returns the protocol configuration.
func (p *Protocol) Config() Config {
	return p.cfg
}

// Resolve decides who answers the next message from the given user.
// It is safe to call once per inbound message with no external locking:
// the only mutation it performs is a revert to automated mode, which is
// idempotent if raced.
func (p *Protocol) Resolve(userTelegramID int64, now time.Time) (Verdict, error) {
	state, err := p.states.Get(userTelegramID)
	if err != nil {
		return Verdict{}, err
	}
	if state == nil || state.Mode != models.ModeOperator {
		return Verdict{Kind: Automated}, nil
	}

	if state.ClaimedBy == nil || state.ClaimedAt == nil {
		// Corrupt claim record: mode says operator but the claim fields
		// are missing. Self-heal instead of failing the message.
		log.Warn().Int64("user_id", userTelegramID).Msg("inconsistent claim record, reverting to automated")
		if err := p.revert(userTelegramID); err != nil {
			return Verdict{}, err
		}
		return Verdict{Kind: Automated}, nil
	}

	// Stored timestamps are compared in UTC.
	if now.UTC().Sub(state.ClaimedAt.UTC()) > p.cfg.Timeout {
		if err := p.revert(userTelegramID); err != nil {
			return Verdict{}, err
		}
		log.Info().Int64("user_id", userTelegramID).Int64("operator_id", *state.ClaimedBy).Msg("operator claim expired, conversation reverted to automated")
		return Verdict{Kind: Automated}, nil
	}

	return Verdict{Kind: Operator, OperatorID: *state.ClaimedBy}, nil
}

// Claim puts the conversation in operator mode, owned by the given
// operator as of now. Last writer wins: concurrent claims are not
// serialized beyond the storage layer's atomic upsert.
func (p *Protocol) Claim(userTelegramID, operatorTelegramID int64, now time.Time) error {
	claimedAt := now.UTC()
	return p.states.Upsert(&models.ConversationState{
		UserTelegramID: userTelegramID,
		Mode:           models.ModeOperator,
		ClaimedBy:      &operatorTelegramID,
		ClaimedAt:      &claimedAt,
	})
}

// Release clears the operator's active session pointer. It does not
// change the conversation state; the claim stays until /ai or timeout.
// No-op when the operator has no session row.
func (p *Protocol) Release(operatorTelegramID int64) error {
	session, err := p.sessions.Get(operatorTelegramID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	session.ActiveUserID = nil
	return p.sessions.Upsert(session)
}

// ReturnToAutomated reverts the conversation to automated mode and
// clears the calling operator's session pointer. The claim holder is
// not checked: any operator with the user as their active session may
// force the reversion (authorization is gated upstream).
func (p *Protocol) ReturnToAutomated(userTelegramID, operatorTelegramID int64) error {
	if err := p.revert(userTelegramID); err != nil {
		return err
	}
	return p.Release(operatorTelegramID)
}

func (p *Protocol) revert(userTelegramID int64) error {
	return p.states.Upsert(&models.ConversationState{
		UserTelegramID: userTelegramID,
		Mode:           models.ModeAutomated,
	})
}
