package takeover

import "time"

// ActionKind selects the collaborator that handles an inbound message.
type ActionKind int

const (
	// RespondAutomated: invoke the language-model responder and persist
	// a user message followed by an assistant message.
	RespondAutomated ActionKind = iota
	// ForwardToOperator: deliver the text to the operator and persist a
	// user message.
	ForwardToOperator
)

// Action is the router's verdict for one inbound message.
type Action struct {
	Kind       ActionKind
	OperatorID int64 // set when Kind == ForwardToOperator
	Text       string
}

// Router maps inbound user messages to actions. It performs no I/O
// beyond the protocol call, keeping the state machine testable in
// isolation; all transport and LLM side effects belong to the caller.
type Router struct {
	protocol *Protocol
}

// NewRouter creates a new message router.
func NewRouter(protocol *Protocol) *Router {
	return &Router{protocol: protocol}
}

// Route resolves the conversation mode and returns the action the
// caller must execute.
func (r *Router) Route(userTelegramID int64, text string, now time.Time) (Action, error) {
	verdict, err := r.protocol.Resolve(userTelegramID, now)
	if err != nil {
		return Action{}, err
	}
	if verdict.Kind == Operator {
		return Action{Kind: ForwardToOperator, OperatorID: verdict.OperatorID, Text: text}, nil
	}
	return Action{Kind: RespondAutomated, Text: text}, nil
}
