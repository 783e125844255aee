// internal/docverify/state.go
package docverify

// Message roles carried through the pipeline conversation state.
const (
	RoleSystem = "system"
	RoleHuman  = "human"
	RoleAI     = "ai"
)

// Message is one entry in the pipeline conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the shared workflow state. Each node appends messages; the
// reducer merges deltas so earlier messages are never mutated.
type State struct {
	Messages []Message `json:"messages"`

	// Decision is set by the terminal approval nodes.
	Decision string `json:"decision,omitempty"`

	// ConfidenceScore is the score the router extracted from the final
	// assessment, if any.
	ConfidenceScore float64 `json:"confidenceScore,omitempty"`
}

// Reducer merges a node's delta into the accumulated state. Messages are
// append-only; scalar fields are last-writer-wins when set.
func Reducer(prev, delta State) State {
	prev.Messages = append(prev.Messages, delta.Messages...)
	if delta.Decision != "" {
		prev.Decision = delta.Decision
	}
	if delta.ConfidenceScore != 0 {
		prev.ConfidenceScore = delta.ConfidenceScore
	}
	return prev
}

// AIMessages returns the contents of all assistant messages in order.
func (s State) AIMessages() []string {
	var out []string
	for _, m := range s.Messages {
		if m.Role == RoleAI {
			out = append(out, m.Content)
		}
	}
	return out
}

// LastMessage returns the content of the most recent message, or "".
func (s State) LastMessage() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1].Content
}
