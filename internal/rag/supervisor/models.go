// internal/rag/supervisor/models.go
package supervisor

// Routes an answer can be served from.
const (
	RouteKnowledgeBase = "knowledge_base"
	RouteWebSearch     = "web_search"
)

// Answer is the supervisor's final response to a question.
type Answer struct {
	Response  string   `json:"response"`
	Route     string   `json:"route"`
	Sources   []string `json:"sources,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
}
