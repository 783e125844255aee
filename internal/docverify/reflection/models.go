// internal/docverify/reflection/models.go
package reflection

// Message roles understood by the assessor.
const (
	RoleSystem = "system"
	RoleHuman  = "human"
	RoleAI     = "ai"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Input struct {
	Messages []Message `json:"messages"`
}

type Output struct {
	Assessment string `json:"assessment"`
	Attempts   int    `json:"attempts"`
	Fallback   bool   `json:"fallback"`
}
