// internal/docverify/reflection/handler.go
package reflection

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"agentic-apps/internal/common/errors"
	"agentic-apps/internal/docverify/decision"
)

const (
	StageName = "reflect"
)

var (
	ErrReflectionFailed = errors.Sentinel(errors.ErrCodeReflectionFailed)
)

const assessorPrompt = "You are an expert birth certificate verification assessor. " +
	"Your task is to evaluate birth certificate legitimacy based on place of birth verification results.\n\n" +
	"ASSESSMENT CRITERIA:\n" +
	"1. PRIMARY FACTOR - Hospital/Place Verification:\n" +
	"   - If place_verified=true and confidence_score >= 0.90: High confidence (0.85-0.95)\n" +
	"   - If place_verified=true and confidence_score 0.80-0.89: Good confidence (0.75-0.84)\n" +
	"   - If place_verified=true and confidence_score 0.70-0.79: Moderate confidence (0.65-0.74)\n" +
	"   - If place_verified=false or confidence_score < 0.70: Low confidence (0.20-0.40)\n\n" +
	"2. SUPPORTING FACTORS (adjust +/- 0.05):\n" +
	"   - Hospital status (Active vs Inactive)\n" +
	"   - Verification sources quality\n" +
	"   - Contact information availability\n\n" +
	"CRITICAL: You must respond with ONLY a valid JSON object in this exact format:\n" +
	`{"confidence_score": 0.XX, "message": "explanation here"}` + "\n\n" +
	"Do not include any other text, thinking, or formatting. Just the JSON object."

const formatReminder = `Please respond with ONLY a JSON object in this exact format: {"confidence_score": 0.XX, "message": "your explanation"}. No other text.`

const fallbackAssessment = `{"confidence_score": 0.5, "message": "Unable to complete automated assessment due to processing error. Manual review recommended."}`

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config *Config
	client *openai.Client
	logger Logger
}

func NewHandler(config *Config, log Logger) *Handler {
	clientCfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientCfg.BaseURL = config.BaseURL
	}

	return &Handler{
		config: config,
		client: openai.NewClientWithConfig(clientCfg),
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute asks the assessor model for a confidence verdict on the
// verification conversation. The model critiques its own pipeline's output,
// so assistant and user roles are swapped before the call. Responses that do
// not carry a well-formed verdict are retried with an explicit format
// reminder; if the final attempt errors a neutral fallback verdict is
// returned instead.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	translated := swapRoles(input.Messages)

	maxAttempts := h.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastContent string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := h.assess(ctx, translated)
		if err != nil {
			h.logger.Error("reflection attempt failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			if attempt == maxAttempts {
				return &Output{Assessment: fallbackAssessment, Attempts: attempt, Fallback: true}, nil
			}
			continue
		}

		lastContent = content

		if decision.HasAssessmentJSON(content) {
			h.logger.Info("valid assessment received", map[string]interface{}{
				"attempt": attempt,
			})
			return &Output{Assessment: content, Attempts: attempt}, nil
		}

		if attempt < maxAttempts {
			h.logger.Warn("assessment missing verdict JSON, retrying", map[string]interface{}{
				"attempt": attempt,
			})
			translated = append(translated, Message{Role: RoleHuman, Content: formatReminder})
		}
	}

	// All attempts returned something unparseable: pass the last response
	// through and let the router default to human review.
	return &Output{Assessment: lastContent, Attempts: maxAttempts}, nil
}

func (h *Handler) assess(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       h.config.Model,
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
		Messages:    h.buildMessages(messages),
	}

	resp, err := h.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrReflectionFailed
	}
	return resp.Choices[0].Message.Content, nil
}

func (h *Handler) buildMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: assessorPrompt,
	})

	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAI:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return out
}

// swapRoles flips ai and human roles on every message except the first,
// which stays as the original task statement.
func swapRoles(messages []Message) []Message {
	if len(messages) == 0 {
		return nil
	}

	out := make([]Message, 0, len(messages))
	out = append(out, messages[0])

	for _, m := range messages[1:] {
		switch m.Role {
		case RoleAI:
			out = append(out, Message{Role: RoleHuman, Content: m.Content})
		case RoleHuman:
			out = append(out, Message{Role: RoleAI, Content: m.Content})
		default:
			out = append(out, m)
		}
	}
	return out
}
