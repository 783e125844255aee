// internal/docverify/extract/handler.go
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"agentic-apps/internal/common/errors"
)

const (
	StageName = "extract"
)

var ErrExtractionFailed = errors.Sentinel(errors.ErrCodeExtractionFailed)

const systemPrompt = "You are an expert birth certificate document processor. " +
	"Extract and structure information from birth certificates, focusing on key verification fields " +
	"including name, date of birth, and place of birth. Ensure accurate extraction of hospital or " +
	"medical facility names for subsequent verification."

const extractionInstruction = "This is my birth certificate. Extract all the fields from this image " +
	"and provide the information in a structured json only format, no other text or wrapper around json. " +
	"The json will be read by machine. The fields include name, date of birth, place of birth. " +
	"Make sure the output only contains JSON and nothing else. Be strict about it."

// documentSchema describes the minimum fields a usable extraction carries.
// Validation failures are reported, not fatal: downstream verification and
// reflection still run and will drive the document to human review.
const documentSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"date_of_birth": {"type": "string", "minLength": 1},
		"place_of_birth": {"type": "string", "minLength": 1}
	},
	"required": ["name", "date_of_birth", "place_of_birth"]
}`

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
	schema *gojsonschema.Schema
	logger Logger
}

func NewHandler(config *Config, log Logger) *Handler {
	clientCfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientCfg.BaseURL = config.BaseURL
	}

	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		// The schema is a compile-time constant; this only fires on a bad edit.
		panic(fmt.Sprintf("invalid document schema: %v", err))
	}

	return &Handler{
		config: config,
		client: openai.NewClientWithConfig(clientCfg),
		schema: schema,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute sends the document image to the vision model and returns the
// structured extraction.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	h.logger.Info("extracting document fields", map[string]interface{}{
		"imageBytes": len(input.ImageBase64),
	})

	mime := input.ImageMIME
	if mime == "" {
		mime = "image/png"
	}

	req := openai.ChatCompletionRequest{
		Model:       h.config.Model,
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: extractionInstruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", mime, input.ImageBase64),
						},
					},
				},
			},
		},
	}

	var (
		content  string
		document map[string]interface{}
		answered bool
		parseErr error
		lastErr  error
	)

	// Transport failures and malformed (non-JSON) responses share the retry
	// budget; the model gets a fresh chance to produce parseable output.
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, ctx.Err())
			}
		}

		resp, err := h.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, ctx.Err())
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty response")
			continue
		}

		answered = true
		content = stripFences(strings.TrimSpace(resp.Choices[0].Message.Content))

		document = nil
		if parseErr = json.Unmarshal([]byte(content), &document); parseErr == nil {
			break
		}
		h.logger.Warn("model returned non-JSON extraction", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   parseErr.Error(),
		})
	}

	if !answered {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, lastErr)
	}

	output := &Output{
		RawJSON:  content,
		Document: document,
		Summary:  h.buildSummary(input.Request, content),
	}

	if parseErr != nil {
		// Unparseable after every attempt: the raw summary still flows
		// downstream, where verification finds no place of birth and the
		// run ends in human review.
		output.Document = nil
		output.SchemaValid = false
		output.SchemaErrors = []string{
			fmt.Sprintf("%s: %v", errors.ErrCodeExtractionParseFailed, parseErr),
		}
	} else {
		output.SchemaValid, output.SchemaErrors = h.validateDocument(content)
		if !output.SchemaValid {
			h.logger.Warn("extracted document failed schema validation", map[string]interface{}{
				"errors": output.SchemaErrors,
			})
		}
	}

	h.logger.Info("extraction completed", map[string]interface{}{
		"fields":      len(output.Document),
		"schemaValid": output.SchemaValid,
	})

	return output, nil
}

func (h *Handler) validateDocument(raw string) (bool, []string) {
	result, err := h.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return false, []string{err.Error()}
	}
	if result.Valid() {
		return true, nil
	}

	var errs []string
	for _, resultErr := range result.Errors() {
		errs = append(errs, resultErr.String())
	}
	return false, errs
}

// buildSummary wraps the extracted JSON in the analysis narrative the
// downstream verification and reflection stages consume.
func (h *Handler) buildSummary(request, extractedJSON string) string {
	return fmt.Sprintf(`Birth Certificate Analysis Request: %s

Extracted Birth Certificate Data (JSON):
%s

Analysis: Based on the extracted birth certificate information, I need to verify the authenticity of this document by validating the place of birth details. The extracted data shows the place of birth as specified in the JSON above, which will be verified against official hospital records and databases.`, request, extractedJSON)
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
