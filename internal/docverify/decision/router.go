// internal/docverify/decision/router.go
package decision

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Routing targets for the post-assessment decision.
const (
	RouteAutomatic = "automatic_approval"
	RouteHuman     = "human_approval"
)

// DefaultThreshold is the confidence below which a document goes to a
// human reviewer.
const DefaultThreshold = 0.75

var (
	jsonObjectPattern = regexp.MustCompile(`(?s)\{[^{}]*"confidence_score"[^{}]*"message"[^{}]*\}`)
	scorePattern      = regexp.MustCompile(`"confidence_score":\s*([0-9]*\.?[0-9]+)`)
	messagePattern    = regexp.MustCompile(`"message":\s*"([^"]*)"`)
	bareNumberPattern = regexp.MustCompile(`\b(0\.[0-9]+|1\.0+|0)\b`)
)

// Assessment is the parsed verification verdict.
type Assessment struct {
	ConfidenceScore float64 `json:"confidence_score"`
	Message         string  `json:"message"`
}

// CleanResponse strips reasoning-model thinking tags and markdown fences
// from an assessment message. For thinking models only the content after
// the last closing tag is kept.
func CleanResponse(content string) string {
	cleaned := strings.TrimSpace(content)

	if strings.Contains(cleaned, "<think>") && strings.Contains(cleaned, "</think>") {
		parts := strings.Split(cleaned, "</think>")
		cleaned = strings.TrimSpace(parts[len(parts)-1])
	}

	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// ExtractConfidence pulls a confidence score and message out of an
// assessment response. Three approaches are tried in order: a complete
// JSON object, a direct key match, and finally any bare decimal in [0,1].
// ok is false when no score could be found.
func ExtractConfidence(content string) (assessment Assessment, ok bool) {
	cleaned := CleanResponse(content)

	// Approach 1: complete JSON object with both keys
	if match := jsonObjectPattern.FindString(cleaned); match != "" {
		var parsed Assessment
		if err := json.Unmarshal([]byte(match), &parsed); err == nil {
			return parsed, true
		}
	}

	// Approach 2: extract the key values directly
	if m := scorePattern.FindStringSubmatch(cleaned); m != nil {
		score, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			assessment.ConfidenceScore = score
			if msg := messagePattern.FindStringSubmatch(cleaned); msg != nil {
				assessment.Message = msg[1]
			}
			return assessment, true
		}
	}

	// Approach 3: any decimal that could plausibly be a confidence score
	for _, m := range bareNumberPattern.FindAllStringSubmatch(cleaned, -1) {
		score, err := strconv.ParseFloat(m[1], 64)
		if err == nil && score >= 0.0 && score <= 1.0 {
			assessment.ConfidenceScore = score
			return assessment, true
		}
	}

	return Assessment{}, false
}

// Route decides between automatic and human approval based on the final
// assessment message. Unparseable assessments always go to a human.
func Route(content string, threshold float64) (route string, assessment Assessment) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	assessment, ok := ExtractConfidence(content)
	if !ok {
		return RouteHuman, assessment
	}

	if assessment.ConfidenceScore < threshold {
		return RouteHuman, assessment
	}
	return RouteAutomatic, assessment
}

// HasAssessmentJSON reports whether a response contains a well-formed
// assessment object. Used by the reflection stage to decide on retries.
func HasAssessmentJSON(content string) bool {
	if !strings.Contains(content, `"confidence_score"`) || !strings.Contains(content, `"message"`) {
		return false
	}
	match := jsonObjectPattern.FindString(content)
	if match == "" {
		return false
	}
	var parsed Assessment
	return json.Unmarshal([]byte(match), &parsed) == nil
}
