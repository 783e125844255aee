// internal/docverify/placecheck/models.go
package placecheck

type Input struct {
	Contents []string `json:"contents"`
}

type Output struct {
	Result VerificationReport `json:"result"`
}

// VerificationReport is the full verification payload appended to the
// conversation for the assessment stage.
type VerificationReport struct {
	VerificationType   string              `json:"verification_type"`
	InputData          string              `json:"input_data,omitempty"`
	PlaceVerified      *bool               `json:"place_verified,omitempty"`
	ConfidenceScore    *float64            `json:"confidence_score,omitempty"`
	VerificationResult *VerificationResult `json:"verification_result,omitempty"`
	VerificationNotes  []string            `json:"verification_notes,omitempty"`
	RiskFactors        []string            `json:"risk_factors,omitempty"`
	Error              string              `json:"error,omitempty"`
}

type VerificationResult struct {
	InputPlace          string             `json:"input_place"`
	VerifiedName        string             `json:"verified_name,omitempty"`
	Location            string             `json:"location,omitempty"`
	Type                string             `json:"type,omitempty"`
	Status              string             `json:"status"`
	Established         string             `json:"established,omitempty"`
	Coordinates         map[string]float64 `json:"coordinates,omitempty"`
	ContactInfo         *ContactInfo       `json:"contact_info,omitempty"`
	Services            []string           `json:"services,omitempty"`
	VerificationSources []string           `json:"verification_sources,omitempty"`
	PartialMatches      []PartialMatch     `json:"partial_matches,omitempty"`
}

type ContactInfo struct {
	Phone   string `json:"phone"`
	Website string `json:"website"`
}

type PartialMatch struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}
