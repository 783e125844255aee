// internal/docverify/extract/models.go
package extract

type Input struct {
	Request     string `json:"request"`
	ImageBase64 string `json:"imageBase64"`
	ImageMIME   string `json:"imageMime"`
}

type Output struct {
	RawJSON      string                 `json:"rawJson"`
	Document     map[string]interface{} `json:"document"`
	Summary      string                 `json:"summary"`
	SchemaValid  bool                   `json:"schemaValid"`
	SchemaErrors []string               `json:"schemaErrors,omitempty"`
}
