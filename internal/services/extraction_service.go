package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JobExtraction is the structured partial job record parsed out of free
// text. Empty string means the field was absent.
type JobExtraction struct {
	JobTitle       string
	CompanyName    string
	JobLink        string
	JobDescription string
	Status         *models.JobStatus
	Confidence     float64
}

func (e JobExtraction) HasRequired() bool {
	return e.JobTitle != "" && e.CompanyName != ""
}

func (e JobExtraction) MissingRequired() []string {
	var missing []string
	if e.JobTitle == "" {
		missing = append(missing, "job_title")
	}
	if e.CompanyName == "" {
		missing = append(missing, "company_name")
	}
	return missing
}

const extractionPrompt = `You extract job information from user messages about job applications.

Extract the following fields if present:
- job_title: the job role/title
- company_name: the company name
- job_link: URL to the job posting
- job_description: brief description of the job
- status: one of [applied, screening, interview, technical, final, offer, rejected, withdrawn]

Rules:
- If the user says they "applied" or shares a job link without a status, infer status = "applied".
- Map variations like "interviewing", "phone screen", "onsite" to "interview".
- Only output the listed status values when you include status.
- If information is not present, set the field to null.
Respond with a JSON object containing exactly those five keys and nothing else.`

// extractionSchema guards against shape drift in the oracle's JSON before we
// decode it.
var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"job_title":       map[string]any{"type": []any{"string", "null"}},
		"company_name":    map[string]any{"type": []any{"string", "null"}},
		"job_link":        map[string]any{"type": []any{"string", "null"}},
		"job_description": map[string]any{"type": []any{"string", "null"}},
		"status":          map[string]any{"type": []any{"string", "null"}},
	},
	"additionalProperties": true,
}

// ExtractionService turns a raw message into a JobExtraction. The oracle
// extracts roughly; NormalizeStatus then maps free-form status words onto
// the fixed enum so the persisted value is always valid.
type ExtractionService struct {
	oracle Oracle
	log    *logger.Logger
}

func NewExtractionService(oracle Oracle, baseLog *logger.Logger) *ExtractionService {
	return &ExtractionService{
		oracle: oracle,
		log:    baseLog.With("service", "ExtractionService"),
	}
}

// Extract never fails: any oracle or parse problem yields an all-null
// extraction with confidence 0.
func (s *ExtractionService) Extract(ctx context.Context, message string) JobExtraction {
	empty := JobExtraction{
		Status:     NormalizeStatus("", message),
		Confidence: 0.0,
	}

	raw, err := s.oracle.Complete(ctx, extractionPrompt, message, true)
	if err != nil {
		s.log.Warn("Extraction call failed", "error", err)
		return empty
	}

	payload, ok := extractJSONSpan(raw)
	if !ok {
		s.log.Warn("No JSON object in extraction output", "raw", raw)
		return empty
	}
	if err := validateAgainstSchema(extractionSchema, payload); err != nil {
		s.log.Warn("Extraction JSON failed schema validation", "error", err)
		return empty
	}

	var decoded struct {
		JobTitle       *string `json:"job_title"`
		CompanyName    *string `json:"company_name"`
		JobLink        *string `json:"job_link"`
		JobDescription *string `json:"job_description"`
		Status         *string `json:"status"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		s.log.Warn("Extraction JSON decode failed", "error", err)
		return empty
	}

	rawStatus := ""
	if decoded.Status != nil {
		rawStatus = *decoded.Status
	}
	return JobExtraction{
		JobTitle:       deref(decoded.JobTitle),
		CompanyName:    deref(decoded.CompanyName),
		JobLink:        deref(decoded.JobLink),
		JobDescription: deref(decoded.JobDescription),
		Status:         NormalizeStatus(rawStatus, message),
		Confidence:     0.8,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// extractJSONSpan locates the first '{' and the last '}' in raw and returns
// the span between them.
func extractJSONSpan(raw string) ([]byte, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, false
	}
	return []byte(raw[start : end+1]), true
}

func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// statusSynonyms is ordered: more specific phrases come before their
// substrings so "technical interview" never lands on plain interview.
var statusSynonyms = []struct {
	phrase string
	status models.JobStatus
}{
	{"technical interview", models.StatusTechnical},
	{"coding challenge", models.StatusTechnical},
	{"technical round", models.StatusTechnical},
	{"technical", models.StatusTechnical},
	{"final round", models.StatusFinal},
	{"final interview", models.StatusFinal},
	{"final", models.StatusFinal},
	{"phone screen", models.StatusInterview},
	{"onsite", models.StatusInterview},
	{"interviewing", models.StatusInterview},
	{"interview", models.StatusInterview},
	{"recruiter call", models.StatusScreening},
	{"screening", models.StatusScreening},
	{"screen", models.StatusScreening},
	{"offered", models.StatusOffer},
	{"offer", models.StatusOffer},
	{"rejected", models.StatusRejected},
	{"reject", models.StatusRejected},
	{"declined", models.StatusRejected},
	{"passed", models.StatusRejected},
	{"turned me down", models.StatusRejected},
	{"withdrawn", models.StatusWithdrawn},
	{"withdrew", models.StatusWithdrawn},
	{"withdraw", models.StatusWithdrawn},
	{"applied", models.StatusApplied},
	{"apply", models.StatusApplied},
	{"application", models.StatusApplied},
}

var appliedHints = []string{
	"i applied", "i've applied", "applied to", "applied for",
	"application submitted", "submit my application", "submitted my application",
}

// NormalizeStatus maps an arbitrary status string (and hints from the
// original message) onto the fixed enum. Returns nil when nothing matches.
func NormalizeStatus(rawStatus, originalMessage string) *models.JobStatus {
	text := strings.ToLower(strings.TrimSpace(rawStatus))
	msg := strings.ToLower(originalMessage)

	// Strong hints from the message itself win over the raw value.
	if containsAny(msg, appliedHints) {
		return statusPtr(models.StatusApplied)
	}

	if text != "" {
		for _, syn := range statusSynonyms {
			if text == syn.phrase {
				return statusPtr(syn.status)
			}
		}
		for _, syn := range statusSynonyms {
			if strings.Contains(text, syn.phrase) {
				return statusPtr(syn.status)
			}
		}
	}

	// A shared link with no contrary signal means the user just applied.
	if originalMessage != "" && urlPattern.MatchString(originalMessage) {
		return statusPtr(models.StatusApplied)
	}

	return nil
}

func statusPtr(s models.JobStatus) *models.JobStatus {
	return &s
}
