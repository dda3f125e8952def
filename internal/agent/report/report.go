// Package report parses and validates the agent's final answer.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/foresight-intel/foresight/internal/models"
)

// Parse extracts the report JSON from the model's final message. The model
// is asked for bare JSON but fenced blocks and surrounding prose show up in
// practice, so both are tolerated.
func Parse(content string) (*models.Report, error) {
	payload := extractJSON(content)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in final answer")
	}

	var r models.Report
	decoder := json.NewDecoder(strings.NewReader(payload))
	if err := decoder.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding report JSON: %w", err)
	}
	return &r, nil
}

// extractJSON pulls the first JSON object out of a message, preferring a
// fenced code block when one exists.
func extractJSON(content string) string {
	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		if candidate := braceSpan(rest); candidate != "" {
			return candidate
		}
	}
	return braceSpan(content)
}

func braceSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// Violation is one structural problem found during validation. The message
// is phrased for the model so it can be sent back verbatim as a correction.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Evidence indexes what a report is allowed to cite: record IDs per source
// plus computed metric names.
type Evidence struct {
	records map[models.SourceKind]map[string]bool
	metrics map[string]bool
}

func NewEvidence() *Evidence {
	return &Evidence{
		records: map[models.SourceKind]map[string]bool{},
		metrics: map[string]bool{},
	}
}

// AddResult indexes a source result's record IDs.
func (e *Evidence) AddResult(result *models.SourceResult) {
	if result == nil {
		return
	}
	if e.records[result.Kind] == nil {
		e.records[result.Kind] = map[string]bool{}
	}
	for _, rec := range result.Records {
		e.records[result.Kind][rec.ID] = true
	}
}

// AddMetrics indexes citable metric names.
func (e *Evidence) AddMetrics(names []string) {
	for _, name := range names {
		e.metrics[name] = true
	}
}

// Resolve reports whether an evidence reference points at something the
// session actually saw. References take the form "<source>:<record id>" or
// "metric:<name>".
func (e *Evidence) Resolve(ref string) bool {
	prefix, rest, ok := strings.Cut(ref, ":")
	if !ok || rest == "" {
		return false
	}
	if prefix == "metric" {
		return e.metrics[rest]
	}
	return e.records[models.SourceKind(prefix)][rest]
}

// Validate checks a parsed report against the session's evidence. It
// returns every violation found, not just the first, so a single corrective
// message can cover them all.
func Validate(r *models.Report, company string, attempted []models.SourceKind, evidence *Evidence) []Violation {
	var violations []Violation

	if r.Company == "" {
		violations = append(violations, Violation{Field: "company", Message: "must be set"})
	} else if !strings.EqualFold(r.Company, company) {
		violations = append(violations, Violation{
			Field:   "company",
			Message: fmt.Sprintf("is %q, expected %q", r.Company, company),
		})
	}

	if strings.TrimSpace(r.Summary) == "" {
		violations = append(violations, Violation{Field: "summary", Message: "must not be empty"})
	}

	// Every attempted source needs a section; extra sections for sources
	// never fetched are equally wrong.
	seen := map[models.SourceKind]bool{}
	for i, section := range r.Sections {
		field := fmt.Sprintf("sections[%d]", i)
		if seen[section.Kind] {
			violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("duplicate section for %s", section.Kind)})
			continue
		}
		seen[section.Kind] = true
		if !kindAttempted(section.Kind, attempted) {
			violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("source %s was never fetched", section.Kind)})
		}
		if strings.TrimSpace(section.Analysis) == "" && section.Status == models.StatusOk {
			violations = append(violations, Violation{Field: field, Message: "analysis must not be empty for a populated source"})
		}
	}
	for _, kind := range attempted {
		if !seen[kind] {
			violations = append(violations, Violation{Field: "sections", Message: fmt.Sprintf("missing section for %s", kind)})
		}
	}

	for i, pred := range r.Predictions {
		field := fmt.Sprintf("predictions[%d]", i)
		if strings.TrimSpace(pred.Statement) == "" {
			violations = append(violations, Violation{Field: field, Message: "statement must not be empty"})
		}
		if strings.TrimSpace(pred.Horizon) == "" {
			violations = append(violations, Violation{Field: field, Message: "horizon must specify a forecast window"})
		}
		if !models.ValidConfidence(pred.Confidence) {
			violations = append(violations, Violation{
				Field:   field,
				Message: fmt.Sprintf("confidence %q is not one of LOW, MEDIUM, HIGH", pred.Confidence),
			})
		}
		if len(pred.Evidence) == 0 {
			violations = append(violations, Violation{Field: field, Message: "must cite at least one evidence reference"})
		}
		for _, ref := range pred.Evidence {
			if evidence != nil && !evidence.Resolve(ref) {
				violations = append(violations, Violation{
					Field:   field,
					Message: fmt.Sprintf("evidence %q does not match any fetched record or computed metric", ref),
				})
			}
		}
	}

	return violations
}

func kindAttempted(kind models.SourceKind, attempted []models.SourceKind) bool {
	for _, k := range attempted {
		if k == kind {
			return true
		}
	}
	return false
}

// CorrectionPrompt formats violations as the single corrective message the
// model gets before the session gives up on the report.
func CorrectionPrompt(violations []Violation) string {
	var b strings.Builder
	b.WriteString("The report you produced is structurally invalid. Fix the following and respond with the corrected JSON report only:\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s\n", v.String())
	}
	return b.String()
}
