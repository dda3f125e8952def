package models

// Confidence is the closed label set for predictions.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// ValidConfidence reports whether c is one of the three allowed labels.
func ValidConfidence(c Confidence) bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Prediction is one dated, confidence-labeled forecast. Every prediction
// must cite at least one evidence reference resolvable to a record or a
// derived metric from the session that produced it.
type Prediction struct {
	// Horizon is the forecast window, e.g. "30-day", "60-day", "90-day",
	// or an explicit date like "2026-01-15".
	Horizon string `json:"horizon"`

	// Statement is the falsifiable claim being made.
	Statement string `json:"statement"`

	// Confidence is one of LOW, MEDIUM, HIGH.
	Confidence Confidence `json:"confidence"`

	// Evidence lists references of the form "<source>:<record id>"
	// (e.g. "patents:US20230123A1") or "metric:<name>"
	// (e.g. "metric:jobs.department_pct.engineering").
	Evidence []string `json:"evidence"`
}

// SourceSection is the per-source portion of a report. Sections exist for
// every source that was attempted, including unavailable and empty ones.
type SourceSection struct {
	Kind SourceKind `json:"source"`

	// Status mirrors the SourceResult status the section describes.
	Status SourceStatus `json:"status"`

	// Analysis is the narrative for this source. For unavailable or empty
	// sources it states that explicitly instead of being omitted.
	Analysis string `json:"analysis"`
}

// Report is the terminal artifact of a session. Its field structure is the
// stable contract rendered by callers; changing it is a breaking change.
type Report struct {
	// Company is the subject of the analysis.
	Company string `json:"company,omitempty"`

	// Summary is the executive summary. Never empty in a valid report.
	Summary string `json:"summary"`

	// Sections holds one entry per attempted source.
	Sections []SourceSection `json:"sections"`

	// Predictions is the ordered sequence of dated forecasts.
	Predictions []Prediction `json:"predictions"`
}

// Section returns the section for the given source kind, or nil.
func (r *Report) Section(kind SourceKind) *SourceSection {
	for i := range r.Sections {
		if r.Sections[i].Kind == kind {
			return &r.Sections[i]
		}
	}
	return nil
}
