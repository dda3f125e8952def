package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/foresight-intel/foresight/internal/agent/report"
	"github.com/foresight-intel/foresight/internal/agent/session"
	"github.com/foresight-intel/foresight/internal/models"
)

// AnalyzeRequest is the POST /api/v1/analyze payload.
type AnalyzeRequest struct {
	Company string `json:"company"`
}

// AnalyzeResponse carries a completed analysis.
type AnalyzeResponse struct {
	SessionID string `json:"session_id"`

	// Company is the canonical name the analysis ran against, after alias
	// resolution.
	Company string `json:"company"`

	Report   *models.Report `json:"report"`
	Markdown string         `json:"markdown"`

	Sources    []sourceSummary `json:"sources"`
	Iterations int             `json:"iterations"`
	Usage      usageSummary    `json:"usage"`
}

type sourceSummary struct {
	Source  models.SourceKind   `json:"source"`
	Status  models.SourceStatus `json:"status"`
	Records int                 `json:"records"`
	Detail  string              `json:"detail,omitempty"`
}

type usageSummary struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON with a company field")
		return
	}
	company := strings.TrimSpace(req.Company)
	if company == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "company must not be empty")
		return
	}
	company = s.resolver.Load().Resolve(company)

	logger := s.logger.With("company", company)
	logger.Info("analysis requested", "remote", r.RemoteAddr)

	outcome, err := s.analyzer.Analyze(r.Context(), company)
	if err != nil {
		status, code := classifyAnalysisError(err)
		logger.Error("analysis failed", "error", err, "code", code)
		writeError(w, status, code, err.Error())
		return
	}

	resp := AnalyzeResponse{
		SessionID:  outcome.SessionID,
		Company:    outcome.Company,
		Report:     outcome.Report,
		Markdown:   report.RenderMarkdown(outcome.Report),
		Iterations: outcome.Iterations,
		Usage: usageSummary{
			InputTokens:  outcome.InputTokens,
			OutputTokens: outcome.OutputTokens,
		},
	}
	for _, sr := range outcome.Sources {
		resp.Sources = append(resp.Sources, sourceSummary{
			Source:  sr.Kind,
			Status:  sr.Status,
			Records: len(sr.Records),
			Detail:  sr.Detail,
		})
	}
	writeData(w, http.StatusOK, resp)
}

func classifyAnalysisError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrTimeout):
		return http.StatusGatewayTimeout, "SESSION_TIMEOUT"
	case errors.Is(err, session.ErrBudgetExhausted):
		return http.StatusBadGateway, "BUDGET_EXHAUSTED"
	case errors.Is(err, session.ErrMalformedReport):
		return http.StatusBadGateway, "MALFORMED_REPORT"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}
