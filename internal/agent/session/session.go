// Package session runs the bounded reason-act loop that drives a company
// analysis: the model picks tools, the session executes them, computed
// metrics are fed back, and the final answer is validated into a report.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/foresight-intel/foresight/internal/agent/audit"
	"github.com/foresight-intel/foresight/internal/agent/correlate"
	"github.com/foresight-intel/foresight/internal/agent/provider"
	"github.com/foresight-intel/foresight/internal/agent/report"
	"github.com/foresight-intel/foresight/internal/agent/tools"
	"github.com/foresight-intel/foresight/internal/models"
)

// Config bounds a session.
type Config struct {
	// MaxIterations caps the number of model turns.
	MaxIterations int

	// Timeout is the wall-clock budget for the whole session.
	Timeout time.Duration

	// ToolTimeout bounds each individual tool execution.
	ToolTimeout time.Duration
}

// DefaultConfig returns the bounds used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 6,
		Timeout:       5 * time.Minute,
		ToolTimeout:   30 * time.Second,
	}
}

// Outcome is the result of a completed session.
type Outcome struct {
	SessionID string
	Company   string
	Report    *models.Report

	// Sources holds the final result per attempted source, in ascending
	// kind order.
	Sources []models.SourceResult
	Metrics *correlate.Metrics

	Iterations   int
	InputTokens  int
	OutputTokens int
}

// Session drives one analysis conversation. Sessions are single-use.
type Session struct {
	id       string
	provider provider.Provider
	registry *tools.Registry
	config   Config
	logger   *slog.Logger
	audit    *audit.Logger
	metrics  *Metrics
	now      func() time.Time
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func WithAudit(logger *audit.Logger) Option {
	return func(s *Session) { s.audit = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces the time source. Used by the correlator so recency
// metrics stay reproducible in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithID overrides the generated session identifier. Callers use this to
// key external sinks (audit files) to the session before construction.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

func New(p provider.Provider, registry *tools.Registry, cfg Config, opts ...Option) *Session {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	s := &Session{
		id:       uuid.NewString(),
		provider: p,
		registry: registry,
		config:   cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier, fixed at construction so audit sinks
// can be keyed to it before Run starts.
func (s *Session) ID() string { return s.id }

// loopState tracks what the conversation has seen so far.
type loopState struct {
	// executed caches tool results by (name, canonical args) so a repeated
	// call replays instead of re-fetching.
	executed map[string]*tools.Result

	// fetched holds the latest source result per kind.
	fetched map[models.SourceKind]*models.SourceResult

	evidence    *report.Evidence
	metricsSent bool
	corrected   bool
}

// Run executes the session for one company.
func (s *Session) Run(ctx context.Context, company string) (*Outcome, error) {
	sessionID := s.id
	logger := s.logger.With("session_id", sessionID, "company", company)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	tracer := otel.Tracer("foresight/agent")
	ctx, span := tracer.Start(ctx, "session.run", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("session.company", company),
	))
	defer span.End()

	_ = s.audit.LogSessionStart(company, s.provider.Name(), s.provider.Model())

	outcome := &Outcome{SessionID: sessionID, Company: company}
	state := &loopState{
		executed: map[string]*tools.Result{},
		fetched:  map[models.SourceKind]*models.SourceResult{},
		evidence: report.NewEvidence(),
	}
	messages := []provider.Message{
		{Role: provider.RoleUser, Content: initialPrompt(company)},
	}
	toolDefs := s.registry.ToProviderTools()

	for iteration := 1; iteration <= s.config.MaxIterations; iteration++ {
		outcome.Iterations = iteration

		resp, err := s.provider.Chat(ctx, systemPrompt, messages, toolDefs)
		if err != nil {
			return nil, s.fail(outcome, classifyLoopError(ctx, err, sessionID))
		}
		outcome.InputTokens += resp.Usage.InputTokens
		outcome.OutputTokens += resp.Usage.OutputTokens
		s.metrics.observeTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
		_ = s.audit.LogModelRequest(iteration, resp.Usage.InputTokens, resp.Usage.OutputTokens,
			string(resp.StopReason), toolCallNames(resp.ToolCalls))

		logger.Debug("model turn complete",
			"iteration", iteration, "stop_reason", resp.StopReason, "tool_calls", len(resp.ToolCalls))

		messages = append(messages, provider.Message{
			Role:    provider.RoleAssistant,
			Content: resp.Content,
			ToolUse: resp.ToolCalls,
		})

		if len(resp.ToolCalls) > 0 {
			resultBlocks, err := s.runToolCalls(ctx, logger, state, resp.ToolCalls)
			if err != nil {
				return nil, s.fail(outcome, err)
			}
			messages = append(messages, provider.Message{
				Role:       provider.RoleUser,
				ToolResult: resultBlocks,
			})
			continue
		}

		// No tool calls: the model is wrapping up. Hand it the computed
		// metrics once before accepting a final answer.
		if !state.metricsSent {
			outcome.Sources = s.orderedSources(state)
			outcome.Metrics = correlate.Summarize(company, outcome.Sources, s.now().UTC())
			state.evidence.AddMetrics(outcome.Metrics.Names())
			state.metricsSent = true

			digest := outcome.Metrics.Render() + "\n\nNow write the final JSON report."
			_ = s.audit.LogMetricsComputed(digest)
			messages = append(messages, provider.Message{Role: provider.RoleUser, Content: digest})
			continue
		}

		parsed, violations := s.checkFinal(resp.Content, company, state)
		if len(violations) == 0 {
			outcome.Report = parsed
			s.metrics.observeSession("completed", iteration)
			_ = s.audit.LogSessionEnd("completed", iteration, outcome.InputTokens, outcome.OutputTokens)
			logger.Info("session completed",
				"iterations", iteration, "sources", len(outcome.Sources), "predictions", len(parsed.Predictions))
			return outcome, nil
		}

		_ = s.audit.LogReportViolations(violationStrings(violations), !state.corrected)
		if state.corrected {
			return nil, s.fail(outcome, fmt.Errorf("%w: report still invalid after correction: %s",
				ErrMalformedReport, violations[0]))
		}
		state.corrected = true
		logger.Warn("final answer rejected, issuing correction", "violations", len(violations))
		messages = append(messages, provider.Message{
			Role:    provider.RoleUser,
			Content: report.CorrectionPrompt(violations),
		})
	}

	return nil, s.fail(outcome, fmt.Errorf("%w: no report after %d iterations",
		ErrBudgetExhausted, s.config.MaxIterations))
}

// runToolCalls executes a model turn's tool calls. Distinct new calls fan
// out concurrently; repeats replay their cached result. The returned blocks
// are ordered by ascending tool name so transcripts are reproducible no
// matter which fetch finished first.
func (s *Session) runToolCalls(ctx context.Context, logger *slog.Logger, state *loopState, calls []provider.ToolUseBlock) ([]provider.ToolResultBlock, error) {
	ordered := make([]provider.ToolUseBlock, len(calls))
	copy(ordered, calls)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	results := make([]*tools.Result, len(ordered))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	type pending struct {
		index int
		call  provider.ToolUseBlock
		key   string
	}
	var toRun []pending
	claimed := map[string]int{}
	dupOf := map[int]int{}
	for i, call := range ordered {
		key := dedupeKey(call.Name, call.Input)
		if cached, ok := state.executed[key]; ok {
			results[i] = cached
			logger.Debug("replaying cached tool result", "tool", call.Name)
			continue
		}
		// A repeat inside the same turn collapses onto one execution.
		if first, ok := claimed[key]; ok {
			dupOf[i] = first
			continue
		}
		claimed[key] = i
		toRun = append(toRun, pending{index: i, call: call, key: key})
	}

	for _, p := range toRun {
		g.Go(func() error {
			callCtx := gctx
			if s.config.ToolTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, s.config.ToolTimeout)
				defer cancel()
			}

			_ = s.audit.LogToolStart(p.call.Name, p.call.Input)
			result := s.registry.Execute(callCtx, p.call.Name, p.call.Input)
			s.metrics.observeToolCall(p.call.Name, result.Success)
			_ = s.audit.LogToolComplete(p.call.Name, result.Success, result.ExecutionTimeMs, result.Summary)

			mu.Lock()
			results[p.index] = result
			state.executed[p.key] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("tool fan-out aborted: %w", err)
		}
		return nil, fmt.Errorf("%w: tool fan-out aborted: %v", ErrTimeout, err)
	}
	for i, first := range dupOf {
		results[i] = results[first]
	}

	blocks := make([]provider.ToolResultBlock, 0, len(ordered))
	for i, call := range ordered {
		result := results[i]
		if sr, ok := result.Data.(*models.SourceResult); ok {
			state.fetched[sr.Kind] = sr
			state.evidence.AddResult(sr)
		}
		blocks = append(blocks, provider.ToolResultBlock{
			ToolUseID: call.ID,
			Content:   renderToolResult(result),
			IsError:   !result.Success,
		})
	}
	return blocks, nil
}

// checkFinal parses and validates a candidate final answer.
func (s *Session) checkFinal(content, company string, state *loopState) (*models.Report, []report.Violation) {
	parsed, err := report.Parse(content)
	if err != nil {
		return nil, []report.Violation{{Field: "report", Message: err.Error()}}
	}
	attempted := make([]models.SourceKind, 0, len(state.fetched))
	for _, kind := range models.AllSourceKinds() {
		if _, ok := state.fetched[kind]; ok {
			attempted = append(attempted, kind)
		}
	}
	return parsed, report.Validate(parsed, company, attempted, state.evidence)
}

// orderedSources flattens the fetched map in ascending kind order.
func (s *Session) orderedSources(state *loopState) []models.SourceResult {
	var out []models.SourceResult
	for _, kind := range models.AllSourceKinds() {
		if sr, ok := state.fetched[kind]; ok {
			out = append(out, *sr)
		}
	}
	return out
}

func (s *Session) fail(outcome *Outcome, err error) error {
	s.metrics.observeSession(outcomeLabel(err), outcome.Iterations)
	_ = s.audit.LogError(err)
	_ = s.audit.LogSessionEnd(outcomeLabel(err), outcome.Iterations, outcome.InputTokens, outcome.OutputTokens)
	s.logger.Error("session failed", "session_id", outcome.SessionID, "error", err)
	return err
}

// classifyLoopError separates session-deadline expiry from caller
// cancellation: an interrupted run is not a timeout.
func classifyLoopError(ctx context.Context, err error, sessionID string) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return fmt.Errorf("session %s interrupted: %w", sessionID, context.Canceled)
	case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: session %s: %v", ErrTimeout, sessionID, err)
	}
	return fmt.Errorf("model call failed: %w", err)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrBudgetExhausted):
		return "budget_exhausted"
	case errors.Is(err, ErrMalformedReport):
		return "malformed_report"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}

// dedupeKey canonicalizes a tool call so argument ordering and whitespace
// do not defeat deduplication.
func dedupeKey(name string, input json.RawMessage) string {
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return name + "|" + string(input)
	}
	canonical, err := json.Marshal(args)
	if err != nil {
		return name + "|" + string(input)
	}
	return name + "|" + string(canonical)
}

// renderToolResult formats a tool result for the model: summary line first,
// then the JSON payload.
func renderToolResult(result *tools.Result) string {
	if !result.Success {
		if result.Summary != "" {
			return result.Summary
		}
		return result.Error
	}
	payload, err := json.Marshal(result.Data)
	if err != nil {
		return result.Summary
	}
	if result.Summary == "" {
		return string(payload)
	}
	return result.Summary + "\n" + string(payload)
}

func toolCallNames(calls []provider.ToolUseBlock) []string {
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, call.Name)
	}
	return names
}

func violationStrings(violations []report.Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.String())
	}
	return out
}
