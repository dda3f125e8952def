package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresight-intel/foresight/internal/agent/provider"
	"github.com/foresight-intel/foresight/internal/agent/tools"
	"github.com/foresight-intel/foresight/internal/models"
	"github.com/foresight-intel/foresight/internal/sources"
)

const testCompany = "Acme Robotics"

func testRecords(kind models.SourceKind) []models.Record {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	switch kind {
	case models.SourceJobs:
		return []models.Record{
			{ID: "job-1", Date: date, Title: "Senior Robotics Engineer",
				Body: "Build autonomous picking systems.",
				Metadata: map[string]any{"department": "Engineering"}},
			{ID: "job-2", Date: date, Title: "ML Engineer",
				Body: "Perception models for autonomous arms.",
				Metadata: map[string]any{"department": "Engineering"}},
		}
	case models.SourceNews:
		return []models.Record{
			{ID: "news-1", Date: date, Title: "Acme raises Series C",
				Body: "Funding to scale autonomous warehouse robots."},
		}
	case models.SourcePatents:
		return []models.Record{
			{ID: "pat-1", Date: date, Title: "Gripper control system",
				Body: "Force feedback for autonomous manipulation."},
		}
	case models.SourceRepositories:
		return []models.Record{
			{ID: "repo-1", Date: date, Title: "acme/gripper-sdk",
				Body: "SDK for the gripper line.",
				Metadata: map[string]any{"stars": 120, "forks": 14}},
		}
	}
	return nil
}

func testAdapters() []sources.Adapter {
	var out []sources.Adapter
	for _, kind := range models.AllSourceKinds() {
		out = append(out, sources.NewStaticAdapter(kind, map[string][]models.Record{
			"acme robotics": testRecords(kind),
		}))
	}
	return out
}

func newTestSession(t *testing.T, scenario *provider.Scenario, adapters []sources.Adapter) *Session {
	t.Helper()
	registry := tools.NewRegistry(tools.Dependencies{Adapters: adapters})
	cfg := Config{MaxIterations: 6, Timeout: 10 * time.Second}
	fixed := func() time.Time { return time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC) }
	return New(provider.NewScripted(scenario), registry, cfg, WithClock(fixed))
}

const fullReportJSON = `{
  "company": "Acme Robotics",
  "summary": "Acme is concentrating engineering effort on autonomous manipulation.",
  "sections": [
    {"source": "jobs", "status": "ok", "analysis": "Both open roles sit in engineering."},
    {"source": "news", "status": "ok", "analysis": "Fresh funding earmarked for warehouse robots."},
    {"source": "patents", "status": "ok", "analysis": "Recent filing covers gripper force feedback."},
    {"source": "repositories", "status": "ok", "analysis": "The gripper SDK is the most active project."}
  ],
  "predictions": [
    {"horizon": "6 months", "statement": "Acme ships a gripper product update.",
     "confidence": "MEDIUM",
     "evidence": ["patents:pat-1", "metric:jobs.record_count"]}
  ]
}`

const jobsReportJSON = `{
  "company": "Acme Robotics",
  "summary": "Hiring is concentrated in engineering.",
  "sections": [
    {"source": "jobs", "status": "ok", "analysis": "Two engineering openings."}
  ],
  "predictions": [
    {"horizon": "3 months", "statement": "Engineering headcount grows.",
     "confidence": "LOW", "evidence": ["jobs:job-1"]}
  ]
}`

func companyArgs() map[string]any {
	return map[string]any{"company": "acme robotics"}
}

func allToolCalls() []provider.ScenarioToolCall {
	return []provider.ScenarioToolCall{
		{Name: "get_jobs", Args: companyArgs()},
		{Name: "get_news", Args: companyArgs()},
		{Name: "get_patents", Args: companyArgs()},
		{Name: "get_github", Args: companyArgs()},
	}
}

func TestRunHappyPath(t *testing.T) {
	scenario := &provider.Scenario{
		Name: "happy",
		Steps: []provider.ScenarioStep{
			{ToolCalls: allToolCalls()},
			{Trigger: "Cite these as", Text: fullReportJSON},
		},
	}
	s := newTestSession(t, scenario, testAdapters())

	outcome, err := s.Run(context.Background(), testCompany)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	assert.Equal(t, testCompany, outcome.Report.Company)
	assert.Len(t, outcome.Report.Sections, 4)
	assert.Len(t, outcome.Report.Predictions, 1)
	assert.Equal(t, s.ID(), outcome.SessionID)

	require.Len(t, outcome.Sources, 4)
	var kinds []models.SourceKind
	for _, sr := range outcome.Sources {
		kinds = append(kinds, sr.Kind)
		assert.Equal(t, models.StatusOk, sr.Status)
	}
	assert.Equal(t, models.AllSourceKinds(), kinds)

	require.NotNil(t, outcome.Metrics)
	assert.Equal(t, testCompany, outcome.Metrics.Company)
	// One turn of tool calls, one preliminary close, one final answer.
	assert.Equal(t, 3, outcome.Iterations)
	assert.Greater(t, outcome.InputTokens, 0)
}

// countingAdapter counts Fetch invocations so dedupe behavior is observable.
type countingAdapter struct {
	inner sources.Adapter
	calls atomic.Int64
}

func (c *countingAdapter) Kind() models.SourceKind { return c.inner.Kind() }

func (c *countingAdapter) Fetch(ctx context.Context, company string, params sources.Params) *models.SourceResult {
	c.calls.Add(1)
	return c.inner.Fetch(ctx, company, params)
}

func TestRunDeduplicatesRepeatedCalls(t *testing.T) {
	counting := &countingAdapter{
		inner: sources.NewStaticAdapter(models.SourceJobs, map[string][]models.Record{
			"acme robotics": testRecords(models.SourceJobs),
		}),
	}
	scenario := &provider.Scenario{
		Name: "dedupe",
		Steps: []provider.ScenarioStep{
			// Same call twice in one turn, then once more next turn.
			{ToolCalls: []provider.ScenarioToolCall{
				{Name: "get_jobs", Args: companyArgs()},
				{Name: "get_jobs", Args: companyArgs()},
			}},
			{ToolCalls: []provider.ScenarioToolCall{{Name: "get_jobs", Args: companyArgs()}}},
			{Trigger: "Cite these as", Text: jobsReportJSON},
		},
	}
	s := newTestSession(t, scenario, []sources.Adapter{counting})

	outcome, err := s.Run(context.Background(), testCompany)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)
	assert.Equal(t, int64(1), counting.calls.Load())
}

func TestRunRecoversFromUnknownTool(t *testing.T) {
	scenario := &provider.Scenario{
		Name: "unknown-tool",
		Steps: []provider.ScenarioStep{
			{ToolCalls: []provider.ScenarioToolCall{{Name: "get_weather", Args: companyArgs()}}},
			{ToolCalls: []provider.ScenarioToolCall{{Name: "get_jobs", Args: companyArgs()}}},
			{Trigger: "Cite these as", Text: jobsReportJSON},
		},
	}
	s := newTestSession(t, scenario, testAdapters())

	outcome, err := s.Run(context.Background(), testCompany)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)
	// The bogus call never produced a source result.
	require.Len(t, outcome.Sources, 1)
	assert.Equal(t, models.SourceJobs, outcome.Sources[0].Kind)
}

func TestRunBudgetExhausted(t *testing.T) {
	scenario := &provider.Scenario{
		Name: "looping",
		Steps: []provider.ScenarioStep{
			{ToolCalls: []provider.ScenarioToolCall{{Name: "get_jobs"}}},
			{ToolCalls: []provider.ScenarioToolCall{{Name: "get_news"}}},
			{ToolCalls: []provider.ScenarioToolCall{{Name: "get_patents"}}},
		},
	}
	registry := tools.NewRegistry(tools.Dependencies{Adapters: testAdapters()})
	s := New(provider.NewScripted(scenario), registry,
		Config{MaxIterations: 2, Timeout: 10 * time.Second})

	_, err := s.Run(context.Background(), testCompany)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
}

// downAdapter simulates an unreachable backend.
type downAdapter struct{ kind models.SourceKind }

func (d *downAdapter) Kind() models.SourceKind { return d.kind }

func (d *downAdapter) Fetch(ctx context.Context, company string, params sources.Params) *models.SourceResult {
	return sources.Unavailable(d.kind, "backend unreachable")
}

func TestRunDegradedSource(t *testing.T) {
	adapters := []sources.Adapter{
		sources.NewStaticAdapter(models.SourceJobs, map[string][]models.Record{
			"acme robotics": testRecords(models.SourceJobs),
		}),
		&downAdapter{kind: models.SourceNews},
	}
	degradedReport := `{
  "company": "Acme Robotics",
  "summary": "Hiring points at engineering growth; press coverage was unreachable.",
  "sections": [
    {"source": "jobs", "status": "ok", "analysis": "Two engineering openings."},
    {"source": "news", "status": "unavailable", "analysis": ""}
  ],
  "predictions": [
    {"horizon": "3 months", "statement": "Engineering headcount grows.",
     "confidence": "LOW", "evidence": ["jobs:job-2"]}
  ]
}`
	scenario := &provider.Scenario{
		Name: "degraded",
		Steps: []provider.ScenarioStep{
			{ToolCalls: []provider.ScenarioToolCall{
				{Name: "get_jobs", Args: companyArgs()},
				{Name: "get_news", Args: companyArgs()},
			}},
			{Trigger: "Cite these as", Text: degradedReport},
		},
	}
	s := newTestSession(t, scenario, adapters)

	outcome, err := s.Run(context.Background(), testCompany)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)

	require.Len(t, outcome.Sources, 2)
	assert.Equal(t, models.SourceJobs, outcome.Sources[0].Kind)
	assert.Equal(t, models.StatusOk, outcome.Sources[0].Status)
	assert.Equal(t, models.SourceNews, outcome.Sources[1].Kind)
	assert.Equal(t, models.StatusUnavailable, outcome.Sources[1].Status)

	section := outcome.Report.Section(models.SourceNews)
	require.NotNil(t, section)
	assert.Equal(t, models.StatusUnavailable, section.Status)
}

func TestRunCorrectsMalformedReport(t *testing.T) {
	scenario := &provider.Scenario{
		Name: "corrected",
		Steps: []provider.ScenarioStep{
			{ToolCalls: []provider.ScenarioToolCall{{Name: "get_jobs", Args: companyArgs()}}},
			{Trigger: "Cite these as", Text: "Here is my analysis, in prose instead of JSON."},
			{Trigger: "structurally invalid", Text: jobsReportJSON},
		},
	}
	s := newTestSession(t, scenario, testAdapters())

	outcome, err := s.Run(context.Background(), testCompany)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)
	assert.Equal(t, 4, outcome.Iterations)
}

func TestRunMalformedAfterCorrection(t *testing.T) {
	scenario := &provider.Scenario{
		Name: "stubborn",
		Steps: []provider.ScenarioStep{
			{ToolCalls: []provider.ScenarioToolCall{{Name: "get_jobs"}}},
			{Trigger: "Cite these as", Text: "still not json"},
			{Trigger: "structurally invalid", Text: "and again not json"},
		},
	}
	s := newTestSession(t, scenario, testAdapters())

	_, err := s.Run(context.Background(), testCompany)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedReport)
}

// stalledProvider blocks until the session deadline fires.
type stalledProvider struct{}

func (stalledProvider) Name() string  { return "stalled" }
func (stalledProvider) Model() string { return "stalled" }

func (stalledProvider) Chat(ctx context.Context, systemPrompt string, messages []provider.Message, tools []provider.ToolDefinition) (*provider.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunTimeout(t *testing.T) {
	registry := tools.NewRegistry(tools.Dependencies{Adapters: testAdapters()})
	s := New(stalledProvider{}, registry,
		Config{MaxIterations: 6, Timeout: 20 * time.Millisecond})

	_, err := s.Run(context.Background(), testCompany)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRunCanceledIsNotTimeout(t *testing.T) {
	registry := tools.NewRegistry(tools.Dependencies{Adapters: testAdapters()})
	s := New(stalledProvider{}, registry,
		Config{MaxIterations: 6, Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := s.Run(ctx, testCompany)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestDedupeKeyCanonicalizesArgs(t *testing.T) {
	a := dedupeKey("get_jobs", []byte(`{"limit": 5, "company": "acme"}`))
	b := dedupeKey("get_jobs", []byte(`{"company":"acme","limit":5}`))
	assert.Equal(t, a, b)

	c := dedupeKey("get_jobs", []byte(`{"limit": 6}`))
	assert.NotEqual(t, a, c)
}
