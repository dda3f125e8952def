package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/foresight-intel/foresight/internal/models"
	"github.com/foresight-intel/foresight/internal/sources"
)

func jobsAdapter() sources.Adapter {
	return sources.NewStaticAdapter(models.SourceJobs, map[string][]models.Record{
		"acme": {
			{ID: "job-1", Title: "Staff Engineer", Metadata: map[string]any{"department": "Engineering"}},
			{ID: "job-2", Title: "ML Researcher", Metadata: map[string]any{"department": "Engineering"}},
			{ID: "job-3", Title: "Recruiter", Metadata: map[string]any{"department": "People"}},
		},
	})
}

func TestSourceToolNames(t *testing.T) {
	for _, kind := range models.AllSourceKinds() {
		name := ToolNameForKind(kind)
		back, ok := KindForToolName(name)
		if !ok || back != kind {
			t.Errorf("tool name round trip failed for %s: got %s, %v", kind, back, ok)
		}
	}
	if _, ok := KindForToolName("get_weather"); ok {
		t.Error("expected unknown tool name to not map to a kind")
	}
}

func TestSourceToolExecute(t *testing.T) {
	tool := NewSourceTool(jobsAdapter())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"company": "Acme"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}

	sr, ok := result.Data.(*models.SourceResult)
	if !ok {
		t.Fatalf("expected *models.SourceResult data, got %T", result.Data)
	}
	if len(sr.Records) != 3 {
		t.Errorf("expected 3 records, got %d", len(sr.Records))
	}
	if !strings.Contains(result.Summary, "Top department: Engineering (2 roles)") {
		t.Errorf("unexpected summary: %q", result.Summary)
	}
}

func TestSourceToolRejectsMissingCompany(t *testing.T) {
	tool := NewSourceTool(jobsAdapter())

	for _, input := range []string{`{}`, `{"company": "  "}`, `not json`} {
		result, err := tool.Execute(context.Background(), json.RawMessage(input))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", input, err)
		}
		if result.Success {
			t.Errorf("expected failure for input %q", input)
		}
	}
}

func TestSourceToolEmptyResult(t *testing.T) {
	tool := NewSourceTool(jobsAdapter())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"company": "Globex"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Finding nothing is still a successful run.
	if !result.Success {
		t.Fatalf("expected success for empty result, got %q", result.Error)
	}
	if !strings.Contains(result.Summary, "no open job postings") {
		t.Errorf("unexpected summary: %q", result.Summary)
	}
}

// downAdapter always reports the source as unreachable.
type downAdapter struct{ kind models.SourceKind }

func (d *downAdapter) Kind() models.SourceKind { return d.kind }

func (d *downAdapter) Fetch(ctx context.Context, company string, params sources.Params) *models.SourceResult {
	return sources.Unavailable(d.kind, "connection refused")
}

func TestSourceToolUnavailableSource(t *testing.T) {
	tool := NewSourceTool(&downAdapter{kind: models.SourceNews})

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"company": "Acme"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected unavailable source to fail the tool run")
	}
	if !strings.Contains(result.Error, "unavailable") {
		t.Errorf("expected unavailable in error, got %q", result.Error)
	}
	sr, ok := result.Data.(*models.SourceResult)
	if !ok || sr.Status != models.StatusUnavailable {
		t.Errorf("expected unavailable source result, got %#v", result.Data)
	}
}

func TestSourceToolPatentsSchemaHasLimit(t *testing.T) {
	tool := NewSourceTool(sources.NewStaticAdapter(models.SourcePatents, nil))

	schema := tool.InputSchema()
	props := schema["properties"].(map[string]interface{})
	if _, ok := props["limit"]; !ok {
		t.Error("expected patents tool to declare a limit parameter")
	}

	jobs := NewSourceTool(jobsAdapter())
	jobsProps := jobs.InputSchema()["properties"].(map[string]interface{})
	if _, ok := jobsProps["limit"]; ok {
		t.Error("expected jobs tool to not declare a limit parameter")
	}
}

func TestTopDepartmentTieBreaksAlphabetically(t *testing.T) {
	records := []models.Record{
		{Metadata: map[string]any{"department": "Sales"}},
		{Metadata: map[string]any{"department": "Engineering"}},
	}
	dept, count := topDepartment(records)
	if dept != "Engineering" || count != 1 {
		t.Errorf("expected Engineering (1), got %s (%d)", dept, count)
	}
}
