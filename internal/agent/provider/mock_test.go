package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `
name: acme-walkthrough
description: scripted run against fixture data
steps:
  - text: Let me pull the hiring data first.
    tool_calls:
      - name: get_jobs
        args:
          company: Acme
  - trigger: "Found"
    text: |
      {"company": "Acme", "summary": "ok", "sections": [], "predictions": []}
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "acme-walkthrough", scenario.Name)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "get_jobs", scenario.Steps[0].ToolCalls[0].Name)
}

func TestScriptedProviderTurns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	mock := NewScripted(scenario)
	ctx := context.Background()

	first, err := mock.Chat(ctx, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StopReasonToolUse, first.StopReason)
	require.Len(t, first.ToolCalls, 1)
	assert.Equal(t, "get_jobs", first.ToolCalls[0].Name)
	assert.JSONEq(t, `{"company": "Acme"}`, string(first.ToolCalls[0].Input))

	// Second step is gated on tool output appearing in the conversation.
	history := []Message{
		{Role: RoleUser, Content: "Analyze Acme"},
		{Role: RoleUser, ToolResult: []ToolResultBlock{{ToolUseID: first.ToolCalls[0].ID, Content: "Found 12 job postings"}}},
	}
	second, err := mock.Chat(ctx, "", history, nil)
	require.NoError(t, err)
	assert.Equal(t, StopReasonEndTurn, second.StopReason)
	assert.Contains(t, second.Content, `"company": "Acme"`)

	// Script exhausted.
	third, err := mock.Chat(ctx, "", history, nil)
	require.NoError(t, err)
	assert.Equal(t, "[scenario completed]", third.Content)
}

func TestLoadScenarioRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: empty\nsteps: []"), 0o644))
	_, err := LoadScenario(path)
	assert.Error(t, err)
}
