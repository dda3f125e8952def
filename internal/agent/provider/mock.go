package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Scenario is a pre-scripted conversation for demo runs and tests. Steps are
// consumed in order; a step with a trigger only fires once the trigger text
// appears in the conversation.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one scripted model turn.
type ScenarioStep struct {
	// Trigger is an optional substring that must appear in the latest
	// conversation content before this step fires.
	Trigger   string             `yaml:"trigger,omitempty"`
	Text      string             `yaml:"text,omitempty"`
	ToolCalls []ScenarioToolCall `yaml:"tool_calls,omitempty"`
}

// ScenarioToolCall is a scripted tool invocation.
type ScenarioToolCall struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args,omitempty"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var scenario Scenario
	if err := yaml.Unmarshal(raw, &scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &Scenario{
		Name:        scenario.Name,
		Description: scenario.Description,
		Steps:       scenario.Steps,
	}, nil
}

// Scripted implements Provider from a scenario, without real API calls.
type Scripted struct {
	scenario *Scenario

	mu   sync.Mutex
	next int
}

func NewScripted(scenario *Scenario) *Scripted {
	return &Scripted{scenario: scenario}
}

func (s *Scripted) Name() string { return "mock" }

func (s *Scripted) Model() string {
	return fmt.Sprintf("mock:%s", s.scenario.Name)
}

func (s *Scripted) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.scenario.Steps) {
		// Script exhausted: close the turn so the session terminates.
		return &Response{
			Content:    "[scenario completed]",
			StopReason: StopReasonEndTurn,
			Usage:      Usage{InputTokens: 100, OutputTokens: 10},
		}, nil
	}

	step := s.scenario.Steps[s.next]
	if step.Trigger != "" && !strings.Contains(conversationText(messages), step.Trigger) {
		return &Response{
			Content:    fmt.Sprintf("[waiting for: %s]", step.Trigger),
			StopReason: StopReasonEndTurn,
		}, nil
	}
	s.next++

	resp := &Response{
		Content:    step.Text,
		StopReason: StopReasonEndTurn,
		Usage: Usage{
			InputTokens:  len(messages) * 50,
			OutputTokens: len(step.Text) / 4,
		},
	}
	for i, tc := range step.ToolCalls {
		args := tc.Args
		if args == nil {
			args = map[string]any{}
		}
		input, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encoding scripted args for %s: %w", tc.Name, err)
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolUseBlock{
			ID:    fmt.Sprintf("mock_call_%d_%d", s.next, i),
			Name:  tc.Name,
			Input: input,
		})
	}
	if len(resp.ToolCalls) > 0 {
		resp.StopReason = StopReasonToolUse
	}
	return resp, nil
}

// Reset rewinds the script for a new conversation.
func (s *Scripted) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
}

func conversationText(messages []Message) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Content)
		b.WriteString("\n")
		for _, tr := range msg.ToolResult {
			b.WriteString(tr.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

var _ Provider = (*Scripted)(nil)
