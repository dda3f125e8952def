package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/foresight-intel/foresight/internal/models"
	"github.com/foresight-intel/foresight/internal/sources"
)

// Tool names exposed to the model. One per source kind.
const (
	ToolGetPatents = "get_patents"
	ToolGetJobs    = "get_jobs"
	ToolGetNews    = "get_news"
	ToolGetGithub  = "get_github"
)

// ToolNameForKind maps a source kind to its tool name.
func ToolNameForKind(kind models.SourceKind) string {
	switch kind {
	case models.SourcePatents:
		return ToolGetPatents
	case models.SourceJobs:
		return ToolGetJobs
	case models.SourceNews:
		return ToolGetNews
	case models.SourceRepositories:
		return ToolGetGithub
	}
	return string(kind)
}

// KindForToolName is the inverse of ToolNameForKind.
func KindForToolName(name string) (models.SourceKind, bool) {
	switch name {
	case ToolGetPatents:
		return models.SourcePatents, true
	case ToolGetJobs:
		return models.SourceJobs, true
	case ToolGetNews:
		return models.SourceNews, true
	case ToolGetGithub:
		return models.SourceRepositories, true
	}
	return "", false
}

var toolDescriptions = map[models.SourceKind]string{
	models.SourcePatents: `Retrieve recent patent publications assigned to a company.

Use this tool to understand a company's R&D direction: what technologies it
is protecting and how active its filing pipeline is.

Input:
- company: Company name to search patent assignees for
- limit (optional): Maximum publications to return (default: 50)`,

	models.SourceJobs: `Retrieve current job postings for a company.

Use this tool to understand where the company is investing headcount:
departments, seniority mix, and locations.

Input:
- company: Company name to fetch postings for`,

	models.SourceNews: `Retrieve recent press coverage for a company.

Use this tool to pick up announcements, funding events, partnerships, and
public narrative shifts.

Input:
- company: Company name to fetch coverage for`,

	models.SourceRepositories: `Retrieve public repository activity for a company's GitHub organization.

Use this tool to see where engineering effort is visible in the open:
active projects, languages, and community traction (stars, forks).

Input:
- company: Company name whose organization to fetch`,
}

// sourceInput is the wire shape of every source tool's input.
type sourceInput struct {
	Company string `json:"company"`
	Limit   int    `json:"limit,omitempty"`
}

// SourceTool exposes one data source adapter as an agent tool.
type SourceTool struct {
	adapter sources.Adapter
}

func NewSourceTool(adapter sources.Adapter) *SourceTool {
	return &SourceTool{adapter: adapter}
}

func (t *SourceTool) Name() string { return ToolNameForKind(t.adapter.Kind()) }

func (t *SourceTool) Description() string {
	return toolDescriptions[t.adapter.Kind()]
}

func (t *SourceTool) InputSchema() map[string]interface{} {
	properties := map[string]interface{}{
		"company": map[string]interface{}{
			"type":        "string",
			"description": "Company name to analyze",
		},
	}
	if t.adapter.Kind() == models.SourcePatents {
		properties["limit"] = map[string]interface{}{
			"type":        "integer",
			"description": fmt.Sprintf("Maximum publications to return (default: %d)", sources.DefaultPatentLimit),
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"required":   []string{"company"},
		"properties": properties,
	}
}

func (t *SourceTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var args sourceInput
	if err := json.Unmarshal(input, &args); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if strings.TrimSpace(args.Company) == "" {
		return &Result{Success: false, Error: "company is required"}, nil
	}

	result := t.adapter.Fetch(ctx, args.Company, sources.Params{Limit: args.Limit})

	switch result.Status {
	case models.StatusOk, models.StatusEmpty:
		return &Result{
			Success: true,
			Data:    result,
			Summary: summarize(result),
		}, nil
	default:
		return &Result{
			Success: false,
			Data:    result,
			Error:   fmt.Sprintf("%s source %s: %s", result.Kind, result.Status, result.Detail),
			Summary: summarize(result),
		}, nil
	}
}

// summarize produces the one-line digest shown to the model and in the
// session transcript.
func summarize(result *models.SourceResult) string {
	n := len(result.Records)
	switch result.Status {
	case models.StatusUnavailable:
		return fmt.Sprintf("The %s source is unavailable: %s", result.Kind, result.Detail)
	case models.StatusError:
		return fmt.Sprintf("Fetching %s failed: %s", result.Kind, result.Detail)
	}

	switch result.Kind {
	case models.SourcePatents:
		if n == 0 {
			return "Found no patent publications."
		}
		return fmt.Sprintf("Found %d patent publications.", n)
	case models.SourceJobs:
		if n == 0 {
			return "Found no open job postings."
		}
		dept, count := topDepartment(result.Records)
		if dept == "" {
			return fmt.Sprintf("Found %d job postings.", n)
		}
		return fmt.Sprintf("Found %d job postings. Top department: %s (%d roles).", n, dept, count)
	case models.SourceNews:
		if n == 0 {
			return "Found no recent news articles."
		}
		return fmt.Sprintf("Found %d news articles.", n)
	case models.SourceRepositories:
		if n == 0 {
			return "Found no public repositories."
		}
		return fmt.Sprintf("Found %d public repositories (%d stars total).", n, totalStars(result.Records))
	}
	return fmt.Sprintf("Found %d records.", n)
}

// topDepartment returns the most common department across postings. Ties
// break alphabetically so summaries stay deterministic.
func topDepartment(records []models.Record) (string, int) {
	counts := map[string]int{}
	for _, rec := range records {
		if dept, ok := rec.Metadata["department"].(string); ok && dept != "" {
			counts[dept]++
		}
	}
	if len(counts) == 0 {
		return "", 0
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	best := names[0]
	for _, name := range names[1:] {
		if counts[name] > counts[best] {
			best = name
		}
	}
	return best, counts[best]
}

func totalStars(records []models.Record) int {
	total := 0
	for _, rec := range records {
		switch v := rec.Metadata["stars"].(type) {
		case int:
			total += v
		case int64:
			total += int(v)
		case float64:
			total += int(v)
		}
	}
	return total
}
