package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresight-intel/foresight/internal/models"
)

var asOf = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func jobsResult(records ...models.Record) models.SourceResult {
	return models.SourceResult{Kind: models.SourceJobs, Status: models.StatusOk, Records: records}
}

func TestSummarizeIsDeterministic(t *testing.T) {
	results := []models.SourceResult{
		jobsResult(
			models.Record{ID: "j1", Title: "Robotics Platform Lead", Metadata: map[string]any{"department": "Engineering"}},
			models.Record{ID: "j2", Title: "Account Executive", Metadata: map[string]any{"department": "Sales"}},
		),
		{Kind: models.SourceNews, Status: models.StatusOk, Records: []models.Record{
			{ID: "n1", Title: "Acme unveils robotics platform", Date: asOf.AddDate(0, 0, -10)},
		}},
	}

	first := Summarize("Acme", results, asOf)
	second := Summarize("Acme", results, asOf)
	assert.Equal(t, first, second)
	assert.Equal(t, first.Render(), second.Render())
}

func TestDepartmentShares(t *testing.T) {
	m := Summarize("Acme", []models.SourceResult{
		jobsResult(
			models.Record{ID: "j1", Metadata: map[string]any{"department": "Engineering"}},
			models.Record{ID: "j2", Metadata: map[string]any{"department": "Engineering"}},
			models.Record{ID: "j3", Metadata: map[string]any{"department": "Sales"}},
		),
	}, asOf)

	require.Len(t, m.DepartmentShares, 2)
	assert.Equal(t, "Engineering", m.DepartmentShares[0].Department)
	assert.Equal(t, 2, m.DepartmentShares[0].Count)
	assert.InDelta(t, 66.6, m.DepartmentShares[0].Percent, 0.01)
	assert.InDelta(t, 33.3, m.DepartmentShares[1].Percent, 0.01)

	// Shares never sum above 100.
	total := 0.0
	for _, s := range m.DepartmentShares {
		total += s.Percent
	}
	assert.LessOrEqual(t, total, 100.0)
}

func TestDepartmentSharesAllOneDepartment(t *testing.T) {
	m := Summarize("Acme", []models.SourceResult{
		jobsResult(
			models.Record{ID: "j1", Metadata: map[string]any{"department": "Engineering"}},
			models.Record{ID: "j2", Metadata: map[string]any{"department": "Engineering"}},
		),
	}, asOf)

	require.Len(t, m.DepartmentShares, 1)
	assert.InDelta(t, 100.0, m.DepartmentShares[0].Percent, 0.01)
}

func TestDepartmentSharesNoLabels(t *testing.T) {
	m := Summarize("Acme", []models.SourceResult{
		jobsResult(models.Record{ID: "j1"}, models.Record{ID: "j2"}),
	}, asOf)

	assert.Empty(t, m.DepartmentShares)
	assert.Contains(t, m.Render(), "not applicable")
}

func TestSharedKeywords(t *testing.T) {
	m := Summarize("Acme", []models.SourceResult{
		{Kind: models.SourcePatents, Status: models.StatusOk, Records: []models.Record{
			{ID: "p1", Title: "Autonomous warehouse navigation"},
		}},
		{Kind: models.SourceNews, Status: models.StatusOk, Records: []models.Record{
			{ID: "n1", Title: "Acme pilots autonomous delivery"},
		}},
	}, asOf)

	require.NotEmpty(t, m.SharedKeywords)
	assert.Equal(t, "autonomous", m.SharedKeywords[0].Term)
	assert.Equal(t, []models.SourceKind{models.SourceNews, models.SourcePatents}, m.SharedKeywords[0].Sources)
	assert.Equal(t, 2, m.SharedKeywords[0].Count)
}

func TestRecency(t *testing.T) {
	m := Summarize("Acme", []models.SourceResult{
		{Kind: models.SourceNews, Status: models.StatusOk, Records: []models.Record{
			{ID: "n1", Date: asOf.AddDate(0, 0, -3)},
			{ID: "n2", Date: asOf.AddDate(0, 0, -40)},
		}},
		{Kind: models.SourcePatents, Status: models.StatusEmpty},
	}, asOf)

	require.Len(t, m.Sources, 2)
	require.NotNil(t, m.Sources[0].DaysSinceLatest)
	assert.Equal(t, 3, *m.Sources[0].DaysSinceLatest)
	assert.Nil(t, m.Sources[1].DaysSinceLatest)
}

func TestRepositoryTotals(t *testing.T) {
	m := Summarize("Acme", []models.SourceResult{
		{Kind: models.SourceRepositories, Status: models.StatusOk, Records: []models.Record{
			{ID: "r1", Metadata: map[string]any{"stars": 100, "forks": 12}},
			{ID: "r2", Metadata: map[string]any{"stars": float64(40), "forks": int64(3)}},
		}},
	}, asOf)

	assert.Equal(t, 140, m.TotalStars)
	assert.Equal(t, 15, m.TotalForks)
}

func TestNames(t *testing.T) {
	m := Summarize("Acme", []models.SourceResult{
		jobsResult(models.Record{ID: "j1", Metadata: map[string]any{"department": "Engineering"}}),
	}, asOf)

	names := m.Names()
	assert.Contains(t, names, "jobs.record_count")
	assert.Contains(t, names, "jobs.department_share.Engineering")
	assert.Contains(t, names, "total_stars")
}
