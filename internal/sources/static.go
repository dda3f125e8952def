package sources

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/foresight-intel/foresight/internal/models"
)

// fixtureFile is the on-disk shape of a static dataset: per-source record
// lists keyed by lowercased company name.
type fixtureFile struct {
	Companies map[string]fixtureCompany `yaml:"companies"`
}

type fixtureCompany struct {
	Patents      []fixtureRecord `yaml:"patents"`
	Jobs         []fixtureRecord `yaml:"jobs"`
	News         []fixtureRecord `yaml:"news"`
	Repositories []fixtureRecord `yaml:"repositories"`
}

type fixtureRecord struct {
	ID       string         `yaml:"id"`
	Date     string         `yaml:"date"`
	Title    string         `yaml:"title"`
	Body     string         `yaml:"body"`
	Metadata map[string]any `yaml:"metadata"`
}

// StaticAdapter serves one source kind out of an in-memory dataset. It backs
// the demo mode and tests, where no cloud credentials exist.
type StaticAdapter struct {
	kind models.SourceKind
	data map[string][]models.Record
}

// NewStaticAdapter builds an adapter over records keyed by lowercased
// company name.
func NewStaticAdapter(kind models.SourceKind, data map[string][]models.Record) *StaticAdapter {
	return &StaticAdapter{kind: kind, data: data}
}

func (s *StaticAdapter) Kind() models.SourceKind { return s.kind }

func (s *StaticAdapter) Fetch(ctx context.Context, company string, params Params) *models.SourceResult {
	if err := ctx.Err(); err != nil {
		return classifyFailure(s.kind, err)
	}
	records := s.data[strings.ToLower(company)]
	if params.Limit > 0 && len(records) > params.Limit {
		records = records[:params.Limit]
	}
	out := make([]models.Record, len(records))
	copy(out, records)
	for i := range out {
		out[i].Company = company
	}
	result := &models.SourceResult{Kind: s.kind, Records: out, Status: models.StatusOk}
	if len(out) == 0 {
		result.Status = models.StatusEmpty
		result.Detail = fmt.Sprintf("no fixture records for %q", company)
	}
	return result
}

// LoadFixtures reads a fixture file and returns one static adapter per
// source kind, in ascending kind order.
func LoadFixtures(path string) ([]*StaticAdapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture file: %w", err)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing fixture file %s: %w", path, err)
	}

	byKind := map[models.SourceKind]map[string][]models.Record{}
	for _, kind := range models.AllSourceKinds() {
		byKind[kind] = map[string][]models.Record{}
	}
	for company, sets := range file.Companies {
		key := strings.ToLower(company)
		byKind[models.SourcePatents][key] = convertFixtures(sets.Patents)
		byKind[models.SourceJobs][key] = convertFixtures(sets.Jobs)
		byKind[models.SourceNews][key] = convertFixtures(sets.News)
		byKind[models.SourceRepositories][key] = convertFixtures(sets.Repositories)
	}

	adapters := make([]*StaticAdapter, 0, len(byKind))
	for _, kind := range models.AllSourceKinds() {
		adapters = append(adapters, NewStaticAdapter(kind, byKind[kind]))
	}
	return adapters, nil
}

func convertFixtures(in []fixtureRecord) []models.Record {
	out := make([]models.Record, 0, len(in))
	for _, fr := range in {
		out = append(out, models.Record{
			ID:       fr.ID,
			Date:     parseRecordDate(fr.Date),
			Title:    fr.Title,
			Body:     fr.Body,
			Metadata: fr.Metadata,
		})
	}
	return out
}
