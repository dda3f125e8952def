package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/foresight-intel/foresight/internal/models"
)

// patentQuery pulls recent publications for an assignee out of the public
// patents dataset. Assignee matching is a case-insensitive substring match
// because assignee_harmonized carries legal-entity suffixes the caller does
// not know about.
const patentQuery = `
SELECT
  publication_number,
  (SELECT text FROM UNNEST(title_localized) LIMIT 1) AS title,
  (SELECT text FROM UNNEST(abstract_localized) LIMIT 1) AS abstract,
  publication_date,
  (SELECT STRING_AGG(code) FROM UNNEST(cpc)) AS cpc_codes
FROM ` + "`patents-public-data.patents.publications`" + `
WHERE EXISTS (
  SELECT 1 FROM UNNEST(assignee_harmonized) AS a
  WHERE LOWER(a.name) LIKE CONCAT('%', LOWER(@company), '%')
)
ORDER BY publication_date DESC
LIMIT @row_limit`

type patentRow struct {
	PublicationNumber string              `bigquery:"publication_number"`
	Title             bigquery.NullString `bigquery:"title"`
	Abstract          bigquery.NullString `bigquery:"abstract"`
	PublicationDate   bigquery.NullInt64  `bigquery:"publication_date"`
	CPCCodes          bigquery.NullString `bigquery:"cpc_codes"`
}

// PatentAdapter serves the patents source from the public BigQuery dataset.
type PatentAdapter struct {
	client       *bigquery.Client
	logger       *slog.Logger
	defaultLimit int
}

// NewPatentAdapter wraps a BigQuery client. defaultLimit caps rows when a
// call does not ask for a specific limit; zero falls back to
// DefaultPatentLimit.
func NewPatentAdapter(client *bigquery.Client, defaultLimit int, logger *slog.Logger) *PatentAdapter {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPatentLimit
	}
	return &PatentAdapter{client: client, logger: logger.With("adapter", "patents"), defaultLimit: defaultLimit}
}

func (a *PatentAdapter) Kind() models.SourceKind { return models.SourcePatents }

func (a *PatentAdapter) Fetch(ctx context.Context, company string, params Params) *models.SourceResult {
	if a.client == nil {
		return Unavailable(models.SourcePatents, "warehouse client not configured")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = a.defaultLimit
	}

	q := a.client.Query(patentQuery)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "company", Value: company},
		{Name: "row_limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		a.logger.Warn("patent query failed", "company", company, "error", err)
		return classifyFailure(models.SourcePatents, fmt.Errorf("running patent query: %w", err))
	}

	var records []models.Record
	for {
		var row patentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			a.logger.Warn("patent row scan failed", "company", company, "error", err)
			return classifyFailure(models.SourcePatents, fmt.Errorf("reading patent rows: %w", err))
		}
		records = append(records, models.Record{
			ID:      row.PublicationNumber,
			Company: company,
			Date:    patentDate(row.PublicationDate),
			Title:   row.Title.StringVal,
			Body:    row.Abstract.StringVal,
			Metadata: map[string]any{
				"cpc_codes": row.CPCCodes.StringVal,
			},
		})
	}

	result := &models.SourceResult{Kind: models.SourcePatents, Records: records, Status: models.StatusOk}
	if len(records) == 0 {
		result.Status = models.StatusEmpty
		result.Detail = fmt.Sprintf("no publications matched assignee %q", company)
	}
	a.logger.Debug("fetched patents", "company", company, "count", len(records))
	return result
}

// patentDate decodes the dataset's YYYYMMDD integer encoding.
func patentDate(v bigquery.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	n := v.Int64
	year := int(n / 10000)
	month := time.Month(n / 100 % 100)
	day := int(n % 100)
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
