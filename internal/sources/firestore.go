package sources

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/foresight-intel/foresight/internal/models"
)

// Collection names written by the upstream collectors.
const (
	CollectionJobs  = "jobs"
	CollectionNews  = "news"
	CollectionRepos = "github"
)

// DocumentAdapter serves one source kind out of a Firestore collection.
// Documents are keyed by collector-assigned IDs and carry a "company" field
// the adapter filters on.
type DocumentAdapter struct {
	client     *firestore.Client
	collection string
	kind       models.SourceKind
	mapDoc     func(id string, doc map[string]any) models.Record
	logger     *slog.Logger
}

// NewJobsAdapter reads job postings from the jobs collection.
func NewJobsAdapter(client *firestore.Client, logger *slog.Logger) *DocumentAdapter {
	return &DocumentAdapter{
		client:     client,
		collection: CollectionJobs,
		kind:       models.SourceJobs,
		mapDoc:     mapJobDoc,
		logger:     logger.With("adapter", "jobs"),
	}
}

// NewNewsAdapter reads press coverage from the news collection.
func NewNewsAdapter(client *firestore.Client, logger *slog.Logger) *DocumentAdapter {
	return &DocumentAdapter{
		client:     client,
		collection: CollectionNews,
		kind:       models.SourceNews,
		mapDoc:     mapNewsDoc,
		logger:     logger.With("adapter", "news"),
	}
}

// NewReposAdapter reads public repository activity from the github collection.
func NewReposAdapter(client *firestore.Client, logger *slog.Logger) *DocumentAdapter {
	return &DocumentAdapter{
		client:     client,
		collection: CollectionRepos,
		kind:       models.SourceRepositories,
		mapDoc:     mapRepoDoc,
		logger:     logger.With("adapter", "repos"),
	}
}

func (a *DocumentAdapter) Kind() models.SourceKind { return a.kind }

func (a *DocumentAdapter) Fetch(ctx context.Context, company string, params Params) *models.SourceResult {
	if a.client == nil {
		return Unavailable(a.kind, "document store not configured")
	}

	query := a.client.Collection(a.collection).Where("company", "==", company)
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	var records []models.Record
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			a.logger.Warn("document fetch failed",
				"collection", a.collection, "company", company, "error", err)
			return classifyFailure(a.kind, fmt.Errorf("querying %s: %w", a.collection, err))
		}
		rec := a.mapDoc(doc.Ref.ID, doc.Data())
		rec.Company = company
		records = append(records, rec)
	}

	result := &models.SourceResult{Kind: a.kind, Records: records, Status: models.StatusOk}
	if len(records) == 0 {
		result.Status = models.StatusEmpty
		result.Detail = fmt.Sprintf("no %s documents for %q", a.collection, company)
	}
	a.logger.Debug("fetched documents",
		"collection", a.collection, "company", company, "count", len(records))
	return result
}

func mapJobDoc(id string, doc map[string]any) models.Record {
	return models.Record{
		ID:    id,
		Date:  parseRecordDate(stringField(doc, "posted_date")),
		Title: stringField(doc, "title"),
		Body:  stringField(doc, "description"),
		Metadata: map[string]any{
			"department": stringField(doc, "department"),
			"location":   stringField(doc, "location"),
			"seniority":  stringField(doc, "seniority"),
		},
	}
}

func mapNewsDoc(id string, doc map[string]any) models.Record {
	return models.Record{
		ID:    id,
		Date:  parseRecordDate(stringField(doc, "published_date")),
		Title: stringField(doc, "headline"),
		Body:  stringField(doc, "snippet"),
		Metadata: map[string]any{
			"source_name": stringField(doc, "source"),
			"url":         stringField(doc, "url"),
		},
	}
}

func mapRepoDoc(id string, doc map[string]any) models.Record {
	return models.Record{
		ID:    id,
		Date:  parseRecordDate(stringField(doc, "pushed_at")),
		Title: stringField(doc, "name"),
		Body:  stringField(doc, "description"),
		Metadata: map[string]any{
			"language": stringField(doc, "language"),
			"stars":    intField(doc, "stars"),
			"forks":    intField(doc, "forks"),
			"topics":   doc["topics"],
		},
	}
}
