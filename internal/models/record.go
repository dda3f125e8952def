// Package models defines the shared data types exchanged between the
// source adapters, the agent loop, and the report synthesizer.
package models

import "time"

// SourceKind identifies one of the four intelligence sources.
type SourceKind string

const (
	SourcePatents      SourceKind = "patents"
	SourceJobs         SourceKind = "jobs"
	SourceNews         SourceKind = "news"
	SourceRepositories SourceKind = "repositories"
)

// AllSourceKinds lists every source kind in ascending order.
// The ordering is load-bearing: tool results are appended to the
// conversation in this order so sessions are reproducible.
func AllSourceKinds() []SourceKind {
	return []SourceKind{SourceJobs, SourceNews, SourcePatents, SourceRepositories}
}

// Record is a single structured datum from one intelligence source:
// a patent filing, a job posting, a news article, or a repository snapshot.
// Records are copied into the conversation context after a fetch and never
// mutated afterward.
type Record struct {
	// ID uniquely identifies the record within its source
	// (patent number, job ID, article ID, repo full name).
	ID string `json:"id"`

	// Company is the normalized company name the record belongs to.
	Company string `json:"company"`

	// Date is the record's own timestamp (publication date, posting date,
	// last push). Zero when the source did not provide one.
	Date time.Time `json:"date,omitempty"`

	// Title is the record's short display text (patent title, job title,
	// headline, repo name).
	Title string `json:"title"`

	// Body is the record's free-text content (abstract, job description,
	// article text, README excerpt).
	Body string `json:"body,omitempty"`

	// Metadata holds source-specific fields: department/location for jobs,
	// assignee/url for patents, source for news, stars/forks/language for
	// repositories.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SourceStatus is the closed outcome enumeration for one adapter fetch.
// Empty and Unavailable are deliberately distinct: Empty means the query ran
// and found nothing, Unavailable means the adapter itself could not run.
type SourceStatus string

const (
	StatusOk          SourceStatus = "ok"
	StatusEmpty       SourceStatus = "empty"
	StatusUnavailable SourceStatus = "unavailable"
	StatusError       SourceStatus = "error"
)

// SourceResult is the outcome of one adapter fetch.
type SourceResult struct {
	// Kind is the source that produced this result.
	Kind SourceKind `json:"kind"`

	// Records is the ordered sequence of fetched records. Empty unless
	// Status is StatusOk.
	Records []Record `json:"records,omitempty"`

	// Status distinguishes "found nothing" from "could not run".
	Status SourceStatus `json:"status"`

	// Detail carries the failure reason for Unavailable/Error results and
	// the human-readable summary for Ok/Empty ones.
	Detail string `json:"detail,omitempty"`
}

// Usable reports whether the result carries records worth analyzing.
func (r *SourceResult) Usable() bool {
	return r != nil && r.Status == StatusOk && len(r.Records) > 0
}
