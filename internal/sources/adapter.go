// Package sources implements the data-fetching adapters behind the agent's
// four intelligence tools. Adapters never leak raw failures to callers:
// every failure mode maps into the SourceResult status enumeration so the
// session can degrade gracefully instead of aborting.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/foresight-intel/foresight/internal/models"
)

// DefaultPatentLimit matches the comprehensive default the analyst prompt
// asks for.
const DefaultPatentLimit = 50

// Params carries the optional per-fetch parameters.
type Params struct {
	// Limit caps the number of records returned. Zero means the
	// source-specific default.
	Limit int
}

// Adapter is the capability boundary consumed by the agent loop. A Fetch
// must always return a SourceResult; adapters express failure through the
// result status, never through a panic or a naked error.
type Adapter interface {
	// Kind identifies the source this adapter serves.
	Kind() models.SourceKind

	// Fetch retrieves records for a company. The returned result's status
	// distinguishes found-nothing (Empty) from could-not-run (Unavailable)
	// from transient failure (Error).
	Fetch(ctx context.Context, company string, params Params) *models.SourceResult
}

// Unavailable builds a SourceResult marking the source as unable to run.
func Unavailable(kind models.SourceKind, reason string) *models.SourceResult {
	return &models.SourceResult{Kind: kind, Status: models.StatusUnavailable, Detail: reason}
}

// Errored builds a SourceResult for a transient fetch failure.
func Errored(kind models.SourceKind, err error) *models.SourceResult {
	return &models.SourceResult{Kind: kind, Status: models.StatusError, Detail: err.Error()}
}

// classifyFailure maps a fetch error into a degraded SourceResult.
// Deadline expiry and cancellation mean the backing store could not be
// reached in time, which callers treat as Unavailable rather than Error.
func classifyFailure(kind models.SourceKind, err error) *models.SourceResult {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable(kind, fmt.Sprintf("fetch timed out: %v", err))
	}
	return Errored(kind, err)
}

// WithTimeout decorates an adapter with a per-call deadline. A timed-out
// call degrades to Unavailable instead of blocking the session.
type WithTimeout struct {
	Inner   Adapter
	Timeout time.Duration
}

func (w *WithTimeout) Kind() models.SourceKind { return w.Inner.Kind() }

func (w *WithTimeout) Fetch(ctx context.Context, company string, params Params) *models.SourceResult {
	if w.Timeout <= 0 {
		return w.Inner.Fetch(ctx, company, params)
	}
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	result := w.Inner.Fetch(ctx, company, params)
	if ctx.Err() != nil && result.Status == models.StatusError {
		// The adapter surfaced the deadline as a generic error.
		return Unavailable(w.Inner.Kind(), fmt.Sprintf("fetch exceeded %s budget", w.Timeout))
	}
	return result
}

// parseRecordDate parses the loosely formatted date strings the collectors
// store ("2026-03-15", "20260315", "3 days ago", RFC3339). Returns the zero
// time when the value cannot be interpreted.
func parseRecordDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	parser := dps.Parser{}
	cfg := &dps.Configuration{PreferredDateSource: dps.CurrentPeriod}
	parsed, err := parser.Parse(cfg, raw)
	if err != nil || parsed.IsZero() {
		return time.Time{}
	}
	return parsed.Time
}

// stringField pulls a string out of a loosely typed document map.
func stringField(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

// intField pulls an integer out of a loosely typed document map. Document
// stores hand back int64 or float64 depending on how the value was written.
func intField(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
