// Package correlate computes deterministic cross-source metrics over
// fetched records. The output feeds the model as ground truth it can cite,
// so everything here is pure: same input, same metrics, no clock reads.
package correlate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/foresight-intel/foresight/internal/models"
)

// MaxSharedKeywords caps how many co-occurring terms are reported.
const MaxSharedKeywords = 10

// Metrics is the summary handed to the model after tool fan-out.
type Metrics struct {
	Company string          `json:"company"`
	AsOf    time.Time       `json:"as_of"`
	Sources []SourceMetrics `json:"sources"`

	// DepartmentShares breaks down job postings by department. Empty when
	// no posting carries a department label.
	DepartmentShares []DepartmentShare `json:"department_shares,omitempty"`

	// SharedKeywords are terms appearing in at least two distinct sources.
	SharedKeywords []SharedKeyword `json:"shared_keywords,omitempty"`

	TotalStars int `json:"total_stars"`
	TotalForks int `json:"total_forks"`
}

// SourceMetrics summarizes one source's contribution.
type SourceMetrics struct {
	Kind        models.SourceKind   `json:"kind"`
	Status      models.SourceStatus `json:"status"`
	RecordCount int                 `json:"record_count"`

	// DaysSinceLatest is nil when no record carries a usable date.
	DaysSinceLatest *int `json:"days_since_latest,omitempty"`
}

// DepartmentShare is one department's slice of the hiring pipeline.
type DepartmentShare struct {
	Department string  `json:"department"`
	Count      int     `json:"count"`
	Percent    float64 `json:"percent"`
}

// SharedKeyword is a term visible in more than one source.
type SharedKeyword struct {
	Term    string              `json:"term"`
	Sources []models.SourceKind `json:"sources"`
	Count   int                 `json:"count"`
}

// Summarize computes metrics over the session's fetched sources. Results
// must arrive in ascending kind order; output source metrics preserve that
// order. asOf anchors recency so repeated runs over the same data agree.
func Summarize(company string, results []models.SourceResult, asOf time.Time) *Metrics {
	m := &Metrics{Company: company, AsOf: asOf}

	termSources := map[string]map[models.SourceKind]int{}

	for _, result := range results {
		sm := SourceMetrics{
			Kind:        result.Kind,
			Status:      result.Status,
			RecordCount: len(result.Records),
		}
		if latest := latestDate(result.Records); !latest.IsZero() && !latest.After(asOf) {
			days := int(asOf.Sub(latest).Hours() / 24)
			sm.DaysSinceLatest = &days
		}
		m.Sources = append(m.Sources, sm)

		for _, rec := range result.Records {
			for _, term := range keywords(rec.Title) {
				if termSources[term] == nil {
					termSources[term] = map[models.SourceKind]int{}
				}
				termSources[term][result.Kind]++
			}
		}

		switch result.Kind {
		case models.SourceJobs:
			m.DepartmentShares = departmentShares(result.Records)
		case models.SourceRepositories:
			for _, rec := range result.Records {
				m.TotalStars += metadataInt(rec.Metadata, "stars")
				m.TotalForks += metadataInt(rec.Metadata, "forks")
			}
		}
	}

	m.SharedKeywords = sharedKeywords(termSources)
	return m
}

// departmentShares computes each department's share of labeled postings.
// Percentages are rounded down so they never sum above 100. Postings
// without a department label are excluded from the denominator; when no
// posting is labeled the breakdown is omitted entirely rather than
// reported as zero percent of nothing.
func departmentShares(records []models.Record) []DepartmentShare {
	counts := map[string]int{}
	labeled := 0
	for _, rec := range records {
		if dept, ok := rec.Metadata["department"].(string); ok && dept != "" {
			counts[dept]++
			labeled++
		}
	}
	if labeled == 0 {
		return nil
	}

	shares := make([]DepartmentShare, 0, len(counts))
	for dept, count := range counts {
		shares = append(shares, DepartmentShare{
			Department: dept,
			Count:      count,
			Percent:    math.Floor(float64(count)/float64(labeled)*1000) / 10,
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Department < shares[j].Department
	})
	return shares
}

func sharedKeywords(termSources map[string]map[models.SourceKind]int) []SharedKeyword {
	var shared []SharedKeyword
	for term, byKind := range termSources {
		if len(byKind) < 2 {
			continue
		}
		kw := SharedKeyword{Term: term}
		for kind, count := range byKind {
			kw.Sources = append(kw.Sources, kind)
			kw.Count += count
		}
		sort.Slice(kw.Sources, func(i, j int) bool { return kw.Sources[i] < kw.Sources[j] })
		shared = append(shared, kw)
	}
	sort.Slice(shared, func(i, j int) bool {
		if shared[i].Count != shared[j].Count {
			return shared[i].Count > shared[j].Count
		}
		return shared[i].Term < shared[j].Term
	})
	if len(shared) > MaxSharedKeywords {
		shared = shared[:MaxSharedKeywords]
	}
	return shared
}

func latestDate(records []models.Record) time.Time {
	var latest time.Time
	for _, rec := range records {
		if rec.Date.After(latest) {
			latest = rec.Date
		}
	}
	return latest
}

func metadataInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// stopwords excluded from keyword extraction. Short function words plus
// terms that appear in nearly every record title of a given source.
var stopwords = map[string]bool{
	"with": true, "from": true, "this": true, "that": true, "into": true,
	"over": true, "their": true, "under": true, "using": true, "based": true,
	"method": true, "system": true, "systems": true, "senior": true,
	"staff": true, "engineer": true, "company": true, "announces": true,
}

// keywords extracts lowercase terms of four or more letters from a title.
func keywords(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	seen := map[string]bool{}
	var terms []string
	for _, f := range fields {
		if len(f) < 4 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// Names lists the metric identifiers a report may cite as evidence.
func (m *Metrics) Names() []string {
	names := []string{"total_stars", "total_forks"}
	for _, sm := range m.Sources {
		names = append(names, fmt.Sprintf("%s.record_count", sm.Kind))
		if sm.DaysSinceLatest != nil {
			names = append(names, fmt.Sprintf("%s.days_since_latest", sm.Kind))
		}
	}
	for _, share := range m.DepartmentShares {
		names = append(names, fmt.Sprintf("jobs.department_share.%s", share.Department))
	}
	for _, kw := range m.SharedKeywords {
		names = append(names, fmt.Sprintf("shared_keyword.%s", kw.Term))
	}
	return names
}

// Render produces the deterministic plain-text digest appended to the
// conversation before the model writes its report.
func (m *Metrics) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Computed metrics for %s (as of %s):\n", m.Company, m.AsOf.Format("2006-01-02"))

	for _, sm := range m.Sources {
		fmt.Fprintf(&b, "- %s: %d records (status: %s", sm.Kind, sm.RecordCount, sm.Status)
		if sm.DaysSinceLatest != nil {
			fmt.Fprintf(&b, ", latest activity %d days ago", *sm.DaysSinceLatest)
		}
		b.WriteString(")\n")
	}

	if len(m.DepartmentShares) == 0 {
		b.WriteString("- hiring breakdown: not applicable (no department data)\n")
	} else {
		b.WriteString("- hiring breakdown:")
		for _, share := range m.DepartmentShares {
			fmt.Fprintf(&b, " %s %.1f%% (%d)", share.Department, share.Percent, share.Count)
		}
		b.WriteString("\n")
	}

	if m.TotalStars > 0 || m.TotalForks > 0 {
		fmt.Fprintf(&b, "- repository traction: %d stars, %d forks\n", m.TotalStars, m.TotalForks)
	}

	if len(m.SharedKeywords) > 0 {
		b.WriteString("- cross-source keywords:")
		for _, kw := range m.SharedKeywords {
			kinds := make([]string, 0, len(kw.Sources))
			for _, k := range kw.Sources {
				kinds = append(kinds, string(k))
			}
			fmt.Fprintf(&b, " %s (%s)", kw.Term, strings.Join(kinds, "+"))
		}
		b.WriteString("\n")
	}

	b.WriteString("Cite these as metric:<name>, e.g. metric:jobs.record_count.")
	return b.String()
}
