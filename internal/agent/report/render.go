package report

import (
	"fmt"
	"strings"

	"github.com/foresight-intel/foresight/internal/models"
)

var sectionTitles = map[models.SourceKind]string{
	models.SourcePatents:      "Patent Activity",
	models.SourceJobs:         "Hiring Signals",
	models.SourceNews:         "Press Coverage",
	models.SourceRepositories: "Open Source Activity",
}

// RenderMarkdown formats a report as markdown for terminal and API output.
func RenderMarkdown(r *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Competitive Outlook: %s\n\n", r.Company)
	fmt.Fprintf(&b, "%s\n", strings.TrimSpace(r.Summary))

	for _, section := range r.Sections {
		title := sectionTitles[section.Kind]
		if title == "" {
			title = string(section.Kind)
		}
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		if section.Status != models.StatusOk {
			fmt.Fprintf(&b, "_Source status: %s._\n\n", section.Status)
		}
		if strings.TrimSpace(section.Analysis) != "" {
			fmt.Fprintf(&b, "%s\n", strings.TrimSpace(section.Analysis))
		}
	}

	if len(r.Predictions) > 0 {
		b.WriteString("\n## Predictions\n")
		for _, pred := range r.Predictions {
			fmt.Fprintf(&b, "\n- **%s** (%s", pred.Statement, pred.Confidence)
			if pred.Horizon != "" {
				fmt.Fprintf(&b, ", %s", pred.Horizon)
			}
			b.WriteString(")")
			if len(pred.Evidence) > 0 {
				fmt.Fprintf(&b, "\n  - evidence: %s", strings.Join(pred.Evidence, ", "))
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}
