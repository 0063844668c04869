package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Summary renders the run summary as markdown.
func Summary(in Input) string {
	r := in.Result
	var b strings.Builder

	fmt.Fprintf(&b, "# Prior Authorization Summary: %s\n\n", r.Subject)
	fmt.Fprintf(&b, "- **Job:** `%s`\n", r.JobID)
	fmt.Fprintf(&b, "- **Template:** %s (%s)\n", orDash(r.TemplateID), r.RenderMode)
	fmt.Fprintf(&b, "- **Filled form:** `%s`\n", r.FilledFormPath)
	fmt.Fprintf(&b, "- **Fields filled:** %d of %d\n", r.FilledCount, r.TotalCount)
	fmt.Fprintf(&b, "- **Overall score:** %.2f\n", r.Score.Overall)
	fmt.Fprintf(&b, "- **Completed:** %s\n\n", r.CompletedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Quality\n\n")
	b.WriteString("| Component | Score |\n|---|---|\n")
	fmt.Fprintf(&b, "| OCR confidence | %.2f |\n", r.Score.OCRConfidence)
	fmt.Fprintf(&b, "| Entity confidence | %.2f |\n", r.Score.EntityConfidence)
	fmt.Fprintf(&b, "| Completeness | %.2f |\n\n", r.Score.Completeness)

	fmt.Fprintf(&b, "Referral: %d pages, %d scanned, %d blank after OCR.\n\n",
		r.Referral.ScannedPages+r.Referral.TextPages, r.Referral.ScannedPages, len(r.OCR.BlankPages))

	b.WriteString("## Extracted entities\n\n")
	b.WriteString("| Group | Count |\n|---|---|\n")
	for _, g := range sortedKeys(r.EntityCounts) {
		fmt.Fprintf(&b, "| %s | %d |\n", g, r.EntityCounts[g])
	}
	b.WriteString("\n")

	b.WriteString("## Missing fields\n\n")
	if len(r.MissingFields) == 0 {
		b.WriteString("All fields were filled.\n")
	} else {
		b.WriteString("| Field | Reason | Required |\n|---|---|---|\n")
		for _, m := range r.MissingFields {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(m.FieldName), m.Reason, formatBool(m.Required))
		}
	}

	if len(r.Timings) > 0 {
		b.WriteString("\n## Stage timings\n\n")
		b.WriteString("| Stage | Duration (ms) | Attempts |\n|---|---|---|\n")
		for _, t := range r.Timings {
			fmt.Fprintf(&b, "| %s | %d | %d |\n", t.Stage, t.DurationMS, t.Attempts)
		}
	}
	return b.String()
}

// HTML converts a markdown document to HTML.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
