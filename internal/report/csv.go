// Package report renders the human-facing outputs of a run: the
// missing-fields CSV, the XLSX workbook and the markdown summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"claimease/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// missingColumns defines the missing-fields CSV header row.
var missingColumns = []string{
	"Field Name",
	"Reason",
	"Required",
	"Detail",
}

// Writer wraps csv.Writer for exporting missing fields as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(missingColumns)
}

// WriteMissingFields writes one row per missing field.
func (w *Writer) WriteMissingFields(fields []domain.MissingField) error {
	for _, f := range fields {
		if err := w.csv.Write([]string{f.FieldName, string(f.Reason), formatBool(f.Required), f.Detail}); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// WriteMissingFieldsCSV writes a complete BOM-prefixed missing-fields CSV.
func WriteMissingFieldsCSV(out io.Writer, fields []domain.MissingField) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteMissingFields(fields); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a patient name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized download name.
// Format: {sanitized_subject}_{YYYY-MM-DD}.{ext}
func BuildFilename(subject, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(subject), now.Format("2006-01-02"), ext)
}
