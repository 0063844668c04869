package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"claimease/internal/domain"
)

// Input is everything the workbook and summary are built from.
type Input struct {
	Result   *domain.FinalResult
	Fields   []domain.FieldAssignment
	Entities domain.EntityGroups
}

const (
	sheetSummary  = "Summary"
	sheetFields   = "Fields"
	sheetMissing  = "Missing Fields"
	sheetEntities = "Entities"
)

// Workbook builds the XLSX report and returns its bytes.
func Workbook(in Input) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetFields, sheetMissing, sheetEntities} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	r := in.Result
	summary := [][]any{
		{"Patient", r.Subject},
		{"Job ID", r.JobID},
		{"Template", r.TemplateID},
		{"Render Mode", string(r.RenderMode)},
		{"Filled Fields", r.FilledCount},
		{"Total Fields", r.TotalCount},
		{"Missing Fields", len(r.MissingFields)},
		{"OCR Confidence", round(r.Score.OCRConfidence)},
		{"Entity Confidence", round(r.Score.EntityConfidence)},
		{"Completeness", round(r.Score.Completeness)},
		{"Overall Score", round(r.Score.Overall)},
		{"Filled Form", r.FilledFormPath},
		{"Completed At", r.CompletedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return nil, err
	}
	_ = f.SetColStyle(sheetSummary, "A", bold)
	_ = f.SetColWidth(sheetSummary, "A", "A", 20)
	_ = f.SetColWidth(sheetSummary, "B", "B", 60)

	fields := [][]any{{"Field Name", "Status", "Value", "Reason", "Entity", "Strategy", "Confidence", "Required"}}
	for _, a := range in.Fields {
		row := []any{a.FieldName, string(a.Status), a.Value, string(a.Reason), "", "", "", formatBool(a.Required)}
		if p := a.Provenance; p != nil {
			row[4], row[5], row[6] = string(p.EntityKey), string(p.Strategy), round(p.Confidence)
		}
		fields = append(fields, row)
	}
	if err := writeTable(f, sheetFields, fields, bold); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheetFields, "A", "A", 32)
	_ = f.SetColWidth(sheetFields, "C", "C", 36)
	_ = f.SetColWidth(sheetFields, "D", "F", 20)

	missing := [][]any{{"Field Name", "Reason", "Required", "Detail"}}
	for _, m := range r.MissingFields {
		missing = append(missing, []any{m.FieldName, string(m.Reason), formatBool(m.Required), m.Detail})
	}
	if err := writeTable(f, sheetMissing, missing, bold); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheetMissing, "A", "A", 32)
	_ = f.SetColWidth(sheetMissing, "B", "B", 22)
	_ = f.SetColWidth(sheetMissing, "D", "D", 48)

	entities := [][]any{{"Group", "Key", "Text", "Normalized", "Confidence", "Source"}}
	in.Entities.Each(func(g domain.EntityGroup, e domain.Entity) {
		entities = append(entities, []any{string(g), string(e.Key), e.Text, e.Normalized, round(e.Confidence), e.Source})
	})
	if err := writeTable(f, sheetEntities, entities, bold); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheetEntities, "B", "B", 16)
	_ = f.SetColWidth(sheetEntities, "C", "D", 32)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// writeTable writes rows with a bold, frozen header row.
func writeTable(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
	_ = f.SetCellStyle(sheet, "A1", last, headerStyle)
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// EntityCounts counts entities per group. Every group is present.
func EntityCounts(groups domain.EntityGroups) map[string]int {
	counts := map[string]int{
		string(domain.GroupPatient):     len(groups.Patient),
		string(domain.GroupInsurance):   len(groups.Insurance),
		string(domain.GroupMedications): len(groups.Medications),
		string(domain.GroupProviders):   len(groups.Providers),
		string(domain.GroupDiagnoses):   len(groups.Diagnoses),
		string(domain.GroupDates):       len(groups.Dates),
	}
	return counts
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
