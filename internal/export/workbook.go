// Package export renders completed floor plans into downloadable artifacts.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/planix/backend/internal/domain"
)

// ContentType is the MIME type of rendered workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetSummary    = "Summary"
	sheetMaterials  = "Materials"
	sheetCompliance = "Compliance"
	sheetPlan       = "Plan"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// FileName returns the download name of a plan's workbook.
func FileName(p *domain.FloorPlan) string {
	base := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(p.Title), "-"), "-")
	if base == "" {
		base = "floor-plan"
	}
	if len(base) > 60 {
		base = base[:60]
	}
	short := p.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s.xlsx", base, short)
}

// RenderWorkbook builds an XLSX workbook with the plan summary, material
// estimate, compliance report and generated text on separate sheets.
func RenderWorkbook(p *domain.FloorPlan) ([]byte, error) {
	if p.Status != domain.PlanCompleted {
		return nil, fmt.Errorf("plan %s is %s, not completed", p.ID, p.Status)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), sheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetMaterials, sheetCompliance, sheetPlan} {
		if _, err := xl.NewSheet(name); err != nil {
			return nil, err
		}
	}

	bold, err := xl.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	w := &sheetWriter{xl: xl, bold: bold}
	w.summary(p)
	w.materials(p.MaterialEstimate)
	w.compliance(p.ComplianceReport)
	w.plan(p.GeneratedText)
	if w.err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", w.err)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter keeps the first error so rendering reads top to bottom.
type sheetWriter struct {
	xl   *excelize.File
	bold int
	err  error
}

func (w *sheetWriter) row(sheet string, r int, values ...interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.xl.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) header(sheet string, values ...interface{}) {
	w.row(sheet, 1, values...)
	if w.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(values), 1)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.xl.SetCellStyle(sheet, "A1", last, w.bold)
}

func (w *sheetWriter) width(sheet, from, to string, width float64) {
	if w.err == nil {
		w.err = w.xl.SetColWidth(sheet, from, to, width)
	}
}

func (w *sheetWriter) summary(p *domain.FloorPlan) {
	s := p.Spec
	w.header(sheetSummary, "Field", "Value")
	rows := [][]interface{}{
		{"Title", p.Title},
		{"Description", s.Description},
		{"Area (sq ft)", s.Area},
		{"Rooms", s.Rooms},
		{"Bathrooms", s.Bathrooms},
		{"Location", s.Location},
		{"Budget (INR)", s.Budget},
		{"Style", s.Style},
		{"Features", strings.Join(s.Features, ", ")},
		{"Created", p.CreatedAt.UTC().Format("2006-01-02 15:04 MST")},
	}
	if p.CompletedAt != nil {
		rows = append(rows, []interface{}{"Completed", p.CompletedAt.UTC().Format("2006-01-02 15:04 MST")})
	}
	for i, r := range rows {
		w.row(sheetSummary, i+2, r...)
	}
	w.width(sheetSummary, "A", "A", 18)
	w.width(sheetSummary, "B", "B", 80)
}

func (w *sheetWriter) materials(est *domain.MaterialEstimate) {
	w.header(sheetMaterials, "Material", "Quantity", "Unit")
	if est == nil {
		return
	}
	rows := []struct {
		name string
		m    domain.Material
	}{
		{"Bricks", est.Bricks},
		{"Cement", est.Cement},
		{"Steel", est.Steel},
		{"Sand", est.Sand},
		{"Aggregate", est.Aggregate},
	}
	for i, r := range rows {
		w.row(sheetMaterials, i+2, r.name, r.m.Quantity, r.m.Unit)
	}
	w.width(sheetMaterials, "A", "C", 16)
}

func (w *sheetWriter) compliance(rep *domain.ComplianceReport) {
	w.header(sheetCompliance, "Check", "Status", "Message")
	if rep == nil {
		return
	}
	names := make([]string, 0, len(rep.Checks))
	for name := range rep.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	r := 2
	for _, name := range names {
		c := rep.Checks[name]
		w.row(sheetCompliance, r, name, string(c.Status), c.Message)
		r++
	}
	r++
	w.row(sheetCompliance, r, "Score", rep.ComplianceScore)
	r++
	w.row(sheetCompliance, r, "Overall compliance", rep.OverallCompliance)
	for _, rec := range rep.Recommendations {
		r++
		w.row(sheetCompliance, r, "Recommendation", rec)
	}
	for _, issue := range rep.CriticalIssues {
		r++
		w.row(sheetCompliance, r, "Critical issue", issue)
	}
	w.width(sheetCompliance, "A", "B", 20)
	w.width(sheetCompliance, "C", "C", 70)
}

func (w *sheetWriter) plan(text string) {
	w.header(sheetPlan, "Generated plan")
	for i, line := range strings.Split(text, "\n") {
		w.row(sheetPlan, i+2, line)
	}
	w.width(sheetPlan, "A", "A", 120)
}
