package submission

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

const (
	answersSheet = "Answers"
	summarySheet = "Summary"
)

var answerHeader = []any{"#", "Question", "Kind", "Value", "References", "Status"}

// BuildWorkbook lays out one row per answer plus a summary sheet with
// per-kind answered and N/A counts.
func BuildWorkbook(sub domain.Submission) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(answersSheet)
	if err != nil {
		return nil, fmt.Errorf("create answers sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.SetSheetRow(answersSheet, "A1", &answerHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(answersSheet, "A1", "F1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	type tally struct{ answered, na int }
	byKind := make(map[domain.AnswerKind]*tally)
	kinds := make([]domain.AnswerKind, 0)

	for i, a := range sub.Answers {
		status := "answered"
		if a.Value.IsNA() {
			status = domain.NotAvailable
		}
		row := []any{i + 1, a.QuestionText, string(a.Kind), a.Value.String(), formatReferences(a.References), status}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(answersSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write answer row %d: %w", i+1, err)
		}

		t, ok := byKind[a.Kind]
		if !ok {
			t = &tally{}
			byKind[a.Kind] = t
			kinds = append(kinds, a.Kind)
		}
		if a.Value.IsNA() {
			t.na++
		} else {
			t.answered++
		}
	}

	_ = f.SetColWidth(answersSheet, "B", "B", 70)
	_ = f.SetColWidth(answersSheet, "D", "E", 40)
	if err := f.SetPanes(answersSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	summary := [][]any{
		{"Team", sub.TeamEmail},
		{"Submission", sub.SubmissionName},
		{"Questions", len(sub.Answers)},
		{},
		{"Kind", "Answered", "N/A"},
	}
	for _, k := range kinds {
		summary = append(summary, []any{string(k), byKind[k].answered, byKind[k].na})
	}
	for i := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &summary[i]); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf, nil
}

func formatReferences(refs []domain.Reference) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, fmt.Sprintf("%s p.%d", r.PDFSha1, r.PageIndex))
	}
	return strings.Join(parts, "; ")
}
