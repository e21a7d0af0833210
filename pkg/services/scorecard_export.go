package services

import (
	"bytes"
	"fmt"

	"gtm-agent-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary         = "Summary"
	sheetScores          = "Scores"
	sheetGaps            = "Gaps"
	sheetRecommendations = "Recommendations"
)

// ScorecardXLSXContentType is the media type of ExportScorecard output.
const ScorecardXLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportScorecard renders a revealed scorecard as an xlsx workbook.
func ExportScorecard(sc models.Scorecard) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}

	levelName := ""
	if info, err := LevelInfo(sc.Level); err == nil {
		levelName = info.Name
	}
	summary := [][]interface{}{
		{"Field", "Value"},
		{"Level", sc.Level},
		{"Level name", levelName},
		{"Next step", LevelUpCriteria(sc.Level)},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return nil, err
	}

	scores := [][]interface{}{{"Level", "Score"}}
	for _, key := range models.LevelKeys {
		scores = append(scores, []interface{}{key, sc.Scores[key]})
	}
	if err := addSheet(f, sheetScores, scores); err != nil {
		return nil, err
	}
	if err := addSheet(f, sheetGaps, listRows("Gap", sc.Gaps)); err != nil {
		return nil, err
	}
	if err := addSheet(f, sheetRecommendations, listRows("Recommendation", sc.Recommendations)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func addSheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func listRows(header string, items []string) [][]interface{} {
	rows := [][]interface{}{{"#", header}}
	for i, item := range items {
		rows = append(rows, []interface{}{i + 1, item})
	}
	return rows
}
