package excel

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/scibot/pkg/models"
)

// Sheet names of the retention report
const (
	KnowledgeSheet    = "Knowledge"
	RetentionLogSheet = "RetentionLog"
)

var (
	knowledgeHeader = []interface{}{"Concept", "Retention", "Last reviewed", "Next review"}
	logHeader       = []interface{}{
		"Timestamp", "Concept", "Quality", "Lambda before", "Lambda after",
		"Retention before", "Retention after", "Interval (days)",
	}
)

// WriteReport writes a workbook with the learner's current knowledge and
// review history to w.
func WriteReport(w io.Writer, knowledge []models.KnowledgeItem, logs []models.ReviewLogEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", KnowledgeSheet)
	if _, err := f.NewSheet(RetentionLogSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	names := make(map[int64]string, len(knowledge))
	if err := f.SetSheetRow(KnowledgeSheet, "A1", &knowledgeHeader); err != nil {
		return err
	}
	for i, item := range knowledge {
		names[item.ConceptID] = item.ConceptName
		lastReviewed := ""
		if item.LastReviewed != nil {
			lastReviewed = formatTime(*item.LastReviewed)
		}
		row := []interface{}{item.ConceptName, item.Retention, lastReviewed, formatTime(item.NextReview)}
		if err := setRow(f, KnowledgeSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(RetentionLogSheet, "A1", &logHeader); err != nil {
		return err
	}
	for i, entry := range logs {
		concept, ok := names[entry.ConceptID]
		if !ok {
			concept = strconv.FormatInt(entry.ConceptID, 10)
		}
		row := []interface{}{
			formatTime(entry.Timestamp), concept, entry.Quality,
			entry.OldLambda, entry.NewLambda,
			entry.RetentionBefore, entry.RetentionAfter, entry.IntervalDays,
		}
		if err := setRow(f, RetentionLogSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(KnowledgeSheet, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(RetentionLogSheet, "A", "B", 24); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, row []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &row)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
