package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/example/scibot/pkg/models"
)

// Enroller starts tracking a concept for a learner
type Enroller interface {
	Enroll(ctx context.Context, learnerID uuid.UUID, name, description string) (*models.Concept, bool, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	NameColumn        string // Column with the concept name
	DescriptionColumn string // Column with the description, empty to skip
	SheetName         string // Name of the sheet to import, empty for the first sheet
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		NameColumn:        "A",
		DescriptionColumn: "B",
		StartRow:          2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int      `json:"total_processed"`
	Created        int      `json:"created"`
	Skipped        int      `json:"skipped"` // already tracked by the learner
	Errors         []string `json:"errors"`
}

// ImportConcepts enrolls every concept listed in an Excel or CSV file for a
// learner. Row level problems are collected in the result; only file level
// problems and cancellation abort the import.
func ImportConcepts(ctx context.Context, enroller Enroller, learnerID uuid.UUID, config ImportConfig) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(config.FilePath), ".csv") {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	nameIdx, err := columnIndex(config.NameColumn)
	if err != nil {
		return nil, err
	}
	descIdx := -1
	if config.DescriptionColumn != "" {
		if descIdx, err = columnIndex(config.DescriptionColumn); err != nil {
			return nil, err
		}
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow || blank(row) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.TotalProcessed++
		name := strings.TrimSpace(cell(row, nameIdx))
		if name == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: concept name cannot be empty", rowNum))
			continue
		}

		_, started, err := enroller.Enroll(ctx, learnerID, name, strings.TrimSpace(cell(row, descIdx)))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		if started {
			result.Created++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func columnIndex(column string) (int, error) {
	n, err := excelize.ColumnNameToNumber(column)
	if err != nil {
		return 0, fmt.Errorf("invalid column %q: %w", column, err)
	}
	return n - 1, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
