package excel

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/scibot/pkg/models"
)

type fakeEnroller struct {
	tracked map[string]string
	fail    string
}

func newFakeEnroller(existing ...string) *fakeEnroller {
	e := &fakeEnroller{tracked: map[string]string{}}
	for _, name := range existing {
		e.tracked[name] = ""
	}
	return e
}

func (e *fakeEnroller) Enroll(_ context.Context, _ uuid.UUID, name, description string) (*models.Concept, bool, error) {
	if name == e.fail {
		return nil, false, errors.New("database is locked")
	}
	if _, ok := e.tracked[name]; ok {
		return &models.Concept{Name: name}, false, nil
	}
	e.tracked[name] = description
	return &models.Concept{Name: name, Description: description}, true, nil
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "concepts.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportConceptsFromExcel(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Concept", "Description"},
		{"entropy", "measure of disorder"},
		{"osmosis", ""},
		{"", "orphan description"},
		{"photosynthesis", "light to sugar"},
		{"broken", ""},
	})
	enroller := newFakeEnroller("photosynthesis")
	enroller.fail = "broken"

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := ImportConcepts(context.Background(), enroller, uuid.New(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalProcessed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Row 4")
	assert.Contains(t, result.Errors[1], "Row 6")
	assert.Equal(t, "measure of disorder", enroller.tracked["entropy"])
}

func TestImportConceptsFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concepts.csv")
	content := "name,description\nentropy,measure of disorder\n\n\"osmosis\",\"water, through a membrane\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	enroller := newFakeEnroller()
	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := ImportConcepts(context.Background(), enroller, uuid.New(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalProcessed)
	assert.Equal(t, 2, result.Created)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "water, through a membrane", enroller.tracked["osmosis"])
}

func TestImportConceptsErrors(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "missing.xlsx")
	_, err := ImportConcepts(context.Background(), newFakeEnroller(), uuid.New(), cfg)
	assert.Error(t, err)

	cfg.FilePath = writeWorkbook(t, [][]interface{}{{"a"}, {"b"}})
	cfg.NameColumn = "1"
	_, err = ImportConcepts(context.Background(), newFakeEnroller(), uuid.New(), cfg)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg.NameColumn = "A"
	_, err = ImportConcepts(ctx, newFakeEnroller(), uuid.New(), cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteReport(t *testing.T) {
	learnerID := uuid.New()
	reviewed := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	knowledge := []models.KnowledgeItem{
		{
			ReviewSubject: models.ReviewSubject{
				LearnerID: learnerID, ConceptID: 1, Retention: 0.75,
				LastReviewed: &reviewed, NextReview: reviewed.AddDate(0, 0, 2),
			},
			ConceptName: "entropy",
		},
		{
			ReviewSubject: models.NewReviewSubject(learnerID, 2, reviewed),
			ConceptName:   "osmosis",
		},
	}
	logs := []models.ReviewLogEntry{{
		ID: 1, LearnerID: learnerID, ConceptID: 1, Quality: 1,
		OldLambda: 0.5, NewLambda: 0.45, RetentionBefore: 0.5, RetentionAfter: 0.75,
		IntervalDays: 2, Timestamp: reviewed,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, knowledge, logs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{KnowledgeSheet, RetentionLogSheet}, f.GetSheetList())

	rows, err := f.GetRows(KnowledgeSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"entropy", "0.75", "2025-06-15T10:00:00Z", "2025-06-17T10:00:00Z"}, rows[1])
	assert.Equal(t, "", rows[2][2])

	rows, err = f.GetRows(RetentionLogSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2025-06-15T10:00:00Z", "entropy", "1", "0.5", "0.45", "0.5", "0.75", "2"}, rows[1])
}
