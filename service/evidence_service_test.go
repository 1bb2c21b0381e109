package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"lexcase-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTextFile(t *testing.T, store *fakeStorage, caseID, name, content string) models.EvidenceFile {
	t.Helper()
	id := uuid.New()
	path, err := store.Upload(context.Background(), caseID, id, name, strings.NewReader(content))
	require.NoError(t, err)
	return models.EvidenceFile{
		ID:          id,
		Name:        name,
		Category:    models.MediaDocument,
		StoragePath: path,
		Size:        int64(len(content)),
		ContentType: "text/plain",
	}
}

func TestExtractMinesEntitiesWithModel(t *testing.T) {
	store := newFakeStorage()
	statement := "Ravi Sharma paid Rs 50,000 to Acme Traders on 2024-01-10. The goods were never delivered."
	file := seedTextFile(t, store, "CASE-1", "statement.txt", statement)

	completer := &fakeCompleter{responses: []string{
		`{
			"persons": ["Ravi Sharma", "Ravi Sharma"],
			"organizations": ["Acme Traders"],
			"money_amounts": ["Rs 50,000"],
			"dates": ["2024-01-10"],
			"locations": ["Pune"],
			"legal_references": ["ICA Section 73"],
			"witness_statements": ["Neighbour saw the payment"],
			"timeline_events": [{"date": "2024-01-10", "description": "Payment made"}],
			"facts": ["Payment of Rs 50,000 was made", "Goods were never delivered"]
		}`,
		`{"present_info": ["payment proof"], "missing_info": ["delivery terms"], "readiness_score": 80}`,
	}}
	svc := NewEvidenceService(
		EvidenceWithStorage(store),
		EvidenceWithCompleter(completer),
		EvidenceWithLogger(quietLogger()),
	)

	result, err := svc.Extract(context.Background(), "CASE-1", models.EvidenceFileList{file})

	require.NoError(t, err)
	assert.Equal(t, "[statement.txt]\n"+statement, result.CombinedText)
	// organizations fold into persons, duplicates dropped, sorted
	assert.Equal(t, []string{"Acme Traders", "Ravi Sharma"}, result.KeyEntities.Persons)
	assert.Equal(t, []string{"2024-01-10"}, result.KeyEntities.Dates)
	assert.Equal(t, []string{"Rs 50,000"}, result.KeyEntities.MoneyAmounts)
	assert.Equal(t, []string{"Pune"}, result.KeyEntities.Locations)
	assert.Equal(t, []string{"ICA Section 73"}, result.LegalReferences)
	require.Len(t, result.Timeline, 1)
	assert.Equal(t, "Payment made", result.Timeline[0].Description)
	assert.Len(t, result.Facts, 2)

	// all five entity buckets populated
	assert.InDelta(t, 1.0, result.DataQuality.CompletenessScore, 1e-9)
	assert.Equal(t, 8, result.DataQuality.EntitiesExtracted)

	assert.True(t, result.IntegrityCheck.AllFilesValid)
	assert.Equal(t, 1, result.IntegrityCheck.TotalFiles)

	assert.InDelta(t, 0.8, result.CompletenessAssessment.CaseReadiness, 1e-9)
	assert.Equal(t, []string{"delivery terms"}, result.CompletenessAssessment.MissingInformation)
}

func TestExtractWithoutModelUsesSentenceFacts(t *testing.T) {
	store := newFakeStorage()
	file := seedTextFile(t, store, "CASE-1", "notes.txt",
		"The tenant refused to vacate after notice expired. The landlord filed a police complaint in March.")

	svc := NewEvidenceService(
		EvidenceWithStorage(store),
		EvidenceWithLogger(quietLogger()),
	)

	result, err := svc.Extract(context.Background(), "CASE-1", models.EvidenceFileList{file})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"The tenant refused to vacate after notice expired",
		"The landlord filed a police complaint in March",
	}, result.Facts)
	assert.Contains(t, result.Limitations, "entity extraction ran without AI assistance")
	// no structured entities on the degraded path
	assert.InDelta(t, 0.0, result.DataQuality.CompletenessScore, 1e-9)
}

func TestExtractSkipsFailedFiles(t *testing.T) {
	store := newFakeStorage()
	good := seedTextFile(t, store, "CASE-1", "good.txt", "A readable statement about the disputed property boundary.")
	missing := models.EvidenceFile{
		ID:          uuid.New(),
		Name:        "gone.txt",
		Category:    models.MediaDocument,
		StoragePath: "cases/CASE-1/gone.txt",
	}

	svc := NewEvidenceService(
		EvidenceWithStorage(store),
		EvidenceWithLogger(quietLogger()),
	)

	result, err := svc.Extract(context.Background(), "CASE-1", models.EvidenceFileList{good, missing})

	require.NoError(t, err)
	assert.Contains(t, result.CombinedText, "disputed property boundary")
	assert.NotContains(t, result.CombinedText, "gone.txt")

	require.Len(t, result.SourceFiles, 2)
	assert.False(t, result.SourceFiles[0].Skipped)
	assert.True(t, result.SourceFiles[1].Skipped)
	assert.Contains(t, result.SourceFiles[1].Note, "download failed")

	assert.False(t, result.IntegrityCheck.AllFilesValid)
	require.Len(t, result.Limitations, 2)
	assert.Contains(t, result.Limitations[0], "gone.txt")
}

func TestExtractBinaryDocumentIsReported(t *testing.T) {
	store := newFakeStorage()
	id := uuid.New()
	path, err := store.Upload(context.Background(), "CASE-1", id, "scan.docx", bytes.NewReader([]byte{0xff, 0xfe, 0x00, 0x01}))
	require.NoError(t, err)

	svc := NewEvidenceService(
		EvidenceWithStorage(store),
		EvidenceWithLogger(quietLogger()),
	)

	result, err := svc.Extract(context.Background(), "CASE-1", models.EvidenceFileList{{
		ID: id, Name: "scan.docx", Category: models.MediaDocument, StoragePath: path,
	}})

	require.NoError(t, err)
	require.Len(t, result.SourceFiles, 1)
	assert.True(t, result.SourceFiles[0].Skipped)
	assert.Contains(t, result.SourceFiles[0].Note, "binary document format not supported")
}

func TestExtractMediaWithoutTranscriber(t *testing.T) {
	store := newFakeStorage()
	id := uuid.New()
	path, err := store.Upload(context.Background(), "CASE-1", id, "photo.jpg", bytes.NewReader([]byte{0x01}))
	require.NoError(t, err)

	svc := NewEvidenceService(
		EvidenceWithStorage(store),
		EvidenceWithLogger(quietLogger()),
	)

	result, err := svc.Extract(context.Background(), "CASE-1", models.EvidenceFileList{{
		ID: id, Name: "photo.jpg", Category: models.MediaImage, StoragePath: path,
	}})

	require.NoError(t, err)
	require.Len(t, result.SourceFiles, 1)
	assert.True(t, result.SourceFiles[0].Skipped)
	assert.Contains(t, result.SourceFiles[0].Note, "image description unavailable")
}

func TestExtractNoFilesStillProducesResult(t *testing.T) {
	svc := NewEvidenceService(
		EvidenceWithStorage(newFakeStorage()),
		EvidenceWithLogger(quietLogger()),
	)

	result, err := svc.Extract(context.Background(), "CASE-1", nil)

	require.NoError(t, err)
	assert.Equal(t, "", result.CombinedText)
	assert.Empty(t, result.Facts)
	assert.Equal(t, 0, result.IntegrityCheck.TotalFiles)
	assert.InDelta(t, 0.0, result.CompletenessAssessment.CaseReadiness, 1e-9)
	assert.Contains(t, result.CompletenessAssessment.MissingInformation, "no readable evidence was provided")
}

func TestExtractModelFailureFallsBack(t *testing.T) {
	store := newFakeStorage()
	file := seedTextFile(t, store, "CASE-1", "notes.txt",
		"The contractor abandoned the site after receiving the advance payment.")

	completer := &fakeCompleter{err: errors.New("upstream timeout")}
	svc := NewEvidenceService(
		EvidenceWithStorage(store),
		EvidenceWithCompleter(completer),
		EvidenceWithLogger(quietLogger()),
	)

	result, err := svc.Extract(context.Background(), "CASE-1", models.EvidenceFileList{file})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Facts)
	assert.Contains(t, result.Limitations, "entity extraction ran without AI assistance")
}

func TestDedupeSorted(t *testing.T) {
	out := dedupeSorted([]string{" b ", "a", "b", "", "a"})
	assert.Equal(t, []string{"a", "b"}, out)
}
