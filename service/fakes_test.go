package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"lexcase-backend/models"
	"lexcase-backend/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCompleter returns canned completions in order, repeating the last
// one when the queue runs out.
type fakeCompleter struct {
	responses     []string
	err           error
	notConfigured bool
	prompts       []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *fakeCompleter) Configured() bool {
	return !f.notConfigured
}

// fakeStorage keeps file contents in memory, keyed by storage path
type fakeStorage struct {
	mu           sync.Mutex
	files        map[string][]byte
	downloadErrs map[string]error
	deleted      []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		files:        make(map[string][]byte),
		downloadErrs: make(map[string]error),
	}
}

func (f *fakeStorage) Upload(_ context.Context, caseID string, fileID uuid.UUID, filename string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	path := "cases/" + caseID + "/" + fileID.String() + "_" + filename
	f.mu.Lock()
	f.files[path] = content
	f.mu.Unlock()
	return path, nil
}

func (f *fakeStorage) Download(_ context.Context, storagePath string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.downloadErrs[storagePath]; ok {
		return nil, err
	}
	content, ok := f.files[storagePath]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *fakeStorage) Delete(_ context.Context, storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, storagePath)
	f.deleted = append(f.deleted, storagePath)
	return nil
}

// fakeCaseStore is an in-memory CaseStore recording pipeline persistence
type fakeCaseStore struct {
	mu    sync.Mutex
	cases map[string]*models.Case

	startErr        error
	markCompleteErr error

	cleared         []string
	completed       []string
	failedMessages  map[string]string
	evidenceUpdates int
	summaryUpdates  int
	legalUpdates    int
}

func newFakeCaseStore(cases ...*models.Case) *fakeCaseStore {
	store := &fakeCaseStore{
		cases:          make(map[string]*models.Case),
		failedMessages: make(map[string]string),
	}
	for _, c := range cases {
		store.cases[c.CaseID] = c
	}
	return store
}

func (f *fakeCaseStore) GetByID(_ context.Context, caseID string) (*models.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[caseID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeCaseStore) TryStartAnalysis(_ context.Context, caseID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return false, f.startErr
	}
	c, ok := f.cases[caseID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	// mirrors the repository's conditional UPDATE: a case already in
	// processing cannot be claimed
	if c.AnalysisStatus == models.AnalysisProcessing {
		return false, nil
	}
	c.AnalysisStatus = models.AnalysisProcessing
	return true, nil
}

func (f *fakeCaseStore) ClearAnalysis(_ context.Context, caseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, caseID)
	if c, ok := f.cases[caseID]; ok {
		c.EvidenceData = nil
		c.SummaryData = nil
		c.LegalSuggestions = nil
		c.EvidenceConfidence = 0
		c.SummaryConfidence = 0
		c.LegalConfidence = 0
	}
	return nil
}

func (f *fakeCaseStore) UpdateEvidenceResult(_ context.Context, caseID string, result *models.EvidenceResult, confidence float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evidenceUpdates++
	c := f.cases[caseID]
	c.EvidenceData = result
	c.EvidenceConfidence = confidence
	return nil
}

func (f *fakeCaseStore) UpdateSummaryResult(_ context.Context, caseID string, result *models.SummaryResult, confidence float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryUpdates++
	c := f.cases[caseID]
	c.SummaryData = result
	c.SummaryConfidence = confidence
	return nil
}

func (f *fakeCaseStore) UpdateLegalSuggestions(_ context.Context, caseID string, suggestions models.LegalSuggestionList, confidence float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.legalUpdates++
	c := f.cases[caseID]
	c.LegalSuggestions = suggestions
	c.LegalConfidence = confidence
	return nil
}

func (f *fakeCaseStore) MarkAnalysisComplete(_ context.Context, caseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markCompleteErr != nil {
		return f.markCompleteErr
	}
	f.completed = append(f.completed, caseID)
	f.cases[caseID].AnalysisStatus = models.AnalysisCompleted
	return nil
}

func (f *fakeCaseStore) MarkAnalysisFailed(_ context.Context, caseID string, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedMessages[caseID] = errorMessage
	if c, ok := f.cases[caseID]; ok {
		c.AnalysisStatus = models.AnalysisFailed
		c.AnalysisError = &errorMessage
	}
	return nil
}

// fakeRunStore records run lifecycle transitions in order
type fakeRunStore struct {
	mu         sync.Mutex
	runs       map[uuid.UUID]*models.AnalysisRun
	progress   []models.RunState
	completed  bool
	failedWith string
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[uuid.UUID]*models.AnalysisRun)}
}

func (f *fakeRunStore) Create(_ context.Context, run *models.AnalysisRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = uuid.New()
	run.State = models.RunPending
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRunStore) UpdateProgress(_ context.Context, id uuid.UUID, state models.RunState, stages models.StageFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, state)
	if run, ok := f.runs[id]; ok {
		run.State = state
		run.Stages = stages
	}
	return nil
}

func (f *fakeRunStore) Complete(_ context.Context, id uuid.UUID, stages models.StageFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = true
	if run, ok := f.runs[id]; ok {
		run.State = models.RunCompleted
		run.Stages = stages
	}
	return nil
}

func (f *fakeRunStore) Fail(_ context.Context, id uuid.UUID, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedWith = errorMessage
	if run, ok := f.runs[id]; ok {
		run.State = models.RunFailed
		run.ErrorMessage = &errorMessage
	}
	return nil
}

func (f *fakeRunStore) GetLatestByCaseID(_ context.Context, caseID string) (*models.AnalysisRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.AnalysisRun
	for _, run := range f.runs {
		if run.CaseID == caseID {
			latest = run
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	return latest, nil
}

func (f *fakeRunStore) ListByCaseID(_ context.Context, caseID string, _ int) ([]*models.AnalysisRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AnalysisRun
	for _, run := range f.runs {
		if run.CaseID == caseID {
			out = append(out, run)
		}
	}
	return out, nil
}

// fake pipeline stages for orchestrator tests

type fakeExtractor struct {
	result *models.EvidenceResult
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ models.EvidenceFileList) (*models.EvidenceResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeSummarizer struct {
	result *models.SummaryResult
	err    error
	calls  int
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, _ *models.EvidenceResult) (*models.SummaryResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeSuggester struct {
	result models.LegalSuggestionList
	err    error
	calls  int
}

func (f *fakeSuggester) Suggest(_ context.Context, _, _ string, _ *models.SummaryResult) (models.LegalSuggestionList, error) {
	f.calls++
	return f.result, f.err
}
