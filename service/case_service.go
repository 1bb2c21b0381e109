package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"lexcase-backend/models"
	"lexcase-backend/repository"
	"lexcase-backend/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// maxUploadBytes caps a single evidence upload
const maxUploadBytes = 100 << 20

const (
	defaultHearingStart = "09:00"
	defaultHearingEnd   = "10:00"
)

// CaseService handles case lifecycle, evidence uploads, and the case
// calendar.
type CaseService struct {
	caseRepo     *repository.CaseRepository
	scheduleRepo *repository.ScheduleRepository
	store        storage.Storage
	logger       *slog.Logger
}

// CaseServiceOption is a functional option for CaseService
type CaseServiceOption func(*CaseService)

// CaseWithCaseRepository sets the case repository
func CaseWithCaseRepository(repo *repository.CaseRepository) CaseServiceOption {
	return func(s *CaseService) {
		s.caseRepo = repo
	}
}

// CaseWithScheduleRepository sets the schedule repository
func CaseWithScheduleRepository(repo *repository.ScheduleRepository) CaseServiceOption {
	return func(s *CaseService) {
		s.scheduleRepo = repo
	}
}

// CaseWithStorage sets the evidence file storage backend
func CaseWithStorage(store storage.Storage) CaseServiceOption {
	return func(s *CaseService) {
		s.store = store
	}
}

// CaseWithLogger sets the logger
func CaseWithLogger(logger *slog.Logger) CaseServiceOption {
	return func(s *CaseService) {
		s.logger = logger
	}
}

// NewCaseService creates a new case service
func NewCaseService(opts ...CaseServiceOption) *CaseService {
	s := &CaseService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateCaseRequest represents a request to create a case
type CreateCaseRequest struct {
	CaseID      string
	Title       string
	Category    string
	Priority    string
	Status      string
	NextHearing *string
}

// CreateCase creates a new case. When a hearing date is supplied, a
// calendar entry is created alongside it.
func (s *CaseService) CreateCase(ctx context.Context, req CreateCaseRequest) (*models.Case, error) {
	caseID := strings.TrimSpace(req.CaseID)
	if caseID == "" {
		caseID = generateCaseID()
	}

	c := &models.Case{
		CaseID:      caseID,
		Title:       req.Title,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      req.Status,
		NextHearing: req.NextHearing,
	}
	if c.Status == "" {
		c.Status = "open"
	}

	if err := s.caseRepo.Create(ctx, c); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCaseAlreadyExists
		}
		return nil, err
	}

	s.ensureHearingSchedule(ctx, c)
	return c, nil
}

// GetCase retrieves a case by id
func (s *CaseService) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListCasesRequest represents a request to list cases
type ListCasesRequest struct {
	Status *string
	Limit  int
	Offset int
}

// ListCases lists cases with optional status filtering
func (s *CaseService) ListCases(ctx context.Context, req ListCasesRequest) ([]*models.Case, error) {
	return s.caseRepo.List(ctx, req.Status, req.Limit, req.Offset)
}

// UpdateCaseRequest carries the updatable metadata fields. Nil fields are
// left unchanged.
type UpdateCaseRequest struct {
	Title       *string
	Category    *string
	Priority    *string
	Status      *string
	NextHearing *string
}

// UpdateCase updates case metadata. A new hearing date gains a calendar
// entry; clearing the date keeps existing entries for history.
func (s *CaseService) UpdateCase(ctx context.Context, caseID string, req UpdateCaseRequest) (*models.Case, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Category != nil {
		c.Category = *req.Category
	}
	if req.Priority != nil {
		c.Priority = *req.Priority
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	if req.NextHearing != nil {
		if *req.NextHearing == "" {
			c.NextHearing = nil
		} else {
			c.NextHearing = req.NextHearing
		}
	}

	if err := s.caseRepo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.ensureHearingSchedule(ctx, c)
	return c, nil
}

// DeleteCase removes a case together with its stored evidence files and
// calendar entries.
func (s *CaseService) DeleteCase(ctx context.Context, caseID string) error {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return err
	}

	for _, f := range c.EvidenceFiles {
		if err := s.store.Delete(ctx, f.StoragePath); err != nil {
			s.logger.Warn("failed to delete stored evidence file",
				"case_id", caseID,
				"path", f.StoragePath,
				"error", err,
			)
		}
	}

	if err := s.scheduleRepo.DeleteByCaseID(ctx, caseID); err != nil {
		return err
	}
	return s.caseRepo.Delete(ctx, caseID)
}

// UploadEvidenceRequest represents an evidence file upload
type UploadEvidenceRequest struct {
	CaseID   string
	Filename string
	Category models.MediaCategory
	Data     io.Reader
}

// UploadEvidence validates, stores, and registers an evidence file on a
// case. The file is hashed during upload so later integrity checks can
// detect tampering.
func (s *CaseService) UploadEvidence(ctx context.Context, req UploadEvidenceRequest) (*models.EvidenceFile, error) {
	c, err := s.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}

	category := req.Category
	if category == "" {
		category = models.CategoryForFilename(req.Filename)
	}
	if category == models.MediaUnknown || !models.AllowedExtension(req.Filename, category) {
		return nil, fmt.Errorf("%w: %s not allowed for category %s", ErrUnsupportedFile, req.Filename, category)
	}

	fileID := uuid.New()
	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(io.LimitReader(req.Data, maxUploadBytes+1), hasher)}

	storagePath, err := s.store.Upload(ctx, req.CaseID, fileID, req.Filename, counter)
	if err != nil {
		return nil, err
	}
	if counter.n > maxUploadBytes {
		if delErr := s.store.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to remove oversized upload", "path", storagePath, "error", delErr)
		}
		return nil, ErrFileTooLarge
	}

	file := models.EvidenceFile{
		ID:          fileID,
		Name:        req.Filename,
		Category:    category,
		StoragePath: storagePath,
		Size:        counter.n,
		ContentType: storage.ContentTypeFor(req.Filename),
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		UploadedAt:  time.Now().UTC(),
	}

	files := append(c.EvidenceFiles, file)
	if err := s.caseRepo.UpdateEvidenceFiles(ctx, req.CaseID, files); err != nil {
		if delErr := s.store.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to roll back upload", "path", storagePath, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("evidence file uploaded",
		"case_id", req.CaseID,
		"file", req.Filename,
		"category", string(category),
		"size", file.Size,
	)
	return &file, nil
}

// DeleteEvidence removes one evidence file from a case and from storage
func (s *CaseService) DeleteEvidence(ctx context.Context, caseID string, fileID uuid.UUID) error {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return err
	}

	remaining := make(models.EvidenceFileList, 0, len(c.EvidenceFiles))
	var target *models.EvidenceFile
	for i := range c.EvidenceFiles {
		if c.EvidenceFiles[i].ID == fileID {
			target = &c.EvidenceFiles[i]
			continue
		}
		remaining = append(remaining, c.EvidenceFiles[i])
	}
	if target == nil {
		return storage.ErrNotFound
	}

	if err := s.caseRepo.UpdateEvidenceFiles(ctx, caseID, remaining); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, target.StoragePath); err != nil {
		s.logger.Warn("failed to delete stored evidence file",
			"case_id", caseID,
			"path", target.StoragePath,
			"error", err,
		)
	}
	return nil
}

// DownloadEvidence streams a stored evidence file
func (s *CaseService) DownloadEvidence(ctx context.Context, caseID string, fileID uuid.UUID) (*models.EvidenceFile, io.ReadCloser, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}

	for i := range c.EvidenceFiles {
		if c.EvidenceFiles[i].ID == fileID {
			reader, err := s.store.Download(ctx, c.EvidenceFiles[i].StoragePath)
			if err != nil {
				return nil, nil, err
			}
			return &c.EvidenceFiles[i], reader, nil
		}
	}
	return nil, nil, storage.ErrNotFound
}

// CreateScheduleRequest represents a manual calendar entry
type CreateScheduleRequest struct {
	CaseID      string
	Date        string
	StartTime   string
	EndTime     string
	EventType   string
	Description string
}

// CreateSchedule adds a calendar entry for a case
func (s *CaseService) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if _, err := s.GetCase(ctx, req.CaseID); err != nil {
		return nil, err
	}

	entry := &models.Schedule{
		CaseID:      req.CaseID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		EventType:   req.EventType,
		Description: req.Description,
	}
	if entry.EventType == "" {
		entry.EventType = "meeting"
	}

	if err := s.scheduleRepo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListSchedules returns the calendar entries for a case
func (s *CaseService) ListSchedules(ctx context.Context, caseID string) ([]*models.Schedule, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.scheduleRepo.ListByCaseID(ctx, caseID)
}

// ListSchedulesByRange returns calendar entries across cases for a date
// range.
func (s *CaseService) ListSchedulesByRange(ctx context.Context, from, to string) ([]*models.Schedule, error) {
	return s.scheduleRepo.ListByDateRange(ctx, from, to)
}

// DeleteSchedule removes a calendar entry
func (s *CaseService) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	return s.scheduleRepo.Delete(ctx, id)
}

// ensureHearingSchedule creates a hearing calendar entry for the case's
// next hearing date if one does not exist yet. Failures are logged, not
// propagated: calendar upkeep never fails case writes.
func (s *CaseService) ensureHearingSchedule(ctx context.Context, c *models.Case) {
	if c.NextHearing == nil || *c.NextHearing == "" {
		return
	}

	exists, err := s.scheduleRepo.ExistsForCaseDate(ctx, c.CaseID, *c.NextHearing, "hearing")
	if err != nil {
		s.logger.Warn("hearing schedule lookup failed", "case_id", c.CaseID, "error", err)
		return
	}
	if exists {
		return
	}

	title := c.Title
	if title == "" {
		title = "Untitled Case"
	}
	entry := &models.Schedule{
		CaseID:      c.CaseID,
		Date:        *c.NextHearing,
		StartTime:   defaultHearingStart,
		EndTime:     defaultHearingEnd,
		EventType:   "hearing",
		Description: fmt.Sprintf("Hearing for case %s: %s", c.CaseID, title),
	}
	if err := s.scheduleRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to create hearing schedule", "case_id", c.CaseID, "error", err)
	}
}

func generateCaseID() string {
	return "CASE-" + strings.ToUpper(uuid.New().String()[:8])
}

// isUniqueViolation reports a Postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
