package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/pawvault/pawvault/internal/platform/blobstore"
	"github.com/pawvault/pawvault/internal/platform/docai"
)

var (
	ErrNotFound          = errors.New("upload not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidState      = errors.New("operation not allowed in current status")
	ErrAlreadyInProgress = errors.New("an operation is already in progress for this upload")
)

// Mime types accepted at the boundary. Anything else is rejected before
// the bytes reach storage.
var acceptedMimeTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeImage,
	"image/png":       FileTypeImage,
	"image/webp":      FileTypeImage,
	"image/heic":      FileTypeImage,
}

// Limits caps upload sizes per format family.
type Limits struct {
	MaxPDFBytes   int64
	MaxImageBytes int64
}

// ClassifyResult pairs the upload with the classification that annotated it.
// Classification is nil when the task is still running at response time.
type ClassifyResult struct {
	Upload         *DocumentUpload       `json:"upload"`
	Classification *docai.Classification `json:"classification,omitempty"`
}

// ProcessResult pairs the upload with the extracted candidate set.
// Records is nil when the task is still running at response time.
type ProcessResult struct {
	Upload  *DocumentUpload  `json:"upload"`
	Records *docai.RecordSet `json:"records,omitempty"`
}

type taskResult struct {
	classification *docai.Classification
	records        *docai.RecordSet
	err            error
}

type task struct {
	cancel context.CancelFunc
	done   chan taskResult
}

// Service orchestrates the pipeline: validated ingestion into the blob
// store, and single-flight classify/process tasks per upload. Tasks run
// detached from the request context so a client disconnect never strands
// an upload mid-state; deletes cancel them cooperatively.
type Service struct {
	repo       Repository
	blobs      blobstore.Store
	candidates CandidateStore
	classifier docai.Classifier
	extractor  docai.Extractor
	limits     Limits
	taskWait   time.Duration
	logger     zerolog.Logger

	sem *semaphore.Weighted

	mu       sync.Mutex
	inflight map[uuid.UUID]*task
	wg       sync.WaitGroup
}

const maxConcurrentTasks = 8

func NewService(
	repo Repository,
	blobs blobstore.Store,
	candidates CandidateStore,
	classifier docai.Classifier,
	extractor docai.Extractor,
	limits Limits,
	taskWait time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		blobs:      blobs,
		candidates: candidates,
		classifier: classifier,
		extractor:  extractor,
		limits:     limits,
		taskWait:   taskWait,
		logger:     logger,
		sem:        semaphore.NewWeighted(maxConcurrentTasks),
		inflight:   make(map[uuid.UUID]*task),
	}
}

// Upload validates and stores a new document, registering it as pending.
func (s *Service) Upload(ctx context.Context, petID uuid.UUID, uploaderID, filename, mimeType string, content []byte) (*DocumentUpload, error) {
	fileType, ok := acceptedMimeTypes[strings.ToLower(strings.TrimSpace(mimeType))]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrValidation, mimeType)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrValidation)
	}

	limit := s.limits.MaxImageBytes
	if fileType == FileTypePDF {
		limit = s.limits.MaxPDFBytes
	}
	if int64(len(content)) > limit {
		return nil, fmt.Errorf("%w: file exceeds the %d byte limit for %s uploads", ErrValidation, limit, fileType)
	}

	var pageCount *int
	if fileType == FileTypePDF {
		n, err := pdfapi.PageCount(bytes.NewReader(content), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: file is not a readable PDF", ErrValidation)
		}
		pageCount = &n
	}

	u := &DocumentUpload{
		ID:               uuid.New(),
		PetID:            petID,
		UploaderID:       uploaderID,
		OriginalFilename: filename,
		MimeType:         mimeType,
		FileType:         fileType,
		FileSizeBytes:    int64(len(content)),
		PageCount:        pageCount,
		Status:           StatusPending,
	}
	u.StorageKey = fmt.Sprintf("pets/%s/uploads/%s", petID, u.ID)

	if _, err := s.blobs.Put(ctx, u.StorageKey, mimeType, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if delErr := s.blobs.Delete(ctx, u.StorageKey); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", u.StorageKey).Msg("orphan blob cleanup failed")
		}
		return nil, fmt.Errorf("register upload: %w", err)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, petID, id uuid.UUID) (*DocumentUpload, error) {
	return s.getOwned(ctx, petID, id)
}

func (s *Service) List(ctx context.Context, petID uuid.UUID, limit, offset int) ([]*DocumentUpload, int, error) {
	return s.repo.ListByPet(ctx, petID, limit, offset)
}

// OpenFile streams the stored bytes of an upload.
func (s *Service) OpenFile(ctx context.Context, petID, id uuid.UUID) (io.ReadCloser, *DocumentUpload, error) {
	u, err := s.getOwned(ctx, petID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Get(ctx, u.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open stored file: %w", err)
	}
	return rc, u, nil
}

// Classify starts a classification task for the upload and waits for it to
// finish, bounded by the request context. If the request gives up first the
// task keeps running and the client polls the upload for its outcome.
func (s *Service) Classify(ctx context.Context, petID, id uuid.UUID) (*ClassifyResult, error) {
	u, err := s.getOwned(ctx, petID, id)
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	ok, err := s.repo.Transition(ctx, id, []Status{StatusPending, StatusFailed}, StatusClassifying)
	if err != nil {
		s.sem.Release(1)
		return nil, err
	}
	if !ok {
		s.sem.Release(1)
		return nil, s.transitionRejection(ctx, id)
	}

	t := s.startTask(id, func(taskCtx context.Context) taskResult {
		return s.runClassify(taskCtx, u)
	})

	select {
	case res := <-t.done:
		return s.classifyResponse(ctx, id, res)
	case <-ctx.Done():
		fresh, err := s.repo.GetByID(context.Background(), id)
		if err != nil {
			return nil, ctx.Err()
		}
		return &ClassifyResult{Upload: fresh}, nil
	}
}

// Process starts an extraction task. overrideType, when set, takes
// precedence over the detected type so users can correct the classifier.
func (s *Service) Process(ctx context.Context, petID, id uuid.UUID, overrideType *docai.DocumentType) (*ProcessResult, error) {
	u, err := s.getOwned(ctx, petID, id)
	if err != nil {
		return nil, err
	}

	docType := docai.DocTypeOther
	if u.DetectedDocumentType != nil {
		docType = *u.DetectedDocumentType
	}
	if overrideType != nil {
		if !overrideType.Valid() {
			return nil, fmt.Errorf("%w: unknown document type %q", ErrValidation, *overrideType)
		}
		docType = *overrideType
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	ok, err := s.repo.Transition(ctx, id, []Status{StatusPending, StatusClassified, StatusFailed}, StatusProcessing)
	if err != nil {
		s.sem.Release(1)
		return nil, err
	}
	if !ok {
		s.sem.Release(1)
		return nil, s.transitionRejection(ctx, id)
	}

	t := s.startTask(id, func(taskCtx context.Context) taskResult {
		return s.runExtract(taskCtx, u, docType)
	})

	select {
	case res := <-t.done:
		return s.processResponse(ctx, id, res)
	case <-ctx.Done():
		fresh, err := s.repo.GetByID(context.Background(), id)
		if err != nil {
			return nil, ctx.Err()
		}
		return &ProcessResult{Upload: fresh}, nil
	}
}

// Delete removes the upload, its blob, and any unapproved candidates.
// An in-flight task is cancelled; committed audit history is untouched.
func (s *Service) Delete(ctx context.Context, petID, id uuid.UUID) error {
	u, err := s.getOwned(ctx, petID, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if t, ok := s.inflight[id]; ok {
		t.cancel()
	}
	s.mu.Unlock()

	if err := s.candidates.DeleteForUpload(ctx, id); err != nil {
		return fmt.Errorf("delete candidates: %w", err)
	}
	if err := s.blobs.Delete(ctx, u.StorageKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("delete stored file: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

func (s *Service) getOwned(ctx context.Context, petID, id uuid.UUID) (*DocumentUpload, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if u.PetID != petID {
		return nil, ErrNotFound
	}
	return u, nil
}

// transitionRejection translates a failed compare-and-set into the precise
// rejection: busy when another task holds the upload, invalid state
// otherwise.
func (s *Service) transitionRejection(ctx context.Context, id uuid.UUID) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if u.Status.InFlight() {
		return ErrAlreadyInProgress
	}
	return fmt.Errorf("%w: status is %s", ErrInvalidState, u.Status)
}

// startTask launches fn on a detached, timeout-bounded context and tracks
// it for cancel-on-delete. The done channel is buffered so the task never
// blocks on a caller that stopped waiting.
func (s *Service) startTask(id uuid.UUID, fn func(ctx context.Context) taskResult) *task {
	taskCtx, cancel := context.WithTimeout(context.Background(), s.taskWait)
	t := &task{cancel: cancel, done: make(chan taskResult, 1)}

	s.mu.Lock()
	s.inflight[id] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, id)
			s.mu.Unlock()
			cancel()
			s.sem.Release(1)
			s.wg.Done()
		}()
		t.done <- fn(taskCtx)
	}()
	return t
}

// Drain blocks until every in-flight classify/process task has finished,
// bounded by ctx. Shutdown calls this so a task is never killed between
// its writes, which would strand an upload in a transient state.
func (s *Service) Drain(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) runClassify(ctx context.Context, u *DocumentUpload) taskResult {
	content, err := s.readBlob(ctx, u.StorageKey)
	if err != nil {
		s.fail(u.ID, "the stored file could not be read")
		return taskResult{err: err}
	}

	c, err := s.classifier.Classify(ctx, content, u.MimeType)
	if err != nil {
		s.fail(u.ID, userMessage(err, "classification failed; try again"))
		return taskResult{err: err}
	}

	ok, err := s.repo.SaveClassification(context.Background(), u.ID, c)
	if err != nil {
		return taskResult{err: err}
	}
	if !ok {
		// Upload was deleted (or cancelled) while we classified; the
		// result has nowhere to go.
		s.logger.Info().Str("upload_id", u.ID.String()).Msg("discarding classification for missing upload")
		return taskResult{err: context.Canceled}
	}
	return taskResult{classification: c}
}

func (s *Service) runExtract(ctx context.Context, u *DocumentUpload, docType docai.DocumentType) taskResult {
	content, err := s.readBlob(ctx, u.StorageKey)
	if err != nil {
		s.fail(u.ID, "the stored file could not be read")
		return taskResult{err: err}
	}

	set, err := s.extractor.Extract(ctx, content, docType)
	if err != nil {
		s.fail(u.ID, userMessage(err, "extraction failed; try again"))
		return taskResult{err: err}
	}

	// Replace, never append: re-running extraction must not accumulate
	// duplicate candidates.
	if err := s.candidates.ReplaceForUpload(context.Background(), u.ID, u.PetID, set); err != nil {
		s.fail(u.ID, "extracted records could not be saved; try again")
		return taskResult{err: err}
	}

	ok, err := s.repo.MarkCompleted(context.Background(), u.ID)
	if err != nil {
		return taskResult{err: err}
	}
	if !ok {
		if delErr := s.candidates.DeleteForUpload(context.Background(), u.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("upload_id", u.ID.String()).Msg("orphan candidate cleanup failed")
		}
		s.logger.Info().Str("upload_id", u.ID.String()).Msg("discarding extraction for missing upload")
		return taskResult{err: context.Canceled}
	}
	return taskResult{records: set}
}

func (s *Service) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, _, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// fail marks the upload failed on a fresh context so cancellation of the
// task does not prevent the terminal state from being recorded.
func (s *Service) fail(id uuid.UUID, message string) {
	if _, err := s.repo.MarkFailed(context.Background(), id, message); err != nil {
		s.logger.Error().Err(err).Str("upload_id", id.String()).Msg("failed to record failure")
	}
}

func (s *Service) classifyResponse(ctx context.Context, id uuid.UUID, res taskResult) (*ClassifyResult, error) {
	fresh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if res.err != nil {
		return &ClassifyResult{Upload: fresh}, nil
	}
	return &ClassifyResult{Upload: fresh, Classification: res.classification}, nil
}

func (s *Service) processResponse(ctx context.Context, id uuid.UUID, res taskResult) (*ProcessResult, error) {
	fresh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if res.err != nil {
		return &ProcessResult{Upload: fresh}, nil
	}
	return &ProcessResult{Upload: fresh, Records: res.records}, nil
}

// userMessage surfaces a sanitized upstream message when one exists, and
// a fallback otherwise. Raw transport errors never reach the user.
func userMessage(err error, fallback string) string {
	var ue *docai.UpstreamError
	if errors.As(err, &ue) {
		return ue.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "document analysis timed out; try again"
	}
	return fallback
}
