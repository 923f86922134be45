package uploads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pawvault/pawvault/internal/platform/blobstore"
	"github.com/pawvault/pawvault/internal/platform/docai"
)

// =========== Mock Repository ===========

type mockRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*DocumentUpload
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*DocumentUpload)}
}

func (m *mockRepo) Create(_ context.Context, u *DocumentUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*DocumentUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepo) ListByPet(_ context.Context, petID uuid.UUID, limit, offset int) ([]*DocumentUpload, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*DocumentUpload
	for _, u := range m.store {
		if u.PetID == petID {
			cp := *u
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}

func (m *mockRepo) Transition(_ context.Context, id uuid.UUID, from []Status, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if u.Status == f {
			u.Status = to
			u.ErrorMessage = nil
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) SaveClassification(_ context.Context, id uuid.UUID, c *docai.Classification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || u.Status != StatusClassifying {
		return false, nil
	}
	u.Status = StatusClassified
	u.DetectedDocumentType = &c.DocumentType
	conf := c.Confidence
	u.ClassifyConfidence = &conf
	if c.Explanation != "" {
		expl := c.Explanation
		u.ClassifyExplanation = &expl
	}
	u.SummaryMedications = c.Summary.MedicationsCount
	u.SummaryConditions = c.Summary.ConditionsCount
	u.SummaryVaccinations = c.Summary.VaccinationsCount
	u.SummaryAllergies = c.Summary.AllergiesCount
	u.ErrorMessage = nil
	return true, nil
}

func (m *mockRepo) MarkFailed(_ context.Context, id uuid.UUID, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || !u.Status.InFlight() {
		return false, nil
	}
	u.Status = StatusFailed
	u.ErrorMessage = &message
	return true, nil
}

func (m *mockRepo) MarkCompleted(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || u.Status != StatusProcessing {
		return false, nil
	}
	u.Status = StatusCompleted
	u.ErrorMessage = nil
	return true, nil
}

// =========== Mock Candidate Store ===========

type mockCandidates struct {
	mu       sync.Mutex
	byUpload map[uuid.UUID][]docai.CandidateRecord
}

func newMockCandidates() *mockCandidates {
	return &mockCandidates{byUpload: make(map[uuid.UUID][]docai.CandidateRecord)}
}

func (m *mockCandidates) ReplaceForUpload(_ context.Context, uploadID, _ uuid.UUID, set *docai.RecordSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUpload[uploadID] = set.Records
	return nil
}

func (m *mockCandidates) DeleteForUpload(_ context.Context, uploadID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUpload, uploadID)
	return nil
}

func (m *mockCandidates) count(uploadID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUpload[uploadID])
}

// =========== Mock Analysis ===========

// gateClassifier blocks inside Classify until released, so tests can hold
// an upload in the classifying state deterministically.
type gateClassifier struct {
	started chan struct{}
	release chan struct{}
	result  *docai.Classification
}

func newGateClassifier(result *docai.Classification) *gateClassifier {
	return &gateClassifier{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  result,
	}
}

func (g *gateClassifier) Classify(ctx context.Context, _ []byte, _ string) (*docai.Classification, error) {
	close(g.started)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.result, nil
}

type failingClassifier struct{ err error }

func (f failingClassifier) Classify(context.Context, []byte, string) (*docai.Classification, error) {
	return nil, f.err
}

// =========== Helpers ===========

func testLimits() Limits {
	return Limits{MaxPDFBytes: 1 << 20, MaxImageBytes: 1 << 19}
}

func newTestService(classifier docai.Classifier) (*Service, *mockRepo, *blobstore.MemoryStore, *mockCandidates) {
	repo := newMockRepo()
	blobs := blobstore.NewMemoryStore()
	cands := newMockCandidates()
	svc := NewService(repo, blobs, cands, classifier, docai.NewStub(), testLimits(), 5*time.Second, zerolog.Nop())
	return svc, repo, blobs, cands
}

func uploadImage(t *testing.T, svc *Service, petID uuid.UUID) *DocumentUpload {
	t.Helper()
	content := []byte(strings.Repeat("jpegdata", 64))
	u, err := svc.Upload(context.Background(), petID, "user-1", "card.jpg", "image/jpeg", content)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return u
}

// =========== Tests ===========

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusClassifying},
		{StatusPending, StatusProcessing},
		{StatusClassifying, StatusClassified},
		{StatusClassifying, StatusFailed},
		{StatusClassified, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusFailed, StatusClassifying},
		{StatusFailed, StatusProcessing},
	}
	for _, c := range allowed {
		if !c.from.CanTransitionTo(c.to) {
			t.Errorf("%s -> %s should be allowed", c.from, c.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusCompleted, StatusProcessing},
		{StatusCompleted, StatusClassifying},
		{StatusPending, StatusCompleted},
		{StatusClassified, StatusClassifying},
		{StatusClassifying, StatusProcessing},
	}
	for _, c := range denied {
		if c.from.CanTransitionTo(c.to) {
			t.Errorf("%s -> %s should be denied", c.from, c.to)
		}
	}
}

func TestUploadValidation(t *testing.T) {
	svc, _, blobs, _ := newTestService(docai.NewStub())
	ctx := context.Background()
	petID := uuid.New()

	cases := []struct {
		name     string
		mimeType string
		content  []byte
	}{
		{"unsupported type", "text/html", []byte("<html>")},
		{"empty file", "image/jpeg", nil},
		{"image too large", "image/jpeg", make([]byte, testLimits().MaxImageBytes+1)},
		{"unreadable pdf", "application/pdf", []byte("not a pdf at all")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, petID, "user-1", "f", c.mimeType, c.content)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}

	if blobs.Len() != 0 {
		t.Errorf("rejected uploads left %d blobs behind", blobs.Len())
	}
}

func TestUploadStoresBlobAndRegistersPending(t *testing.T) {
	svc, repo, blobs, _ := newTestService(docai.NewStub())
	petID := uuid.New()

	u := uploadImage(t, svc, petID)
	if u.Status != StatusPending {
		t.Errorf("status = %s, want pending", u.Status)
	}
	if u.FileType != FileTypeImage {
		t.Errorf("file type = %s, want image", u.FileType)
	}
	if blobs.Len() != 1 {
		t.Errorf("blobs = %d, want 1", blobs.Len())
	}
	if _, err := repo.GetByID(context.Background(), u.ID); err != nil {
		t.Errorf("upload not registered: %v", err)
	}
}

func TestClassifySuccess(t *testing.T) {
	svc, _, _, _ := newTestService(docai.NewStub())
	petID := uuid.New()
	u := uploadImage(t, svc, petID)

	res, err := svc.Classify(context.Background(), petID, u.ID)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Classification == nil {
		t.Fatal("no classification returned")
	}
	if res.Classification.DocumentType != docai.DocTypeVaccinationRecord {
		t.Errorf("document type = %s", res.Classification.DocumentType)
	}
	if res.Upload.Status != StatusClassified {
		t.Errorf("status = %s, want classified", res.Upload.Status)
	}
	if res.Upload.DetectedDocumentType == nil || *res.Upload.DetectedDocumentType != docai.DocTypeVaccinationRecord {
		t.Error("detected type not recorded on upload")
	}
	if res.Upload.ErrorMessage != nil {
		t.Errorf("error message set on success: %q", *res.Upload.ErrorMessage)
	}
}

func TestClassifyFailureSetsFailedWithMessage(t *testing.T) {
	upstream := &docai.UpstreamError{Op: "classify", Message: "document analysis timed out; try again"}
	svc, repo, _, _ := newTestService(failingClassifier{err: upstream})
	petID := uuid.New()
	u := uploadImage(t, svc, petID)

	res, err := svc.Classify(context.Background(), petID, u.ID)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Upload.Status != StatusFailed {
		t.Errorf("status = %s, want failed", res.Upload.Status)
	}
	if res.Upload.ErrorMessage == nil || *res.Upload.ErrorMessage != upstream.Message {
		t.Errorf("error message = %v, want %q", res.Upload.ErrorMessage, upstream.Message)
	}

	// failed <=> errorMessage invariant, and retry is allowed.
	stored, _ := repo.GetByID(context.Background(), u.ID)
	if (stored.Status == StatusFailed) != (stored.ErrorMessage != nil) {
		t.Error("failed/errorMessage invariant violated")
	}
}

func TestClassifyRejectsWrongState(t *testing.T) {
	svc, repo, _, _ := newTestService(docai.NewStub())
	petID := uuid.New()
	u := uploadImage(t, svc, petID)

	if _, err := svc.Classify(context.Background(), petID, u.ID); err != nil {
		t.Fatal(err)
	}

	// Now classified: another classify is an invalid-state error.
	_, err := svc.Classify(context.Background(), petID, u.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}

	stored, _ := repo.GetByID(context.Background(), u.ID)
	if stored.Status != StatusClassified {
		t.Errorf("rejected call changed status to %s", stored.Status)
	}
}

func TestConcurrentClassifyExactlyOneWins(t *testing.T) {
	gate := newGateClassifier(&docai.Classification{
		DocumentType: docai.DocTypeVaccinationRecord,
		Confidence:   92,
		Band:         docai.BandHigh,
	})
	svc, _, _, _ := newTestService(gate)
	petID := uuid.New()
	u := uploadImage(t, svc, petID)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Classify(context.Background(), petID, u.ID)
		firstDone <- err
	}()

	// Wait until the first task owns the upload, then race a second call.
	<-gate.started
	_, err := svc.Classify(context.Background(), petID, u.ID)
	if !errors.Is(err, ErrAlreadyInProgress) {
		t.Errorf("second classify err = %v, want ErrAlreadyInProgress", err)
	}

	close(gate.release)
	if err := <-firstDone; err != nil {
		t.Errorf("first classify err = %v", err)
	}
}

func TestProcessReplacesCandidates(t *testing.T) {
	svc, _, _, cands := newTestService(docai.NewStub())
	petID := uuid.New()
	u := uploadImage(t, svc, petID)
	ctx := context.Background()

	if _, err := svc.Classify(ctx, petID, u.ID); err != nil {
		t.Fatal(err)
	}
	// Leftovers from an earlier extraction run must be replaced, not
	// appended to.
	cands.mu.Lock()
	cands.byUpload[u.ID] = make([]docai.CandidateRecord, 3)
	cands.mu.Unlock()

	res, err := svc.Process(ctx, petID, u.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Upload.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", res.Upload.Status)
	}
	if res.Records == nil || len(res.Records.Records) != 1 {
		t.Fatalf("records = %+v, want 1 vaccination candidate", res.Records)
	}
	if got := cands.count(u.ID); got != 1 {
		t.Errorf("candidates = %d, want 1 (replaced, not appended)", got)
	}
}

func TestProcessWithOverrideType(t *testing.T) {
	svc, _, _, _ := newTestService(docai.NewStub())
	petID := uuid.New()
	u := uploadImage(t, svc, petID)

	override := docai.DocTypePrescription
	res, err := svc.Process(context.Background(), petID, u.ID, &override)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records.Records) != 1 || res.Records.Records[0].Kind != docai.KindMedication {
		t.Errorf("override extraction = %+v, want one medication", res.Records)
	}
}

func TestDeleteRemovesBlobAndCandidates(t *testing.T) {
	svc, repo, blobs, cands := newTestService(docai.NewStub())
	petID := uuid.New()
	u := uploadImage(t, svc, petID)
	ctx := context.Background()

	if _, err := svc.Process(ctx, petID, u.ID, nil); err != nil {
		t.Fatal(err)
	}
	if cands.count(u.ID) == 0 {
		t.Fatal("expected candidates before delete")
	}

	if err := svc.Delete(ctx, petID, u.ID); err != nil {
		t.Fatal(err)
	}
	if blobs.Len() != 0 {
		t.Errorf("blobs = %d after delete, want 0", blobs.Len())
	}
	if cands.count(u.ID) != 0 {
		t.Error("candidates survived delete")
	}
	if _, err := repo.GetByID(ctx, u.ID); err == nil {
		t.Error("upload row survived delete")
	}
}

func TestDeleteDuringClassifyLeavesNoOrphans(t *testing.T) {
	gate := newGateClassifier(&docai.Classification{
		DocumentType: docai.DocTypeVaccinationRecord,
		Confidence:   92,
		Band:         docai.BandHigh,
	})
	svc, repo, blobs, cands := newTestService(gate)
	petID := uuid.New()
	u := uploadImage(t, svc, petID)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		_, _ = svc.Classify(ctx, petID, u.ID)
		close(done)
	}()
	<-gate.started

	if err := svc.Delete(ctx, petID, u.ID); err != nil {
		t.Fatal(err)
	}
	close(gate.release)
	<-done

	if blobs.Len() != 0 {
		t.Errorf("blobs = %d, want 0", blobs.Len())
	}
	if cands.count(u.ID) != 0 {
		t.Error("candidates survived delete")
	}
	if _, err := repo.GetByID(ctx, u.ID); err == nil {
		t.Error("upload row survived delete")
	}
}

func TestRetryClearsErrorMessage(t *testing.T) {
	upstream := &docai.UpstreamError{Op: "classify", Message: "classification failed; try again"}
	svc, repo, _, _ := newTestService(failingClassifier{err: upstream})
	petID := uuid.New()
	u := uploadImage(t, svc, petID)
	ctx := context.Background()

	if _, err := svc.Classify(ctx, petID, u.ID); err != nil {
		t.Fatal(err)
	}
	stored, _ := repo.GetByID(ctx, u.ID)
	if stored.Status != StatusFailed || stored.ErrorMessage == nil {
		t.Fatalf("after failure: status=%s errorMessage=%v", stored.Status, stored.ErrorMessage)
	}

	// Retry, holding the upload in classifying so the in-between state is
	// observable the way a polling client would see it.
	gate := newGateClassifier(&docai.Classification{
		DocumentType: docai.DocTypeVaccinationRecord,
		Confidence:   92,
		Band:         docai.BandHigh,
	})
	svc.classifier = gate

	retryDone := make(chan error, 1)
	go func() {
		_, err := svc.Classify(ctx, petID, u.ID)
		retryDone <- err
	}()
	<-gate.started

	mid, _ := repo.GetByID(ctx, u.ID)
	if mid.Status != StatusClassifying {
		t.Errorf("mid-retry status = %s, want classifying", mid.Status)
	}
	if mid.ErrorMessage != nil {
		t.Errorf("retrying upload kept error message %q", *mid.ErrorMessage)
	}

	close(gate.release)
	if err := <-retryDone; err != nil {
		t.Fatal(err)
	}
	final, _ := repo.GetByID(ctx, u.ID)
	if final.Status != StatusClassified || final.ErrorMessage != nil {
		t.Errorf("after retry: status=%s errorMessage=%v", final.Status, final.ErrorMessage)
	}
}

func TestDrainWaitsForInflightTasks(t *testing.T) {
	gate := newGateClassifier(&docai.Classification{
		DocumentType: docai.DocTypeVaccinationRecord,
		Confidence:   92,
		Band:         docai.BandHigh,
	})
	svc, repo, _, _ := newTestService(gate)
	petID := uuid.New()
	u := uploadImage(t, svc, petID)

	go func() {
		_, _ = svc.Classify(context.Background(), petID, u.ID)
	}()
	<-gate.started

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Drain(shortCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("drain with task in flight: err = %v, want deadline exceeded", err)
	}

	close(gate.release)
	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Second)
	defer drainCancel()
	if err := svc.Drain(drainCtx); err != nil {
		t.Fatalf("drain after release: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), u.ID)
	if stored.Status != StatusClassified {
		t.Errorf("status after drain = %s, want classified", stored.Status)
	}
}

func TestGetRejectsWrongPet(t *testing.T) {
	svc, _, _, _ := newTestService(docai.NewStub())
	u := uploadImage(t, svc, uuid.New())

	if _, err := svc.Get(context.Background(), uuid.New(), u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
