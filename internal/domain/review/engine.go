package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pawvault/pawvault/internal/domain/audit"
	"github.com/pawvault/pawvault/internal/domain/records"
	"github.com/pawvault/pawvault/internal/platform/db"
	"github.com/pawvault/pawvault/internal/platform/docai"
)

var (
	ErrNotFound   = errors.New("no candidates found for upload")
	ErrValidation = errors.New("validation failed")
)

// Engine converts approved candidates into committed records. An approval
// batch commits transactionally: every record and its audit entry land
// together or not at all. A per-pet lock keeps two simultaneous batches
// for the same pet from racing past each other's duplicate checks.
type Engine struct {
	candidates CandidateRepository
	store      *records.Service
	audit      *audit.Service
	tx         db.Transactor
	logger     zerolog.Logger

	mu       sync.Mutex
	petLocks map[uuid.UUID]*sync.Mutex
}

func NewEngine(candidates CandidateRepository, store *records.Service, auditSvc *audit.Service, tx db.Transactor, logger zerolog.Logger) *Engine {
	return &Engine{
		candidates: candidates,
		store:      store,
		audit:      auditSvc,
		tx:         tx,
		logger:     logger,
		petLocks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (e *Engine) petLock(petID uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.petLocks[petID]
	if !ok {
		l = &sync.Mutex{}
		e.petLocks[petID] = l
	}
	return l
}

// Approve applies a batch of per-candidate decisions. Approved candidates
// that collide with existing records come back as conflicts and stay
// persisted for a follow-up decision; everything else commits in one
// transaction. Rejected candidates are discarded.
func (e *Engine) Approve(ctx context.Context, petID, uploadID uuid.UUID, decisions []RecordDecision, userID string) (*ApprovalResult, error) {
	if len(decisions) == 0 {
		return nil, fmt.Errorf("%w: at least one decision is required", ErrValidation)
	}

	lock := e.petLock(petID)
	lock.Lock()
	defer lock.Unlock()

	cands, err := e.candidates.ListByUpload(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	byID := make(map[uuid.UUID]*CandidateRecord, len(cands))
	for _, c := range cands {
		if c.PetID == petID {
			byID[c.ID] = c
		}
	}
	if len(byID) == 0 {
		return nil, ErrNotFound
	}

	existing, err := e.loadExisting(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("load existing records: %w", err)
	}

	var (
		result       ApprovalResult
		commits      []commitOp
		discardedIDs []uuid.UUID
	)
	seen := make(map[uuid.UUID]bool)

	for _, d := range decisions {
		if !d.Decision.Valid() {
			return nil, fmt.Errorf("%w: unknown decision %q", ErrValidation, d.Decision)
		}
		cand, ok := byID[d.CandidateID]
		if !ok {
			return nil, fmt.Errorf("%w: candidate %s does not belong to this upload", ErrValidation, d.CandidateID)
		}
		if seen[d.CandidateID] {
			return nil, fmt.Errorf("%w: duplicate decision for candidate %s", ErrValidation, d.CandidateID)
		}
		seen[d.CandidateID] = true

		if d.Decision == DecisionReject {
			discardedIDs = append(discardedIDs, cand.ID)
			continue
		}

		payload := cand.Payload
		if d.Decision == DecisionApproveWithEdits {
			if len(d.Edits) == 0 {
				return nil, fmt.Errorf("%w: approve_with_edits requires an edited payload", ErrValidation)
			}
			payload = d.Edits
		}

		op, conflict, err := e.plan(cand, payload, existing, uploadID, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: candidate %s: %v", ErrValidation, cand.ID, err)
		}
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			continue
		}
		commits = append(commits, op)
		discardedIDs = append(discardedIDs, cand.ID)
	}

	if len(commits) == 0 && len(discardedIDs) == 0 {
		return &result, nil
	}

	err = e.tx.InTx(ctx, func(txCtx context.Context) error {
		for _, op := range commits {
			recordID, err := op.commit(txCtx)
			if err != nil {
				return err
			}
			result.Committed = append(result.Committed, CommittedRecord{
				CandidateID: op.candidateID,
				Kind:        op.kind,
				RecordID:    recordID,
			})
		}
		return e.candidates.DeleteByIDs(txCtx, discardedIDs)
	})
	if err != nil {
		// Nothing was written; surface a clean failure and keep the
		// candidates for another attempt.
		e.logger.Error().Err(err).Str("upload_id", uploadID.String()).Msg("approval batch rolled back")
		return nil, fmt.Errorf("commit approval batch: %w", err)
	}

	return &result, nil
}

// ListCandidates returns the current candidate set of an upload.
func (e *Engine) ListCandidates(ctx context.Context, petID, uploadID uuid.UUID) ([]*CandidateRecord, error) {
	cands, err := e.candidates.ListByUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	out := cands[:0]
	for _, c := range cands {
		if c.PetID == petID {
			out = append(out, c)
		}
	}
	return out, nil
}

type commitOp struct {
	candidateID uuid.UUID
	kind        docai.RecordKind
	commit      func(ctx context.Context) (uuid.UUID, error)
}

// existingRecords caches the pet's committed records for duplicate checks.
// Planned batch records are appended as they pass, so a batch cannot
// commit two copies of the same fact either.
type existingRecords struct {
	medications  []*records.Medication
	vaccinations []*records.Vaccination
	conditions   []*records.Condition
	allergies    []*records.Allergy
	vets         []*records.Vet
	contacts     []*records.EmergencyContact
}

func (e *Engine) loadExisting(ctx context.Context, petID uuid.UUID) (*existingRecords, error) {
	var ex existingRecords
	var err error
	if ex.medications, err = e.store.ListMedications(ctx, petID); err != nil {
		return nil, err
	}
	if ex.vaccinations, err = e.store.ListVaccinations(ctx, petID); err != nil {
		return nil, err
	}
	if ex.conditions, err = e.store.ListConditions(ctx, petID); err != nil {
		return nil, err
	}
	if ex.allergies, err = e.store.ListAllergies(ctx, petID); err != nil {
		return nil, err
	}
	if ex.vets, err = e.store.ListVets(ctx, petID); err != nil {
		return nil, err
	}
	if ex.contacts, err = e.store.ListEmergencyContacts(ctx, petID); err != nil {
		return nil, err
	}
	return &ex, nil
}

// plan decodes the payload for the candidate's kind, runs the duplicate
// heuristic, and returns either a commit operation or a conflict.
func (e *Engine) plan(cand *CandidateRecord, payload json.RawMessage, ex *existingRecords, uploadID uuid.UUID, userID string) (commitOp, *Conflict, error) {
	op := commitOp{candidateID: cand.ID, kind: cand.Kind}

	switch cand.Kind {
	case docai.KindMedication:
		var p medicationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return op, nil, fmt.Errorf("decode medication payload: %w", err)
		}
		rec, err := buildMedication(cand.PetID, uploadID, p)
		if err != nil {
			return op, nil, err
		}
		if dup := findDuplicateMedication(ex.medications, rec); dup != nil {
			return op, e.conflict(cand, dup.ID, "an active medication with the same name and dosage or frequency already exists"), nil
		}
		ex.medications = append(ex.medications, rec)
		op.commit = func(ctx context.Context) (uuid.UUID, error) {
			if err := e.store.CreateMedication(ctx, rec); err != nil {
				return uuid.Nil, err
			}
			return rec.ID, e.audit.RecordCreate(ctx, cand.PetID, records.EntityMedications, rec.ID, rec, userID, records.SourcePDFImport)
		}

	case docai.KindVaccination:
		var p vaccinationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return op, nil, fmt.Errorf("decode vaccination payload: %w", err)
		}
		rec, err := buildVaccination(cand.PetID, uploadID, p)
		if err != nil {
			return op, nil, err
		}
		if dup := findDuplicateVaccination(ex.vaccinations, rec); dup != nil {
			return op, e.conflict(cand, dup.ID, "a vaccination with the same name and administered date already exists"), nil
		}
		ex.vaccinations = append(ex.vaccinations, rec)
		op.commit = func(ctx context.Context) (uuid.UUID, error) {
			if err := e.store.CreateVaccination(ctx, rec); err != nil {
				return uuid.Nil, err
			}
			return rec.ID, e.audit.RecordCreate(ctx, cand.PetID, records.EntityVaccinations, rec.ID, rec, userID, records.SourcePDFImport)
		}

	case docai.KindCondition:
		var p conditionPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return op, nil, fmt.Errorf("decode condition payload: %w", err)
		}
		rec, err := buildCondition(cand.PetID, uploadID, p)
		if err != nil {
			return op, nil, err
		}
		if dup := findDuplicateCondition(ex.conditions, rec); dup != nil {
			return op, e.conflict(cand, dup.ID, "an unresolved condition with the same name already exists"), nil
		}
		ex.conditions = append(ex.conditions, rec)
		op.commit = func(ctx context.Context) (uuid.UUID, error) {
			if err := e.store.CreateCondition(ctx, rec); err != nil {
				return uuid.Nil, err
			}
			return rec.ID, e.audit.RecordCreate(ctx, cand.PetID, records.EntityConditions, rec.ID, rec, userID, records.SourcePDFImport)
		}

	case docai.KindAllergy:
		var p allergyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return op, nil, fmt.Errorf("decode allergy payload: %w", err)
		}
		rec := buildAllergy(cand.PetID, uploadID, p)
		if dup := findDuplicateAllergy(ex.allergies, rec); dup != nil {
			return op, e.conflict(cand, dup.ID, "an allergy with the same name already exists"), nil
		}
		ex.allergies = append(ex.allergies, rec)
		op.commit = func(ctx context.Context) (uuid.UUID, error) {
			if err := e.store.CreateAllergy(ctx, rec); err != nil {
				return uuid.Nil, err
			}
			return rec.ID, e.audit.RecordCreate(ctx, cand.PetID, records.EntityAllergies, rec.ID, rec, userID, records.SourcePDFImport)
		}

	case docai.KindVet:
		var p vetPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return op, nil, fmt.Errorf("decode vet payload: %w", err)
		}
		rec := buildVet(cand.PetID, uploadID, p)
		if dup := findDuplicateVet(ex.vets, rec); dup != nil {
			return op, e.conflict(cand, dup.ID, "a vet with the same clinic and phone already exists"), nil
		}
		ex.vets = append(ex.vets, rec)
		op.commit = func(ctx context.Context) (uuid.UUID, error) {
			if err := e.store.CreateVet(ctx, rec); err != nil {
				return uuid.Nil, err
			}
			return rec.ID, e.audit.RecordCreate(ctx, cand.PetID, records.EntityVets, rec.ID, rec, userID, records.SourcePDFImport)
		}

	case docai.KindEmergencyContact:
		var p contactPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return op, nil, fmt.Errorf("decode emergency contact payload: %w", err)
		}
		rec := buildContact(cand.PetID, uploadID, p)
		if dup := findDuplicateContact(ex.contacts, rec); dup != nil {
			return op, e.conflict(cand, dup.ID, "an emergency contact with the same name and phone already exists"), nil
		}
		ex.contacts = append(ex.contacts, rec)
		op.commit = func(ctx context.Context) (uuid.UUID, error) {
			if err := e.store.CreateEmergencyContact(ctx, rec); err != nil {
				return uuid.Nil, err
			}
			return rec.ID, e.audit.RecordCreate(ctx, cand.PetID, records.EntityEmergencyContacts, rec.ID, rec, userID, records.SourcePDFImport)
		}

	default:
		return op, nil, fmt.Errorf("unknown record kind %q", cand.Kind)
	}

	return op, nil, nil
}

func (e *Engine) conflict(cand *CandidateRecord, existingID uuid.UUID, reason string) *Conflict {
	return &Conflict{
		CandidateID: cand.ID,
		Kind:        cand.Kind,
		ExistingID:  existingID,
		Reason:      reason,
	}
}
