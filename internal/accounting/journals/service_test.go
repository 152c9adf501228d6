package journals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryJournalRepo struct {
	entries   map[int64]JournalEntry
	links     map[string]int64
	nextID    int64
	failLines bool
	commits   int
	rollbacks int
}

func newMemoryJournalRepo() *memoryJournalRepo {
	return &memoryJournalRepo{entries: make(map[int64]JournalEntry), links: make(map[string]int64)}
}

type memoryJournalTx struct {
	repo   *memoryJournalRepo
	staged map[int64]JournalEntry
	links  map[string]int64
}

func (r *memoryJournalRepo) WithTx(_ context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryJournalTx{repo: r, staged: make(map[int64]JournalEntry), links: make(map[string]int64)}
	if err := fn(context.Background(), tx); err != nil {
		r.rollbacks++
		return err
	}
	for id, e := range tx.staged {
		r.entries[id] = e
	}
	for k, v := range tx.links {
		r.links[k] = v
	}
	r.commits++
	return nil
}

func (r *memoryJournalRepo) List(_ context.Context, _ ListFilter) ([]JournalEntry, int, error) {
	out := make([]JournalEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (r *memoryJournalRepo) Get(_ context.Context, id int64) (JournalEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return e, nil
}

func (r *memoryJournalRepo) GetBySource(_ context.Context, module string, ref uuid.UUID) (JournalEntry, error) {
	id, ok := r.links[module+":"+ref.String()]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return r.entries[id], nil
}

func (tx *memoryJournalTx) InsertJournalEntry(_ context.Context, draft EntryDraft, reversesID *int64) (JournalEntry, error) {
	tx.repo.nextID++
	entry := JournalEntry{
		ID:           tx.repo.nextID,
		Number:       draft.Number,
		Date:         draft.Date,
		Description:  draft.Description,
		SourceModule: draft.SourceModule,
		SourceID:     draft.SourceID,
		PostedBy:     draft.PostedBy,
		PostedAt:     time.Now(),
		ReversesID:   reversesID,
	}
	tx.staged[entry.ID] = entry
	return entry, nil
}

func (tx *memoryJournalTx) InsertJournalLines(_ context.Context, entryID int64, lines []LineDraft) error {
	if tx.repo.failLines {
		return errors.New("disk full")
	}
	entry := tx.staged[entryID]
	entry.Lines = materializeLines(entryID, lines)
	tx.staged[entryID] = entry
	return nil
}

func (tx *memoryJournalTx) LinkSource(_ context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := module + ":" + ref.String()
	if _, dup := tx.repo.links[key]; dup {
		return shared.ErrSourceConflict
	}
	if _, dup := tx.links[key]; dup {
		return shared.ErrSourceConflict
	}
	tx.links[key] = entryID
	return nil
}

func (tx *memoryJournalTx) GetJournalForUpdate(_ context.Context, entryID int64) (JournalEntry, error) {
	e, ok := tx.repo.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return e, nil
}

func (tx *memoryJournalTx) HasReversal(_ context.Context, entryID int64) (bool, error) {
	for _, e := range tx.repo.entries {
		if e.ReversesID != nil && *e.ReversesID == entryID {
			return true, nil
		}
	}
	for _, e := range tx.staged {
		if e.ReversesID != nil && *e.ReversesID == entryID {
			return true, nil
		}
	}
	return false, nil
}

type recordingAudit struct {
	logs []internalShared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log internalShared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type countingBumper struct {
	bumps int
}

func (b *countingBumper) Bump(context.Context) error {
	b.bumps++
	return nil
}

func newTestService(repo *memoryJournalRepo) (*Service, *recordingAudit, *countingBumper) {
	audit := &recordingAudit{}
	bumper := &countingBumper{}
	svc := NewService(repo, postableRegistry(), audit, bumper)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) })
	return svc, audit, bumper
}

func balancedDraft() EntryDraft {
	draft := draftWith(
		LineDraft{AccountID: 1, Debit: amt("1000")},
		LineDraft{AccountID: 2, Credit: amt("1000")},
	)
	draft.SourceModule = "MANUAL"
	draft.SourceID = uuid.New()
	draft.PostedBy = 7
	return draft
}

func TestPostPersistsEntryWithLines(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, audit, bumper := newTestService(repo)

	entry, err := svc.Post(context.Background(), balancedDraft())
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, 1, repo.commits)
	require.Equal(t, 1, bumper.bumps)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "journal.post", audit.logs[0].Action)

	stored, err := svc.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, entry.Number, stored.Number)
}

func TestPostRejectsInvalidDraftWithoutPersisting(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, _, bumper := newTestService(repo)

	draft := draftWith(
		LineDraft{AccountID: 1, Debit: amt("1000")},
		LineDraft{AccountID: 2, Credit: amt("900")},
	)
	_, err := svc.Post(context.Background(), draft)

	var violations ValidationErrors
	require.ErrorAs(t, err, &violations)
	require.Len(t, violations, 1)
	require.Equal(t, CodeUnbalanced, violations[0].Code)
	require.Empty(t, repo.entries)
	require.Zero(t, bumper.bumps)
}

func TestPostRollsBackWhenLinesFail(t *testing.T) {
	repo := newMemoryJournalRepo()
	repo.failLines = true
	svc, audit, bumper := newTestService(repo)

	_, err := svc.Post(context.Background(), balancedDraft())
	require.ErrorIs(t, err, shared.ErrPersistence)
	require.Empty(t, repo.entries)
	require.Equal(t, 1, repo.rollbacks)
	require.Zero(t, bumper.bumps)
	require.Empty(t, audit.logs)
}

func TestPostDuplicateSourceLink(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, _, _ := newTestService(repo)

	draft := balancedDraft()
	_, err := svc.Post(context.Background(), draft)
	require.NoError(t, err)

	draft.Number = "JE-000002"
	_, err = svc.Post(context.Background(), draft)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)
	require.Len(t, repo.entries, 1)
}

func TestVoidCreatesReversingEntry(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, audit, bumper := newTestService(repo)

	original, err := svc.Post(context.Background(), balancedDraft())
	require.NoError(t, err)

	reversal, err := svc.Void(context.Background(), VoidInput{EntryID: original.ID, ActorID: 9, Reason: "entered twice"})
	require.NoError(t, err)
	require.Equal(t, original.Number+"-VOID", reversal.Number)
	require.NotNil(t, reversal.ReversesID)
	require.Equal(t, original.ID, *reversal.ReversesID)
	require.Len(t, reversal.Lines, 2)

	// Debits and credits are swapped line for line.
	require.True(t, reversal.Lines[0].Credit.Equal(original.Lines[0].Debit))
	require.True(t, reversal.Lines[1].Debit.Equal(original.Lines[1].Credit))

	// Original is untouched.
	stored, err := svc.Get(context.Background(), original.ID)
	require.NoError(t, err)
	require.Nil(t, stored.ReversesID)
	require.True(t, stored.Lines[0].Debit.Equal(original.Lines[0].Debit))

	require.Equal(t, 2, bumper.bumps)
	require.Equal(t, "journal.void", audit.logs[len(audit.logs)-1].Action)
}

func TestVoidTwiceFails(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, _, _ := newTestService(repo)

	original, err := svc.Post(context.Background(), balancedDraft())
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), VoidInput{EntryID: original.ID, ActorID: 9})
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), VoidInput{EntryID: original.ID, ActorID: 9})
	require.ErrorIs(t, err, shared.ErrAlreadyVoided)
}

func TestVoidOfReversalFails(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, _, _ := newTestService(repo)

	original, err := svc.Post(context.Background(), balancedDraft())
	require.NoError(t, err)
	reversal, err := svc.Void(context.Background(), VoidInput{EntryID: original.ID, ActorID: 9})
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), VoidInput{EntryID: reversal.ID, ActorID: 9})
	require.ErrorIs(t, err, shared.ErrVoidReversal)
}

func TestVoidUnknownEntry(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, _, _ := newTestService(repo)

	_, err := svc.Void(context.Background(), VoidInput{EntryID: 42, ActorID: 9})
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}

func TestPostAllowsDuplicateNumbers(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, _, _ := newTestService(repo)

	// Numbers carry external references and are typically, not necessarily,
	// unique; only the source link is.
	first, err := svc.Post(context.Background(), balancedDraft())
	require.NoError(t, err)

	second, err := svc.Post(context.Background(), balancedDraft())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.Number, second.Number)
	require.Len(t, repo.entries, 2)
}

func TestFindBySourceReturnsLinkedEntry(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc, _, _ := newTestService(repo)

	draft := balancedDraft()
	posted, err := svc.Post(context.Background(), draft)
	require.NoError(t, err)

	found, err := svc.FindBySource(context.Background(), draft.SourceModule, draft.SourceID)
	require.NoError(t, err)
	require.Equal(t, posted.ID, found.ID)

	_, err = svc.FindBySource(context.Background(), draft.SourceModule, uuid.New())
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}
