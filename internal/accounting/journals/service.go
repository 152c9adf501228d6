package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// VersionBumper invalidates derived ledger views after a mutation.
type VersionBumper interface {
	Bump(ctx context.Context) error
}

// Service coordinates posting and voiding of journal entries.
type Service struct {
	repo     Repository
	registry AccountResolver
	audit    AuditPort
	views    VersionBumper
	now      func() time.Time
}

func NewService(repo Repository, registry AccountResolver, audit AuditPort, views VersionBumper) *Service {
	return &Service{repo: repo, registry: registry, audit: audit, views: views, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Validate runs every posting rule over the draft and returns the complete
// violation list without touching the store.
func (s *Service) Validate(ctx context.Context, draft EntryDraft) (ValidationErrors, error) {
	return Validate(ctx, draft, s.registry)
}

// Post validates the draft and persists it atomically: the entry, its lines,
// and the optional source link commit together or not at all. On validation
// failure the returned error is a ValidationErrors value and nothing is
// persisted. Storage failures surface as ErrPersistence and are safe to
// retry.
func (s *Service) Post(ctx context.Context, draft EntryDraft) (JournalEntry, error) {
	violations, err := s.Validate(ctx, draft)
	if err != nil {
		return JournalEntry{}, err
	}
	if len(violations) > 0 {
		return JournalEntry{}, violations
	}

	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertJournalEntry(ctx, draft, nil)
		if err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, inserted.ID, draft.Lines); err != nil {
			return err
		}
		if draft.SourceModule != "" {
			if err := tx.LinkSource(ctx, draft.SourceModule, draft.SourceID, inserted.ID); err != nil {
				if errors.Is(err, shared.ErrSourceConflict) {
					return shared.ErrSourceAlreadyLinked
				}
				return err
			}
		}
		inserted.Lines = materializeLines(inserted.ID, draft.Lines)
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, asDomainOrPersistence(err)
	}

	s.bumpViews(ctx)
	s.record(ctx, draft.PostedBy, "journal.post", entry.ID, map[string]any{
		"number":        entry.Number,
		"source_module": draft.SourceModule,
	})
	return entry, nil
}

// Void creates a reversing entry for a posted entry: every line's debit and
// credit swapped, dated at void time, linked to the original. The original
// is never deleted or edited. Returns the reversing entry.
func (s *Service) Void(ctx context.Context, input VoidInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetJournalForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.IsReversal() {
			return shared.ErrVoidReversal
		}
		voided, err := tx.HasReversal(ctx, original.ID)
		if err != nil {
			return err
		}
		if voided {
			return shared.ErrAlreadyVoided
		}

		draft := EntryDraft{
			Number:      original.Number + "-VOID",
			Date:        s.now(),
			Description: voidDescription(input.Reason, original.Number),
			PostedBy:    input.ActorID,
			Lines:       reverseLines(original.Lines),
		}
		inserted, err := tx.InsertJournalEntry(ctx, draft, &original.ID)
		if err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, inserted.ID, draft.Lines); err != nil {
			return err
		}
		inserted.Lines = materializeLines(inserted.ID, draft.Lines)
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, asDomainOrPersistence(err)
	}

	s.bumpViews(ctx)
	s.record(ctx, input.ActorID, "journal.void", input.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
		"reason":          input.Reason,
	})
	return reversal, nil
}

// List returns entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, internalShared.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalShared.Pagination{}, err
	}
	return entries, internalShared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Get returns one entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

// FindBySource returns the entry a source document posted earlier. Source
// modules use it to recover the original posting after a retried request
// hits the idempotency link.
func (s *Service) FindBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error) {
	return s.repo.GetBySource(ctx, module, ref)
}

func (s *Service) bumpViews(ctx context.Context) {
	if s.views != nil {
		_ = s.views.Bump(ctx)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}

func reverseLines(lines []JournalLine) []LineDraft {
	out := make([]LineDraft, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineDraft{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}

func materializeLines(entryID int64, lines []LineDraft) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			JournalID: entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	return out
}

func voidDescription(reason, number string) string {
	if reason != "" {
		return fmt.Sprintf("Void of %s: %s", number, reason)
	}
	return fmt.Sprintf("Void of %s", number)
}

// asDomainOrPersistence keeps domain sentinels intact and wraps everything
// else as a retryable persistence failure.
func asDomainOrPersistence(err error) error {
	for _, sentinel := range []error{
		shared.ErrJournalNotFound,
		shared.ErrAlreadyVoided,
		shared.ErrVoidReversal,
		shared.ErrSourceAlreadyLinked,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
}
