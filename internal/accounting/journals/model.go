package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalEntry is an immutable, balanced set of debit/credit lines. Once
// posted it is only ever corrected by a reversing entry, never edited.
type JournalEntry struct {
	ID           int64
	Number       string
	Date         time.Time
	Description  string
	SourceModule string
	SourceID     uuid.UUID
	PostedBy     int64
	PostedAt     time.Time
	ReversesID   *int64
	CreatedAt    time.Time
	Lines        []JournalLine
}

// IsReversal reports whether the entry reverses another entry.
func (e JournalEntry) IsReversal() bool {
	return e.ReversesID != nil
}

// JournalLine stores a debit or credit amount against a postable account.
// Exactly one side is non-zero on a valid line.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}
