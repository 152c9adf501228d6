package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineDraft describes a journal line before posting.
type LineDraft struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// EntryDraft groups fields required to post a journal entry. Number is an
// external reference; when empty the store assigns a sequential one.
type EntryDraft struct {
	Number       string
	Date         time.Time
	Description  string
	SourceModule string
	SourceID     uuid.UUID
	PostedBy     int64
	Lines        []LineDraft
}

// VoidInput wraps parameters for voiding via a reversing entry.
type VoidInput struct {
	EntryID int64
	ActorID int64
	Reason  string
}

// ListFilter narrows journal listings.
type ListFilter struct {
	From    *time.Time
	To      *time.Time
	Search  string
	Page    int
	PerPage int
}
