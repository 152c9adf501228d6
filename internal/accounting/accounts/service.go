package accounts

import (
	"context"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records registry changes for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service maintains the chart of accounts and resolves references for the
// journal engine, the voucher translator, and the ledger projector.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns all accounts flat, ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Tree returns the filtered account forest. Ancestors of a matching node are
// always retained so the result stays navigable.
func (s *Service) Tree(ctx context.Context, filter TreeFilter) ([]*AccountNode, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterForest(BuildForest(list), filter), nil
}

// Resolve fetches an account by id.
func (s *Service) Resolve(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// ResolvePostable fetches an account and asserts it can receive postings:
// it must exist, be active, and not be a group node.
func (s *Service) ResolvePostable(ctx context.Context, id int64) (Account, error) {
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acc.IsGroup {
		return Account{}, shared.ErrGroupAccountNotPostable
	}
	if !acc.IsActive {
		return Account{}, shared.ErrAccountInactive
	}
	return acc, nil
}

// Create validates and inserts a new account under an optional group parent.
func (s *Service) Create(ctx context.Context, actor internalShared.Actor, in CreateInput) (Account, error) {
	if !in.Type.Valid() {
		return Account{}, shared.ErrInvalidAccountType
	}
	if in.Subledger == "" {
		in.Subledger = SubledgerNone
	}
	if in.ParentID != nil {
		if err := s.checkParentChain(ctx, *in.ParentID); err != nil {
			return Account{}, err
		}
	}
	acc, err := s.repo.Create(ctx, in)
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actor, "account.create", acc)
	return acc, nil
}

// Deactivate blocks new postings against the account while preserving its
// history. Accounts with postings are never physically deleted.
func (s *Service) Deactivate(ctx context.Context, actor internalShared.Actor, id int64) (Account, error) {
	return s.setActive(ctx, actor, id, false, "account.deactivate")
}

// Reactivate re-enables postings.
func (s *Service) Reactivate(ctx context.Context, actor internalShared.Actor, id int64) (Account, error) {
	return s.setActive(ctx, actor, id, true, "account.reactivate")
}

func (s *Service) setActive(ctx context.Context, actor internalShared.Actor, id int64, active bool, action string) (Account, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return Account{}, err
	}
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actor, action, acc)
	return acc, nil
}

// checkParentChain verifies the parent exists, is a group, and that walking
// its ancestry terminates. The walk carries a visited set so corrupt data
// cannot hang the request.
func (s *Service) checkParentChain(ctx context.Context, parentID int64) error {
	visited := map[int64]bool{}
	next := &parentID
	first := true
	for next != nil {
		id := *next
		if visited[id] {
			return shared.ErrAccountCycle
		}
		visited[id] = true
		acc, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if first && !acc.IsGroup {
			return shared.ErrParentNotGroup
		}
		first = false
		next = acc.ParentID
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor internalShared.Actor, action string, acc Account) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "account",
		EntityID: acc.Code,
		Meta: map[string]any{
			"id":     acc.ID,
			"type":   string(acc.Type),
			"active": acc.IsActive,
		},
		At: s.now(),
	})
}
