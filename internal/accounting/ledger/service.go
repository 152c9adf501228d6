package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/vouchers"
)

// AccountPort resolves chart accounts for projection headers and normal
// sides.
type AccountPort interface {
	Resolve(ctx context.Context, id int64) (accounts.Account, error)
}

// CustomerPort resolves the customer and its receivable account for
// statements.
type CustomerPort interface {
	GetCustomer(ctx context.Context, id int64) (vouchers.Customer, error)
	FindReceivableAccountID(ctx context.Context) (int64, error)
}

// Service projects account ledgers. Projections are pure reads over
// posted entries; repeated calls over the same committed data return the
// same view.
type Service struct {
	repo      Repository
	registry  AccountPort
	customers CustomerPort
	cache     *Cache
	group     singleflight.Group
}

func NewService(repo Repository, registry AccountPort, customers CustomerPort, cache *Cache) *Service {
	return &Service{repo: repo, registry: registry, customers: customers, cache: cache}
}

const dateLayout = "2006-01-02"

// Project builds the ledger view for one account over an inclusive date
// range. Identical concurrent requests collapse onto a single build.
func (s *Service) Project(ctx context.Context, accountID int64, from, to time.Time) (View, error) {
	if to.Before(from) {
		return View{}, shared.ErrInvalidRange
	}
	account, err := s.registry.Resolve(ctx, accountID)
	if err != nil {
		return View{}, err
	}

	key, err := s.cache.BuildKey(ctx, "ledger", strconv.FormatInt(accountID, 10),
		from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return s.build(ctx, account, from, to)
	}

	result := s.group.DoChan(key, func() (interface{}, error) {
		var view View
		err := s.cache.FetchJSON(ctx, key, &view, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx, account, from, to)
		})
		return view, err
	})
	select {
	case <-ctx.Done():
		return View{}, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return View{}, res.Err
		}
		return res.Val.(View), nil
	}
}

// Statement projects the customer's receivable account and wraps it with
// the customer identity.
func (s *Service) Statement(ctx context.Context, customerID int64, from, to time.Time) (Statement, error) {
	customer, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return Statement{}, err
	}
	accountID, err := s.receivableFor(ctx, customer)
	if err != nil {
		return Statement{}, err
	}
	view, err := s.Project(ctx, accountID, from, to)
	if err != nil {
		return Statement{}, err
	}
	return Statement{CustomerID: customer.ID, CustomerName: customer.Name, View: view}, nil
}

func (s *Service) receivableFor(ctx context.Context, customer vouchers.Customer) (int64, error) {
	if customer.ARAccountID != nil {
		return *customer.ARAccountID, nil
	}
	return s.customers.FindReceivableAccountID(ctx)
}

func (s *Service) build(ctx context.Context, account accounts.Account, from, to time.Time) (View, error) {
	debit, credit, err := s.repo.SumBefore(ctx, account.ID, from)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	lines, err := s.repo.LinesInRange(ctx, account.ID, from, to)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	view := project(account, opening(account.Type.NormalSide(), debit, credit), lines)
	view.From = from
	view.To = to
	return view, nil
}
