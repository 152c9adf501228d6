package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, now: time.Now}
}

type itemResponse struct {
	EntryID     int64           `json:"entry_id"`
	Number      string          `json:"number"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Memo        string          `json:"memo,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

type viewResponse struct {
	AccountID   int64               `json:"account_id"`
	AccountCode string              `json:"account_code"`
	AccountName string              `json:"account_name"`
	NormalSide  accounts.NormalSide `json:"normal_side"`
	From        string              `json:"date_from"`
	To          string              `json:"date_to"`
	Opening     decimal.Decimal     `json:"opening_balance"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	Closing     decimal.Decimal     `json:"closing_balance"`
	Items       []itemResponse      `json:"items"`
}

type statementResponse struct {
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	viewResponse
}

func toViewResponse(v View) viewResponse {
	resp := viewResponse{
		AccountID:   v.AccountID,
		AccountCode: v.AccountCode,
		AccountName: v.AccountName,
		NormalSide:  v.NormalSide,
		From:        v.From.Format(dateLayout),
		To:          v.To.Format(dateLayout),
		Opening:     v.Opening,
		TotalDebit:  v.TotalDebit,
		TotalCredit: v.TotalCredit,
		Closing:     v.Closing,
		Items:       make([]itemResponse, 0, len(v.Items)),
	}
	for _, item := range v.Items {
		resp.Items = append(resp.Items, itemResponse{
			EntryID:     item.EntryID,
			Number:      item.Number,
			Date:        item.Date.Format(dateLayout),
			Description: item.Description,
			Memo:        item.Memo,
			Debit:       item.Debit,
			Credit:      item.Credit,
			Balance:     item.Balance,
		})
	}
	return resp
}

// Project serves GET /ledger/{accountID}. Both range bounds are optional:
// date_from defaults to the epoch, date_to to today.
func (h *Handler) Project(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	from, to, err := h.rangeFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	view, err := h.service.Project(r.Context(), accountID, from, to)
	if err != nil {
		h.respondError(w, r, "project ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toViewResponse(view))
}

// Statement serves GET /customers/{customerID}/statement.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	from, to, err := h.rangeFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	statement, err := h.service.Statement(r.Context(), customerID, from, to)
	if err != nil {
		h.respondError(w, r, "customer statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, statementResponse{
		CustomerID:   statement.CustomerID,
		CustomerName: statement.CustomerName,
		viewResponse: toViewResponse(statement.View),
	})
}

func (h *Handler) rangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from := time.Unix(0, 0).UTC()
	to := h.now().UTC().Truncate(24 * time.Hour)
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("date_from must be formatted YYYY-MM-DD")
		}
		from = t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("date_to must be formatted YYYY-MM-DD")
		}
		to = t
	}
	return from, to, nil
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrAccountNotFound),
		errors.Is(err, shared.ErrCustomerNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidRange):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, shared.ErrReceivableUnresolved):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPersistence):
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusServiceUnavailable, "Ledger Store Unavailable", "the operation is safe to retry")
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
