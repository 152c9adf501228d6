package vouchers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

type allocationRequest struct {
	AccountID   int64  `json:"account_id" validate:"required"`
	Description string `json:"description"`
	Amount      string `json:"amount" validate:"required"`
}

type linkedDocRequest struct {
	InvoiceID int64  `json:"invoice_id" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
}

type createPaymentRequest struct {
	Number            string              `json:"number" validate:"required"`
	Date              string              `json:"date" validate:"required"`
	Payee             string              `json:"payee" validate:"required"`
	Amount            string              `json:"amount" validate:"required"`
	Method            string              `json:"method" validate:"required,oneof=CASH BANK CHECK CARD OTHERS"`
	CashBankAccountID int64               `json:"cash_bank_account_id" validate:"required"`
	Allocations       []allocationRequest `json:"allocations" validate:"required,min=1,dive"`
	LinkedBills       []linkedDocRequest  `json:"linked_bills" validate:"dive"`
}

type createReceiptRequest struct {
	Number            string             `json:"number" validate:"required"`
	Date              string             `json:"date" validate:"required"`
	CustomerID        int64              `json:"customer_id" validate:"required"`
	Amount            string             `json:"amount" validate:"required"`
	Method            string             `json:"method" validate:"required,oneof=CASH BANK CHECK CARD OTHERS"`
	CashBankAccountID int64              `json:"cash_bank_account_id" validate:"required"`
	LinkedInvoices    []linkedDocRequest `json:"linked_invoices" validate:"dive"`
}

type allocationResponse struct {
	AccountID   int64           `json:"account_id"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

type linkedDocResponse struct {
	InvoiceID int64           `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type paymentResponse struct {
	ID                uuid.UUID            `json:"id"`
	Number            string               `json:"number"`
	Date              string               `json:"date"`
	Payee             string               `json:"payee"`
	Amount            decimal.Decimal      `json:"amount"`
	Method            PaymentMethod        `json:"method"`
	CashBankAccountID int64                `json:"cash_bank_account_id"`
	Allocations       []allocationResponse `json:"allocations"`
	LinkedBills       []linkedDocResponse  `json:"linked_bills,omitempty"`
	JournalID         int64                `json:"journal_entry_id"`
}

type receiptResponse struct {
	ID                uuid.UUID           `json:"id"`
	Number            string              `json:"number"`
	Date              string              `json:"date"`
	CustomerID        int64               `json:"customer_id"`
	Amount            decimal.Decimal     `json:"amount"`
	Method            PaymentMethod       `json:"method"`
	CashBankAccountID int64               `json:"cash_bank_account_id"`
	LinkedInvoices    []linkedDocResponse `json:"linked_invoices,omitempty"`
	JournalID         int64               `json:"journal_entry_id"`
}

// settlementWarning surfaces settlement instructions that failed after the
// journal entry committed. HTTP status stays 201: the financial posting is
// final, only the invoice bookkeeping needs attention.
type settlementWarning struct {
	JournalID int64               `json:"journal_entry_id"`
	Failed    []linkedDocResponse `json:"failed"`
	Reason    string              `json:"reason"`
}

func toPaymentResponse(v PaymentVoucher) paymentResponse {
	resp := paymentResponse{
		ID:                v.ID,
		Number:            v.Number,
		Date:              v.Date.Format(dateLayout),
		Payee:             v.Payee,
		Amount:            v.Amount,
		Method:            v.Method,
		CashBankAccountID: v.CashBankAccountID,
		JournalID:         v.JournalID,
	}
	for _, a := range v.Allocations {
		resp.Allocations = append(resp.Allocations, allocationResponse{
			AccountID:   a.AccountID,
			Description: a.Description,
			Amount:      a.Amount,
		})
	}
	resp.LinkedBills = toLinkedDocResponses(v.LinkedBills)
	return resp
}

func toReceiptResponse(v ReceiptVoucher) receiptResponse {
	return receiptResponse{
		ID:                v.ID,
		Number:            v.Number,
		Date:              v.Date.Format(dateLayout),
		CustomerID:        v.CustomerID,
		Amount:            v.Amount,
		Method:            v.Method,
		CashBankAccountID: v.CashBankAccountID,
		LinkedInvoices:    toLinkedDocResponses(v.LinkedInvoices),
		JournalID:         v.JournalID,
	}
}

func toLinkedDocResponses(allocs []InvoiceAllocation) []linkedDocResponse {
	out := make([]linkedDocResponse, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, linkedDocResponse{InvoiceID: a.InvoiceID, Amount: a.Amount})
	}
	return out
}

// CreatePayment serves POST /vouchers/payment.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	voucher, err := req.toVoucher()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor := internalShared.ActorFromContext(r.Context())
	created, entry, err := h.service.CreatePayment(r.Context(), actor, voucher)
	var settleErr *SettlementFailure
	if err != nil && !errors.As(err, &settleErr) {
		h.respondError(w, r, "create payment voucher", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, paymentCreatedBody(created, entry, settleErr))
}

func paymentCreatedBody(v PaymentVoucher, entry journals.JournalEntry, settleErr *SettlementFailure) map[string]any {
	body := map[string]any{
		"voucher":              toPaymentResponse(v),
		"journal_entry_number": entry.Number,
	}
	if settleErr != nil {
		body["settlement_warning"] = toSettlementWarning(settleErr)
	}
	return body
}

// CreateReceipt serves POST /vouchers/receipt.
func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req createReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	voucher, err := req.toVoucher()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor := internalShared.ActorFromContext(r.Context())
	created, entry, err := h.service.CreateReceipt(r.Context(), actor, voucher)
	var settleErr *SettlementFailure
	if err != nil && !errors.As(err, &settleErr) {
		h.respondError(w, r, "create receipt voucher", err)
		return
	}
	body := map[string]any{
		"voucher":              toReceiptResponse(created),
		"journal_entry_number": entry.Number,
	}
	if settleErr != nil {
		body["settlement_warning"] = toSettlementWarning(settleErr)
	}
	httpx.JSON(w, http.StatusCreated, body)
}

func toSettlementWarning(e *SettlementFailure) settlementWarning {
	warning := settlementWarning{JournalID: e.JournalID, Reason: e.Reason.Error()}
	for _, s := range e.Failed {
		warning.Failed = append(warning.Failed, linkedDocResponse{InvoiceID: s.InvoiceID, Amount: s.Amount})
	}
	return warning
}

func (req createPaymentRequest) toVoucher() (PaymentVoucher, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return PaymentVoucher{}, errors.New("date must be formatted YYYY-MM-DD")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return PaymentVoucher{}, errors.New("amount must be a decimal string")
	}
	voucher := PaymentVoucher{
		Number:            req.Number,
		Date:              date,
		Payee:             req.Payee,
		Amount:            amount,
		Method:            PaymentMethod(req.Method),
		CashBankAccountID: req.CashBankAccountID,
	}
	for idx, a := range req.Allocations {
		amt, err := decimal.NewFromString(a.Amount)
		if err != nil {
			return PaymentVoucher{}, errors.New("allocation " + strconv.Itoa(idx) + ": amount must be a decimal string")
		}
		voucher.Allocations = append(voucher.Allocations, AllocationLine{
			AccountID:   a.AccountID,
			Description: a.Description,
			Amount:      amt,
		})
	}
	voucher.LinkedBills, err = toInvoiceAllocations(req.LinkedBills)
	if err != nil {
		return PaymentVoucher{}, err
	}
	return voucher, nil
}

func (req createReceiptRequest) toVoucher() (ReceiptVoucher, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return ReceiptVoucher{}, errors.New("date must be formatted YYYY-MM-DD")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ReceiptVoucher{}, errors.New("amount must be a decimal string")
	}
	voucher := ReceiptVoucher{
		Number:            req.Number,
		Date:              date,
		CustomerID:        req.CustomerID,
		Amount:            amount,
		Method:            PaymentMethod(req.Method),
		CashBankAccountID: req.CashBankAccountID,
	}
	voucher.LinkedInvoices, err = toInvoiceAllocations(req.LinkedInvoices)
	if err != nil {
		return ReceiptVoucher{}, err
	}
	return voucher, nil
}

func toInvoiceAllocations(docs []linkedDocRequest) ([]InvoiceAllocation, error) {
	out := make([]InvoiceAllocation, 0, len(docs))
	for idx, d := range docs {
		amt, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, errors.New("linked document " + strconv.Itoa(idx) + ": amount must be a decimal string")
		}
		out = append(out, InvoiceAllocation{InvoiceID: d.InvoiceID, Amount: amt})
	}
	return out, nil
}

// ListPayments serves GET /vouchers/payment.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	vouchers, err := h.service.ListPayments(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list payment vouchers", err)
		return
	}
	out := make([]paymentResponse, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, toPaymentResponse(v))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vouchers": out})
}

// ListReceipts serves GET /vouchers/receipt.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	vouchers, err := h.service.ListReceipts(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list receipt vouchers", err)
		return
	}
	out := make([]receiptResponse, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, toReceiptResponse(v))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vouchers": out})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var violations journals.ValidationErrors
	switch {
	case errors.As(err, &violations):
		fields := make([]httpx.FieldError, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, httpx.FieldError{
				Code:    v.Code,
				Line:    v.Line,
				Field:   v.Field,
				Message: v.Message,
				Detail:  v.Detail,
			})
		}
		httpx.UnprocessableEntity(w, fields)
	case errors.Is(err, shared.ErrCustomerNotFound),
		errors.Is(err, shared.ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrMissingAllocation),
		errors.Is(err, shared.ErrUnbalancedAllocations),
		errors.Is(err, shared.ErrInvalidPaymentMethod),
		errors.Is(err, shared.ErrInvoiceCustomerMismatch),
		errors.Is(err, shared.ErrOverAllocatedInvoice),
		errors.Is(err, shared.ErrReceivableUnresolved):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrPersistence):
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusServiceUnavailable, "Ledger Store Unavailable", "the operation is safe to retry")
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func listFilterFromQuery(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	q := r.URL.Query()
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return ListFilter{}, errors.New("date_from must be formatted YYYY-MM-DD")
		}
		filter.From = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return ListFilter{}, errors.New("date_to must be formatted YYYY-MM-DD")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}
	if v := q.Get("method"); v != "" {
		method := PaymentMethod(v)
		if !method.Valid() {
			return ListFilter{}, errors.New("method must be one of CASH, BANK, CHECK, CARD, OTHERS")
		}
		filter.Method = method
	}
	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ListFilter{}, errors.New("customer_id must be an integer")
		}
		filter.CustomerID = id
	}
	filter.Search = q.Get("search")
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return ListFilter{}, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}
