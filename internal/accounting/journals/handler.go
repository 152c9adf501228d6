package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

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

type lineRequest struct {
	AccountID int64  `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Memo      string `json:"memo"`
}

type postJournalRequest struct {
	Number      string        `json:"number"`
	Date        string        `json:"date" validate:"required"`
	Description string        `json:"description"`
	Lines       []lineRequest `json:"lines"`
}

type voidRequest struct {
	Reason string `json:"reason"`
}

type lineResponse struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo,omitempty"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	Number      string         `json:"number"`
	Date        string         `json:"date"`
	Description string         `json:"description"`
	PostedAt    time.Time      `json:"posted_at"`
	ReversesID  *int64         `json:"reverses_id,omitempty"`
	Lines       []lineResponse `json:"lines,omitempty"`
}

func toEntryResponse(e JournalEntry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		Number:      e.Number,
		Date:        e.Date.Format(dateLayout),
		Description: e.Description,
		PostedAt:    e.PostedAt,
		ReversesID:  e.ReversesID,
	}
	for _, line := range e.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	return resp
}

// Create serves POST /journals: validates the draft and posts it, returning
// 422 with the complete violation list on validation failure.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	draft, err := req.toDraft(internalShared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	entry, err := h.service.Post(r.Context(), draft)
	if err != nil {
		h.respondError(w, r, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (req postJournalRequest) toDraft(actor internalShared.Actor) (EntryDraft, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return EntryDraft{}, errors.New("date must be formatted YYYY-MM-DD")
	}
	draft := EntryDraft{
		Number:       req.Number,
		Date:         date,
		Description:  req.Description,
		SourceModule: "MANUAL",
		SourceID:     uuid.New(),
		PostedBy:     actor.ID,
	}
	for idx, line := range req.Lines {
		debit, err := parseAmount(line.Debit)
		if err != nil {
			return EntryDraft{}, errors.New("line " + strconv.Itoa(idx) + ": debit must be a decimal string")
		}
		credit, err := parseAmount(line.Credit)
		if err != nil {
			return EntryDraft{}, errors.New("line " + strconv.Itoa(idx) + ": credit must be a decimal string")
		}
		draft.Lines = append(draft.Lines, LineDraft{
			AccountID: line.AccountID,
			Debit:     debit,
			Credit:    credit,
			Memo:      line.Memo,
		})
	}
	return draft, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	entries, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list journals", err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"pagination": map[string]int{
			"page":        pagination.Page,
			"per_page":    pagination.PerPage,
			"total":       pagination.Total,
			"total_pages": pagination.TotalPages,
		},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

// Void serves POST /journals/{id}/void and returns the reversing entry.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	reversal, err := h.service.Void(r.Context(), VoidInput{
		EntryID: id,
		ActorID: internalShared.ActorFromContext(r.Context()).ID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.respondError(w, r, "void journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var violations ValidationErrors
	switch {
	case errors.As(err, &violations):
		httpx.UnprocessableEntity(w, toFieldErrors(violations))
	case errors.Is(err, shared.ErrJournalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrAlreadyVoided),
		errors.Is(err, shared.ErrVoidReversal),
		errors.Is(err, shared.ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrPersistence):
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusServiceUnavailable, "Ledger Store Unavailable", "the operation is safe to retry")
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toFieldErrors(violations ValidationErrors) []httpx.FieldError {
	out := make([]httpx.FieldError, 0, len(violations))
	for _, v := range violations {
		out = append(out, httpx.FieldError{
			Code:    v.Code,
			Line:    v.Line,
			Field:   v.Field,
			Message: v.Message,
			Detail:  v.Detail,
		})
	}
	return out
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
		filter.To = &t
	}
	filter.Search = q.Get("search")
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return filter, nil
}
