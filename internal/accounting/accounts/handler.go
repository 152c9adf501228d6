package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// List serves GET /accounts. With ?tree=true the response is the filtered
// forest; otherwise a flat, code-ordered slice filtered by the same rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := treeFilterFromQuery(r)
	if tree, _ := strconv.ParseBool(r.URL.Query().Get("tree")); tree {
		nodes, err := h.service.Tree(r.Context(), filter)
		if err != nil {
			h.respondError(w, r, "list account tree", err)
			return
		}
		httpx.JSON(w, http.StatusOK, toNodeResponses(nodes))
		return
	}
	list, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, r, "list accounts", err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, acc := range list {
		if !flatMatch(acc, filter) {
			continue
		}
		out = append(out, toAccountResponse(acc))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	acc, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	acc, err := h.service.Create(r.Context(), internalShared.ActorFromContext(r.Context()), req.toInput())
	if err != nil {
		h.respondError(w, r, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	actor := internalShared.ActorFromContext(r.Context())
	var acc Account
	if active {
		acc, err = h.service.Reactivate(r.Context(), actor, id)
	} else {
		acc, err = h.service.Deactivate(r.Context(), actor, id)
	}
	if err != nil {
		h.respondError(w, r, "toggle account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateAccountCode):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidAccountType),
		errors.Is(err, shared.ErrParentNotGroup),
		errors.Is(err, shared.ErrAccountCycle):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func flatMatch(a Account, f TreeFilter) bool {
	if f.Type != nil && a.Type != *f.Type {
		return false
	}
	if f.Active != nil && a.IsActive != *f.Active {
		return false
	}
	if q := f.Query; q != "" {
		node := &AccountNode{Account: a}
		if len(FilterForest([]*AccountNode{node}, TreeFilter{Query: q})) == 0 {
			return false
		}
	}
	return true
}
