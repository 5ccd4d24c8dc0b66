package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/platform/httpx"
	"github.com/agentnet/agentnet/internal/shared"
)

// Handler wires HTTP endpoints for balance transfers and history.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	query     *QueryService
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, query *QueryService) *Handler {
	return &Handler{logger: logger, service: service, query: query, validator: validator.New()}
}

// MountRoutes registers balance routes. The caller is expected to have
// applied the actor-resolving middleware already.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/deposit", h.deposit)
	r.Post("/withdraw", h.withdraw)
	r.Get("/all", h.aggregateHistory)
	r.Get("/{accountID}/history", h.history)
	r.Get("/{accountID}/deposits", h.historyOf(KindDeposit))
	r.Get("/{accountID}/withdrawals", h.historyOf(KindWithdrawal))
}

type transferRequest struct {
	TargetID string `json:"targetId" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Note     string `json:"note" validate:"max=500"`
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.service.Deposit)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.service.Withdraw)
}

type transferFunc func(ctx context.Context, actor *hierarchy.Account, targetID string, amount int64, note string) (*Transaction, error)

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request, fn transferFunc) {
	actor := hierarchy.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fields[fieldErr.Field()] = fieldErr.Error()
		}
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", fields)
		return
	}

	txn, err := fn(r.Context(), actor, req.TargetID, req.Amount, req.Note)
	if err != nil {
		h.logger.Warn("transfer rejected", slog.String("actor", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	actor := hierarchy.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	opts, err := parseHistoryOptions(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.query.History(r.Context(), actor, chi.URLParam(r, "accountID"), opts)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

// historyOf serves the per-kind history shortcuts by pinning the kind filter.
func (h *Handler) historyOf(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := hierarchy.ActorFromContext(r.Context())
		if actor == nil {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}

		opts, err := parseHistoryOptions(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		opts.Kind = kind
		page, err := h.query.History(r.Context(), actor, chi.URLParam(r, "accountID"), opts)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, page)
	}
}

func (h *Handler) aggregateHistory(w http.ResponseWriter, r *http.Request) {
	actor := hierarchy.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	opts, err := parseHistoryOptions(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.query.AggregateHistory(r.Context(), actor, opts)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func parseHistoryOptions(r *http.Request) (HistoryOptions, error) {
	q := r.URL.Query()
	opts := HistoryOptions{
		Page:    queryInt(q.Get("page")),
		PerPage: queryInt(q.Get("pageSize")),
	}

	if v := q.Get("fromDate"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return opts, shared.NewValidationError("fromDate", "must be an RFC3339 timestamp")
		}
		opts.FromDate = &t
	}
	if v := q.Get("toDate"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return opts, shared.NewValidationError("toDate", "must be an RFC3339 timestamp")
		}
		opts.ToDate = &t
	}
	if v := q.Get("kind"); v != "" {
		kind := Kind(v)
		if !kind.Valid() {
			return opts, shared.NewValidationError("kind", "kind must be deposit or withdrawal")
		}
		opts.Kind = kind
	}
	return opts, nil
}

func queryInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}
