package hierarchy

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agentnet/agentnet/internal/platform/httpx"
	"github.com/agentnet/agentnet/internal/shared"
)

// Handler wires HTTP endpoints for account management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account routes. The caller is expected to have
// applied the actor-resolving middleware already.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createAccount)
	r.Get("/search", h.searchAccounts)
	r.Get("/{accountID}", h.getAccount)
	r.Get("/{accountID}/subnet", h.getSubnetBalance)
	r.Put("/{accountID}/password", h.resetPassword)
}

// MountDashboardRoutes registers the role statistics route.
func (h *Handler) MountDashboardRoutes(r chi.Router) {
	r.Get("/stats", h.roleStats)
}

type createAccountRequest struct {
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body is not valid JSON")
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", fields)
		return
	}

	role, err := ParseRole(req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), actor, CreateAccountInput{
		Username: req.Username,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		h.logger.Warn("create account failed", slog.String("actor", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, AccountView{
		ID:       account.ID,
		Username: account.Username,
		Role:     account.Role.String(),
		Parent:   &ParentSummary{ID: actor.ID, Username: actor.Username},
		Balance:  account.Balance,
	})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	view, err := h.service.GetAccount(r.Context(), actor, chi.URLParam(r, "accountID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) getSubnetBalance(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	sum, err := h.service.SubnetOf(r.Context(), actor, chi.URLParam(r, "accountID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"subnetBalance": sum})
}

func (h *Handler) searchAccounts(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	roleName := r.URL.Query().Get("role")
	if roleName == "" {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", map[string]string{"role": "role parameter is required"})
		return
	}
	role, err := ParseRole(roleName)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	result, err := h.service.Search(r.Context(), actor, SearchParams{
		Role:     role,
		Username: r.URL.Query().Get("username"),
		Page:     queryInt(r, "page"),
		PerPage:  queryInt(r, "pageSize"),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) roleStats(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	stats, err := h.service.RoleStats(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stats": stats})
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body is not valid JSON")
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", fields)
		return
	}

	if err := h.service.ResetPassword(r.Context(), actor, chi.URLParam(r, "accountID"), req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) validateStruct(v any) map[string]string {
	err := h.validator.Struct(v)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	for _, fieldErr := range err.(validator.ValidationErrors) {
		fields[fieldErr.Field()] = fieldErr.Error()
	}
	return fields
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}
