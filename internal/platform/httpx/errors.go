package httpx

import (
	"errors"
	"net/http"

	"github.com/agentnet/agentnet/internal/shared"
)

// RespondError maps the shared failure taxonomy to HTTP responses.
// Unknown errors surface as 500 without internal detail.
func RespondError(w http.ResponseWriter, err error) {
	var vErr *shared.ValidationError
	if errors.As(err, &vErr) {
		FieldProblem(w, http.StatusBadRequest, "Validation Failed", vErr.Fields)
		return
	}

	switch {
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthenticated", err.Error())
	case shared.IsDenied(err):
		Problem(w, http.StatusForbidden, "Denied", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidAmount):
		Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
	case errors.Is(err, shared.ErrInsufficientFunds):
		Problem(w, http.StatusBadRequest, "Insufficient Funds", err.Error())
	case errors.Is(err, shared.ErrInvalidHierarchy):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Hierarchy", err.Error())
	case errors.Is(err, shared.ErrDuplicateIdentity):
		Problem(w, http.StatusConflict, "Duplicate Identity", err.Error())
	case errors.Is(err, shared.ErrStoreUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "temporary storage failure, retry later")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
