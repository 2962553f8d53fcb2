package api

import (
	"errors"
	"net/http"

	"github.com/medsage/medsage-server/internal/api/respond"
	"github.com/medsage/medsage-server/internal/model"
)

// writeServiceError maps service-layer errors onto HTTP responses. Unknown
// errors are reported generically so nothing internal leaks to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrConflict):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		respond.WriteUnauthorized(w, "Invalid credentials")
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, "Not found")
	case errors.Is(err, model.ErrOptimisticConflict):
		respond.WriteError(w, http.StatusConflict, "Session was updated concurrently, retry the message")
	case errors.Is(err, model.ErrUpstream), errors.Is(err, model.ErrUpstreamContract):
		respond.WriteInternalError(w, err.Error())
	default:
		respond.WriteInternalError(w, "Internal server error")
	}
}
