package api

import (
	"encoding/json"
	"net/http"

	"github.com/gwlsn/mediavault/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErr maps an apperr.Kind onto an HTTP status and emits
// {kind, message} — never the bare underlying error, per the engine's
// error-handling contract.
func writeErr(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.AlreadyExists, apperr.Conflict:
		status = http.StatusConflict
	case apperr.PermissionDenied:
		status = http.StatusForbidden
	case apperr.InvalidArgument:
		status = http.StatusBadRequest
	case apperr.ExternalServiceUnavailable:
		status = http.StatusBadGateway
	case apperr.ExternalServiceRejected:
		status = http.StatusUnprocessableEntity
	case apperr.Cancelled:
		status = http.StatusRequestTimeout
	case apperr.Timeout:
		status = http.StatusGatewayTimeout
	case apperr.IoFailure, apperr.DatabaseFailure, apperr.Internal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"kind": string(kind), "message": humanMessage(kind, err)})
}

// humanMessage never surfaces a bare OS error string.
func humanMessage(kind apperr.Kind, err error) string {
	if ae, ok := err.(*apperr.Error); ok {
		return ae.Message
	}
	return string(kind)
}
