package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// jsonError writes err as {"error":{"kind","code","message"}}.
func jsonError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}

	jsonResponse(w, status, map[string]errorBody{
		"error": {
			Kind:    pmerrors.KindOf(err),
			Code:    string(pmerrors.GetCode(err)),
			Message: err.Error(),
		},
	})
}

// badRequest reports a malformed request parameter.
func badRequest(w http.ResponseWriter, message string) {
	jsonResponse(w, http.StatusBadRequest, map[string]errorBody{
		"error": {Kind: "BadRequest", Code: "E400", Message: message},
	})
}

func statusFor(err error) int {
	switch pmerrors.GetCode(err) {
	case pmerrors.CodeMissingColumn, pmerrors.CodeMissingField, pmerrors.CodeInvalidTimestamp:
		return http.StatusUnprocessableEntity
	case pmerrors.CodeInvalidFormat, pmerrors.CodeEncodingError:
		return http.StatusUnsupportedMediaType
	case pmerrors.CodeFileNotFound, pmerrors.CodeNoActiveLog:
		return http.StatusNotFound
	case pmerrors.CodeContextCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
