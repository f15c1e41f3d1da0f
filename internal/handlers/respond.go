package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindInvalidArgument:    http.StatusBadRequest,
	apperrors.KindUnrecognizedSource: http.StatusBadRequest,
	apperrors.KindNotFound:           http.StatusNotFound,
	apperrors.KindConflict:           http.StatusConflict,
	apperrors.KindTooLarge:           http.StatusRequestEntityTooLarge,
	apperrors.KindDownloadFailed:     http.StatusUnprocessableEntity,
	apperrors.KindProcessingFailed:   http.StatusUnprocessableEntity,
	apperrors.KindTimeout:            http.StatusGatewayTimeout,
	apperrors.KindQuota:              http.StatusTooManyRequests,
	apperrors.KindInvalidCredential:  http.StatusBadGateway,
	apperrors.KindProviderError:      http.StatusBadGateway,
	apperrors.KindNoUsableCredential: http.StatusServiceUnavailable,
}

// errorCode turns a kind like "no-usable-credential" into NO_USABLE_CREDENTIAL.
func errorCode(kind apperrors.Kind) string {
	return strings.ToUpper(strings.ReplaceAll(string(kind), "-", "_"))
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		log.Printf("internal error on %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}
	writeJSON(w, status, errorResp(errorCode(kind), apperrors.UserMessage(err), r))
}
