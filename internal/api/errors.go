package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Resinat/Prism/internal/service"
)

// serviceErrorStatus maps control-plane error codes to HTTP status.
// Unlisted codes are 500.
var serviceErrorStatus = map[string]int{
	"INVALID_ARGUMENT": http.StatusBadRequest,
	"NOT_FOUND":        http.StatusNotFound,
}

func writeInvalidArgument(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", message)
}

func writePayloadTooLarge(w http.ResponseWriter, limit int64) {
	msg := "request body too large"
	if limit > 0 {
		msg += " (max " + strconv.FormatInt(limit, 10) + " bytes)"
	}
	WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", msg)
}

func writeDecodeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *requestBodyTooLargeError
	if errors.As(err, &tooLarge) {
		writePayloadTooLarge(w, tooLarge.Limit)
		return
	}
	writeInvalidArgument(w, err.Error())
}

// writeServiceError renders a *service.ServiceError with its mapped status.
// Anything else is reported as an opaque internal error.
func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.ServiceError
	if !errors.As(err, &svcErr) {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}
	status, ok := serviceErrorStatus[svcErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	WriteError(w, status, svcErr.Code, svcErr.Message)
}
