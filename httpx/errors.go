package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/log"
)

var statusByKind = map[fault.Kind]int{
	fault.KindValidation:              http.StatusBadRequest,
	fault.KindMalformedRequest:        http.StatusBadRequest,
	fault.KindMissingRequiredAnswer:   http.StatusBadRequest,
	fault.KindUnauthorized:            http.StatusUnauthorized,
	fault.KindForbidden:               http.StatusForbidden,
	fault.KindQuotaExceeded:           http.StatusForbidden,
	fault.KindSubmissionLimitReached:  http.StatusForbidden,
	fault.KindNotAcceptingSubmissions: http.StatusForbidden,
	fault.KindNotFound:                http.StatusNotFound,
	fault.KindConflict:                http.StatusConflict,
	fault.KindRateLimited:             http.StatusTooManyRequests,
	fault.KindInternal:                http.StatusInternalServerError,
}

// StatusOf maps an error to the HTTP status it is reported with.
func StatusOf(err error) int {
	if status, ok := statusByKind[fault.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteFault sends err in the failure envelope. Internal errors are logged
// with the code of the failing step and reported with a generic message;
// their text is only exposed when debug is set.
func WriteFault(w http.ResponseWriter, r *http.Request, err error, debug bool) {
	fe := fault.As(err)
	status := StatusOf(fe)

	body := envelope{
		Kind:      fe.Kind,
		Message:   fe.Message,
		Timestamp: now(),
		Errors:    fe.Errors,
		Missing:   fe.Missing,
	}

	if fe.Kind == fault.KindInternal {
		LogInternalError(r, fe.Message, fe.Err)
		body.Message = http.StatusText(http.StatusInternalServerError)
		if debug && fe.Err != nil {
			body.Details = fe.Message + ": " + fe.Err.Error()
		}
	} else {
		log.WithFields(log.Fields{
			"kind":   fe.Kind,
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug(fe.Message)
	}

	if fe.Kind == fault.KindRateLimited {
		body.RetryAfter = fe.RetryAfter
		w.Header().Set("Retry-After", strconv.Itoa(fe.RetryAfter))
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

// Will log an internal error under code, with the request it happened on
func LogInternalError(r *http.Request, code string, err error) {
	log.WithError(err).WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Errorf("%s: %v", code, err)
}
