package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/fault"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// pagination reads page and limit from the query string. Anything missing or
// unparsable falls back to the defaults, out of range values are clamped.
func pagination(r *http.Request) (page, limit int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err = strconv.Atoi(r.URL.Query().Get("limit"))
	switch {
	case err != nil || limit == 0:
		limit = defaultLimit
	case limit < 1:
		limit = 1
	case limit > maxLimit:
		limit = maxLimit
	}
	return page, limit
}

func decodeBody(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fault.Wrap(fault.KindMalformedRequest, "Request body too large", err)
		}
		return fault.Wrap(fault.KindMalformedRequest, "Invalid request body", err)
	}
	return nil
}

// caller is only empty on routes not behind middlewares.Authenticate.
func caller(r *http.Request) access.Identity {
	id, _ := access.FromContext(r.Context())
	return id
}
