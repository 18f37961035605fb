package square

import (
	"encoding/json"
	"errors"
	"net/http"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
)

// mapError turns an SDK failure into a domain error. The HTTP status picks
// the code, then a reused idempotency key or an auth category in the
// response body overrides it.
func mapError(err error, op string) error {
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	code := codeForStatus(apiErr.StatusCode)
	for _, e := range apiErrors(apiErr) {
		if e == nil {
			continue
		}
		if e.Code == sq.ErrorCodeIdempotencyKeyReused {
			code = pkgerrors.CodeIdempotency
			break
		}
		if e.Category == sq.ErrorCategoryAuthenticationError {
			code = pkgerrors.CodeUnauthorized
			break
		}
	}
	return pkgerrors.Wrap(code, err, msg)
}

// apiErrors decodes the {"errors":[...]} body the SDK keeps as the wrapped
// error's text.
func apiErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	return body.Errors
}

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}
