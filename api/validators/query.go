package validators

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
)

func query(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func badQuery(key, msg string, extra ...any) error {
	details := map[string]any{"field": key}
	for i := 0; i+1 < len(extra); i += 2 {
		details[extra[i].(string)] = extra[i+1]
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt returns def when key is absent. A present value must parse
// and fall within [lo, hi].
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := query(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badQuery(key, "query parameter must be numeric")
	}
	if n < lo || n > hi {
		return 0, badQuery(key, "query parameter out of range", "min", lo, "max", hi)
	}
	return n, nil
}

// ParseQueryBool returns nil when key is absent so callers can tell "not
// filtered" from false.
func ParseQueryBool(r *http.Request, key string) (*bool, error) {
	raw := query(r, key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, badQuery(key, "query parameter must be a boolean")
	}
	return &b, nil
}

// ParseQueryCents reads a decimal amount such as "49.99" as cents, rounding
// half away from zero.
func ParseQueryCents(r *http.Request, key string) (*int64, error) {
	raw := query(r, key)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, badQuery(key, "query parameter must be a non-negative amount")
	}
	cents := d.Shift(2).Round(0).IntPart()
	return &cents, nil
}

// SanitizeString trims input and cuts it to at most maxLen bytes without
// splitting a UTF-8 sequence. maxLen <= 0 means no limit.
func SanitizeString(input string, maxLen int) string {
	s := strings.TrimSpace(input)
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	s = s[:maxLen]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
