// Package pagination reads page-number pagination from query strings.
package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Params is a resolved page request.
type Params struct {
	Page  int // 1-based
	Limit int
}

const (
	MaxLimit     = 100
	DefaultPage  = 1
	DefaultLimit = 20
	// MaxPage keeps (Page-1)*Limit far from integer overflow.
	MaxPage = 1_000_000
)

// ErrInvalidParam reports a page or limit value that is not an integer, or
// a page beyond MaxPage.
var ErrInvalidParam = errors.New("invalid pagination parameter")

// Parse reads "page" and "limit" from q. Missing or non-positive values
// fall back to the defaults and the limit is capped at MaxLimit.
func Parse(q url.Values) (Params, error) {
	params := Params{Page: DefaultPage, Limit: DefaultLimit}

	page, err := positiveInt(q, "page")
	if err != nil {
		return Params{}, err
	}
	if page > MaxPage {
		return Params{}, fmt.Errorf("%w: page must be at most %d", ErrInvalidParam, MaxPage)
	}
	if page > 0 {
		params.Page = page
	}

	limit, err := positiveInt(q, "limit")
	if err != nil {
		return Params{}, err
	}
	if limit > 0 {
		params.Limit = min(limit, MaxLimit)
	}
	return params, nil
}

// positiveInt returns 0 when key is absent or not positive.
func positiveInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParam, key, raw)
	}
	if n < 1 {
		return 0, nil
	}
	return n, nil
}
