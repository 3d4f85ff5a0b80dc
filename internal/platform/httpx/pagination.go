package httpx

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
	Total int `json:"-"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, limit, total int) Pagination {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if page <= 0 {
		page = 1
	}
	pages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{Page: page, Limit: limit, Pages: pages, Total: total}
}

// PageParams reads page and limit query parameters. Out of range values are
// reported so the caller can answer with a validation error.
func PageParams(q url.Values) (page, limit int, err error) {
	page, limit = 1, DefaultLimit
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, &ValidationError{Fields: []FieldError{{Field: "page", Message: "page must be a positive integer"}}}
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return 0, 0, &ValidationError{Fields: []FieldError{{Field: "limit", Message: "limit must be between 1 and 100"}}}
		}
	}
	return page, limit, nil
}

// Offset converts a page/limit pair into a row offset.
func Offset(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}
