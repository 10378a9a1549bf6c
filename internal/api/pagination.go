package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// PaginationParams is a 1-based page request.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination reads ?page= and ?per_page=. Missing values default to the
// first page of 50; per_page above 200 is clamped. Anything that is not a
// positive integer is an error.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	q := r.URL.Query()
	page, err := positiveQueryInt(q.Get("page"), "page", 1)
	if err != nil {
		return PaginationParams{}, err
	}
	perPage, err := positiveQueryInt(q.Get("per_page"), "per_page", defaultPerPage)
	if err != nil {
		return PaginationParams{}, err
	}
	return PaginationParams{Page: page, PerPage: min(perPage, maxPerPage)}, nil
}

func positiveQueryInt(raw, name string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// Offset returns the row offset of the first item on the page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages returns how many pages total rows span.
func (p PaginationParams) TotalPages(total int64) int {
	if p.PerPage <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// NewPaginatedResponse wraps one page of data with its pagination metadata.
func NewPaginatedResponse(data interface{}, p PaginationParams, total int64) PaginatedResponse {
	return PaginatedResponse{
		Data: data,
		Pagination: PaginationMeta{
			Page:       p.Page,
			PerPage:    p.PerPage,
			Total:      total,
			TotalPages: p.TotalPages(total),
		},
	}
}
