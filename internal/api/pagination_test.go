package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"", 1, 50},
		{"page=3&per_page=25", 3, 25},
		{"per_page=500", 1, 200},
		{"page=2", 2, 50},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, err := ParsePagination(httptest.NewRequest(http.MethodGet, "/api/orders/suspicious?"+tt.query, nil))
			if err != nil {
				t.Fatalf("ParsePagination failed: %v", err)
			}
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("got page=%d per_page=%d, want %d and %d", p.Page, p.PerPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestParsePagination_Rejects(t *testing.T) {
	tests := []struct {
		query string
		field string
	}{
		{"page=0", "page"},
		{"page=-1", "page"},
		{"page=abc", "page"},
		{"per_page=0", "per_page"},
		{"page=1&per_page=ten", "per_page"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := ParsePagination(httptest.NewRequest(http.MethodGet, "/api/orders/suspicious?"+tt.query, nil))
			if err == nil || !strings.HasPrefix(err.Error(), tt.field+" ") {
				t.Errorf("expected error naming %s, got %v", tt.field, err)
			}
		})
	}
}

func TestPaginationParams_Offset(t *testing.T) {
	tests := []struct {
		page, perPage, want int
	}{
		{1, 50, 0},
		{2, 50, 50},
		{3, 25, 50},
		{10, 100, 900},
	}
	for _, tt := range tests {
		p := PaginationParams{Page: tt.page, PerPage: tt.perPage}
		if got := p.Offset(); got != tt.want {
			t.Errorf("Offset(page=%d, per_page=%d) = %d, want %d", tt.page, tt.perPage, got, tt.want)
		}
	}
}

func TestPaginationParams_TotalPages(t *testing.T) {
	tests := []struct {
		perPage int
		total   int64
		want    int
	}{
		{10, 100, 10},
		{10, 101, 11},
		{50, 30, 1},
		{50, 0, 0},
		{0, 100, 0},
	}
	for _, tt := range tests {
		p := PaginationParams{Page: 1, PerPage: tt.perPage}
		if got := p.TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) with per_page=%d = %d, want %d", tt.total, tt.perPage, got, tt.want)
		}
	}
}

func TestNewPaginatedResponse(t *testing.T) {
	resp := NewPaginatedResponse([]string{"a"}, PaginationParams{Page: 2, PerPage: 10}, 25)

	want := PaginationMeta{Page: 2, PerPage: 10, Total: 25, TotalPages: 3}
	if resp.Pagination != want {
		t.Errorf("Pagination = %+v, want %+v", resp.Pagination, want)
	}
}
