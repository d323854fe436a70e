package common

import (
	"net/http"
	"strconv"
	"strings"
)

const maxPerPage = 100

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// Page describes a requested slice of a list.
type Page struct {
	Number int
	Size   int
	Query  string
}

// Offset returns the zero-based row offset for the page.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Meta builds response pagination metadata for the page.
func (p Page) Meta(total int64) Pagination {
	return Pagination{Page: p.Number, PerPage: p.Size, TotalItems: int(total)}
}

// ParsePage reads ?page, ?limit and the free-text ?q parameter. Invalid or
// non-positive values fall back to page 1 and defaultPerPage; limit is capped
// at maxPerPage.
func ParsePage(r *http.Request, defaultPerPage int) Page {
	q := r.URL.Query()
	p := Page{
		Number: positiveInt(q.Get("page"), 1),
		Size:   min(positiveInt(q.Get("limit"), defaultPerPage), maxPerPage),
		Query:  strings.TrimSpace(q.Get("q")),
	}
	return p
}

func positiveInt(raw string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
		return n
	}
	return def
}
