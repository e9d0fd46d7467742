// internal/app/system/paging/paging.go
package paging

import (
	"math"
	"strconv"
	"strings"
)

// DefaultLimit is the page size used when the caller does not ask for one.
const DefaultLimit = 20

// MaxLimit caps the page size a caller can request.
const MaxLimit = 100

// Window describes one page of a page-number paginated list.
type Window struct {
	Page  int   // 1-based page number
	Limit int   // page size
	Skip  int64 // documents skipped before this page
	Total int64 // total matching documents
	Pages int   // ceil(Total / Limit); 0 when Total is 0
}

// NewWindow computes skip and page count for the given total.
// page and limit must already be normalized (see ParsePage and ParseLimit).
// Skip saturates so that Skip+Limit never overflows int64.
func NewWindow(total int64, page, limit int) Window {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	pages := 0
	if total > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	skip := int64(math.MaxInt64) - int64(limit)
	if int64(page-1) <= skip/int64(limit) {
		skip = int64(page-1) * int64(limit)
	}
	return Window{
		Page:  page,
		Limit: limit,
		Skip:  skip,
		Total: total,
		Pages: pages,
	}
}

// Beyond reports whether the window starts after the last document.
func (w Window) Beyond() bool {
	return w.Skip >= w.Total
}

// Slice returns the part of rows that falls inside the window.
// A skip past the end yields an empty (non-nil) slice.
func Slice[T any](rows []T, w Window) []T {
	if w.Skip < 0 || w.Skip >= int64(len(rows)) {
		return []T{}
	}
	end := w.Skip + int64(w.Limit)
	if end > int64(len(rows)) {
		end = int64(len(rows))
	}
	return rows[w.Skip:end]
}

// ParsePage reads a 1-based page number. Missing, non-numeric or
// non-positive values fall back to 1.
func ParsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParseLimit reads a page size. Missing, non-numeric or non-positive values
// fall back to DefaultLimit; larger values are capped at MaxLimit.
func ParseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
