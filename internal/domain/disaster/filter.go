package disaster

import (
	"fmt"
	"math"
	"strings"

	"disasterwatch/internal/errs"
)

type TagMatchMode string

const (
	TagMatchAny TagMatchMode = "any"
	TagMatchAll TagMatchMode = "all"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// ParseTagMatchMode defaults to TagMatchAny when raw is blank.
func ParseTagMatchMode(raw string) (TagMatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(TagMatchAny):
		return TagMatchAny, nil
	case string(TagMatchAll):
		return TagMatchAll, nil
	default:
		return "", errs.Mark(errs.ErrValidation, nil, fmt.Sprintf("tagsMatchMode must be %q or %q", TagMatchAny, TagMatchAll))
	}
}

// Page is a 1-indexed page window.
type Page struct {
	Number  int
	PerPage int
}

// NewPage applies defaults: page 1 and DefaultPerPage for non-positive input.
// perPage is capped at MaxPerPage.
func NewPage(number int, perPage int) Page {
	if number <= 0 {
		number = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Page{Number: number, PerPage: perPage}
}

// Offset is the number of rows before the page. ok is false when the page
// starts past any representable row.
func (p Page) Offset() (offset int, ok bool) {
	if p.Number-1 > (math.MaxInt-p.PerPage)/p.PerPage {
		return 0, false
	}
	return (p.Number - 1) * p.PerPage, true
}

type PageInfo struct {
	CurrentPage  int  `json:"current_page"`
	PerPage      int  `json:"per_page"`
	HasMorePages bool `json:"has_more_pages"`
	TotalCount   int  `json:"total_count"`
}

// Window trims rows fetched with one extra look-ahead row down to the page
// and reports whether more rows exist past it.
func Window[T any](rows []T, page Page) ([]T, PageInfo) {
	hasMore := len(rows) > page.PerPage
	if hasMore {
		rows = rows[:page.PerPage]
	}
	return rows, PageInfo{
		CurrentPage:  page.Number,
		PerPage:      page.PerPage,
		HasMorePages: hasMore,
		TotalCount:   len(rows),
	}
}
