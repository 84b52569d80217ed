// Package listutil narrows, orders and pages the client list shown to staff.
// The backend returns every client at once, so the work happens in memory.
package listutil

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"crmpilates/internal/domain/client"
)

// DefaultPerPage is the default number of rows per page.
const DefaultPerPage = 20

// PerPageOptions are the allowed rows-per-page values.
var PerPageOptions = []int{10, 20, 50, 100}

// Sort columns. A credits column is "credits_" followed by a subject.
const (
	SortLastname  = "lastname"
	SortFirstname = "firstname"
	creditsPrefix = "credits_"
)

// Query is a parsed list request.
type Query struct {
	Search  string // matched against the full name, case-insensitively
	Sort    string
	Desc    bool
	Page    int // 1-indexed
	PerPage int
}

// ParseQuery reads q, sort, dir, page and per_page.
// POST: Sort is a known column; Page >= 1; PerPage is one of PerPageOptions
func ParseQuery(v url.Values) Query {
	q := Query{
		Search: strings.TrimSpace(v.Get("q")),
		Sort:   SortLastname,
		Desc:   v.Get("dir") == "desc",
	}
	if col := v.Get("sort"); validColumn(col) {
		q.Sort = col
	}
	q.Page, _ = strconv.Atoi(v.Get("page"))
	if q.Page < 1 {
		q.Page = 1
	}
	q.PerPage, _ = strconv.Atoi(v.Get("per_page"))
	if !slices.Contains(PerPageOptions, q.PerPage) {
		q.PerPage = DefaultPerPage
	}
	return q
}

func validColumn(col string) bool {
	switch col {
	case SortLastname, SortFirstname:
		return true
	}
	subject, ok := strings.CutPrefix(col, creditsPrefix)
	return ok && client.Subject(subject).Valid()
}

// Values encodes q back to query parameters, omitting defaults.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Sort != SortLastname {
		v.Set("sort", q.Sort)
	}
	if q.Desc {
		v.Set("dir", "desc")
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage != DefaultPerPage {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	return v
}

// SortURL returns the link of a column header: ascending on a new column,
// flipped on the current one, always back to the first page.
func (q Query) SortURL(path, col string) string {
	next := q
	next.Page = 1
	if q.Sort == col {
		next.Desc = !q.Desc
	} else {
		next.Sort, next.Desc = col, false
	}
	return withQuery(path, next.Values())
}

// PageURL returns the link to page n with the same search and order.
func (q Query) PageURL(path string, n int) string {
	next := q
	next.Page = n
	return withQuery(path, next.Values())
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// PageInfo carries pagination metadata for rendering.
type PageInfo struct {
	Page       int
	PerPage    int
	Total      int // matching rows
	TotalPages int
}

// Apply filters, sorts and pages clients. The input is not modified.
// POST: len(result) <= q.PerPage; info.Page is clamped to [1, TotalPages]
func Apply(clients []client.Client, q Query) ([]client.Client, PageInfo) {
	needle := strings.ToLower(q.Search)
	matched := make([]client.Client, 0, len(clients))
	for _, c := range clients {
		if needle == "" || strings.Contains(strings.ToLower(c.FullName()), needle) {
			matched = append(matched, c)
		}
	}

	slices.SortStableFunc(matched, func(a, b client.Client) int {
		r := compare(a, b, q.Sort)
		if r == 0 {
			r = cmp.Compare(a.ID, b.ID)
		}
		if q.Desc {
			return -r
		}
		return r
	})

	info := NewPageInfo(q.Page, q.PerPage, len(matched))
	start := info.Offset()
	end := min(start+info.PerPage, len(matched))
	return matched[start:end], info
}

func compare(a, b client.Client, col string) int {
	switch col {
	case SortFirstname:
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Firstname), strings.ToLower(b.Firstname)),
			cmp.Compare(strings.ToLower(a.Lastname), strings.ToLower(b.Lastname)))
	case SortLastname:
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Lastname), strings.ToLower(b.Lastname)),
			cmp.Compare(strings.ToLower(a.Firstname), strings.ToLower(b.Firstname)))
	}
	subject := client.Subject(strings.TrimPrefix(col, creditsPrefix))
	return cmp.Compare(a.CreditsFor(subject), b.CreditsFor(subject))
}

// NewPageInfo computes pagination metadata.
// POST: TotalPages >= 1; Page clamped to [1, TotalPages]
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	return PageInfo{
		Page:       min(max(page, 1), totalPages),
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset returns the index of the first row of the page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// StartRow returns the 1-indexed first row number, or 0 when empty.
func (p PageInfo) StartRow() int {
	if p.Total == 0 {
		return 0
	}
	return p.Offset() + 1
}

// EndRow returns the 1-indexed last row number on the page.
func (p PageInfo) EndRow() int {
	return min(p.Offset()+p.PerPage, p.Total)
}

// PageNumbers returns at most 5 page numbers centered on the current page.
func (p PageInfo) PageNumbers() []int {
	const maxButtons = 5
	start := max(p.Page-maxButtons/2, 1)
	end := start + maxButtons - 1
	if end > p.TotalPages {
		end = p.TotalPages
		start = max(end-maxButtons+1, 1)
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// ShowPagination reports whether there is more than one page.
func (p PageInfo) ShowPagination() bool {
	return p.Total > p.PerPage
}
