package shared

// Pagination describes one page of a listing. Page is zero-based.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	// From and To are the one-based bounds shown as "From–To of Total".
	From int
	To   int
}

// DefaultPerPage is used when a non-positive page size is requested.
const DefaultPerPage = 10

// NewPagination computes pagination metadata. The page is not clamped to the
// last page: an out of range cursor yields an empty slice, like the table
// control it backs.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 0 {
		page = 0
	}
	if total < 0 {
		total = 0
	}
	totalPages := (total + perPage - 1) / perPage
	p := Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
	start, end := p.Bounds()
	if start < end {
		p.From = start + 1
		p.To = end
	}
	return p
}

// Bounds returns the half-open slice range [start, end) of the page.
// Pages past the end yield an empty range without overflowing.
func (p Pagination) Bounds() (int, int) {
	if p.PerPage <= 0 || p.Page < 0 || p.Page > p.Total/p.PerPage {
		return p.Total, p.Total
	}
	start := p.Page * p.PerPage
	end := p.Total
	if p.Total-start > p.PerPage {
		end = start + p.PerPage
	}
	return start, end
}

// Shown returns the number of rows on the page.
func (p Pagination) Shown() int {
	start, end := p.Bounds()
	return end - start
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 0 }

// HasNext reports whether a next page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages-1 }

// PrevPage returns the previous page index.
func (p Pagination) PrevPage() int { return p.Page - 1 }

// NextPage returns the next page index.
func (p Pagination) NextPage() int { return p.Page + 1 }

// Number returns the one-based page number for display.
func (p Pagination) Number() int { return p.Page + 1 }
