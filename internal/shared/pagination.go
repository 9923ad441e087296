package shared

// DefaultPerPage matches the upstream API's page size when meta omits it.
const DefaultPerPage = 10

// Pagination describes one page of an upstream listing for the pager partial.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination builds pager state from the upstream meta block.
func NewPagination(page, perPage, total int) Pagination {
	p := Pagination{Page: max(page, 1), PerPage: perPage, Total: max(total, 0)}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	p.TotalPages = (p.Total + p.PerPage - 1) / p.PerPage
	return p
}

func (p Pagination) HasPrev() bool { return p.Page > 1 }

func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

func (p Pagination) PrevPage() int { return max(p.Page-1, 1) }

// NextPage stays on the current page once the last one is reached.
func (p Pagination) NextPage() int {
	if p.HasNext() {
		return p.Page + 1
	}
	return p.Page
}

// FirstItem and LastItem give the 1-based row range shown on this page,
// both zero for an empty listing.
func (p Pagination) FirstItem() int {
	if p.Total == 0 {
		return 0
	}
	return min((p.Page-1)*p.PerPage+1, p.Total)
}

func (p Pagination) LastItem() int {
	return min(p.Page*p.PerPage, p.Total)
}
