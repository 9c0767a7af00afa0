// Package page holds the pagination envelope returned with every search.
package page

// Envelope describes where a page sits within the full result set.
type Envelope struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	HasMore    bool
}

// New computes an envelope. pageSize below 1 is treated as 1.
func New(page, pageSize, total int) Envelope {
	if pageSize < 1 {
		pageSize = 1
	}
	if total < 0 {
		total = 0
	}
	totalPages := (total + pageSize - 1) / pageSize
	return Envelope{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}

// Bounds returns the half-open slice range of page within n items.
func Bounds(page, pageSize, n int) (start, end int) {
	if page < 1 || pageSize < 1 || n <= 0 {
		return 0, 0
	}
	// Past the last page; also keeps (page-1)*pageSize from overflowing.
	if page-1 > (n-1)/pageSize {
		return n, n
	}
	start = (page - 1) * pageSize
	end = start + pageSize
	if end > n {
		end = n
	}
	return start, end
}
