package index

// PageRequest selects a page: Page is zero-based, Size is the maximum number
// of elements returned.
type PageRequest struct {
	Page int
	Size int
}

// DefaultPageRequest is the first page of ten elements used by discovery.
var DefaultPageRequest = PageRequest{Page: 0, Size: 10}

// Page is a bounded, ordered view over a sequence of elements.
type Page[T any] struct {
	Content       []T
	Number        int
	Size          int
	TotalElements int
}

// NewPage returns the requested window of items, preserving their order.
// A non-positive size yields an empty page; a negative page index is treated
// as the first page.
func NewPage[T any](items []T, req PageRequest) Page[T] {
	page := Page[T]{
		Content:       []T{},
		Number:        req.Page,
		Size:          req.Size,
		TotalElements: len(items),
	}
	if req.Size <= 0 {
		return page
	}
	if req.Page < 0 {
		page.Number = 0
	}

	start := page.Number * req.Size
	if start >= len(items) {
		return page
	}
	end := start + req.Size
	if end > len(items) {
		end = len(items)
	}

	page.Content = append(page.Content, items[start:end]...)
	return page
}

// TotalPages returns the number of pages needed for all elements.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.TotalElements + p.Size - 1) / p.Size
}

// HasNext reports whether another page follows this one.
func (p Page[T]) HasNext() bool {
	return p.Number+1 < p.TotalPages()
}
