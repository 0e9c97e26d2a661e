package calendar

// Page is one page of items.
type Page[T any] struct {
	Items    []T
	Page     int // 1-based
	PageSize int
	HasNext  bool
	HasPrev  bool
	Total    int
}

const defaultPageSize = 10

// Paginate returns the items of the given page plus metadata. page counts
// from 1; non-positive page or pageSize fall back to defaults.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := min(start+pageSize, total)

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}
