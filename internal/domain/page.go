package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Normalize fills defaults and caps the page size.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

// Bounds returns the [start, end) slice bounds of the page within total items.
func (p Page) Bounds(total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Normalize().Size
	if end > total {
		end = total
	}
	return start, end
}

// TotalPages returns how many pages of this size cover total items.
func (p Page) TotalPages(total int) int {
	size := p.Normalize().Size
	if total == 0 {
		return 0
	}
	return (total + size - 1) / size
}
