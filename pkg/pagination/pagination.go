package pagination

const (
	// DefaultSize is the page size used when none is provided.
	DefaultSize = 10
	// MaxSize caps how many rows a single page may request.
	MaxSize = 100
)

// Params holds zero based page inputs.
type Params struct {
	Page int
	Size int
}

// Normalize clamps the page to zero or above and the size into [1, MaxSize].
func Normalize(p Params) Params {
	if p.Page < 0 {
		p.Page = 0
	}
	p.Size = NormalizeSize(p.Size)
	return p
}

// NormalizeSize enforces the default and maximum page sizes.
func NormalizeSize(size int) int {
	if size <= 0 {
		return DefaultSize
	}
	if size > MaxSize {
		return MaxSize
	}
	return size
}

// Page is one slice of a server side listing.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Size          int `json:"size"`
	Number        int `json:"number"`
}

// HasNext reports whether another page follows this one.
func (p Page[T]) HasNext() bool {
	return p.Number+1 < p.TotalPages
}
