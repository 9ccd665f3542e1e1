package lazypager

const (
	NoLimit = -1

	// FallbackPageSize is the number of rows IDByIndex fetches on a cache miss.
	FallbackPageSize = 100
	// DefaultMinFilterLength is the filter length a text must exceed before it
	// reaches the data source.
	DefaultMinFilterLength = 3

	MaxPageSize     = 1000
	DefaultPageSize = 50
)

// IsNormalizedPageSizeMax clamps size into (0, maxSize]. Non-positive sizes
// become DefaultPageSize. The flag is false when size had to be changed.
func IsNormalizedPageSizeMax(size int, maxSize int) (int, bool) {
	if size <= 0 {
		return min(DefaultPageSize, maxSize), false
	} else if size > maxSize {
		return maxSize, false
	}

	return size, true
}

func NormalizePageSizeMax(size int, maxSize int) int {
	ret, _ := IsNormalizedPageSizeMax(size, maxSize)
	return ret
}

func NormalizePageSize(size int) int {
	return NormalizePageSizeMax(size, MaxPageSize)
}
