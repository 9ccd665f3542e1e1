package lazypager

import "slices"

// PageCache keeps the window of the most recent fetch, keyed by absolute row
// index. A new fetch replaces the window wholesale, nothing is merged.
type PageCache[T any] struct {
	start int
	items []T
}

// Get returns the item at the absolute index if it lies inside the window.
func (p *PageCache[T]) Get(idx int) (T, bool) {
	var zero T
	if p == nil || idx < p.start || idx >= p.start+len(p.items) {
		return zero, false
	}

	return p.items[idx-p.start], true
}

// Replace drops the current window and records items at start, start+1, ...
func (p *PageCache[T]) Replace(start int, items []T) {
	p.start = start
	p.items = slices.Clone(items)
}

func (p *PageCache[T]) Clear() {
	p.start = 0
	p.items = nil
}

func (p *PageCache[T]) Len() int {
	if p == nil {
		return 0
	}

	return len(p.items)
}

// Window returns the cached index range [start, end).
func (p *PageCache[T]) Window() (int, int) {
	if p == nil {
		return 0, 0
	}

	return p.start, p.start + len(p.items)
}

// Items returns the cached window in index order.
func (p *PageCache[T]) Items() []T {
	if p == nil {
		return nil
	}

	return slices.Clone(p.items)
}
