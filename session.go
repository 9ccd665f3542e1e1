package lazypager

import "slices"

// Session holds everything a LazyCollection mutates while serving a view:
// search criteria, the sort specification, the page cache and the string
// filters the view has signalled. The caller owns it and may share one
// session between collections that serve the same view sequentially.
//
// A Session is not safe for concurrent use.
type Session[T any] struct {
	criteria *SearchCriteria
	sort     Orderings
	cache    PageCache[T]

	// filters are the active view filters. filtered is raised every time the
	// view signals them and dropped once a filtered fetch consumed them.
	filters  []StringFilter
	filtered bool
}

// NewSession creates a session around the given criteria. Nil criteria start
// from scratch.
func NewSession[T any](criteria *SearchCriteria) *Session[T] {
	if criteria == nil {
		criteria = NewSearchCriteria()
	}

	return &Session[T]{
		criteria: criteria,
	}
}

func (s *Session[T]) Criteria() *SearchCriteria {
	if s == nil {
		return nil
	}

	return s.criteria
}

// Sort returns the current sort specification.
func (s *Session[T]) Sort() Orderings {
	if s == nil {
		return nil
	}

	return slices.Clone(s.sort)
}

func (s *Session[T]) Cache() *PageCache[T] {
	if s == nil {
		return nil
	}

	return &s.cache
}

// ActiveFilters returns the filters last passed to SetFilters.
func (s *Session[T]) ActiveFilters() []StringFilter {
	if s == nil {
		return nil
	}

	return slices.Clone(s.filters)
}

// IsFiltered returns true while signalled filters wait to be applied.
func (s *Session[T]) IsFiltered() bool {
	return s != nil && s.filtered
}

// SetFilters replaces the active filters and signals them. The stored count
// and the cached page no longer describe the view, so both are invalidated.
// Calling it without filters removes filtering.
func (s *Session[T]) SetFilters(filters ...StringFilter) {
	s.filters = slices.Clone(filters)
	s.filtered = len(filters) > 0
	if !s.filtered {
		s.criteria.clearFilters()
	}

	s.criteria.MarkDirty()
	s.cache.Clear()
}

// Refilter signals the active filters again after a fetch consumed them.
func (s *Session[T]) Refilter() {
	s.filtered = len(s.filters) > 0
}

func (s *Session[T]) RemoveAllFilters() {
	s.SetFilters()
}

// Reset drops the cached page and forces a recount, keeping filters and sort.
func (s *Session[T]) Reset() {
	s.cache.Clear()
	s.criteria.MarkDirty()
}

// consumeFilter clears the applied filter after a filtered fetch. It stays
// off until the view signals it again, and the filtered count goes stale.
func (s *Session[T]) consumeFilter() {
	s.criteria.clearFilters()
	s.criteria.MarkDirty()
	s.filtered = false
}

func (s *Session[T]) setSort(sort Orderings) {
	s.sort = sort
	s.cache.Clear()
}
