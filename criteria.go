package lazypager

import (
	"slices"

	"github.com/samber/lo"
)

// SearchCriteria is the query state shared between a LazyCollection and its
// data source: the effective filters, the last known total count and a dirty
// flag. LastCount is meaningful only while the criteria are not dirty.
//
// Criteria are mutated by the collection on every size and paging call.
type SearchCriteria struct {
	filters   []StringFilter
	lastCount int
	dirty     bool
}

func NewSearchCriteria() *SearchCriteria {
	return new(SearchCriteria)
}

// Filters returns the effective filters the data source must apply, all of
// them combined with AND.
func (c *SearchCriteria) Filters() []StringFilter {
	if c == nil {
		return nil
	}

	return slices.Clone(c.filters)
}

// FilterString returns the text of the last effective filter. Data sources
// that support a single search box use it instead of Filters.
func (c *SearchCriteria) FilterString() (string, bool) {
	if c == nil || len(c.filters) == 0 {
		return "", false
	}

	return lo.LastOrEmpty(c.filters).Text, true
}

// HasFilter returns true if at least one effective filter is set.
func (c *SearchCriteria) HasFilter() bool {
	return c != nil && len(c.filters) > 0
}

// LastCount returns the total count stored by the last recount.
func (c *SearchCriteria) LastCount() int {
	if c == nil {
		return 0
	}

	return c.lastCount
}

// IsDirty returns true if the stored count is stale.
func (c *SearchCriteria) IsDirty() bool {
	return c != nil && c.dirty
}

// MarkDirty forces the next Size call to recount.
func (c *SearchCriteria) MarkDirty() {
	if c != nil {
		c.dirty = true
	}
}

func (c *SearchCriteria) setFilters(filters []StringFilter) {
	c.filters = filters
}

func (c *SearchCriteria) clearFilters() {
	if c != nil {
		c.filters = nil
	}
}

func (c *SearchCriteria) storeCount(count int) {
	c.lastCount = count
	c.dirty = false
}

// needsRecount reports whether the cached count cannot be trusted. A zero
// count is indistinguishable from "never counted", so empty result sets are
// recounted on every call.
func (c *SearchCriteria) needsRecount(filtered bool) bool {
	return c.lastCount == 0 || c.dirty || (filtered && c.HasFilter())
}
