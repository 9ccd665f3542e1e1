package lazypager

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// LazyCollection serves "how many items" and "items N..N+k" requests of a
// grid style consumer by querying a DataAccessObject page by page. The most
// recent page is cached so random access inside it costs no round trip.
//
// All mutable state lives in the Session. A LazyCollection is not safe for
// concurrent use, callers serialize access the way a UI event loop does.
type LazyCollection[T any] struct {
	dao     DataAccessObject[T]
	session *Session[T]

	minFilterLength int
	combination     FilterCombination
	alwaysContains  bool
	identity        func(T) any
	identitySet     bool
	logger          *zap.Logger
}

// New creates a collection over dao. A nil session starts an empty one.
func New[T any](dao DataAccessObject[T], session *Session[T]) *LazyCollection[T] {
	if session == nil {
		session = NewSession[T](nil)
	}

	if session.criteria == nil {
		session.criteria = NewSearchCriteria()
	}

	return &LazyCollection[T]{
		dao:             dao,
		session:         session,
		minFilterLength: DefaultMinFilterLength,
		combination:     CombineAll,
		identity:        func(item T) any { return item },
		logger:          zap.NewNop(),
	}
}

// WithMinFilterLength sets the length a filter text must exceed before it is
// forwarded to the data source.
func (c *LazyCollection[T]) WithMinFilterLength(length int) *LazyCollection[T] {
	c.SetMinFilterLength(length)

	return c
}

// WithFilterCombination sets how several active filters are combined.
func (c *LazyCollection[T]) WithFilterCombination(combination FilterCombination) *LazyCollection[T] {
	c.combination = combination

	return c
}

// WithAlwaysContains makes ContainsID report every item as present. Some UI
// toolkits only fire selection events for items the container claims to hold.
func (c *LazyCollection[T]) WithAlwaysContains() *LazyCollection[T] {
	c.alwaysContains = true

	return c
}

// WithIdentity sets the key ContainsID compares cached items by.
//
// The default key is the item itself. For non-comparable types (maps, slices)
// ContainsID fails with ErrNotComparable until a key getter is set.
func (c *LazyCollection[T]) WithIdentity(key func(T) any) *LazyCollection[T] {
	if key != nil {
		c.identity = key
		c.identitySet = true
	}

	return c
}

func (c *LazyCollection[T]) WithLogger(logger *zap.Logger) *LazyCollection[T] {
	c.logger = lo.Ternary(logger != nil, logger, zap.NewNop())

	return c
}

func (c *LazyCollection[T]) Session() *Session[T] {
	if c == nil {
		return nil
	}

	return c.session
}

func (c *LazyCollection[T]) MinFilterLength() int {
	if c == nil {
		return DefaultMinFilterLength
	}

	return c.minFilterLength
}

func (c *LazyCollection[T]) SetMinFilterLength(length int) {
	c.minFilterLength = length
}

// Size returns the number of items matching the current criteria. The count
// stored in the criteria is reused unless it is zero, dirty, or a filter is
// being applied.
func (c *LazyCollection[T]) Size(ctx context.Context) (int, error) {
	c.normalizeFilters()

	criteria := c.session.criteria
	if criteria.needsRecount(c.session.filtered) {
		count, err := c.dao.Count(ctx, criteria)
		if err != nil {
			return 0, fmt.Errorf("cannot count items: %w", err)
		}

		criteria.storeCount(count)
		c.logger.Debug("items recounted",
			zap.Int("count", count),
			zap.Bool("filtered", criteria.HasFilter()),
		)
	}

	return criteria.lastCount, nil
}

// ItemIDs returns count items starting at absolute offset start, fewer if the
// result set ends earlier. The returned window replaces the page cache.
//
// A signalled filter is applied to one fetch only. Later fetches go unfiltered
// until the filter is signalled again with SetFilters or Session.Refilter.
// Consuming the filter marks the criteria dirty, so the next Size counts the
// unfiltered rows the next fetch returns.
func (c *LazyCollection[T]) ItemIDs(ctx context.Context, start, count int) ([]T, error) {
	if start < 0 || count < 0 {
		return nil, fmt.Errorf("%w: start %d, count %d", ErrInvalidRange, start, count)
	}

	c.normalizeFilters()

	s := c.session
	applied := s.filtered && s.criteria.HasFilter()

	items, err := c.dao.Find(ctx, s.criteria, start, count, s.Sort())
	if err != nil {
		return nil, fmt.Errorf("cannot fetch items [%d, %d): %w", start, start+count, err)
	}

	if applied {
		s.consumeFilter()
		c.logger.Debug("filter consumed", zap.Int("start", start))
	}

	s.cache.Replace(start, items)
	c.logger.Debug("page fetched",
		zap.Int("start", start),
		zap.Int("requested", count),
		zap.Int("fetched", len(items)),
		zap.Bool("filtered", applied),
	)

	return items, nil
}

// IDByIndex returns the item at the absolute index. Items inside the cached
// window are served without a round trip, a miss fetches FallbackPageSize
// items starting at idx.
func (c *LazyCollection[T]) IDByIndex(ctx context.Context, idx int) (T, error) {
	var zero T

	if item, ok := c.session.cache.Get(idx); ok {
		return item, nil
	}

	c.logger.Debug("page cache miss", zap.Int("index", idx))

	items, err := c.ItemIDs(ctx, idx, FallbackPageSize)
	if err != nil {
		return zero, err
	}

	if len(items) == 0 {
		return zero, fmt.Errorf("%w: %d", ErrIndexOutOfRange, idx)
	}

	return items[0], nil
}

// Sort replaces the sort specification: fields[i] is sorted ascending when
// ascending[i] is true. On error the previous specification stays.
func (c *LazyCollection[T]) Sort(fields []string, ascending []bool) error {
	orderings, err := NewOrderings(fields, ascending)
	if err != nil {
		return fmt.Errorf("cannot sort: %w", err)
	}

	return c.SortBy(orderings...)
}

// SortBy replaces the sort specification with orderBy, kept exactly as given.
// Fields are opaque here: the data source maps, validates and deduplicates
// them.
func (c *LazyCollection[T]) SortBy(orderBy ...OrderBy) error {
	for _, ordering := range orderBy {
		if !ordering.Direction.Valid() {
			return fmt.Errorf("cannot sort: invalid ordering direction '%s'", ordering.Direction)
		}
	}

	c.session.setSort(slices.Clone(Orderings(orderBy)))

	return nil
}

// ContainsID reports whether item belongs to the collection. The cached page
// is checked first, then the data source if it implements MembershipChecker.
func (c *LazyCollection[T]) ContainsID(ctx context.Context, item T) (bool, error) {
	if c.alwaysContains {
		return true, nil
	}

	if !c.identitySet && !reflect.TypeFor[T]().Comparable() {
		return false, fmt.Errorf("%w: %s", ErrNotComparable, reflect.TypeFor[T]())
	}

	key := c.identity(item)
	cached := lo.ContainsBy(c.session.cache.items, func(candidate T) bool {
		return c.identity(candidate) == key
	})
	if cached {
		return true, nil
	}

	checker, ok := c.dao.(MembershipChecker[T])
	if !ok {
		return false, nil
	}

	found, err := checker.Contains(ctx, c.session.criteria, item)
	if err != nil {
		return false, fmt.Errorf("cannot check membership: %w", err)
	}

	return found, nil
}

// SetFilters replaces the active string filters, see Session.SetFilters.
func (c *LazyCollection[T]) SetFilters(filters ...StringFilter) {
	c.session.SetFilters(filters...)
}

func (c *LazyCollection[T]) RemoveAllFilters() {
	c.session.RemoveAllFilters()
}

// IsFiltered returns true while signalled filters wait to be applied.
func (c *LazyCollection[T]) IsFiltered() bool {
	return c.session.IsFiltered()
}

// normalizeFilters copies the active filters that pass the length threshold
// into the criteria. Nothing happens unless a filter is signalled.
func (c *LazyCollection[T]) normalizeFilters() {
	s := c.session
	if !s.filtered {
		return
	}

	s.criteria.setFilters(NormalizeFilters(s.filters, c.minFilterLength, c.combination))
}
