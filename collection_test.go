package lazypager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type row = map[string]any

type tFindCall struct {
	filter    string
	hasFilter bool
	start     int
	limit     int
	orderBy   Orderings
}

// tRecordingDAO serves rows from memory and records every call. It does not
// filter: tests only look at what the collection forwarded.
type tRecordingDAO struct {
	rows       []string
	count      int
	countCalls int
	finds      []tFindCall
	countErr   error
	findErr    error
}

func newRecordingDAO(n int) *tRecordingDAO {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf("item-%d", i)
	}

	return &tRecordingDAO{rows: rows, count: n}
}

func (d *tRecordingDAO) Count(_ context.Context, _ *SearchCriteria) (int, error) {
	d.countCalls++
	if d.countErr != nil {
		return 0, d.countErr
	}

	return d.count, nil
}

func (d *tRecordingDAO) Find(_ context.Context, criteria *SearchCriteria, start, limit int, orderBy Orderings) ([]string, error) {
	filter, hasFilter := criteria.FilterString()
	d.finds = append(d.finds, tFindCall{
		filter:    filter,
		hasFilter: hasFilter,
		start:     start,
		limit:     limit,
		orderBy:   orderBy,
	})
	if d.findErr != nil {
		return nil, d.findErr
	}

	if start >= len(d.rows) {
		return nil, nil
	}

	return slices.Clone(d.rows[start:min(start+limit, len(d.rows))]), nil
}

func Test_LazyCollection_Size_UsesCachedCount(t *testing.T) {
	dao := newRecordingDAO(10)
	criteria := NewSearchCriteria()
	criteria.lastCount = 5
	criteria.dirty = false

	c := New[string](dao, NewSession[string](criteria))

	size, err := c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, size)
	require.Zero(t, dao.countCalls)
}

func Test_LazyCollection_Size_DirtyRecountsOnce(t *testing.T) {
	dao := newRecordingDAO(10)
	criteria := NewSearchCriteria()
	criteria.lastCount = 5
	criteria.MarkDirty()

	c := New[string](dao, NewSession[string](criteria))

	size, err := c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, size)
	require.Equal(t, 1, dao.countCalls)
	require.False(t, criteria.IsDirty())

	size, err = c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, size)
	require.Equal(t, 1, dao.countCalls, "clean count must be reused")
}

func Test_LazyCollection_Size_ZeroCountIsRequeried(t *testing.T) {
	dao := newRecordingDAO(0)
	c := New[string](dao, nil)

	for range 3 {
		size, err := c.Size(context.Background())
		require.NoError(t, err)
		require.Zero(t, size)
	}
	require.Equal(t, 3, dao.countCalls)
}

func Test_LazyCollection_Size_ShortFilterCountsOnce(t *testing.T) {
	dao := newRecordingDAO(7)
	c := New[string](dao, nil)
	c.SetFilters(StringFilter{Text: "ab"})

	size, err := c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, size)
	require.Equal(t, 1, dao.countCalls)

	criteria := c.Session().Criteria()
	require.False(t, criteria.IsDirty())
	require.False(t, criteria.HasFilter(), "a 2 rune filter never reaches the data source")

	_, err = c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, dao.countCalls)
}

func Test_LazyCollection_Size_ActiveFilterAlwaysRecounts(t *testing.T) {
	dao := newRecordingDAO(7)
	c := New[string](dao, nil)
	c.SetFilters(StringFilter{Text: "abcdef"})

	for range 2 {
		_, err := c.Size(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 2, dao.countCalls)

	filter, ok := c.Session().Criteria().FilterString()
	require.True(t, ok)
	require.Equal(t, "abcdef", filter)
}

func Test_LazyCollection_Size_CountError(t *testing.T) {
	boom := errors.New("db down")
	dao := newRecordingDAO(3)
	dao.countErr = boom

	criteria := NewSearchCriteria()
	criteria.lastCount = 4
	criteria.MarkDirty()
	c := New[string](dao, NewSession[string](criteria))

	_, err := c.Size(context.Background())
	require.ErrorIs(t, err, boom)
	require.True(t, criteria.IsDirty())
	require.Equal(t, 4, criteria.LastCount())
}

func Test_LazyCollection_ItemIDs_FilterIsAppliedOnce(t *testing.T) {
	dao := newRecordingDAO(50)
	c := New[string](dao, nil)
	c.SetFilters(StringFilter{Text: "abcdef"})
	require.True(t, c.IsFiltered())

	_, err := c.ItemIDs(context.Background(), 0, 20)
	require.NoError(t, err)
	require.False(t, c.IsFiltered())

	_, err = c.ItemIDs(context.Background(), 0, 20)
	require.NoError(t, err)

	require.Equal(t, []tFindCall{
		{filter: "abcdef", hasFilter: true, start: 0, limit: 20, orderBy: Orderings{}},
		{filter: "", hasFilter: false, start: 0, limit: 20, orderBy: Orderings{}},
	}, normalizeCalls(dao.finds))

	c.Session().Refilter()
	_, err = c.ItemIDs(context.Background(), 20, 20)
	require.NoError(t, err)
	require.Equal(t, "abcdef", dao.finds[2].filter, "re-signalled filter applies again")
}

func Test_LazyCollection_ItemIDs_ConsumedFilterRecounts(t *testing.T) {
	dao := newRecordingDAO(100)
	c := New[string](dao, nil)
	c.SetFilters(StringFilter{Text: "abcdef"})

	dao.count = 2
	size, err := c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, size)

	_, err = c.ItemIDs(context.Background(), 0, 20)
	require.NoError(t, err)
	require.True(t, c.Session().Criteria().IsDirty())

	dao.count = 100
	size, err = c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100, size, "size follows the unfiltered rows of the next fetch")
	require.Equal(t, 2, dao.countCalls)
}

func Test_LazyCollection_ZeroValueSession(t *testing.T) {
	dao := newRecordingDAO(4)
	session := &Session[string]{}
	session.SetFilters(StringFilter{Text: "abcdef"})
	session.RemoveAllFilters()

	c := New[string](dao, session)

	size, err := c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, size)
	require.NotNil(t, session.Criteria())
}

func Test_LazyCollection_ItemIDs_ShortFilterFallsThrough(t *testing.T) {
	dao := newRecordingDAO(50)
	c := New[string](dao, nil)
	c.SetFilters(StringFilter{Text: "abc"})

	items, err := c.ItemIDs(context.Background(), 0, 5)
	require.NoError(t, err)
	require.Len(t, items, 5)
	require.Len(t, dao.finds, 1)
	require.False(t, dao.finds[0].hasFilter)
	require.Equal(t, 5, c.Session().Cache().Len())
}

func Test_LazyCollection_ItemIDs_TailIsShorter(t *testing.T) {
	dao := newRecordingDAO(12)
	c := New[string](dao, nil)

	items, err := c.ItemIDs(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"item-10", "item-11"}, items)
}

func Test_LazyCollection_ItemIDs_InvalidRange(t *testing.T) {
	dao := newRecordingDAO(12)
	c := New[string](dao, nil)

	_, err := c.ItemIDs(context.Background(), -1, 5)
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = c.ItemIDs(context.Background(), 0, -5)
	require.ErrorIs(t, err, ErrInvalidRange)
	require.Empty(t, dao.finds)
}

func Test_LazyCollection_ItemIDs_FindErrorKeepsState(t *testing.T) {
	dao := newRecordingDAO(30)
	c := New[string](dao, nil)

	_, err := c.ItemIDs(context.Background(), 0, 10)
	require.NoError(t, err)

	boom := errors.New("timeout")
	dao.findErr = boom
	c.SetFilters(StringFilter{Text: "abcdef"})
	_, err = c.ItemIDs(context.Background(), 10, 10)
	require.ErrorIs(t, err, boom)
	require.True(t, c.IsFiltered(), "a failed fetch does not consume the filter")
}

func Test_LazyCollection_IDByIndex_ServesCachedWindow(t *testing.T) {
	dao := newRecordingDAO(100)
	c := New[string](dao, nil)

	items, err := c.ItemIDs(context.Background(), 10, 5)
	require.NoError(t, err)

	for k := range 5 {
		item, err := c.IDByIndex(context.Background(), 10+k)
		require.NoError(t, err)
		require.Equal(t, items[k], item)
	}
	require.Len(t, dao.finds, 1)
}

func Test_LazyCollection_IDByIndex_MissFetchesFallbackPage(t *testing.T) {
	dao := newRecordingDAO(500)
	c := New[string](dao, nil)

	_, err := c.ItemIDs(context.Background(), 0, 10)
	require.NoError(t, err)

	item, err := c.IDByIndex(context.Background(), 250)
	require.NoError(t, err)
	require.Equal(t, "item-250", item)
	require.Len(t, dao.finds, 2)
	require.Equal(t, 250, dao.finds[1].start)
	require.Equal(t, FallbackPageSize, dao.finds[1].limit)

	start, end := c.Session().Cache().Window()
	require.Equal(t, 250, start)
	require.Equal(t, 350, end)

	_, err = c.IDByIndex(context.Background(), 349)
	require.NoError(t, err)
	require.Len(t, dao.finds, 2, "the fallback window is cached")
}

func Test_LazyCollection_IDByIndex_OutOfRange(t *testing.T) {
	dao := newRecordingDAO(3)
	c := New[string](dao, nil)

	_, err := c.IDByIndex(context.Background(), 3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	require.Zero(t, c.Session().Cache().Len())
}

func Test_LazyCollection_Sort(t *testing.T) {
	dao := newRecordingDAO(30)
	c := New[string](dao, nil)

	require.NoError(t, c.Sort([]string{"x"}, []bool{false}))
	require.NoError(t, c.Sort([]string{"a", "b"}, []bool{true, false}))
	require.Equal(t, Orderings{
		{Column: "a", Direction: DirectionASC},
		{Column: "b", Direction: DirectionDESC},
	}, c.Session().Sort())

	_, err := c.ItemIDs(context.Background(), 0, 5)
	require.NoError(t, err)
	require.Equal(t, c.Session().Sort(), dao.finds[0].orderBy)

	err = c.Sort([]string{"a", "b"}, []bool{true})
	require.ErrorIs(t, err, ErrSortMismatch)
	err = c.SortBy(OrderBy{Column: "a", Direction: "sideways"})
	require.Error(t, err)
	require.Len(t, c.Session().Sort(), 2, "failed sort keeps the previous one")
	require.Equal(t, 5, c.Session().Cache().Len())

	require.NoError(t, c.SortBy(OrderBy{Column: "c", Direction: DirectionASC}))
	require.Zero(t, c.Session().Cache().Len(), "a new order invalidates the cached window")
}

func Test_LazyCollection_Sort_KeepsPairsAsGiven(t *testing.T) {
	tests := []struct {
		name      string
		fields    []string
		ascending []bool
		want      Orderings
	}{
		{
			name:      "repeated field keeps its first position",
			fields:    []string{"a", "b", "a"},
			ascending: []bool{true, false, false},
			want: Orderings{
				{Column: "a", Direction: DirectionASC},
				{Column: "b", Direction: DirectionDESC},
				{Column: "a", Direction: DirectionDESC},
			},
		},
		{
			name:      "property ids are not SQL identifiers",
			fields:    []string{"created-at", "full name"},
			ascending: []bool{true, false},
			want: Orderings{
				{Column: "created-at", Direction: DirectionASC},
				{Column: "full name", Direction: DirectionDESC},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Orderings
			dao := FuncSource[string]{
				FindFunc: func(_ context.Context, _ *SearchCriteria, _, _ int, orderBy Orderings) ([]string, error) {
					got = orderBy
					return []string{"x"}, nil
				},
			}
			c := New[string](dao, nil)

			require.NoError(t, c.Sort(tt.fields, tt.ascending))
			require.Equal(t, tt.want, c.Session().Sort())

			_, err := c.ItemIDs(context.Background(), 0, 1)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func Test_LazyCollection_ContainsID_AlwaysContains(t *testing.T) {
	c := New[string](newRecordingDAO(3), nil).WithAlwaysContains()

	for _, id := range []string{"item-0", "never-fetched", ""} {
		ok, err := c.ContainsID(context.Background(), id)
		require.NoError(t, err)
		require.True(t, ok, id)
	}
}

func Test_LazyCollection_ContainsID_Membership(t *testing.T) {
	var asked []string
	dao := FuncSource[string]{
		CountFunc: func(context.Context, *SearchCriteria) (int, error) { return 3, nil },
		FindFunc: func(_ context.Context, _ *SearchCriteria, start, limit int, _ Orderings) ([]string, error) {
			return []string{"a", "b", "c"}[start:min(start+limit, 3)], nil
		},
		ContainsFunc: func(_ context.Context, _ *SearchCriteria, item string) (bool, error) {
			asked = append(asked, item)
			return item == "z", nil
		},
	}
	c := New[string](dao, nil)

	_, err := c.ItemIDs(context.Background(), 0, 3)
	require.NoError(t, err)

	tests := []struct {
		item string
		want bool
	}{
		{"b", true},
		{"z", true},
		{"q", false},
	}
	for _, tt := range tests {
		got, err := c.ContainsID(context.Background(), tt.item)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.item)
	}
	require.Equal(t, []string{"z", "q"}, asked, "cached items never reach the data source")
}

func Test_LazyCollection_ContainsID_WithoutChecker(t *testing.T) {
	c := New[string](newRecordingDAO(3), nil)

	ok, err := c.ContainsID(context.Background(), "item-1")
	require.NoError(t, err)
	require.False(t, ok, "nothing cached and no membership checker")
}

func Test_LazyCollection_ContainsID_Identity(t *testing.T) {
	type row struct {
		ID   int
		Tags []string
	}

	dao := FuncSource[row]{
		FindFunc: func(context.Context, *SearchCriteria, int, int, Orderings) ([]row, error) {
			return []row{{ID: 1, Tags: []string{"x"}}}, nil
		},
	}
	c := New[row](dao, nil).WithIdentity(func(r row) any { return r.ID })

	_, err := c.ItemIDs(context.Background(), 0, 1)
	require.NoError(t, err)

	ok, err := c.ContainsID(context.Background(), row{ID: 1})
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_LazyCollection_ContainsID_NotComparable(t *testing.T) {
	rows := []row{{"id": 1}, {"id": 2}}
	dao := FuncSource[row]{
		FindFunc: func(context.Context, *SearchCriteria, int, int, Orderings) ([]row, error) {
			return rows, nil
		},
	}

	c := New[row](dao, nil)
	_, err := c.ItemIDs(context.Background(), 0, 2)
	require.NoError(t, err)

	_, err = c.ContainsID(context.Background(), row{"id": 2})
	require.ErrorIs(t, err, ErrNotComparable)

	ok, err := c.WithIdentity(func(r row) any { return r["id"] }).ContainsID(context.Background(), row{"id": 2})
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_LazyCollection_MinFilterLength(t *testing.T) {
	dao := newRecordingDAO(10)
	c := New[string](dao, nil)
	require.Equal(t, DefaultMinFilterLength, c.MinFilterLength())

	c.SetMinFilterLength(1)
	c.SetFilters(StringFilter{Text: "ab"})
	_, err := c.ItemIDs(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Equal(t, "ab", dao.finds[0].filter)

	require.Equal(t, 5, c.WithMinFilterLength(5).MinFilterLength())
	require.Equal(t, DefaultMinFilterLength, (*LazyCollection[string])(nil).MinFilterLength())
}

func Test_LazyCollection_FilterCombination(t *testing.T) {
	filters := []StringFilter{
		{Property: "name", Text: "alice"},
		{Property: "city", Text: "ny"},
	}

	all := New[string](newRecordingDAO(1), nil)
	all.SetFilters(filters...)
	_, err := all.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, []StringFilter{{Property: "name", Text: "alice"}}, all.Session().Criteria().Filters())

	last := New[string](newRecordingDAO(1), nil).WithFilterCombination(CombineLastWins)
	last.SetFilters(filters...)
	_, err = last.Size(context.Background())
	require.NoError(t, err)
	require.False(t, last.Session().Criteria().HasFilter(), "the short last filter wins")
}

func Test_LazyCollection_RemoveAllFilters(t *testing.T) {
	dao := newRecordingDAO(10)
	c := New[string](dao, nil)
	c.SetFilters(StringFilter{Text: "abcdef"})
	_, err := c.Size(context.Background())
	require.NoError(t, err)

	c.RemoveAllFilters()
	require.False(t, c.IsFiltered())
	require.False(t, c.Session().Criteria().HasFilter())
	require.True(t, c.Session().Criteria().IsDirty())
}

func Test_LazyCollection_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New[string](newRecordingDAO(10), nil).WithLogger(zap.New(core))

	_, err := c.Size(context.Background())
	require.NoError(t, err)
	_, err = c.IDByIndex(context.Background(), 4)
	require.NoError(t, err)

	require.Equal(t, 1, logs.FilterMessage("items recounted").Len())
	require.Equal(t, 1, logs.FilterMessage("page cache miss").Len())

	fetched := logs.FilterMessage("page fetched").All()
	require.Len(t, fetched, 1)
	require.Equal(t, int64(FallbackPageSize), fetched[0].ContextMap()["requested"])
}

// normalizeCalls makes nil and empty orderings compare equal.
func normalizeCalls(calls []tFindCall) []tFindCall {
	ret := slices.Clone(calls)
	for i := range ret {
		if ret[i].orderBy == nil {
			ret[i].orderBy = Orderings{}
		}
	}

	return ret
}
