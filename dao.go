package lazypager

import (
	"context"
	"fmt"
)

// DataAccessObject is the data source a LazyCollection pages through. It does
// all the querying: the collection only decides when to call it.
type DataAccessObject[T any] interface {
	// Count returns the total number of rows matching the criteria.
	Count(ctx context.Context, criteria *SearchCriteria) (int, error)
	// Find returns at most limit rows starting at offset start, filtered by the
	// criteria and sorted by orderBy.
	Find(ctx context.Context, criteria *SearchCriteria, start, limit int, orderBy Orderings) ([]T, error)
}

// MembershipChecker is implemented by data sources able to tell whether an
// item matches the criteria without fetching a page.
type MembershipChecker[T any] interface {
	Contains(ctx context.Context, criteria *SearchCriteria, item T) (bool, error)
}

type (
	CountFunc           func(ctx context.Context, criteria *SearchCriteria) (int, error)
	FindFunc[T any]     func(ctx context.Context, criteria *SearchCriteria, start, limit int, orderBy Orderings) ([]T, error)
	ContainsFunc[T any] func(ctx context.Context, criteria *SearchCriteria, item T) (bool, error)
)

// FuncSource adapts plain functions to DataAccessObject and MembershipChecker.
// ContainsFunc is optional: without it every membership check reports false.
type FuncSource[T any] struct {
	CountFunc    CountFunc
	FindFunc     FindFunc[T]
	ContainsFunc ContainsFunc[T]
}

// Count - implements DataAccessObject.
func (f FuncSource[T]) Count(ctx context.Context, criteria *SearchCriteria) (int, error) {
	if f.CountFunc == nil {
		return 0, fmt.Errorf("count function is nil")
	}

	return f.CountFunc(ctx, criteria)
}

// Find - implements DataAccessObject.
func (f FuncSource[T]) Find(ctx context.Context, criteria *SearchCriteria, start, limit int, orderBy Orderings) ([]T, error) {
	if f.FindFunc == nil {
		return nil, fmt.Errorf("find function is nil")
	}

	return f.FindFunc(ctx, criteria, start, limit, orderBy)
}

// Contains - implements MembershipChecker.
func (f FuncSource[T]) Contains(ctx context.Context, criteria *SearchCriteria, item T) (bool, error) {
	if f.ContainsFunc == nil {
		return false, nil
	}

	return f.ContainsFunc(ctx, criteria, item)
}

var (
	_ DataAccessObject[any]  = FuncSource[any]{}
	_ MembershipChecker[any] = FuncSource[any]{}
)
