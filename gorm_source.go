package lazypager

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GORMSource is a DataAccessObject backed by a GORM query. Every call starts
// from a fresh query returned by the base function, narrows it with the
// criteria filters and, for Find, pages it with a PageRequest.
//
// Filters compile to
//
//	(c1 LIKE ? OR c2 LIKE ?) AND (c3 LIKE ?) ...
//
// one parenthesised group per effective filter.
type GORMSource[T any] struct {
	query         func(ctx context.Context) *gorm.DB
	searchColumns []string
	columns       ColumnMapping
	keyColumn     string
	key           func(T) any
}

// NewGORMSource creates a source over the query returned by base. base must
// return a new statement on every call, e.g.
//
//	func(ctx context.Context) *gorm.DB { return db.WithContext(ctx).Model(&User{}) }
func NewGORMSource[T any](base func(ctx context.Context) *gorm.DB) *GORMSource[T] {
	return &GORMSource[T]{
		query: base,
	}
}

// NewGORMTableSource creates a source reading the whole table.
func NewGORMTableSource[T any](db *gorm.DB, table string) *GORMSource[T] {
	return NewGORMSource[T](func(ctx context.Context) *gorm.DB {
		return db.WithContext(ctx).Table(table)
	})
}

// WithSearchColumns sets the columns a filter without Property searches.
func (s *GORMSource[T]) WithSearchColumns(columns ...string) *GORMSource[T] {
	s.searchColumns = slices.Clone(columns)

	return s
}

// WithColumnMapping maps filter properties and sort fields to columns.
// Unmapped names are used as they are.
func (s *GORMSource[T]) WithColumnMapping(mapping ColumnMapping) *GORMSource[T] {
	s.columns = mapping

	return s
}

// WithKey sets the unique key column and its getter. The key is used by
// Contains and is appended to every sort as an ascending tiebreak, which
// keeps OFFSET pages stable between calls.
func (s *GORMSource[T]) WithKey(column string, key func(T) any) *GORMSource[T] {
	s.keyColumn = column
	s.key = key

	return s
}

// Count - implements DataAccessObject.
func (s *GORMSource[T]) Count(ctx context.Context, criteria *SearchCriteria) (int, error) {
	db, err := s.filtered(ctx, criteria)
	if err != nil {
		return 0, err
	}

	var count int64
	if err = db.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}

	return int(count), nil
}

// Find - implements DataAccessObject.
func (s *GORMSource[T]) Find(
	ctx context.Context,
	criteria *SearchCriteria,
	start, limit int,
	orderBy Orderings,
) ([]T, error) {
	if limit == 0 {
		return nil, nil
	}

	db, err := s.filtered(ctx, criteria)
	if err != nil {
		return nil, err
	}

	db, err = NewPageRequest().
		WithOffset(start).
		WithLimit(limit).
		WithSubstitutedSort(s.resolveSort(orderBy)...).
		Paginate(db)
	if err != nil {
		return nil, err
	}

	var items []T
	if err = db.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find query failed: %w", err)
	}

	return items, nil
}

// Contains - implements MembershipChecker. Requires WithKey.
func (s *GORMSource[T]) Contains(ctx context.Context, criteria *SearchCriteria, item T) (bool, error) {
	if s.keyColumn == "" || s.key == nil {
		return false, ErrNoKey
	}

	if err := validateColumnName(s.keyColumn); err != nil {
		return false, fmt.Errorf("invalid key: %w", err)
	}

	db, err := s.filtered(ctx, criteria)
	if err != nil {
		return false, err
	}

	keyCondition := tConjunct{Column: s.keyColumn, Value: s.key(item), Operator: OperatorEq}

	var count int64
	if err = db.Clauses(keyCondition.toGORMExpression()).Count(&count).Error; err != nil {
		return false, fmt.Errorf("membership query failed: %w", err)
	}

	return count > 0, nil
}

func (s *GORMSource[T]) filtered(ctx context.Context, criteria *SearchCriteria) (*gorm.DB, error) {
	dnfs, err := filterDNFs(criteria.Filters(), s.searchColumns, s.columns)
	if err != nil {
		return nil, err
	}

	db := s.query(ctx)
	for _, dnf := range dnfs {
		if exp := dnf.toGORMExpression(); exp != nil {
			db = db.Clauses(exp)
		}
	}

	return db, nil
}

// resolveSort maps sort fields to columns and appends the key tiebreak. A
// column met again adds nothing to ORDER BY, so only its first occurrence is
// kept.
func (s *GORMSource[T]) resolveSort(orderBy Orderings) Orderings {
	ret := Orderings(lo.UniqBy(
		lo.Map(orderBy, func(o OrderBy, _ int) OrderBy {
			return OrderBy{
				Column:    resolveColumn(o.Column, s.columns),
				Direction: o.Direction,
			}
		}),
		func(o OrderBy) string { return o.Column },
	))

	if s.keyColumn != "" && !ret.Has(s.keyColumn) {
		ret = append(ret, OrderBy{Column: s.keyColumn, Direction: DirectionASC})
	}

	return ret
}

var (
	_ DataAccessObject[any]  = (*GORMSource[any])(nil)
	_ MembershipChecker[any] = (*GORMSource[any])(nil)
)
