package lazypager

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// StringFilter is a "string contains" filter as a grid reports it. An empty
// Property searches every searchable column of the data source.
type StringFilter struct {
	Property string
	Text     string
}

// FilterCombination decides how several active string filters turn into
// effective criteria.
type FilterCombination int

const (
	// CombineAll keeps every filter long enough to pass the threshold. The data
	// source ANDs them.
	CombineAll FilterCombination = iota
	// CombineLastWins lets the last inspected filter alone decide: it is kept
	// when long enough, otherwise the criteria end up with no filter.
	CombineLastWins
)

func (c FilterCombination) String() string {
	switch c {
	case CombineAll:
		return "all"
	case CombineLastWins:
		return "last"
	default:
		return fmt.Sprintf("FilterCombination(%d)", int(c))
	}
}

// ParseFilterCombination is the inverse of FilterCombination.String.
func ParseFilterCombination(s string) (FilterCombination, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return CombineAll, nil
	case "last":
		return CombineLastWins, nil
	default:
		return 0, fmt.Errorf("unknown filter combination '%s'", s)
	}
}

// passes is strictly greater-than: a text exactly minLength runes long is
// still too short.
func (f StringFilter) passes(minLength int) bool {
	return utf8.RuneCountInString(f.Text) > minLength
}

// NormalizeFilters turns active filters into effective ones. Texts not longer
// than minLength are dropped.
func NormalizeFilters(filters []StringFilter, minLength int, combination FilterCombination) []StringFilter {
	if combination == CombineLastWins {
		if len(filters) == 0 {
			return nil
		}

		last := lo.LastOrEmpty(filters)
		if !last.passes(minLength) {
			return nil
		}

		return []StringFilter{last}
	}

	ret := lo.Filter(filters, func(f StringFilter, _ int) bool {
		return f.passes(minLength)
	})
	if len(ret) == 0 {
		return nil
	}

	return ret
}
