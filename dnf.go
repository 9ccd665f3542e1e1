package lazypager

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type (
	tConjunct struct {
		Column   string
		Value    any
		Operator Operator
	}

	tDisjunct []tConjunct

	// tDNF represents the disjunctive normal form (DNF) of a logical expression.
	// Each disjunct is joined by OR, and each disjunct consists of a list of
	// conjuncts which are joined by AND. A conjunct is the value of
	// Operator(Column, Value).
	//
	// Thus:
	//
	//	DNF = X1 OR X2 ... OR Xn, where Xi = Ai1 AND Ai2 ... AND Aim.
	//
	// A string filter searching several columns is a DNF of single-conjunct
	// disjuncts: (name LIKE ?) OR (email LIKE ?).
	tDNF []tDisjunct
)

var _likeEscaper = strings.NewReplacer(
	string(likeEscape), string(likeEscape)+string(likeEscape),
	"%", string(likeEscape)+"%",
	"_", string(likeEscape)+"_",
)

// containsPattern turns a filter text into a LIKE pattern matching it as a
// substring. Wildcards typed by the user are matched literally.
func containsPattern(text string) string {
	return "%" + _likeEscaper.Replace(text) + "%"
}

// toGORMExpression converts a conjunct of the form Operator(Column, Value)
// into an SQL condition represented as a clause.Expression.
//
// IMPORTANT: The method uses the SQL placeholder "?".
func (c tConjunct) toGORMExpression() clause.Expression {
	sqlClause, arg := c.toSQLClause()

	return clause.Expr{
		SQL:  sqlClause,
		Vars: []any{arg},
	}
}

// toSQLClause converts a conjunct to an SQL condition with a corresponding
// value.
//
// Example:
//
//	tConjunct = { Column: "name", Operator: "LIKE", Value: "%ab%"}
//
// Result:
//
//	("name LIKE ? ESCAPE '!'", "%ab%")
func (c tConjunct) toSQLClause() (string, driver.Value) {
	return c.Operator.condition(c.Column), c.Value
}

// toGORMExpression converts a disjunct (K1, K2, K3) into a gorm expression
// "K1 AND K2 AND K3" where each Ki is expanded via tConjunct.toGORMExpression.
func (d tDisjunct) toGORMExpression() clause.Expression {
	andExpressions := make([]clause.Expression, 0, len(d))
	for _, conjunct := range d {
		andExpressions = append(andExpressions, conjunct.toGORMExpression())
	}

	if len(andExpressions) == 1 {
		return andExpressions[0]
	} else if len(andExpressions) > 1 {
		return clause.And(andExpressions...)
	}

	return nil
}

// toSQLClause converts a disjunct (K1, K2, K3) into an SQL condition
// "(K1 AND K2 AND K3)" with corresponding values.
func (d tDisjunct) toSQLClause() (string, []driver.Value) {
	andClauses := make([]string, 0, len(d))
	andValues := make([]driver.Value, 0, len(d))

	for _, conjunct := range d {
		andClause, andValue := conjunct.toSQLClause()
		andClauses = append(andClauses, andClause)
		andValues = append(andValues, andValue)
	}

	if len(andClauses) >= 1 {
		return fmt.Sprintf("(%s)", strings.Join(andClauses, " AND ")), andValues
	}

	return "", nil
}

// toGORMExpression converts a DNF into a clause.Expression, joining the
// disjuncts with OR.
func (d tDNF) toGORMExpression() clause.Expression {
	orExpressions := make([]clause.Expression, 0, len(d))

	for _, disjunct := range d {
		andExpressions := disjunct.toGORMExpression()
		if andExpressions == nil {
			continue
		}

		orExpressions = append(orExpressions, andExpressions)
	}

	if len(orExpressions) == 1 {
		return orExpressions[0]
	} else if len(orExpressions) > 1 {
		return clause.Or(orExpressions...)
	}

	return nil
}

// toSQLClause converts a DNF into an SQL condition, joining the disjuncts
// with OR.
//
// Example:
//
//	tDNF = {
//		{{Column: "name", Operator: "LIKE", Value: "%ab%"}},
//		{{Column: "email", Operator: "LIKE", Value: "%ab%"}},
//	}
//
// Result:
//
//	("((name LIKE ? ESCAPE '!') OR (email LIKE ? ESCAPE '!'))", ["%ab%", "%ab%"])
func (d tDNF) toSQLClause() (string, []driver.Value) {
	orClauses := make([]string, 0, len(d))
	values := make([]driver.Value, 0, len(d))

	for _, disjunct := range d {
		orClause, orValues := disjunct.toSQLClause()
		if orClause == "" {
			continue
		}

		orClauses = append(orClauses, orClause)
		values = append(values, orValues...)
	}

	if len(orClauses) >= 1 {
		return fmt.Sprintf("(%s)", strings.Join(orClauses, " OR ")), values
	}

	return "TRUE", nil
}

// filterDNFs compiles every filter into its own DNF. The DNFs are meant to be
// ANDed. A filter with a Property searches the mapped column only, the
// others search all searchColumns.
func filterDNFs(filters []StringFilter, searchColumns []string, mapping ColumnMapping) ([]tDNF, error) {
	ret := make([]tDNF, 0, len(filters))

	for _, filter := range filters {
		columns := searchColumns
		if filter.Property != "" {
			columns = []string{resolveColumn(filter.Property, mapping)}
		}

		if len(columns) == 0 {
			return nil, fmt.Errorf("%w for filter '%s'", ErrNoSearchColumns, filter.Text)
		}

		for _, column := range columns {
			if err := validateColumnName(column); err != nil {
				return nil, fmt.Errorf("invalid filter: %w", err)
			}
		}

		pattern := containsPattern(filter.Text)
		ret = append(ret, lo.Map(columns, func(column string, _ int) tDisjunct {
			return tDisjunct{{Column: column, Value: pattern, Operator: OperatorLike}}
		}))
	}

	return ret, nil
}

// resolveColumn maps a property alias to its column. Unmapped properties are
// used as column names.
func resolveColumn(property string, mapping ColumnMapping) string {
	if column, ok := mapping[property]; ok {
		return column
	}

	return property
}

// FilterSQL renders the effective filters of the criteria as one SQL
// condition with "?" placeholders, for data sources built on database/sql.
// Without filters it returns "TRUE".
//
// Usage:
//
//	where, args, err := lazypager.FilterSQL(criteria, []string{"name", "email"}, nil)
//	query := fmt.Sprintf("SELECT count(*) FROM users WHERE %s", where)
func FilterSQL(criteria *SearchCriteria, searchColumns []string, mapping ColumnMapping) (string, []driver.Value, error) {
	dnfs, err := filterDNFs(criteria.Filters(), searchColumns, mapping)
	if err != nil {
		return "", nil, err
	}

	if len(dnfs) == 0 {
		return "TRUE", nil, nil
	}

	clauses := make([]string, 0, len(dnfs))
	var values []driver.Value
	for _, dnf := range dnfs {
		sqlClause, dnfValues := dnf.toSQLClause()
		clauses = append(clauses, sqlClause)
		values = append(values, dnfValues...)
	}

	return strings.Join(clauses, " AND "), values, nil
}
