package lazypager

import "fmt"

// Operator defines a comparison operator applied to a column when building
// filter and membership conditions.
type Operator string

const (
	// OperatorLike matches a column against an escaped "%text%" pattern.
	OperatorLike Operator = "LIKE"
	// OperatorEq is the equality operator used for key lookups.
	OperatorEq Operator = "="
)

// likeEscape is declared explicitly in every LIKE condition: MySQL and
// PostgreSQL default to a backslash, SQLite has no default at all.
const likeEscape = '!'

func (o Operator) Valid() bool {
	return o == OperatorLike || o == OperatorEq
}

// condition returns "column <op> ?" for the operator.
func (o Operator) condition(column string) string {
	switch o {
	case OperatorLike:
		return fmt.Sprintf("%s LIKE ? ESCAPE '%c'", column, likeEscape)
	case OperatorEq:
		return fmt.Sprintf("%s = ?", column)
	default:
		panic(fmt.Errorf("cannot build condition for operator '%s'", o))
	}
}
