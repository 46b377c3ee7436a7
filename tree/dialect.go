package tree

import "github.com/jacentio/arbor/internal/sqlident"

// Placeholders selects how a dialect writes bind parameters.
type Placeholders int

const (
	// QuestionMarks writes "?" for every parameter.
	QuestionMarks Placeholders = iota
	// Numbered writes "$1", "$2", ...
	Numbered
	// Named writes ":p1", ":p2", ...
	Named
)

// Dialect describes the SQL syntax differences arbor cares about.
type Dialect struct {
	// Name identifies the dialect in logs and spans.
	Name string

	// Placeholders is the bind parameter style.
	Placeholders Placeholders

	// QuoteChar quotes identifiers.
	QuoteChar byte
}

var (
	// SQLite is the dialect of database/sql SQLite drivers.
	SQLite = Dialect{Name: "sqlite", Placeholders: QuestionMarks, QuoteChar: '"'}

	// Postgres is the dialect of PostgreSQL drivers, including pgexec and
	// Aurora PostgreSQL through rdsexec.
	Postgres = Dialect{Name: "postgres", Placeholders: Numbered, QuoteChar: '"'}

	// MySQL is the dialect of MySQL 8 drivers. rdsexec renders Aurora MySQL
	// statements with it, switched to named placeholders.
	MySQL = Dialect{Name: "mysql", Placeholders: QuestionMarks, QuoteChar: '`'}
)

// Ident quotes an identifier, keeping dot-separated qualification.
func (d Dialect) Ident(name string) string {
	q := d.QuoteChar
	if q == 0 {
		q = '"'
	}
	return sqlident.Quote(name, q)
}

// Placeholder renders the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	switch d.Placeholders {
	case Numbered:
		return sqlident.Placeholder(sqlident.Dollar, n)
	case Named:
		return sqlident.Placeholder(sqlident.Colon, n)
	default:
		return sqlident.Placeholder(sqlident.Question, n)
	}
}
