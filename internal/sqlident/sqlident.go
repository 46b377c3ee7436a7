// Package sqlident provides identifier validation, quoting and bind placeholder
// rendering for the SQL dialects arbor talks to.
package sqlident

import (
	"regexp"
	"strconv"
	"strings"
)

// Style selects how bind parameters are written.
type Style int

const (
	// Question renders every parameter as "?" (SQLite, MySQL).
	Question Style = iota
	// Dollar renders numbered parameters "$1", "$2" (PostgreSQL).
	Dollar
	// Colon renders named parameters ":p1", ":p2" (Aurora Data API).
	Colon
)

var partPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Valid reports whether name is a plain identifier, optionally qualified with
// dots (e.g. "public.categories"). Each part must start with a letter or
// underscore and contain only letters, digits and underscores.
func Valid(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !partPattern.MatchString(part) {
			return false
		}
	}
	return true
}

// Quote quotes each dot-separated part of name with q.
// The caller is expected to have checked the name with Valid.
func Quote(name string, q byte) string {
	parts := strings.Split(name, ".")
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteByte(q)
		b.WriteString(part)
		b.WriteByte(q)
	}
	return b.String()
}

// Placeholder renders the n-th bind parameter (1-based) for style.
func Placeholder(style Style, n int) string {
	switch style {
	case Dollar:
		return "$" + strconv.Itoa(n)
	case Colon:
		return ParamName(n, ":")
	default:
		return "?"
	}
}

// ParamName returns the name of the n-th named parameter with the given prefix.
// With an empty prefix it is the bare name expected by APIs that bind
// parameters by name ("p1").
func ParamName(n int, prefix string) string {
	return prefix + "p" + strconv.Itoa(n)
}
