package storage

import (
	"strings"
)

// MaxPlaceholders is the most bind parameters a single prepared statement
// may carry. MySQL rejects statements with more.
const MaxPlaceholders = 65535

// QuoteIdent renders a table reference for an INSERT. Each dot-separated
// segment is wrapped in backticks; a backtick inside a segment is doubled.
//
//	events      -> `events`
//	wh.events   -> `wh`.`events`
//	we`ird      -> `we``ird`
func QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	var b strings.Builder
	b.Grow(len(name) + 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteByte('`')
		b.WriteString(strings.ReplaceAll(p, "`", "``"))
		b.WriteByte('`')
	}
	return b.String()
}

// BuildInsert renders one multi-row INSERT whose values are the field text
// pasted verbatim:
//
//	INSERT INTO `t` VALUES ("1","a"),("2","b");
//
// Rows are emitted in order and are not checked for equal length. rows must
// not be empty.
func BuildInsert(table string, rows [][]string) string {
	size := len("INSERT INTO  VALUES ;") + len(table) + 4
	for _, r := range rows {
		size += 3 // "(" ")" ","
		for _, f := range r {
			size += len(f) + 1
		}
	}

	var b strings.Builder
	b.Grow(size)
	b.WriteString("INSERT INTO ")
	b.WriteString(QuoteIdent(table))
	b.WriteString(" VALUES ")
	for i, r := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j, f := range r {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f)
		}
		b.WriteByte(')')
	}
	b.WriteByte(';')
	return b.String()
}

// PreparedInsert is one parameterized statement and its bind values.
type PreparedInsert struct {
	Query string
	Args  []any
	Rows  int
}

// BuildPreparedInserts renders rows as one or more parameterized INSERTs,
// each carrying at most maxParams placeholders. Consecutive rows with the
// same field count share a statement; a row wider than maxParams gets a
// statement of its own. maxParams <= 0 means MaxPlaceholders.
func BuildPreparedInserts(table string, rows [][]string, maxParams int) []PreparedInsert {
	if maxParams <= 0 {
		maxParams = MaxPlaceholders
	}
	ident := QuoteIdent(table)

	var out []PreparedInsert
	start := 0
	for start < len(rows) {
		width := len(rows[start])
		end := start + 1
		params := width
		for end < len(rows) && len(rows[end]) == width && params+width <= maxParams {
			params += width
			end++
		}
		out = append(out, preparedChunk(ident, rows[start:end], width))
		start = end
	}
	return out
}

func preparedChunk(ident string, rows [][]string, width int) PreparedInsert {
	group := placeholderGroup(width)

	var b strings.Builder
	b.Grow(len("INSERT INTO  VALUES ") + len(ident) + len(rows)*(len(group)+1))
	b.WriteString("INSERT INTO ")
	b.WriteString(ident)
	b.WriteString(" VALUES ")

	args := make([]any, 0, len(rows)*width)
	for i, r := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(group)
		for _, f := range r {
			args = append(args, f)
		}
	}
	return PreparedInsert{Query: b.String(), Args: args, Rows: len(rows)}
}

// placeholderGroup returns "(?,?,...,?)" with n markers.
func placeholderGroup(n int) string {
	if n == 0 {
		return "()"
	}
	return "(" + strings.Repeat("?,", n-1) + "?)"
}
