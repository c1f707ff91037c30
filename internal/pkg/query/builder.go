package query

import (
	"fmt"
	"strings"

	"cloud.google.com/go/spanner"
)

// Direction represents ORDER BY direction.
type Direction int

const (
	// Asc represents ascending order.
	Asc Direction = iota
	// Desc represents descending order.
	Desc
)

type verb int

const (
	verbSelect verb = iota
	verbCount
	verbDelete
)

// Builder constructs SELECT and DELETE statements for Cloud Spanner.
// Builders are values: every method returns a modified copy, so a base
// filter can feed a listing, its COUNT(*) and a DELETE.
type Builder struct {
	verb    verb
	table   string
	columns []string
	where   []Condition
	order   string
	dir     Direction
	limit   int64
	offset  int64
}

// From starts a SELECT * over table.
func From(table string) *Builder {
	return &Builder{table: table}
}

// Select appends columns to the projection. No columns means SELECT *.
func (b *Builder) Select(columns ...string) *Builder {
	c := b.clone()
	c.columns = append(c.columns, columns...)
	return c
}

// Where adds a condition. Conditions are joined with AND.
func (b *Builder) Where(condition Condition) *Builder {
	c := b.clone()
	c.where = append(c.where, condition)
	return c
}

// OrderBy sets the sort column and direction.
func (b *Builder) OrderBy(column string, direction Direction) *Builder {
	c := b.clone()
	c.order, c.dir = column, direction
	return c
}

// Limit caps the number of rows. Zero means no cap.
func (b *Builder) Limit(limit int64) *Builder {
	c := b.clone()
	c.limit = limit
	return c
}

// Offset skips rows.
func (b *Builder) Offset(offset int64) *Builder {
	c := b.clone()
	c.offset = offset
	return c
}

// Count returns a COUNT(*) over the same table and conditions.
func (b *Builder) Count() *Builder {
	return b.reshape(verbCount)
}

// Delete returns a DELETE over the same table and conditions.
func (b *Builder) Delete() *Builder {
	return b.reshape(verbDelete)
}

// reshape drops projection, ordering and paging.
func (b *Builder) reshape(v verb) *Builder {
	c := b.clone()
	c.verb = v
	c.columns = nil
	c.order = ""
	c.limit, c.offset = 0, 0
	return c
}

// Build renders the statement. Condition parameters are named @p0, @p1, ...
// in the order the conditions were added.
func (b *Builder) Build() spanner.Statement {
	var sql strings.Builder
	params := map[string]interface{}{}

	switch {
	case b.verb == verbDelete:
		sql.WriteString("DELETE FROM ")
	case b.verb == verbCount:
		sql.WriteString("SELECT COUNT(*) FROM ")
	case len(b.columns) == 0:
		sql.WriteString("SELECT * FROM ")
	default:
		fmt.Fprintf(&sql, "SELECT %s FROM ", strings.Join(b.columns, ", "))
	}
	sql.WriteString(b.table)

	if len(b.where) > 0 {
		parts := make([]string, len(b.where))
		next := 0
		for i, cond := range b.where {
			fragment, condParams := cond.SQL(next)
			parts[i] = fragment
			for k, v := range condParams {
				params[k] = v
			}
			next += len(condParams)
		}
		sql.WriteString(" WHERE ")
		sql.WriteString(strings.Join(parts, " AND "))
	}

	if b.order != "" {
		dir := "ASC"
		if b.dir == Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sql, " ORDER BY %s %s", b.order, dir)
	}
	if b.limit > 0 {
		sql.WriteString(" LIMIT @limit")
		params["limit"] = b.limit
	}
	if b.offset > 0 {
		sql.WriteString(" OFFSET @offset")
		params["offset"] = b.offset
	}

	return spanner.Statement{SQL: sql.String(), Params: params}
}

func (b *Builder) clone() *Builder {
	c := *b
	c.columns = append([]string(nil), b.columns...)
	c.where = append([]Condition(nil), b.where...)
	return &c
}

// String renders the statement for log lines.
func (b *Builder) String() string {
	stmt := b.Build()
	return fmt.Sprintf("SQL: %s\nParams: %v", stmt.SQL, stmt.Params)
}
