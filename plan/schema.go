package plan

import (
	"fmt"
	"strings"

	"github.com/squareup/planopt/common"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
)

// Schema is the ordered list of columns an operator produces.
type Schema struct {
	Columns []common.ColumnInfo
}

func NewSchema(columns ...common.ColumnInfo) *Schema {
	return &Schema{Columns: columns}
}

func (s *Schema) Len() int {
	return len(s.Columns)
}

// IndexOf returns the position of the named column, or -1.
func (s *Schema) IndexOf(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns a column expression for the named column, or nil if there is none.
func (s *Schema) Column(name string) *expr.Column {
	i := s.IndexOf(name)
	if i == -1 {
		return nil
	}
	return expr.NewColumn(name, i)
}

func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Fields renders each column as "name TYPE".
func (s *Schema) Fields() []string {
	fields := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		fields[i] = c.String()
	}
	return fields
}

func (s *Schema) Equal(other *Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if c != other.Columns[i] {
			return false
		}
	}
	return true
}

// Concat returns a schema with the columns of s followed by those of other.
func (s *Schema) Concat(other *Schema) *Schema {
	cols := make([]common.ColumnInfo, 0, len(s.Columns)+len(other.Columns))
	cols = append(cols, s.Columns...)
	cols = append(cols, other.Columns...)
	return &Schema{Columns: cols}
}

func (s *Schema) String() string {
	return "[" + strings.Join(s.Fields(), ", ") + "]"
}

func (s *Schema) missingColumn(exprs ...expr.Expression) *expr.Column {
	for _, e := range exprs {
		for _, c := range e.Columns() {
			if c.Index < 0 || c.Index >= len(s.Columns) || s.Columns[c.Index].Name != c.Name {
				return c
			}
		}
	}
	return nil
}

// validateExprs checks every column referenced by exprs resolves against the schema.
func validateExprs(operator string, schema *Schema, exprs ...expr.Expression) error {
	if c := schema.missingColumn(exprs...); c != nil {
		return errors.WithStack(errors.NewInvalidPlanError(operator,
			fmt.Sprintf("column %s is not in input schema %s", c, schema)))
	}
	return nil
}
