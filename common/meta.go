package common

import (
	"fmt"
	"strings"

	"github.com/squareup/planopt/errors"
)

type Type int

const (
	TypeUnknown Type = iota
	TypeTinyInt
	TypeInt
	TypeBigInt
	TypeDouble
	TypeDecimal
	TypeVarchar
	TypeTimestamp
	TypeBoolean
)

var typeNames = map[Type]string{
	TypeUnknown:   "UNKNOWN",
	TypeTinyInt:   "TINYINT",
	TypeInt:       "INT",
	TypeBigInt:    "BIGINT",
	TypeDouble:    "DOUBLE",
	TypeDecimal:   "DECIMAL",
	TypeVarchar:   "VARCHAR",
	TypeTimestamp: "TIMESTAMP",
	TypeBoolean:   "BOOLEAN",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TYPE(%d)", int(t))
}

// Capture lets the plan text parser read a column type directly into a Type.
func (t *Type) Capture(tokens []string) error {
	text := strings.ToUpper(strings.Join(tokens, " "))
	for typ, name := range typeNames {
		if typ != TypeUnknown && name == text {
			*t = typ
			return nil
		}
	}
	return errors.Errorf("unknown column type %s", text)
}

var (
	TinyIntColumnType   = ColumnType{Type: TypeTinyInt}
	IntColumnType       = ColumnType{Type: TypeInt}
	BigIntColumnType    = ColumnType{Type: TypeBigInt}
	DoubleColumnType    = ColumnType{Type: TypeDouble}
	VarcharColumnType   = ColumnType{Type: TypeVarchar}
	TimestampColumnType = ColumnType{Type: TypeTimestamp}
	BooleanColumnType   = ColumnType{Type: TypeBoolean}
	UnknownColumnType   = ColumnType{Type: TypeUnknown}
)

type ColumnType struct {
	Type         Type
	DecPrecision int
	DecScale     int
}

func (c ColumnType) String() string {
	if c.Type == TypeDecimal {
		return fmt.Sprintf("DECIMAL(%d, %d)", c.DecPrecision, c.DecScale)
	}
	return c.Type.String()
}

func NewDecimalColumnType(precision int, scale int) ColumnType {
	return ColumnType{
		Type:         TypeDecimal,
		DecPrecision: precision,
		DecScale:     scale,
	}
}

// ColumnInfo is one named, typed column of an operator's output.
type ColumnInfo struct {
	Name string
	ColumnType
}

func (c ColumnInfo) String() string {
	return fmt.Sprintf("%s %s", c.Name, c.ColumnType)
}
