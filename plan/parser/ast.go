// Package parser reads physical plans written in a small text language, e.g.
//
//	sort(order = [a nulls last]) {
//	  coalesce_partitions() {
//	    table_scan(name = t, columns = [a int, c int], partitions = 4, order = [a nulls last])
//	  }
//	}
//
//nolint:govet
package parser

import (
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/squareup/planopt/common"
)

// AST is a single plan, optionally terminated by a semicolon.
type AST struct {
	Root *Node `@@ ";"?`
}

// Node is an operator with its arguments and inputs.
type Node struct {
	Pos lexer.Position

	Op       string  `@Ident`
	Args     []*Arg  `"(" ( @@ ( "," @@ )* )? ")"`
	Children []*Node `( "{" @@* "}" )?`
}

// Arg is either a where clause or a key = value pair.
type Arg struct {
	Pos lexer.Position

	Where *Condition `  "WHERE" @@`
	Key   string     `| @Ident "="`
	Value *Value     `  @@`
}

type Condition struct {
	Comparisons []*Comparison `@@ ( "AND" @@ )*`
}

type Comparison struct {
	Pos lexer.Position

	Left  *Operand `@@`
	Op    string   `@( "=" | "!=" | "<>" | "<=" | ">=" | "<" | ">" )`
	Right *Operand `@@`
}

type Operand struct {
	Number *string `  @Number`
	String *string `| @String`
	Column *string `| @Ident`
}

type Value struct {
	Pos lexer.Position

	List   []*Item `  "[" ( @@ ( "," @@ )* )? "]"`
	Number *string `| @Number`
	String *string `| @String`
	Ident  *string `| @Ident`
}

// Item is an element of a list value: a join pair, or a column reference with an optional type, direction,
// null ordering and alias.
type Item struct {
	Pos lexer.Position

	Pair  *Pair       `  @@`
	Name  string      `| @Ident`
	Type  common.Type `  @( "VARCHAR" | "TINYINT" | "INT" | "BIGINT" | "TIMESTAMP" | "DOUBLE" | "DECIMAL" | "BOOLEAN" )?` // Conversion done by common.Type.Capture()
	Dir   string      `  @( "ASC" | "DESC" )?`
	Nulls string      `  ( "NULLS" @( "FIRST" | "LAST" ) )?`
	Alias string      `  ( "AS" @Ident )?`
}

type Pair struct {
	Left  string `"(" @Ident ","`
	Right string `@Ident ")"`
}
