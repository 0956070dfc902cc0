package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer/stateful"
	"github.com/squareup/planopt/errors"
)

var (
	lex = stateful.MustSimple([]stateful.Rule{
		{`Ident`, "((?i)[a-zA-Z_][a-zA-Z_0-9]*)|`[^`]*`", nil},
		{`Number`, `[-+]?\d*\.?\d+([eE][-+]?\d+)?`, nil},
		{`String`, `'[^']*'|"[^"]*"`, nil},
		{`Punct`, `<>|!=|<=|>=|\]|\[|[-+*/%,.()=<>;{}]`, nil},
		{`Comment`, `#[^\n]*`, nil},
		{`Whitespace`, `\s+`, nil},
	})
	parser = participle.MustBuild(&AST{},
		participle.Lexer(lex),
		participle.CaseInsensitive("Ident"),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(2),
		participle.Unquote("String"),
	)
)

// Parse a plan written in the plan text language.
func Parse(text string) (*AST, error) {
	ast := &AST{}
	if err := parser.ParseString("", text, ast); err != nil {
		return nil, errors.WithStack(errors.NewInvalidPlanTextError(err.Error()))
	}
	return ast, nil
}
