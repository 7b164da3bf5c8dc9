package parser

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"

	"sisulang/internal/ast"
	"sisulang/internal/diag"
)

const lexerRegex = `(\s+)|` +
	`(//[^\n]*)|` +
	`(?P<Number>0[xX][0-9a-fA-F]+|[0-9]+)|` +
	`(?P<String>"(?:[^"\\]|\\.)*")|` +
	`(?P<Ident>[a-zA-Z_][a-zA-Z0-9_]*)|` +
	`(?P<Operator>==|!=|<=|>=|[-+*/<>=])|` +
	`(?P<Punct>[(){},])`

var sisuParser = participle.MustBuild(
	&fileGrammar{},
	participle.Lexer(lexer.Must(lexer.Regexp(lexerRegex))),
	participle.Unquote("String"),
	participle.UseLookahead(5),
)

type fileGrammar struct {
	Funcs []*funcGrammar `{ @@ }`
}

type funcGrammar struct {
	Pos lexer.Position

	Name   string        `"fn" @Ident`
	Params []string      `"(" [ @Ident { "," @Ident } ] ")"`
	Body   *blockGrammar `@@`
}

type blockGrammar struct {
	Pos lexer.Position

	Stmts []*stmtGrammar `"{" { @@ } "}"`
}

type stmtGrammar struct {
	Pos lexer.Position

	Return   *exprGrammar   `"return" @@`
	PrintHex *exprGrammar   `| "printx" @@`
	Print    *exprGrammar   `| "print" @@`
	If       *ifGrammar     `| @@`
	Assign   *assignGrammar `| @@`
	Expr     *exprGrammar   `| @@`
}

type ifGrammar struct {
	Pos lexer.Position

	Cond *exprGrammar  `"if" @@`
	Then *blockGrammar `@@`
	Else *blockGrammar `[ "else" @@ ]`
}

type assignGrammar struct {
	Pos lexer.Position

	Name  string       `@Ident`
	Value *exprGrammar `"=" @@`
}

// Expression grammar, lowest precedence first: comparison, additive,
// multiplicative, primary.
type exprGrammar struct {
	Pos lexer.Position

	Left  *addGrammar `@@`
	Op    string      `[ @("==" | "!=" | "<=" | ">=" | "<" | ">")`
	Right *addGrammar `@@ ]`
}

type addGrammar struct {
	Pos lexer.Position

	Left *mulGrammar `@@`
	Rest []*addRest  `{ @@ }`
}

type addRest struct {
	Op   string      `@("+" | "-")`
	Term *mulGrammar `@@`
}

type mulGrammar struct {
	Pos lexer.Position

	Left *primaryGrammar `@@`
	Rest []*mulRest      `{ @@ }`
}

type mulRest struct {
	Op   string          `@("*" | "/")`
	Term *primaryGrammar `@@`
}

type primaryGrammar struct {
	Pos lexer.Position

	Number *string      `@Number`
	Str    *string      `| @String`
	Call   *callGrammar `| @@`
	Var    *string      `| @Ident`
	Paren  *exprGrammar `| "(" @@ ")"`
}

type callGrammar struct {
	Pos lexer.Position

	Name string         `@Ident`
	Args []*exprGrammar `"(" [ @@ { "," @@ } ] ")"`
}

// Parse turns one source file into the program Block: top-level function
// definitions and extern blocks, in source order. Syntax problems land in
// the returned bag; a malformed extern block is returned as an error.
func Parse(filename, src string) (*ast.Block, *diag.Bag, error) {
	bag := &diag.Bag{}

	clean, foreign, err := extractForeign(filename, src)
	if err != nil {
		return nil, bag, err
	}

	file := &fileGrammar{}
	if err := sisuParser.ParseString(clean, file); err != nil {
		// The error text already carries the offending position.
		bag.Add(filename, 0, 0, err.Error())
		return nil, bag, nil
	}

	top := &ast.Block{}
	for _, fg := range file.Funcs {
		fn, err := lowerFunc(filename, fg)
		if err != nil {
			return nil, bag, err
		}
		top.Exprs = append(top.Exprs, fn)
	}
	for _, fb := range foreign {
		top.Exprs = append(top.Exprs, fb)
	}
	sort.SliceStable(top.Exprs, func(i, j int) bool {
		pi, pj := top.Exprs[i].Pos(), top.Exprs[j].Pos()
		if pi.Line != pj.Line {
			return pi.Line < pj.Line
		}
		return pi.Column < pj.Column
	})
	return top, bag, nil
}

func lowerFunc(filename string, fg *funcGrammar) (*ast.FuncDef, error) {
	body, err := lowerBlock(filename, fg.Body)
	if err != nil {
		return nil, err
	}
	return &ast.FuncDef{Name: fg.Name, Params: fg.Params, Body: body, P: at(filename, fg.Pos)}, nil
}

func lowerBlock(filename string, bg *blockGrammar) (*ast.Block, error) {
	b := &ast.Block{P: at(filename, bg.Pos)}
	for _, sg := range bg.Stmts {
		st, err := lowerStmt(filename, sg)
		if err != nil {
			return nil, err
		}
		b.Exprs = append(b.Exprs, st)
	}
	return b, nil
}

func lowerStmt(filename string, sg *stmtGrammar) (ast.Expr, error) {
	pos := at(filename, sg.Pos)
	switch {
	case sg.Return != nil:
		v, err := lowerExpr(filename, sg.Return)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Value: v, P: pos}, nil
	case sg.PrintHex != nil:
		v, err := lowerExpr(filename, sg.PrintHex)
		if err != nil {
			return nil, err
		}
		return &ast.Print{Format: ast.PrintHex, Value: v, P: pos}, nil
	case sg.Print != nil:
		v, err := lowerExpr(filename, sg.Print)
		if err != nil {
			return nil, err
		}
		return &ast.Print{Format: ast.PrintDecimal, Value: v, P: pos}, nil
	case sg.If != nil:
		cond, err := lowerExpr(filename, sg.If.Cond)
		if err != nil {
			return nil, err
		}
		then, err := lowerBlock(filename, sg.If.Then)
		if err != nil {
			return nil, err
		}
		var els *ast.Block
		if sg.If.Else != nil {
			els, err = lowerBlock(filename, sg.If.Else)
			if err != nil {
				return nil, err
			}
		}
		return &ast.Cond{Cond: cond, Then: then, Else: els, P: pos}, nil
	case sg.Assign != nil:
		v, err := lowerExpr(filename, sg.Assign.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Name: sg.Assign.Name, Value: v, P: pos}, nil
	case sg.Expr != nil:
		return lowerExpr(filename, sg.Expr)
	}
	return nil, fmt.Errorf("%s: empty statement", pos)
}

func lowerExpr(filename string, eg *exprGrammar) (ast.Expr, error) {
	left, err := lowerAdd(filename, eg.Left)
	if err != nil {
		return nil, err
	}
	if eg.Op == "" {
		return left, nil
	}
	right, err := lowerAdd(filename, eg.Right)
	if err != nil {
		return nil, err
	}
	return &ast.BinaryOp{Op: eg.Op, Left: left, Right: right, P: at(filename, eg.Pos)}, nil
}

func lowerAdd(filename string, ag *addGrammar) (ast.Expr, error) {
	e, err := lowerMul(filename, ag.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range ag.Rest {
		t, err := lowerMul(filename, r.Term)
		if err != nil {
			return nil, err
		}
		e = &ast.BinaryOp{Op: r.Op, Left: e, Right: t, P: at(filename, ag.Pos)}
	}
	return e, nil
}

func lowerMul(filename string, mg *mulGrammar) (ast.Expr, error) {
	e, err := lowerPrimary(filename, mg.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range mg.Rest {
		t, err := lowerPrimary(filename, r.Term)
		if err != nil {
			return nil, err
		}
		e = &ast.BinaryOp{Op: r.Op, Left: e, Right: t, P: at(filename, mg.Pos)}
	}
	return e, nil
}

func lowerPrimary(filename string, pg *primaryGrammar) (ast.Expr, error) {
	pos := at(filename, pg.Pos)
	switch {
	case pg.Number != nil:
		// Base 0 admits both decimal and 0x literals.
		n, err := strconv.ParseInt(*pg.Number, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad integer literal %q", pos, *pg.Number)
		}
		return &ast.NumberLit{Value: n, P: pos}, nil
	case pg.Str != nil:
		return &ast.StringLit{Value: *pg.Str, P: pos}, nil
	case pg.Call != nil:
		call := &ast.Call{Name: pg.Call.Name, P: at(filename, pg.Call.Pos)}
		for _, a := range pg.Call.Args {
			arg, err := lowerExpr(filename, a)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil
	case pg.Var != nil:
		return &ast.VarRef{Name: *pg.Var, P: pos}, nil
	case pg.Paren != nil:
		return lowerExpr(filename, pg.Paren)
	}
	return nil, fmt.Errorf("%s: empty expression", pos)
}

// at stamps the filename onto positions, which the grammar parses from an
// anonymous string.
func at(filename string, p lexer.Position) lexer.Position {
	p.Filename = filename
	return p
}
