package ast

import "github.com/alecthomas/participle/lexer"

// Expr is a node of the parsed program. The whole program is a Block of
// top-level FuncDef and ForeignBlock entries.
type Expr interface {
	exprNode()
	Pos() lexer.Position
}

// PrintFormat selects the output template of a Print node.
type PrintFormat int

const (
	PrintDecimal PrintFormat = iota
	PrintHex
)

type NumberLit struct {
	Value int64
	P     lexer.Position
}

func (*NumberLit) exprNode()             {}
func (e *NumberLit) Pos() lexer.Position { return e.P }

type StringLit struct {
	Value string
	P     lexer.Position
}

func (*StringLit) exprNode()             {}
func (e *StringLit) Pos() lexer.Position { return e.P }

type VarRef struct {
	Name string
	P    lexer.Position
}

func (*VarRef) exprNode()             {}
func (e *VarRef) Pos() lexer.Position { return e.P }

type BinaryOp struct {
	Op    string
	Left  Expr
	Right Expr
	P     lexer.Position
}

func (*BinaryOp) exprNode()             {}
func (e *BinaryOp) Pos() lexer.Position { return e.P }

type Assign struct {
	Name  string
	Value Expr
	P     lexer.Position
}

func (*Assign) exprNode()             {}
func (e *Assign) Pos() lexer.Position { return e.P }

type Print struct {
	Format PrintFormat
	Value  Expr
	P      lexer.Position
}

func (*Print) exprNode()             {}
func (e *Print) Pos() lexer.Position { return e.P }

type Block struct {
	Exprs []Expr
	P     lexer.Position
}

func (*Block) exprNode()             {}
func (e *Block) Pos() lexer.Position { return e.P }

type FuncDef struct {
	Name   string
	Params []string
	Body   *Block
	P      lexer.Position
}

func (*FuncDef) exprNode()             {}
func (e *FuncDef) Pos() lexer.Position { return e.P }

type Call struct {
	Name string
	Args []Expr
	P    lexer.Position
}

func (*Call) exprNode()             {}
func (e *Call) Pos() lexer.Position { return e.P }

type Return struct {
	Value Expr
	P     lexer.Position
}

func (*Return) exprNode()             {}
func (e *Return) Pos() lexer.Position { return e.P }

// ForeignBlock holds the raw text of an extern { ... } block. The text is
// compiled by the FFI extractor, never interpreted here.
type ForeignBlock struct {
	Code string
	P    lexer.Position
}

func (*ForeignBlock) exprNode()             {}
func (e *ForeignBlock) Pos() lexer.Position { return e.P }

type Cond struct {
	Cond Expr
	Then *Block
	Else *Block // optional
	P    lexer.Position
}

func (*Cond) exprNode()             {}
func (e *Cond) Pos() lexer.Position { return e.P }
