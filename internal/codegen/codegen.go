package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mileusna/conditional"

	"sisulang/internal/ast"
)

// EntryFunc is the designated entry point. The emitted module exports
// every user function under its source name plus an i32 main wrapper
// that calls EntryFunc and truncates its result to the exit-code width.
const EntryFunc = "sisu"

// Signature is a callable discovered in a foreign block: Arity i64
// parameters and an i64 result, whatever the foreign declaration said.
type Signature struct {
	Name  string
	Arity int
}

// ForeignCompiler compiles one raw foreign block to an object file and
// reports the callables it appears to define. Implemented by the ffi
// package; nil is fine for programs without extern blocks.
type ForeignCompiler interface {
	CompileBlock(code string) (objPath string, sigs []Signature, err error)
}

// Builder lowers a parsed program into an LLVM module. All state is held
// here and threaded through the recursive descent; a fresh Builder per
// compilation makes the package re-entrant.
type Builder struct {
	mod     *ir.Module
	printf  *ir.Func
	foreign ForeignCompiler

	funcs    map[string]*ir.Func
	vars     map[string]value.Value
	cur      *ir.Func
	blk      *ir.Block
	sawEntry bool

	objects  []string
	fmtGlobs map[ast.PrintFormat]*ir.Global
	strCount int
	blkCount int
}

func New(foreign ForeignCompiler) *Builder {
	m := ir.NewModule()
	printf := m.NewFunc("printf", types.I32, ir.NewParam("", types.NewPointer(types.I8)))
	printf.Sig.Variadic = true
	return &Builder{
		mod:      m,
		printf:   printf,
		foreign:  foreign,
		funcs:    make(map[string]*ir.Func),
		fmtGlobs: make(map[ast.PrintFormat]*ir.Global),
	}
}

// Compile lowers the program, checks that the entry function was
// defined, and appends the process-entry wrapper. The returned module is
// complete and ready for object emission.
func (b *Builder) Compile(prog *ast.Block) (*ir.Module, error) {
	if _, err := b.genExpr(prog); err != nil {
		return nil, err
	}
	if !b.sawEntry {
		return nil, &Error{Kind: MissingEntryPoint, Name: EntryFunc}
	}
	entry := b.funcs[EntryFunc]
	wrapper := b.mod.NewFunc("main", types.I32)
	blk := wrapper.NewBlock("entry")
	ret := blk.NewCall(entry)
	blk.NewRet(blk.NewTrunc(ret, types.I32))
	return b.mod, nil
}

// Objects reports the foreign object files produced so far, in
// compilation order. The driver hands them to the linker.
func (b *Builder) Objects() []string { return b.objects }

func (b *Builder) genExpr(e ast.Expr) (value.Value, error) {
	switch n := e.(type) {
	case *ast.NumberLit:
		return constant.NewInt(types.I64, n.Value), nil

	case *ast.StringLit:
		return b.genString(n)

	case *ast.VarRef:
		v, ok := b.vars[n.Name]
		if !ok {
			return nil, &Error{Kind: UndefinedVariable, Name: n.Name}
		}
		return v, nil

	case *ast.Assign:
		v, err := b.genExpr(n.Value)
		if err != nil {
			return nil, err
		}
		b.vars[n.Name] = v
		return v, nil

	case *ast.BinaryOp:
		return b.genBinary(n)

	case *ast.Print:
		return b.genPrint(n)

	case *ast.Block:
		var last value.Value = constant.NewInt(types.I64, 0)
		for _, item := range n.Exprs {
			v, err := b.genExpr(item)
			if err != nil {
				return nil, err
			}
			last = v
			// Nothing after a return in the same block is emitted.
			if _, isRet := item.(*ast.Return); isRet {
				break
			}
		}
		return last, nil

	case *ast.FuncDef:
		return b.genFunc(n)

	case *ast.Call:
		return b.genCall(n)

	case *ast.Return:
		v, err := b.genExpr(n.Value)
		if err != nil {
			return nil, err
		}
		if b.cur == nil {
			return nil, fmt.Errorf("return outside of function")
		}
		b.blk.NewRet(v)
		return v, nil

	case *ast.ForeignBlock:
		return b.genForeign(n)

	case *ast.Cond:
		return b.genCond(n)

	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}

func (b *Builder) genFunc(n *ast.FuncDef) (value.Value, error) {
	params := make([]*ir.Param, len(n.Params))
	for i, name := range n.Params {
		params[i] = ir.NewParam(name, types.I64)
	}
	f := b.mod.NewFunc(n.Name, types.I64, params...)

	// Registered before the body so self-recursion resolves.
	b.funcs[n.Name] = f
	if n.Name == EntryFunc {
		b.sawEntry = true
	}

	prevVars, prevCur, prevBlk := b.vars, b.cur, b.blk
	b.cur = f
	b.blk = f.NewBlock("entry")
	b.vars = make(map[string]value.Value, len(params))
	for _, p := range f.Params {
		b.vars[p.LocalName] = p
	}

	if _, err := b.genExpr(n.Body); err != nil {
		return nil, err
	}
	if b.blk.Term == nil {
		b.blk.NewRet(constant.NewInt(types.I64, 0))
	}

	b.vars, b.cur, b.blk = prevVars, prevCur, prevBlk
	return constant.NewInt(types.I64, 0), nil
}

func (b *Builder) genCall(n *ast.Call) (value.Value, error) {
	f, ok := b.funcs[n.Name]
	if !ok {
		return nil, &Error{Kind: UndefinedFunction, Name: n.Name}
	}
	args := make([]value.Value, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := b.genExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return b.blk.NewCall(f, args...), nil
}

func (b *Builder) genBinary(n *ast.BinaryOp) (value.Value, error) {
	l, err := b.genExpr(n.Left)
	if err != nil {
		return nil, err
	}
	r, err := b.genExpr(n.Right)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "+":
		return b.blk.NewAdd(l, r), nil
	case "-":
		return b.blk.NewSub(l, r), nil
	case "*":
		return b.blk.NewMul(l, r), nil
	case "/":
		// Truncating signed division; dividing by zero is native
		// machine behavior, unchecked.
		return b.blk.NewSDiv(l, r), nil
	case ">", "<", ">=", "<=", "==", "!=":
		preds := map[string]enum.IPred{
			">": enum.IPredSGT, "<": enum.IPredSLT,
			">=": enum.IPredSGE, "<=": enum.IPredSLE,
			"==": enum.IPredEQ, "!=": enum.IPredNE,
		}
		cmp := b.blk.NewICmp(preds[n.Op], l, r)
		return b.blk.NewZExt(cmp, types.I64), nil
	default:
		return nil, &Error{Kind: UnknownOperator, Name: n.Op}
	}
}

func (b *Builder) genPrint(n *ast.Print) (value.Value, error) {
	v, err := b.genExpr(n.Value)
	if err != nil {
		return nil, err
	}
	if b.cur == nil {
		return nil, fmt.Errorf("print outside of function")
	}
	g, ok := b.fmtGlobs[n.Format]
	if !ok {
		hex := n.Format == ast.PrintHex
		g = b.mod.NewGlobalDef(
			conditional.String(hex, ".fmt.hex", ".fmt.dec"),
			constant.NewCharArrayFromString(conditional.String(hex, "0x%lx\n\x00", "%ld\n\x00")),
		)
		b.fmtGlobs[n.Format] = g
	}
	b.blk.NewCall(b.printf, b.strPtr(g), v)
	return v, nil
}

func (b *Builder) genString(n *ast.StringLit) (value.Value, error) {
	if b.cur == nil {
		return nil, fmt.Errorf("string literal outside of function")
	}
	g := b.mod.NewGlobalDef(fmt.Sprintf(".str.%d", b.strCount), constant.NewCharArrayFromString(n.Value+"\x00"))
	b.strCount++
	// Strings travel as pointer-as-integer values.
	return b.blk.NewPtrToInt(b.strPtr(g), types.I64), nil
}

func (b *Builder) genForeign(n *ast.ForeignBlock) (value.Value, error) {
	if b.foreign == nil {
		return nil, fmt.Errorf("no foreign compiler configured for extern block")
	}
	obj, sigs, err := b.foreign.CompileBlock(n.Code)
	if err != nil {
		return nil, err
	}
	b.objects = append(b.objects, obj)
	for _, sig := range sigs {
		// First registration wins; duplicates (and clashes with user
		// functions) are skipped so a symbol is never declared twice.
		if _, exists := b.funcs[sig.Name]; exists {
			continue
		}
		params := make([]*ir.Param, sig.Arity)
		for i := range params {
			params[i] = ir.NewParam("", types.I64)
		}
		b.funcs[sig.Name] = b.mod.NewFunc(sig.Name, types.I64, params...)
	}
	return constant.NewInt(types.I64, 0), nil
}

// strPtr takes the address of a global char array as an i8 pointer.
func (b *Builder) strPtr(g *ir.Global) value.Value {
	zero := constant.NewInt(types.I32, 0)
	p := b.blk.NewGetElementPtr(g.Type().(*types.PointerType).ElemType, g, zero, zero)
	p.InBounds = true
	return p
}
