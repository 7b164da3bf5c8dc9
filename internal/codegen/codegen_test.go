package codegen_test

import (
	"errors"
	"strings"
	"testing"

	"sisulang/internal/ast"
	"sisulang/internal/codegen"
	"sisulang/internal/parser"
)

// fakeForeign stands in for the ffi extractor so builder tests never
// touch a C compiler.
type fakeForeign struct {
	obj  string
	sigs []codegen.Signature
}

func (f *fakeForeign) CompileBlock(code string) (string, []codegen.Signature, error) {
	return f.obj, f.sigs, nil
}

func compileSrc(t *testing.T, src string) string {
	t.Helper()
	mod := compileMod(t, src, nil)
	return mod
}

func compileMod(t *testing.T, src string, foreign codegen.ForeignCompiler) string {
	t.Helper()
	prog, bag, err := parser.Parse("main.sisu", src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !bag.Empty() {
		t.Fatalf("parse diags: %+v", bag.Items)
	}
	mod, err := codegen.New(foreign).Compile(prog)
	if err != nil {
		t.Fatal(err)
	}
	return mod.String()
}

func compileErr(t *testing.T, src string) error {
	t.Helper()
	prog, bag, err := parser.Parse("main.sisu", src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !bag.Empty() {
		t.Fatalf("parse diags: %+v", bag.Items)
	}
	_, err = codegen.New(nil).Compile(prog)
	if err == nil {
		t.Fatal("expected compile error")
	}
	return err
}

func wantKind(t *testing.T, err error, kind codegen.ErrKind) {
	t.Helper()
	var cerr *codegen.Error
	if !errors.As(err, &cerr) || cerr.Kind != kind {
		t.Fatalf("expected kind %d, got %v", kind, err)
	}
}

func TestCompileReturnConstant(t *testing.T) {
	s := compileSrc(t, `fn sisu() { return 42 }`)
	for _, sub := range []string{
		"define i64 @sisu()",
		"ret i64 42",
		"define i32 @main()",
		"call i64 @sisu",
	} {
		if !strings.Contains(s, sub) {
			t.Fatalf("expected module to contain %q; got:\n%s", sub, s)
		}
	}
}

func TestCompileArithmetic(t *testing.T) {
	s := compileSrc(t, `fn sisu() {
    x = 40
    y = 2
    return x + y
}`)
	if !strings.Contains(s, "add i64 40, 2") {
		t.Fatalf("expected constant-fed add; got:\n%s", s)
	}
}

func TestCompileOperators(t *testing.T) {
	cases := []struct {
		op   string
		want string
	}{
		{"+", "add i64"},
		{"-", "sub i64"},
		{"*", "mul i64"},
		{"/", "sdiv i64"},
		{">", "icmp sgt i64"},
		{"<", "icmp slt i64"},
		{">=", "icmp sge i64"},
		{"<=", "icmp sle i64"},
		{"==", "icmp eq i64"},
		{"!=", "icmp ne i64"},
	}
	for _, tc := range cases {
		s := compileSrc(t, `fn sisu(a, b) { return a `+tc.op+` b }`)
		if !strings.Contains(s, tc.want) {
			t.Fatalf("op %q: expected %q; got:\n%s", tc.op, tc.want, s)
		}
	}
}

func TestComparisonWidensToI64(t *testing.T) {
	s := compileSrc(t, `fn sisu(a, b) { return a == b }`)
	if !strings.Contains(s, "zext i1") {
		t.Fatalf("comparison result must widen to i64; got:\n%s", s)
	}
}

func TestImplicitReturnIsZero(t *testing.T) {
	s := compileSrc(t, `fn sisu() { x = 42 }`)
	if !strings.Contains(s, "ret i64 0") {
		t.Fatalf("function without return must yield 0; got:\n%s", s)
	}
}

func TestPrintFormats(t *testing.T) {
	s := compileSrc(t, `fn sisu() {
    print 42
    printx 42
    return 0
}`)
	for _, sub := range []string{"@printf", "@.fmt.dec", "@.fmt.hex", `c"%ld\0A\00"`, `c"0x%lx\0A\00"`} {
		if !strings.Contains(s, sub) {
			t.Fatalf("expected module to contain %q; got:\n%s", sub, s)
		}
	}
}

func TestPrintFormatGlobalsAreCached(t *testing.T) {
	s := compileSrc(t, `fn sisu() {
    print 1
    print 2
    return 0
}`)
	if got := strings.Count(s, `c"%ld\0A\00"`); got != 1 {
		t.Fatalf("format global must be created once, found %d:\n%s", got, s)
	}
}

func TestStringLiteralIsPointerAsInteger(t *testing.T) {
	s := compileSrc(t, `fn sisu() {
    x = "hello"
    return 0
}`)
	for _, sub := range []string{"@.str.0", `c"hello\00"`, "ptrtoint"} {
		if !strings.Contains(s, sub) {
			t.Fatalf("expected module to contain %q; got:\n%s", sub, s)
		}
	}
}

func TestNothingEmittedAfterReturn(t *testing.T) {
	s := compileSrc(t, `fn sisu() {
    return 1
    print 2
}`)
	// A generated print would have materialized its format global.
	if strings.Contains(s, "@.fmt") {
		t.Fatalf("code after return must not be emitted; got:\n%s", s)
	}
}

func TestSelfRecursionResolves(t *testing.T) {
	s := compileSrc(t, `
fn fact(n) {
    if n <= 1 { return 1 }
    return n * fact(n - 1)
}

fn sisu() { return fact(5) }
`)
	if !strings.Contains(s, "call i64 @fact") {
		t.Fatalf("expected recursive call; got:\n%s", s)
	}
}

func TestCallBeforeDefinitionFails(t *testing.T) {
	err := compileErr(t, `
fn sisu() { return later() }
fn later() { return 1 }
`)
	wantKind(t, err, codegen.UndefinedFunction)
}

func TestUndefinedVariable(t *testing.T) {
	err := compileErr(t, `fn sisu() { return undeclared_name }`)
	wantKind(t, err, codegen.UndefinedVariable)
}

func TestMissingEntryPoint(t *testing.T) {
	err := compileErr(t, `fn not_sisu() { return 42 }`)
	wantKind(t, err, codegen.MissingEntryPoint)
}

func TestUnknownOperator(t *testing.T) {
	// The grammar cannot produce this shape, so build the tree by hand.
	prog := &ast.Block{Exprs: []ast.Expr{
		&ast.FuncDef{
			Name: codegen.EntryFunc,
			Body: &ast.Block{Exprs: []ast.Expr{
				&ast.Return{Value: &ast.BinaryOp{
					Op:   "%",
					Left: &ast.NumberLit{Value: 1}, Right: &ast.NumberLit{Value: 2},
				}},
			}},
		},
	}}
	_, err := codegen.New(nil).Compile(prog)
	wantKind(t, err, codegen.UnknownOperator)
}

func TestConditionalOutsideFunction(t *testing.T) {
	prog := &ast.Block{Exprs: []ast.Expr{
		&ast.Cond{
			Cond: &ast.NumberLit{Value: 1},
			Then: &ast.Block{},
		},
	}}
	_, err := codegen.New(nil).Compile(prog)
	wantKind(t, err, codegen.ConditionalOutsideFunction)
}

func TestForeignRegistration(t *testing.T) {
	stub := &fakeForeign{obj: "fake.o", sigs: []codegen.Signature{
		{Name: "add", Arity: 2},
		{Name: "add", Arity: 1}, // duplicate discovery: first wins
	}}
	prog, bag, err := parser.Parse("main.sisu", `
extern { int add(int a, int b) { return a + b; } }

fn sisu() { return add(40, 2) }
`)
	if err != nil || !bag.Empty() {
		t.Fatalf("parse: %v %+v", err, bag)
	}
	b := codegen.New(stub)
	mod, err := b.Compile(prog)
	if err != nil {
		t.Fatal(err)
	}
	s := mod.String()
	for _, sub := range []string{"declare", "@add", "call i64 @add(i64 40, i64 2)"} {
		if !strings.Contains(s, sub) {
			t.Fatalf("expected module to contain %q; got:\n%s", sub, s)
		}
	}
	if got := b.Objects(); len(got) != 1 || got[0] != "fake.o" {
		t.Fatalf("expected one foreign object, got %v", got)
	}
}

func TestForeignBlockWithoutCompilerFails(t *testing.T) {
	prog, bag, err := parser.Parse("main.sisu", `
extern { int f() { return 1; } }
fn sisu() { return 0 }
`)
	if err != nil || !bag.Empty() {
		t.Fatalf("parse: %v %+v", err, bag)
	}
	if _, err := codegen.New(nil).Compile(prog); err == nil {
		t.Fatal("expected error without a foreign compiler")
	}
}
