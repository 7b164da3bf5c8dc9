package driver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/llir/llvm/ir"

	"sisulang/internal/codegen"
	"sisulang/internal/ffi"
	"sisulang/internal/parser"
)

// Compile runs one full compilation: parse, lower to LLVM IR, emit the
// primary object through the native backend, and link it with any
// foreign objects into output. All intermediates live in a per-run
// scratch directory that is removed on success and failure alike.
func Compile(input, output string) error {
	src, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	prog, bag, err := parser.Parse(input, string(src))
	if err != nil {
		return err
	}
	if err := bag.Err(); err != nil {
		return err
	}

	scratch, err := newScratchDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	b := codegen.New(&ffi.Extractor{Dir: scratch})
	mod, err := b.Compile(prog)
	if err != nil {
		return err
	}

	primary, err := emitObject(mod, scratch)
	if err != nil {
		return err
	}
	return link(output, primary, b.Objects())
}

// BuildModule compiles input up to the IR module, for inspection. Extern
// blocks still go through the foreign compiler so their signatures are
// registered; the objects are discarded with the scratch directory.
func BuildModule(input string) (*ir.Module, error) {
	src, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	prog, bag, err := parser.Parse(input, string(src))
	if err != nil {
		return nil, err
	}
	if err := bag.Err(); err != nil {
		return nil, err
	}

	scratch, err := newScratchDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	return codegen.New(&ffi.Extractor{Dir: scratch}).Compile(prog)
}

// DefaultOutput derives the output path from the input: same path, minus
// the extension.
func DefaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input))
}

// newScratchDir creates the per-run scratch area. Uniqueness rests on
// pid plus a nanosecond timestamp, same key the run's scratch files use.
func newScratchDir() (string, error) {
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("sisu-%d-%d", os.Getpid(), time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// emitObject hands the textual module to the native backend and gets a
// relocatable object back.
func emitObject(mod *ir.Module, scratch string) (string, error) {
	llPath := filepath.Join(scratch, "program.ll")
	objPath := filepath.Join(scratch, "program.o")
	if err := os.WriteFile(llPath, []byte(mod.String()), 0o644); err != nil {
		return "", err
	}
	clang, err := exec.LookPath("clang")
	if err != nil {
		return "", fmt.Errorf("clang not found in PATH")
	}
	cmd := exec.Command(clang, "-c", llPath, "-o", objPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("object emission failed: %v\n%s", err, out)
	}
	return objPath, nil
}
