package ffi

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"sisulang/internal/codegen"
)

// Extractor compiles extern blocks with the system C compiler and sniffs
// out the callables they define. One Extractor serves one compilation
// run; it writes only under Dir and never cleans up itself — the scratch
// directory's owner does.
type Extractor struct {
	Dir string // scratch directory for sources and objects
	CC  string // C compiler; "cc" when empty
}

// Every block is compiled against this fixed preamble so the usual
// integer and libc declarations are in scope.
const preamble = `#include <stdint.h>
#include <stddef.h>
#include <stdlib.h>
#include <stdio.h>
#include <string.h>

`

// CompileBlock writes the block to a scratch file named uniquely for
// this run, compiles it to a position-independent object file, and
// returns its path plus the discovered signatures. A compiler failure
// carries the subprocess stderr verbatim and aborts the compilation.
func (x *Extractor) CompileBlock(code string) (string, []codegen.Signature, error) {
	base := fmt.Sprintf("ffi_%d_%d", os.Getpid(), time.Now().UnixNano())
	srcPath := filepath.Join(x.Dir, base+".c")
	objPath := filepath.Join(x.Dir, base+".o")

	if err := os.WriteFile(srcPath, []byte(preamble+code+"\n"), 0o644); err != nil {
		return "", nil, err
	}

	cc := x.CC
	if cc == "" {
		cc = "cc"
	}
	cmd := exec.Command(cc, "-c", "-fPIC", "-o", objPath, srcPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", nil, &codegen.ForeignError{Stderr: stderr.String(), Err: err}
	}

	return objPath, ScanSignatures(code), nil
}

var defPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*\{`)

// ScanSignatures finds `name ( args ) {` shapes and derives an arity from
// the comma count. This is best-effort arity sniffing, not a C parse: it
// over-reports on control-flow headers and loses arguments behind nested
// parens, and every discovered callable gets the fixed all-i64 contract
// regardless of the declared types.
func ScanSignatures(code string) []codegen.Signature {
	var sigs []codegen.Signature
	for _, m := range defPattern.FindAllStringSubmatch(code, -1) {
		args := strings.TrimSpace(m[2])
		arity := 0
		if args != "" {
			arity = strings.Count(args, ",") + 1
		}
		sigs = append(sigs, codegen.Signature{Name: m[1], Arity: arity})
	}
	return sigs
}
