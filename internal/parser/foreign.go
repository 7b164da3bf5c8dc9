package parser

import (
	"strings"

	"github.com/alecthomas/participle/lexer"

	"sisulang/internal/ast"
	"sisulang/internal/codegen"
)

// extractForeign pulls top-level `extern { ... }` blocks out of src before
// the grammar runs; the regexp lexer cannot tokenize raw C with nested
// braces. The returned source has each block blanked out (newlines kept,
// so positions in the remaining text stay valid) and the blocks are
// returned with their positions for reassembly in source order.
//
// Brace matching is lexical: string literals, character literals and
// comments inside the block are skipped, everything else counts toward
// the depth. That is deliberately not a C parse.
func extractForeign(filename, src string) (string, []*ast.ForeignBlock, error) {
	out := []byte(src)
	var blocks []*ast.ForeignBlock

	line, col := 1, 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			col = 1
			i++
			continue
		case c == '"':
			i = skipString(src, i)
			col = 1 // column is only reported for block starts; cheap to give up here
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			word := src[start:i]
			col += i - start
			if word != "extern" {
				continue
			}
			pos := lexer.Position{Filename: filename, Line: line, Column: col - len(word)}
			j := i
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\r' || src[j] == '\n') {
				j++
			}
			if j >= len(src) || src[j] != '{' {
				return "", nil, &codegen.Error{Kind: codegen.MalformedForeignBlock, Name: "expected '{' after extern"}
			}
			bodyStart := j + 1
			end, ok := matchBrace(src, bodyStart)
			if !ok {
				return "", nil, &codegen.Error{Kind: codegen.MalformedForeignBlock, Name: "unterminated extern block"}
			}
			blocks = append(blocks, &ast.ForeignBlock{
				Code: strings.TrimSpace(src[bodyStart:end]),
				P:    pos,
			})
			blank(out, start, end+1)
			// re-count lines consumed by the block
			for k := start; k <= end; k++ {
				if src[k] == '\n' {
					line++
					col = 1
				}
			}
			i = end + 1
			continue
		default:
			i++
			col++
		}
	}
	return string(out), blocks, nil
}

// matchBrace returns the index of the '}' closing the brace opened just
// before start, walking over C strings, char literals and comments.
func matchBrace(src string, start int) (int, bool) {
	depth := 1
	i := start
	for i < len(src) {
		switch c := src[i]; {
		case c == '"':
			i = skipString(src, i)
		case c == '\'':
			i = skipChar(src, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
		case c == '{':
			depth++
			i++
		case c == '}':
			depth--
			if depth == 0 {
				return i, true
			}
			i++
		default:
			i++
		}
	}
	return 0, false
}

func skipString(src string, i int) int {
	i++ // opening quote
	for i < len(src) {
		if src[i] == '\\' {
			i += 2
			continue
		}
		if src[i] == '"' {
			return i + 1
		}
		i++
	}
	return i
}

func skipChar(src string, i int) int {
	i++
	for i < len(src) {
		if src[i] == '\\' {
			i += 2
			continue
		}
		if src[i] == '\'' {
			return i + 1
		}
		i++
	}
	return i
}

func blank(b []byte, from, to int) {
	for i := from; i < to && i < len(b); i++ {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
