package codegen

import (
	"fmt"
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"sisulang/internal/ast"
)

// genCond lowers a conditional to then/else/merge blocks. Variables are
// value bindings, so anything rebound inside a branch is reconciled at
// the merge with a phi over the edges that actually reach it; a branch
// that ended in its own return contributes no edge.
func (b *Builder) genCond(n *ast.Cond) (value.Value, error) {
	if b.cur == nil {
		return nil, &Error{Kind: ConditionalOutsideFunction}
	}

	condV, err := b.genExpr(n.Cond)
	if err != nil {
		return nil, err
	}
	isTrue := b.blk.NewICmp(enum.IPredNE, condV, constant.NewInt(types.I64, 0))

	id := b.blkCount
	b.blkCount++
	thenBlk := b.cur.NewBlock(fmt.Sprintf("if_then_%d", id))
	elseBlk := b.cur.NewBlock(fmt.Sprintf("if_else_%d", id))
	mergeBlk := b.cur.NewBlock(fmt.Sprintf("if_merge_%d", id))
	b.blk.NewCondBr(isTrue, thenBlk, elseBlk)

	before := b.vars

	b.vars = copyScope(before)
	b.blk = thenBlk
	thenVal, err := b.genExpr(n.Then)
	if err != nil {
		return nil, err
	}
	thenScope := b.vars
	thenTail := b.blk
	thenReaches := thenTail.Term == nil
	if thenReaches {
		thenTail.NewBr(mergeBlk)
	}

	b.vars = copyScope(before)
	b.blk = elseBlk
	var elseVal value.Value = constant.NewInt(types.I64, 0)
	if n.Else != nil {
		elseVal, err = b.genExpr(n.Else)
		if err != nil {
			return nil, err
		}
	}
	elseScope := b.vars
	elseTail := b.blk
	elseReaches := elseTail.Term == nil
	if elseReaches {
		elseTail.NewBr(mergeBlk)
	}

	b.blk = mergeBlk
	b.vars = copyScope(before)
	b.mergeScopes(before, thenScope, elseScope, thenTail, elseTail, thenReaches, elseReaches)

	switch {
	case thenReaches && elseReaches:
		if thenVal == elseVal {
			return thenVal, nil
		}
		return mergeBlk.NewPhi(ir.NewIncoming(thenVal, thenTail), ir.NewIncoming(elseVal, elseTail)), nil
	case thenReaches:
		return thenVal, nil
	case elseReaches:
		return elseVal, nil
	default:
		// Neither branch reaches the merge; its value is zero and the
		// merge block is dead code the enclosing block tolerates.
		return constant.NewInt(types.I64, 0), nil
	}
}

// mergeScopes rebinds every name whose binding changed in either branch.
// The diff is structural: bindings are compared by value identity
// against the pre-conditional scope.
func (b *Builder) mergeScopes(before, thenScope, elseScope map[string]value.Value, thenTail, elseTail *ir.Block, thenReaches, elseReaches bool) {
	names := make([]string, 0, len(thenScope)+len(elseScope))
	seen := make(map[string]bool)
	for name := range thenScope {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range elseScope {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		old, hadBefore := before[name]
		tv, inThen := thenScope[name]
		ev, inElse := elseScope[name]

		thenChanged := inThen && (!hadBefore || tv != old)
		elseChanged := inElse && (!hadBefore || ev != old)
		if !thenChanged && !elseChanged {
			continue
		}

		// Per-edge value: the branch's binding, falling back to the
		// pre-conditional one when the branch never assigned the name.
		edgeThen, haveThen := tv, inThen
		if !inThen {
			edgeThen, haveThen = old, hadBefore
		}
		edgeElse, haveElse := ev, inElse
		if !inElse {
			edgeElse, haveElse = old, hadBefore
		}

		switch {
		case thenReaches && elseReaches:
			if !haveThen || !haveElse {
				// Introduced in only one branch with no prior value on
				// the other edge; the name does not survive the merge.
				delete(b.vars, name)
				continue
			}
			if edgeThen == edgeElse {
				b.vars[name] = edgeThen
				continue
			}
			b.vars[name] = b.blk.NewPhi(ir.NewIncoming(edgeThen, thenTail), ir.NewIncoming(edgeElse, elseTail))
		case thenReaches:
			if haveThen {
				b.vars[name] = edgeThen
			} else {
				delete(b.vars, name)
			}
		case elseReaches:
			if haveElse {
				b.vars[name] = edgeElse
			} else {
				delete(b.vars, name)
			}
		}
	}
}

func copyScope(m map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
