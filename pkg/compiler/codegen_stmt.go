package compiler

import "tail/pkg/bytecode"

// compileBlockInline compiles a block's statements directly into the
// current function body — it does NOT push/pop a loop context, only the
// symbol table's nested scope (blocks don't own backpatch lists; loops do).
func (g *generator) compileBlockInline(b *BlockStmt) {
	g.sym.EnterScope()
	for _, s := range b.Stmts {
		g.compileStmt(s)
	}
	g.sym.ExitScope()
}

func (g *generator) compileStmt(s Stmt) {
	switch n := s.(type) {
	case *VarDeclStmt:
		slot := g.sym.DefineLocal(n.Name)
		if n.Init != nil {
			g.compileExpr(n.Init)
		} else {
			g.pushConstant(DefaultForType(n.Type))
		}
		g.emit(bytecode.OpStore, uint32(slot))

	case *ArrayDeclStmt:
		slot := g.sym.DefineLocal(n.Name)
		switch {
		case n.Init != nil:
			g.compileExpr(n.Init)
		case n.Size != nil:
			g.compileExpr(n.Size)
			g.emit(bytecode.OpArrayAlloc, uint32(elemTag(n.ElemType)))
		default:
			g.pushConstant(IntValue(0))
			g.emit(bytecode.OpArrayAlloc, uint32(elemTag(n.ElemType)))
		}
		g.emit(bytecode.OpStore, uint32(slot))

	case *AssignStmt:
		g.compileExpr(n.Value)
		if slot, isLocal, ok := g.sym.Lookup(n.Name); ok {
			if isLocal {
				g.emit(bytecode.OpStore, uint32(slot))
			} else {
				g.emit(bytecode.OpStoreGlobal, uint32(slot))
			}
		} else {
			g.errorf("undefined variable %q", n.Name)
		}

	case *ExprStmt:
		g.compileExpr(n.Expr)
		if !isConsumingNativePrint(n.Expr) {
			g.emit(bytecode.OpPop, 0)
		}

	case *BlockStmt:
		g.compileBlockInline(n)

	case *IfStmt:
		g.compileIf(n)

	case *WhileStmt:
		g.compileWhile(n)

	case *ForStmt:
		g.compileFor(n)

	case *ReturnStmt:
		if n.Value != nil {
			g.compileExpr(n.Value)
		} else {
			g.pushConstant(NilValue())
		}
		g.emit(bytecode.OpRet, 0)

	case *BreakStmt:
		if len(g.loops) == 0 {
			g.errorf("break outside a loop")
			return
		}
		idx := g.emit(bytecode.OpJmp, bytecode.JumpSentinel)
		top := g.loops[len(g.loops)-1]
		top.breaks = append(top.breaks, idx)

	case *ContinueStmt:
		if len(g.loops) == 0 {
			g.errorf("continue outside a loop")
			return
		}
		idx := g.emit(bytecode.OpJmp, bytecode.JumpSentinel)
		top := g.loops[len(g.loops)-1]
		top.continues = append(top.continues, idx)

	default:
		g.errorf("unhandled statement %T", s)
	}
}

// isConsumingNativePrint reports whether expr is a native Console call that
// already consumes its own value (print/println/read), per §4.4.3's
// ExprStmt lowering: no POP follows these.
func isConsumingNativePrint(e Expr) bool {
	c, ok := e.(*CallExpr)
	if !ok || !c.IsNative || c.ClassName != "Console" {
		return false
	}
	switch c.MethodName {
	case "print", "println", "read":
		return true
	default:
		return false
	}
}

func (g *generator) compileIf(n *IfStmt) {
	g.compileExpr(n.Condition)
	jumpOverThen := g.emit(bytecode.OpJmpIfNot, bytecode.JumpSentinel)
	g.compileBlockInline(n.Then)
	if n.Else != nil {
		jumpOverElse := g.emit(bytecode.OpJmp, bytecode.JumpSentinel)
		g.patch(jumpOverThen, g.here())
		g.compileStmt(n.Else)
		g.patch(jumpOverElse, g.here())
	} else {
		g.patch(jumpOverThen, g.here())
	}
}

func (g *generator) compileWhile(n *WhileStmt) {
	loopStart := g.here()
	g.compileExpr(n.Condition)
	exitJump := g.emit(bytecode.OpJmpIfNot, bytecode.JumpSentinel)

	lc := &loopCtx{}
	g.loops = append(g.loops, lc)
	g.compileBlockInline(n.Body)

	for _, idx := range lc.continues {
		g.patch(idx, g.here())
	}
	g.emit(bytecode.OpJmp, loopStart)

	after := g.here()
	g.patch(exitJump, after)
	for _, idx := range lc.breaks {
		g.patch(idx, after)
	}
	g.loops = g.loops[:len(g.loops)-1]
}

func (g *generator) compileFor(n *ForStmt) {
	g.sym.EnterScope()
	if n.Init != nil {
		g.compileStmt(n.Init)
	}

	loopStart := g.here()
	lc := &loopCtx{}
	g.loops = append(g.loops, lc)

	if n.Condition != nil {
		g.compileExpr(n.Condition)
		exitJump := g.emit(bytecode.OpJmpIfNot, bytecode.JumpSentinel)
		lc.breaks = append(lc.breaks, exitJump)
	}

	g.compileBlockInline(n.Body)

	for _, idx := range lc.continues {
		g.patch(idx, g.here())
	}
	if n.Increment != nil {
		g.compileStmt(n.Increment)
	}
	g.emit(bytecode.OpJmp, loopStart)

	after := g.here()
	for _, idx := range lc.breaks {
		g.patch(idx, after)
	}
	g.loops = g.loops[:len(g.loops)-1]
	g.sym.ExitScope()
}
