package compiler

import "tail/pkg/bytecode"

func (g *generator) compileExpr(e Expr) {
	switch n := e.(type) {
	case *LiteralExpr:
		g.pushConstant(n.Value)

	case *VariableExpr:
		if slot, isLocal, ok := g.sym.Lookup(n.Name); ok {
			if isLocal {
				g.emit(bytecode.OpLoad, uint32(slot))
			} else {
				g.emit(bytecode.OpLoadGlobal, uint32(slot))
			}
		} else {
			g.errorf("undefined variable %q", n.Name)
			g.pushConstant(NilValue())
		}

	case *BinaryExpr:
		g.compileExpr(n.Left)
		g.compileExpr(n.Right)
		g.emit(binaryOpcode(n.Op), 0)

	case *CompareExpr:
		g.compileExpr(n.Left)
		g.compileExpr(n.Right)
		g.emit(compareOpcode(n.Op), 0)

	case *LogicalExpr:
		g.compileLogical(n)

	case *NegExpr:
		g.compileExpr(n.Right)
		g.emit(bytecode.OpNeg, 0)

	case *CallExpr:
		g.compileCall(n)

	case *ArrayExpr:
		for _, el := range n.Elements {
			g.compileExpr(el)
		}
		g.emit(bytecode.OpNewArray, uint32(len(n.Elements)))

	case *IndexExpr:
		g.compileExpr(n.Array)
		g.compileExpr(n.Index)
		g.emit(bytecode.OpLoadIndex, 0)

	case *GetExpr:
		g.errorf("unresolved member access %s — Get never survives parsing", n)
		g.pushConstant(NilValue())

	default:
		g.errorf("unhandled expression %T", e)
		g.pushConstant(NilValue())
	}
}

func binaryOpcode(op TokenType) bytecode.OpCode {
	switch op {
	case PLUS:
		return bytecode.OpAdd
	case MINUS:
		return bytecode.OpSub
	case STAR:
		return bytecode.OpMul
	case SLASH:
		return bytecode.OpDiv
	case PERCENT:
		return bytecode.OpMod
	default:
		return bytecode.OpAdd
	}
}

func compareOpcode(op TokenType) bytecode.OpCode {
	switch op {
	case EQUALS:
		return bytecode.OpEq
	case NOT_EQ:
		return bytecode.OpNeq
	case LESS:
		return bytecode.OpLt
	case LESS_EQ:
		return bytecode.OpLte
	case GREATER:
		return bytecode.OpGt
	case GREATER_EQ:
		return bytecode.OpGte
	default:
		return bytecode.OpEq
	}
}

// compileLogical implements the mandated short-circuit fix: DUP before the
// conditional jump and POP after it on the non-short-circuit path, so the
// expression always leaves exactly one value on the stack (the reference's
// original lowering, using a bare JMP_IFNOT/JMP_IF, leaves nothing on the
// short-circuit path because those opcodes pop their condition).
func (g *generator) compileLogical(n *LogicalExpr) {
	if n.Op == BANG {
		g.compileExpr(n.Right)
		g.emit(bytecode.OpNot, 0)
		return
	}

	g.compileExpr(n.Left)
	g.emit(bytecode.OpDup, 0)

	var shortCircuitJump int
	if n.Op == AND_AND {
		shortCircuitJump = g.emit(bytecode.OpJmpIfNot, bytecode.JumpSentinel)
	} else {
		shortCircuitJump = g.emit(bytecode.OpJmpIf, bytecode.JumpSentinel)
	}

	g.emit(bytecode.OpPop, 0)
	g.compileExpr(n.Right)

	g.patch(shortCircuitJump, g.here())
}

// compileCall resolves a Call to either a direct PRINT/PRINTLN/READ opcode,
// a CALL_NATIVE dispatch, or a compiled user CALL — per §4.4.3.
func (g *generator) compileCall(n *CallExpr) {
	for _, a := range n.Args {
		g.compileExpr(a)
	}

	if n.IsNative {
		if n.ClassName == "Console" {
			switch n.MethodName {
			case "print":
				g.emit(bytecode.OpPrint, 0)
				return
			case "println":
				g.emit(bytecode.OpPrintln, 0)
				return
			case "read":
				g.emit(bytecode.OpRead, 0)
				return
			}
		}
		name := n.ClassName + "." + n.MethodName
		idx := g.internNative(name)
		g.emit(bytecode.OpCallNative, idx)
		return
	}

	candidates := make([]string, 0, 2)
	if n.ClassName != "" {
		candidates = append(candidates, n.ClassName+"_"+n.MethodName)
	}
	candidates = append(candidates, n.MethodName)

	for _, key := range candidates {
		if addr, ok := g.addr[key]; ok {
			g.emit(bytecode.OpCall, addr)
			return
		}
	}
	g.errorf("Function %s .%s not found", n.ClassName, n.MethodName)
	g.pushConstant(NilValue())
}
