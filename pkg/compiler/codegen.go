package compiler

import (
	"fmt"

	"tail/pkg/bytecode"
)

// CompileError reports a semantic error discovered during code generation:
// undefined variable, undefined function, break/continue outside a loop,
// or a missing/duplicate Main. Compilation aborts on the first batch of
// these (see §7).
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

// loopCtx tracks the pending backpatch sites of one enclosing While/For,
// per §4.4's "stack of loop contexts" note.
type loopCtx struct {
	breaks    []int
	continues []int
}

// generator holds all codegen state for a single Generate call. It is not
// reused across compilations.
type generator struct {
	img *bytecode.Image
	sym *SymbolTable

	addr map[string]uint32 // bare/qualified function name -> code address

	intConsts    map[int64]uint32
	floatConsts  map[float64]uint32
	boolConsts   [2]int32
	stringConsts map[string]uint32
	strConstIdx  map[uint32]uint32 // string-table index -> constant-pool index
	nativeIdx    map[string]uint32

	loops []*loopCtx
	errs  []error
}

// Unit pairs one resolved file with its parsed top-level statements, in the
// order the driver wants them compiled.
type Unit struct {
	Resolved ResolvedFile
	Stmts    []Stmt
}

// Generate implements §4.4's full emission pipeline over units, which arrive
// in resolver order (main file first); Generate partitions them by IsMain
// itself so non-main functions are emitted before main ones. It returns the finished Image, or a non-empty error list if any
// semantic error was found (undefined function/variable, break/continue
// outside a loop, missing or duplicate Main).
func Generate(units []Unit) (*bytecode.Image, []error) {
	g := &generator{
		img:          bytecode.NewImage(),
		sym:          NewSymbolTable(),
		addr:         make(map[string]uint32),
		intConsts:    make(map[int64]uint32),
		floatConsts:  make(map[float64]uint32),
		boolConsts:   [2]int32{-1, -1},
		stringConsts: make(map[string]uint32),
		strConstIdx:  make(map[uint32]uint32),
		nativeIdx:    make(map[string]uint32),
	}

	var preamble []preambleInit
	var mainFn *FunctionStmt
	mainSeen := 0

	type namedFn struct {
		fn   *FunctionStmt
		stem string
	}
	var nonMainFns, mainFns []namedFn

	for _, u := range units {
		for _, s := range u.Stmts {
			switch n := s.(type) {
			case *FunctionStmt:
				if n.Name == "Main" {
					mainSeen++
					mainFn = n
					continue
				}
				if u.Resolved.IsMain {
					mainFns = append(mainFns, namedFn{n, u.Resolved.Stem})
				} else {
					nonMainFns = append(nonMainFns, namedFn{n, u.Resolved.Stem})
				}
			case *VarDeclStmt:
				slot := g.sym.DefineGlobal(n.Name)
				preamble = append(preamble, preambleInit{slot: slot, init: n.Init, elemType: n.Type})
			case *ArrayDeclStmt:
				slot := g.sym.DefineGlobal(n.Name)
				preamble = append(preamble, preambleInit{slot: slot, size: n.Size, init: n.Init, isArray: true, elemType: n.ElemType})
			default:
				g.errs = append(g.errs, &CompileError{Message: fmt.Sprintf("illegal top-level statement: %s", s)})
			}
		}
	}

	if mainSeen == 0 {
		g.errs = append(g.errs, &CompileError{Message: "no Main function found"})
		return nil, g.errs
	}
	if mainSeen > 1 {
		g.errs = append(g.errs, &CompileError{Message: "multiple Main functions found"})
		return nil, g.errs
	}

	for _, nf := range nonMainFns {
		qualified := nf.stem + "_" + nf.fn.Name
		g.compileFunction(nf.fn, qualified, nf.fn.Name)
	}
	for _, nf := range mainFns {
		g.compileFunction(nf.fn, "", nf.fn.Name)
	}
	g.compileMain(mainFn, preamble)

	if len(g.errs) > 0 {
		return nil, g.errs
	}

	if len(g.img.Code) == 0 || g.img.Code[len(g.img.Code)-1].Op != bytecode.OpHalt {
		g.img.Code = append(g.img.Code, bytecode.Instruction{Op: bytecode.OpHalt})
	}

	return g.img, nil
}

type preambleInit struct {
	slot     int
	size     Expr
	init     Expr
	isArray  bool
	elemType ValueType
}

// compileFunction emits one function body and registers its address under
// bareName and, if qualifiedName is non-empty, also under qualifiedName —
// implementing §4.4's "bare name always, qualified name for non-main
// modules" function-address registration rule. Bare-name collisions let a
// later (main-module) registration override an earlier (module) one.
func (g *generator) compileFunction(fn *FunctionStmt, qualifiedName, bareName string) {
	addr := uint32(len(g.img.Code))
	if qualifiedName != "" {
		g.addr[qualifiedName] = addr
	}
	g.addr[bareName] = addr

	locals := countLocals(fn.Body, len(fn.Params))

	g.sym.EnterFunction()
	for _, p := range fn.Params {
		g.sym.DefineLocal(p.Name)
	}
	g.compileBlockInline(fn.Body)
	g.ensureReturn()
	g.sym.ExitFunction()

	g.img.Functions = append(g.img.Functions, bytecode.FunctionSym{
		Name:    bareName,
		Address: addr,
		Arity:   uint8(len(fn.Params)),
		Locals:  uint8(locals),
	})
}

// compileMain is compileFunction specialised for Main: the module-level
// preamble (global declarations collected from every unit) is emitted
// first, ahead of Main's own statements, so the globals it touches are
// already assigned.
func (g *generator) compileMain(fn *FunctionStmt, preamble []preambleInit) {
	addr := uint32(len(g.img.Code))
	g.addr["Main"] = addr

	locals := countLocals(fn.Body, len(fn.Params))

	g.sym.EnterFunction()
	for _, p := range fn.Params {
		g.sym.DefineLocal(p.Name)
	}

	for _, p := range preamble {
		g.compilePreambleInit(p)
	}
	g.compileBlockInline(fn.Body)
	g.ensureReturn()
	g.sym.ExitFunction()

	g.img.Functions = append(g.img.Functions, bytecode.FunctionSym{
		Name:    "Main",
		Address: addr,
		Arity:   uint8(len(fn.Params)),
		Locals:  uint8(locals),
	})
}

func (g *generator) compilePreambleInit(p preambleInit) {
	if !p.isArray {
		if p.init != nil {
			g.compileExpr(p.init)
		} else {
			g.pushConstant(DefaultForType(p.elemType))
		}
		g.emit(bytecode.OpStoreGlobal, uint32(p.slot))
		return
	}
	switch {
	case p.init != nil:
		g.compileExpr(p.init)
	case p.size != nil:
		g.compileExpr(p.size)
		g.emit(bytecode.OpArrayAlloc, uint32(elemTag(p.elemType)))
	default:
		g.pushConstant(IntValue(0))
		g.emit(bytecode.OpArrayAlloc, uint32(elemTag(p.elemType)))
	}
	g.emit(bytecode.OpStoreGlobal, uint32(p.slot))
}

// ensureReturn appends `PUSH nil; RET` when the compiled body didn't already
// end in RET or HALT, per §4.4.2.
func (g *generator) ensureReturn() {
	n := len(g.img.Code)
	if n > 0 {
		last := g.img.Code[n-1].Op
		if last == bytecode.OpRet || last == bytecode.OpHalt {
			return
		}
	}
	g.pushConstant(NilValue())
	g.emit(bytecode.OpRet, 0)
}

func elemTag(t ValueType) bytecode.ValueTag {
	switch t {
	case TypeFloat:
		return bytecode.TagFloat
	case TypeStr:
		return bytecode.TagString
	default:
		return bytecode.TagInt
	}
}

// ---- low-level emission helpers ----

func (g *generator) emit(op bytecode.OpCode, operand uint32) int {
	g.img.Code = append(g.img.Code, bytecode.Instruction{Op: op, Operand: operand})
	return len(g.img.Code) - 1
}

func (g *generator) patch(idx int, target uint32) {
	g.img.Code[idx].Operand = target
}

func (g *generator) here() uint32 { return uint32(len(g.img.Code)) }

func (g *generator) pushConstant(v Value) {
	idx := g.internConstant(v)
	g.emit(bytecode.OpPush, idx)
}

// internConstant dedups identical int/float/bool/string constants into a
// single pool slot, per invariant 3.
func (g *generator) internConstant(v Value) uint32 {
	switch v.Tag {
	case TagInt:
		if idx, ok := g.intConsts[v.I]; ok {
			return idx
		}
		idx := uint32(len(g.img.Constants))
		g.img.Constants = append(g.img.Constants, bytecode.Constant{Tag: bytecode.TagInt, I: v.I})
		g.intConsts[v.I] = idx
		return idx
	case TagFloat:
		if idx, ok := g.floatConsts[v.F]; ok {
			return idx
		}
		idx := uint32(len(g.img.Constants))
		g.img.Constants = append(g.img.Constants, bytecode.Constant{Tag: bytecode.TagFloat, F: v.F})
		g.floatConsts[v.F] = idx
		return idx
	case TagBool:
		slot := 0
		if v.B {
			slot = 1
		}
		if g.boolConsts[slot] >= 0 {
			return uint32(g.boolConsts[slot])
		}
		idx := uint32(len(g.img.Constants))
		g.img.Constants = append(g.img.Constants, bytecode.Constant{Tag: bytecode.TagBool, B: v.B})
		g.boolConsts[slot] = int32(idx)
		return idx
	case TagString:
		strIdx := g.internString(v.S)
		if idx, ok := g.strConstIdx[strIdx]; ok {
			return idx
		}
		idx := uint32(len(g.img.Constants))
		g.img.Constants = append(g.img.Constants, bytecode.Constant{Tag: bytecode.TagString, StrIdx: strIdx})
		g.strConstIdx[strIdx] = idx
		return idx
	default:
		idx := uint32(len(g.img.Constants))
		g.img.Constants = append(g.img.Constants, bytecode.Constant{Tag: bytecode.TagNil})
		return idx
	}
}

func (g *generator) internString(s string) uint32 {
	if idx, ok := g.stringConsts[s]; ok {
		return idx
	}
	idx := uint32(len(g.img.Strings))
	g.img.Strings = append(g.img.Strings, s)
	g.stringConsts[s] = idx
	return idx
}

func (g *generator) internNative(name string) uint32 {
	if idx, ok := g.nativeIdx[name]; ok {
		return idx
	}
	idx := uint32(len(g.img.NativeImports))
	g.img.NativeImports = append(g.img.NativeImports, name)
	g.nativeIdx[name] = idx
	return idx
}

func (g *generator) errorf(format string, args ...any) {
	g.errs = append(g.errs, &CompileError{Message: fmt.Sprintf(format, args...)})
}
