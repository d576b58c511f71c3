// Package codegen lowers a parsed Marten AST into bytecode for the
// register VM.
//
// The generator walks the tree once, maintaining a stack of lexical
// scopes over one flat name list and per-function emission state. Locals
// are packed into dense registers; temporaries live above a watermark
// that local declarations and blocks restore on exit (a call statement
// leaves its temporaries to the enclosing block), pairing every
// compile-time reclaim with an emitted SET_TOP so the VM drops the same
// slots at run time.
//
// Expected result arity flows from parent to child through two integer
// stacks: a parent pushes how many values it wants immediately before
// descending, the child pops exactly once. Only the final expression of a
// list may fan out to multiple values.
package codegen

import (
	"fmt"

	"github.com/chazu/marten/pkg/ast"
	"github.com/chazu/marten/pkg/bytecode"
	"github.com/chazu/marten/pkg/runtime"
)

// EnvUpvalueIndex is the upvalue slot holding the global environment
// table in every top-level closure.
const EnvUpvalueIndex = 0

// nameReg pairs a declared name's register with its token, carried from
// NameList visitation to the statement that binds the names.
type nameReg struct {
	register int
	token    ast.TokenDetail
}

// funcState is the per-function generation state.
type funcState struct {
	namesRegister     []nameReg
	expValueCount     []int
	expListValueCount []int
}

func (fs *funcState) pushExpValueCount(count int) {
	fs.expValueCount = append(fs.expValueCount, count)
}

func (fs *funcState) popExpValueCount() int {
	if len(fs.expValueCount) == 0 {
		return 0
	}
	count := fs.expValueCount[len(fs.expValueCount)-1]
	fs.expValueCount = fs.expValueCount[:len(fs.expValueCount)-1]
	return count
}

func (fs *funcState) pushExpListValueCount(count int) {
	fs.expListValueCount = append(fs.expListValueCount, count)
}

func (fs *funcState) popExpListValueCount() int {
	if len(fs.expListValueCount) == 0 {
		return 0
	}
	count := fs.expListValueCount[len(fs.expListValueCount)-1]
	fs.expListValueCount = fs.expListValueCount[:len(fs.expListValueCount)-1]
	return count
}

// generator holds the walk state for one Generate call.
type generator struct {
	state *runtime.State

	scopes scopeNameList

	// Current function and its generation state; saved and restored
	// around nested chunk/function-body visits.
	fn *runtime.Function
	fs *funcState
}

// Generate compiles chunk into a function prototype, wraps it in a
// closure whose sole upvalue is the global environment table, and pushes
// the closure onto the State's operand stack.
func Generate(chunk *ast.Chunk, state *runtime.State) error {
	g := &generator{state: state}
	return g.genChunk(chunk)
}

func (g *generator) genChunk(chunk *ast.Chunk) error {
	gc := g.state.GC()

	fn := g.state.NewFunction()
	fn.SetBaseInfo(gc, g.state.NewString(chunk.Module), 0)
	fn.SetSuperior(gc, g.fn)
	if g.fn != nil {
		g.fn.AddChild(gc, fn)
	}

	prevFn, prevFs := g.fn, g.fs
	g.fn = fn
	g.fs = &funcState{}
	// The per-function state must unwind on every path, errors included.
	defer func() {
		g.fn, g.fs = prevFn, prevFs
	}()

	if err := g.genBlock(chunk.Block); err != nil {
		return err
	}

	cl := g.state.NewClosure()
	cl.SetPrototype(gc, fn)
	cl.AddUpvalue(gc, runtime.TableValue(g.state.Global()), runtime.UpvalueStack)
	g.state.Stack().Push(runtime.ClosureValue(cl))
	return nil
}

func (g *generator) genBlock(block *ast.Block) error {
	scope := enterScope(&g.scopes, g.fn)
	defer scope.exit()

	reg := g.fn.GetNextRegister()

	for _, stmt := range block.Stmts {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	if block.Return != nil {
		if err := g.genReturn(block.Return); err != nil {
			return err
		}
	}

	g.fn.SetNextRegister(reg)
	g.fn.AddInstruction(bytecode.ACode(bytecode.OpSetTop, reg), 0)
	return nil
}

func (g *generator) genStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.LocalNameListStatement:
		return g.genLocalNameList(s)
	case *ast.NormalFuncCall:
		return g.genNormalFuncCall(s)
	case *ast.AssignmentStatement:
		return unsupported(s.Line, "assignment")
	case *ast.BreakStatement:
		return unsupported(s.Line, "break")
	case *ast.DoStatement:
		return unsupported(s.Line, "do block")
	case *ast.WhileStatement:
		return unsupported(s.Line, "while loop")
	case *ast.RepeatStatement:
		return unsupported(s.Line, "repeat loop")
	case *ast.IfStatement:
		return unsupported(s.Line, "if statement")
	case *ast.NumericForStatement:
		return unsupported(s.Line, "numeric for loop")
	case *ast.GenericForStatement:
		return unsupported(s.Line, "generic for loop")
	case *ast.FunctionStatement:
		return unsupported(s.Line, "function declaration")
	case *ast.LocalFunctionStatement:
		return unsupported(s.Line, "local function declaration")
	case *ast.MemberFuncCall:
		return unsupported(s.Line, "method call")
	default:
		return unsupported(stmt.SrcLine(), fmt.Sprintf("statement %T", stmt))
	}
}

// genNameList binds each declared name in the current scope at the
// current watermark, advancing it only for names new to the scope, and
// records (register, token) pairs for the declaring statement to drain.
func (g *generator) genNameList(nl *ast.NameList) {
	for _, tok := range nl.Names {
		if tok.Kind != ast.TokenID {
			panic(fmt.Sprintf("codegen: name list token is %s, not an identifier", tok.Kind))
		}
		name := g.state.NewString(tok.Str)
		reg := g.fn.GetNextRegister()
		if g.scopes.current.addName(name, &reg) {
			g.fn.AllocaNextRegister()
		}
		g.fs.namesRegister = append(g.fs.namesRegister, nameReg{register: reg, token: tok})
	}
}

func (g *generator) genLocalNameList(stmt *ast.LocalNameListStatement) error {
	g.genNameList(stmt.NameList)

	reg := g.fn.GetNextRegister()
	names := len(g.fs.namesRegister)

	if stmt.ExpList != nil {
		g.fs.pushExpListValueCount(names)
		if err := g.genExpList(stmt.ExpList); err != nil {
			return err
		}
	}

	// The expression list left its values in the temporary region
	// starting at reg; copy them into the stable local registers
	// assigned at declaration time.
	expReg := reg
	for i := 0; i < names; i++ {
		nr := g.fs.namesRegister[i]
		g.fn.AddInstruction(bytecode.ABCode(bytecode.OpMove, nr.register, expReg), nr.token.Line)
		expReg++
	}
	g.fs.namesRegister = g.fs.namesRegister[:0]

	g.fn.SetNextRegister(reg)
	g.fn.AddInstruction(bytecode.ACode(bytecode.OpSetTop, reg), 0)
	return nil
}

func (g *generator) genReturn(stmt *ast.ReturnStatement) error {
	reg := g.fn.GetNextRegister()
	count := 0
	if stmt.ExpList != nil {
		g.fs.pushExpListValueCount(bytecode.ExpValueCountAny)
		if err := g.genExpList(stmt.ExpList); err != nil {
			return err
		}
		count = bytecode.ExpValueCountAny
	}
	g.fn.AddInstruction(bytecode.AsBxCode(bytecode.OpReturn, reg, count), stmt.Line)
	return nil
}

// genExpList distributes the expected value count over the list: earlier
// expressions are truncated to one value each, only the final expression
// receives whatever remains (possibly "any").
func (g *generator) genExpList(el *ast.ExpressionList) error {
	valueCount := g.fs.popExpListValueCount()

	last := len(el.Exprs) - 1
	for i, exp := range el.Exprs {
		if valueCount == 0 {
			g.fs.pushExpValueCount(0)
		} else {
			count := 1
			if i == last {
				count = valueCount
			}
			g.fs.pushExpValueCount(count)
			if valueCount != bytecode.ExpValueCountAny {
				valueCount -= count
			}
		}
		if err := g.genExpr(exp); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) genExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.Terminator:
		return g.genTerminator(e)
	case *ast.NormalFuncCall:
		return g.genNormalFuncCall(e)
	case *ast.BinaryExpression:
		return unsupported(e.Line, "binary operator")
	case *ast.UnaryExpression:
		return unsupported(e.Line, "unary operator")
	case *ast.FunctionBody:
		return unsupported(e.Line, "function literal")
	case *ast.TableDefine:
		return unsupported(e.Line, "table constructor")
	case *ast.IndexAccessor:
		return unsupported(e.Line, "index access")
	case *ast.MemberAccessor:
		return unsupported(e.Line, "member access")
	case *ast.MemberFuncCall:
		return unsupported(e.Line, "method call")
	default:
		return unsupported(expr.SrcLine(), fmt.Sprintf("expression %T", expr))
	}
}

func (g *generator) genTerminator(term *ast.Terminator) error {
	t := term.Token
	valueCount := g.fs.popExpValueCount()

	switch t.Kind {
	case ast.TokenNumber, ast.TokenString:
		var index int
		if t.Kind == ast.TokenNumber {
			index = g.fn.AddConstNumber(t.Number)
		} else {
			index = g.fn.AddConstString(g.state.GC(), g.state.NewString(t.Str))
		}
		if valueCount != 0 {
			reg := g.fn.AllocaNextRegister()
			g.fn.AddInstruction(bytecode.ABCode(bytecode.OpLoadConst, reg, index), t.Line)
		}
		return nil

	case ast.TokenID:
		name := g.state.NewString(t.Str)
		scope, owner := g.scopes.current.resolve(name)

		if scope == nil {
			// Unbound name: a global, read out of the environment
			// upvalue table by its name constant.
			index := g.fn.AddConstString(g.state.GC(), name)
			if valueCount != 0 {
				reg := g.fn.AllocaNextRegister()
				g.fn.AddInstruction(bytecode.ABCode(bytecode.OpLoadConst, reg, index), t.Line)
				g.fn.AddInstruction(bytecode.ABCCode(bytecode.OpGetUpTable, reg, EnvUpvalueIndex, reg), t.Line)
			}
			return nil
		}

		if owner == g.fn {
			srcReg, ok := scope.contains(name)
			if !ok {
				panic("codegen: resolved name vanished from its scope")
			}
			if valueCount != 0 {
				dstReg := g.fn.AllocaNextRegister()
				g.fn.AddInstruction(bytecode.ABCode(bytecode.OpMove, dstReg, srcReg), t.Line)
			}
			return nil
		}

		// The name lives in an enclosing function. Binding it needs
		// upvalue descriptors the generator does not emit yet.
		return unsupported(t.Line, fmt.Sprintf("upvalue reference to %q", t.Str))

	default:
		return unsupported(t.Line, fmt.Sprintf("%s literal", t.Kind))
	}
}

func (g *generator) genNormalFuncCall(call *ast.NormalFuncCall) error {
	reg := g.fn.GetNextRegister()
	resultCount := g.fs.popExpValueCount()

	// The callee lands at reg, arguments follow it upward.
	g.fs.pushExpValueCount(1)
	if err := g.genExpr(call.Caller); err != nil {
		return err
	}
	if err := g.genFuncCallArgs(call.Args); err != nil {
		return err
	}

	g.fn.AddInstruction(bytecode.AsBxCode(bytecode.OpCall, reg, resultCount), call.Line)
	return nil
}

func (g *generator) genFuncCallArgs(args *ast.FuncCallArgs) error {
	switch args.Kind {
	case ast.ArgsString, ast.ArgsTable:
		g.fs.pushExpValueCount(1)
		return g.genExpr(args.Arg)
	case ast.ArgsExpList:
		if args.ExpList != nil {
			// Call sites propagate multi-value mode into the final
			// argument.
			g.fs.pushExpListValueCount(bytecode.ExpValueCountAny)
			return g.genExpList(args.ExpList)
		}
		return nil
	default:
		return unsupported(args.Line, "call argument form")
	}
}
