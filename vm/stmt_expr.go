package vm

import (
	"math/big"

	"go.starlark.net/syntax"
)

const rangeStop = "$range_stop"

func (cc *compileContext) statement(s syntax.Stmt) error {
	at := cc.addrOf(s)

	switch v := s.(type) {
	case *syntax.AssignStmt:
		return cc.assign(v)
	case *syntax.BranchStmt:
		switch v.Token {
		case syntax.PASS:
			return nil
		case syntax.BREAK:
			if cc.loopDepth == 0 {
				return cc.errorf(v, "'break' outside loop")
			}
			cc.emit(at, BREAK, 0)
		case syntax.CONTINUE:
			if cc.loopDepth == 0 {
				return cc.errorf(v, "'continue' outside loop")
			}
			cc.emit(at, CONTINUE, 0)
		default:
			return cc.errorf(v, "unexpected branch %s", v.Token)
		}
	case *syntax.DefStmt:
		return cc.def(v)
	case *syntax.ExprStmt:
		if call, ok := v.X.(*syntax.CallExpr); ok {
			return cc.call(call, false)
		}
		if _, ok := v.X.(*syntax.Literal); ok {
			// Opt: don't compile literals only to pop them.
			return nil
		}
		if err := cc.expr(v.X); err != nil {
			return err
		}
		cc.emit(at, POP, 0)
	case *syntax.ForStmt:
		return cc.forRange(v)
	case *syntax.WhileStmt:
		// The body checks the condition itself and breaks out:
		//   <cond>; NOT; JFALSE body; BREAK; body: <stmts>
		sub := cc.loopContext(cc.chunk.Name + ".while")
		if err := sub.expr(v.Cond); err != nil {
			return err
		}
		bodyLabel := sub.newLabel()
		sub.emit(at, NOT, 0)
		sub.emitJump(at, JFALSE, bodyLabel)
		sub.emit(at, BREAK, 0)
		sub.emitLabel(bodyLabel)
		if err := sub.buildFromStatements(v.Body); err != nil {
			return err
		}
		body, err := sub.seal()
		if err != nil {
			return err
		}
		cc.emitOp(Op{Code: LOOP, Body: body, Addr: at})
	case *syntax.IfStmt:
		if err := cc.expr(v.Cond); err != nil {
			return err
		}
		label := cc.newLabel()
		cc.emitJump(at, JFALSE, label)
		if err := cc.buildFromStatements(v.True); err != nil {
			return err
		}
		if len(v.False) == 0 {
			cc.emitLabel(label)
			return nil
		}
		endLabel := cc.newLabel()
		cc.emitJump(at, JMP, endLabel)
		cc.emitLabel(label)
		if err := cc.buildFromStatements(v.False); err != nil {
			return err
		}
		cc.emitLabel(endLabel)
	case *syntax.LoadStmt:
		return cc.errorf(v, "load statements are not supported")
	case *syntax.ReturnStmt:
		if v.Result == nil {
			cc.emitConst(at, PUSH, None)
		} else if err := cc.expr(v.Result); err != nil {
			return err
		}
		cc.emit(at, RETURN, 0)
	default:
		return cc.errorf(s, "unhandled statement type %T", s)
	}
	return nil
}

func (cc *compileContext) def(v *syntax.DefStmt) error {
	at := cc.addrOf(v)
	name := v.Name.Name
	params, err := funcParams(cc, v.Params)
	if err != nil {
		return err
	}
	sub := cc.funcContext(name)
	isParam := make(map[string]bool, len(params))
	for _, p := range params {
		isParam[p] = true
	}
	// Every name the body assigns is local to the call, as in Python.
	for _, local := range collectAssignedVars(v.Body) {
		if isParam[local] {
			continue
		}
		sub.emitConst(at, PUSH, None)
		sub.emitConst(at, DEFINE, StrValue(local))
	}
	if err := sub.buildFromStatements(v.Body); err != nil {
		return err
	}
	body, err := sub.seal()
	if err != nil {
		return err
	}
	idx := len(cc.chunk.Functions)
	cc.chunk.Functions = append(cc.chunk.Functions, &Function{Name: name, Params: params, Body: body})
	cc.emit(at, MAKE_FN, idx)
	cc.store(at, name)
	return nil
}

// forRange lowers `for x in range(...)` into a scoped LOOP whose post step
// advances x, so `continue` still steps the counter.
func (cc *compileContext) forRange(v *syntax.ForStmt) error {
	at := cc.addrOf(v)
	id, ok := v.Vars.(*syntax.Ident)
	if !ok {
		return cc.errorf(v.Vars, "for loops bind a single name")
	}
	call, ok := v.X.(*syntax.CallExpr)
	if !ok || !isIdent(call.Fn, string(Range)) {
		return cc.errorf(v.X, "for loops only iterate over range(...)")
	}
	var start, stop syntax.Expr
	step := int64(1)
	switch len(call.Args) {
	case 1:
		stop = call.Args[0]
	case 2, 3:
		start, stop = call.Args[0], call.Args[1]
		if len(call.Args) == 3 {
			n, ok := intLiteral(call.Args[2])
			if !ok {
				return cc.errorf(call.Args[2], "range step must be an integer literal")
			}
			if n == 0 {
				return cc.errorf(call.Args[2], "range step must not be zero")
			}
			step = n
		}
	default:
		return cc.errorf(call, "range takes 1 to 3 arguments, got %d", len(call.Args))
	}

	cc.emit(at, NEW_SCOPE, 0)
	cc.pushBlock()
	defer cc.popBlock()
	if start == nil {
		cc.emitConst(at, PUSH, IntValue(0))
	} else if err := cc.expr(start); err != nil {
		return err
	}
	if err := cc.expr(stop); err != nil {
		return err
	}
	cc.emitConst(at, DEFINE, StrValue(rangeStop))
	cc.emitConst(at, DEFINE, StrValue(id.Name))
	cc.bindInBlock(rangeStop)
	cc.bindInBlock(id.Name)

	sub := cc.loopContext(cc.chunk.Name + ".for")
	bodyLabel := sub.newLabel()
	sub.emitConst(at, LOAD_LOCAL, StrValue(id.Name))
	sub.emitConst(at, LOAD_LOCAL, StrValue(rangeStop))
	if step > 0 {
		sub.emit(at, LT, 0)
	} else {
		sub.emit(at, GT, 0)
	}
	sub.emit(at, NOT, 0)
	sub.emitJump(at, JFALSE, bodyLabel)
	sub.emit(at, BREAK, 0)
	sub.emitLabel(bodyLabel)
	if err := sub.buildFromStatements(v.Body); err != nil {
		return err
	}
	body, err := sub.seal()
	if err != nil {
		return err
	}

	post := cc.loopContext(cc.chunk.Name + ".step")
	post.emitConst(at, LOAD_LOCAL, StrValue(id.Name))
	post.emitConst(at, PUSH, IntValue(step))
	post.emit(at, ADD, 0)
	post.emitConst(at, STORE_LOCAL, StrValue(id.Name))
	postChunk, err := post.seal()
	if err != nil {
		return err
	}

	cc.emitOp(Op{Code: LOOP, Body: body, Post: postChunk, Addr: at})
	cc.emit(at, POP_SCOPE, 0)
	return nil
}

func (cc *compileContext) usesScopeChain(name string) bool {
	return cc.inFunc || cc.inBlock(name)
}

func (cc *compileContext) load(at Address, name string) {
	if cc.usesScopeChain(name) {
		cc.emitConst(at, LOAD_LOCAL, StrValue(name))
		return
	}
	cc.emitConst(at, LOAD_GLOBAL, StrValue(name))
}

func (cc *compileContext) store(at Address, name string) {
	if cc.usesScopeChain(name) {
		cc.emitConst(at, STORE_LOCAL, StrValue(name))
		return
	}
	cc.emitConst(at, STORE_GLOBAL, StrValue(name))
}

func (cc *compileContext) expr(e syntax.Expr) error {
	at := cc.addrOf(e)

	switch v := e.(type) {
	case *syntax.BinaryExpr:
		if v.Op == syntax.AND || v.Op == syntax.OR {
			return cc.shortCircuitBinOp(v)
		}
		if err := cc.expr(v.X); err != nil {
			return err
		}
		if err := cc.expr(v.Y); err != nil {
			return err
		}
		return cc.binOp(v, at)
	case *syntax.CallExpr:
		return cc.call(v, true)
	case *syntax.CondExpr:
		if err := cc.expr(v.Cond); err != nil {
			return err
		}
		label := cc.newLabel()
		cc.emitJump(at, JFALSE, label)
		if err := cc.expr(v.True); err != nil {
			return err
		}
		endLabel := cc.newLabel()
		cc.emitJump(at, JMP, endLabel)
		cc.emitLabel(label)
		if err := cc.expr(v.False); err != nil {
			return err
		}
		cc.emitLabel(endLabel)
	case *syntax.Ident:
		switch v.Name {
		case "True":
			cc.emitConst(at, PUSH, BoolTrue)
		case "False":
			cc.emitConst(at, PUSH, BoolFalse)
		case "None":
			cc.emitConst(at, PUSH, None)
		default:
			cc.load(at, v.Name)
		}
	case *syntax.Literal:
		if _, ok := v.Value.(*big.Int); ok {
			return cc.errorf(v, "integer literal %s does not fit in 64 bits", v.Raw)
		}
		val, err := litToValue(v.Value)
		if err != nil {
			return cc.errorf(v, "%v", err)
		}
		cc.emitConst(at, PUSH, val)
	case *syntax.ParenExpr:
		return cc.expr(unparen(v))
	case *syntax.UnaryExpr:
		return cc.unary(v, at)
	default:
		return cc.errorf(e, "unsupported expression %T", e)
	}
	return nil
}

// call lowers a call. With push unset the result is discarded; native calls
// are told not to push one at all.
func (cc *compileContext) call(v *syntax.CallExpr, push bool) error {
	at := cc.addrOf(v)
	if ok, err := cc.specialCall(v, push); ok {
		return err
	}
	for _, a := range v.Args {
		if err := cc.callArg(a); err != nil {
			return err
		}
	}
	if dot, ok := v.Fn.(*syntax.DotExpr); ok {
		ns, ok := dot.X.(*syntax.Ident)
		if !ok {
			return cc.errorf(dot, "native calls take the form namespace.function(...)")
		}
		name := NativeName(ns.Name, dot.Name.Name)
		cc.emitOp(Op{Code: CALL_NATIVE, Arg: cc.chunk.AddConstant(StrValue(name)), Argc: len(v.Args), Push: push, Addr: at})
		return nil
	}
	if err := cc.expr(v.Fn); err != nil {
		return err
	}
	cc.emit(at, CALL, len(v.Args))
	if !push {
		cc.emit(at, POP, 0)
	}
	return nil
}

func (cc *compileContext) callArg(arg syntax.Expr) error {
	switch v := arg.(type) {
	case *syntax.BinaryExpr:
		if v.Op == syntax.EQ {
			return cc.errorf(arg, "keyword arguments are not supported")
		}
	case *syntax.UnaryExpr:
		if v.Op == syntax.STAR || v.Op == syntax.STARSTAR {
			return cc.errorf(arg, "splats are not supported")
		}
	}
	return cc.expr(arg)
}

// shortCircuitBinOp leaves the deciding operand on the stack:
//
//	and: <x>; DUP; JFALSE end; POP; <y>; end:
//	or:  <x>; DUP; JFALSE else; JMP end; else: POP; <y>; end:
func (cc *compileContext) shortCircuitBinOp(e *syntax.BinaryExpr) error {
	at := cc.addrOf(e)
	if err := cc.expr(e.X); err != nil {
		return err
	}
	endLabel := cc.newLabel()
	cc.emit(at, DUP, 0)
	if e.Op == syntax.AND {
		cc.emitJump(at, JFALSE, endLabel)
		cc.emit(at, POP, 0)
	} else {
		elseLabel := cc.newLabel()
		cc.emitJump(at, JFALSE, elseLabel)
		cc.emitJump(at, JMP, endLabel)
		cc.emitLabel(elseLabel)
		cc.emit(at, POP, 0)
	}
	if err := cc.expr(e.Y); err != nil {
		return err
	}
	cc.emitLabel(endLabel)
	return nil
}

var binOps = map[syntax.Token]Opcode{
	syntax.PLUS:       ADD,
	syntax.MINUS:      SUBTRACT,
	syntax.STAR:       MULTIPLY,
	syntax.SLASH:      DIVIDE,
	syntax.SLASHSLASH: FLOOR_DIVIDE,
	syntax.PERCENT:    MODULO,
	syntax.LT:         LT,
	syntax.GT:         GT,
	syntax.GE:         GTE,
	syntax.LE:         LTE,
	syntax.EQL:        EQ,
	syntax.NEQ:        NEQ,
}

var augmentedOps = map[syntax.Token]Opcode{
	syntax.PLUS_EQ:       ADD,
	syntax.MINUS_EQ:      SUBTRACT,
	syntax.STAR_EQ:       MULTIPLY,
	syntax.SLASH_EQ:      DIVIDE,
	syntax.SLASHSLASH_EQ: FLOOR_DIVIDE,
	syntax.PERCENT_EQ:    MODULO,
}

func (cc *compileContext) binOp(e *syntax.BinaryExpr, at Address) error {
	code, ok := binOps[e.Op]
	if !ok {
		return cc.errorf(e, "unsupported binary operator %s", e.Op)
	}
	cc.emit(at, code, 0)
	return nil
}

func (cc *compileContext) unary(e *syntax.UnaryExpr, at Address) error {
	if err := cc.expr(e.X); err != nil {
		return err
	}
	switch e.Op {
	case syntax.NOT:
		cc.emit(at, NOT, 0)
	case syntax.MINUS:
		cc.emit(at, NEGATE, 0)
	case syntax.PLUS:
	default:
		return cc.errorf(e, "unsupported unary operator %s", e.Op)
	}
	return nil
}

func (cc *compileContext) assign(v *syntax.AssignStmt) error {
	at := cc.addrOf(v)
	id, ok := unparen(v.LHS).(*syntax.Ident)
	if !ok {
		return cc.errorf(v.LHS, "can only assign to a name, got %T", v.LHS)
	}
	switch id.Name {
	case "True", "False", "None":
		return cc.errorf(id, "reassigning `%s` is not allowed", id.Name)
	}
	if v.Op == syntax.EQ {
		if err := cc.expr(v.RHS); err != nil {
			return err
		}
		cc.store(at, id.Name)
		return nil
	}
	code, ok := augmentedOps[v.Op]
	if !ok {
		return cc.errorf(v, "unsupported assignment operator %s", v.Op)
	}
	cc.load(at, id.Name)
	if err := cc.expr(v.RHS); err != nil {
		return err
	}
	cc.emit(at, code, 0)
	cc.store(at, id.Name)
	return nil
}

func isIdent(e syntax.Expr, name string) bool {
	id, ok := e.(*syntax.Ident)
	return ok && id.Name == name
}

// intLiteral folds an integer literal, allowing a leading sign.
func intLiteral(e syntax.Expr) (int64, bool) {
	switch v := unparen(e).(type) {
	case *syntax.Literal:
		n, ok := v.Value.(int64)
		return n, ok
	case *syntax.UnaryExpr:
		n, ok := intLiteral(v.X)
		if !ok {
			return 0, false
		}
		switch v.Op {
		case syntax.MINUS:
			return -n, true
		case syntax.PLUS:
			return n, true
		}
	}
	return 0, false
}
