package vm

import (
	"fmt"

	"github.com/google/uuid"
	"go.starlark.net/syntax"
)

// pendingOp is an Op whose jump target may still be a label.
type pendingOp struct {
	Op
	target string
}

type compileContext struct {
	file      string
	chunk     *Chunk
	ops       []pendingOp
	labels    map[string]int
	inFunc    bool
	loopDepth int
	// blocks are the compile-time images of NEW_SCOPE blocks; names bound in
	// them are always accessed through the scope chain.
	blocks []map[string]bool
}

func newCompileContext(file, name string) *compileContext {
	return &compileContext{
		file:   file,
		chunk:  NewChunk(name),
		labels: make(map[string]int),
	}
}

// loopContext compiles a LOOP body. It shares name resolution with its parent
// but owns its own chunk.
func (cc *compileContext) loopContext(name string) *compileContext {
	sub := newCompileContext(cc.file, name)
	sub.inFunc = cc.inFunc
	sub.loopDepth = cc.loopDepth + 1
	sub.blocks = append([]map[string]bool(nil), cc.blocks...)
	return sub
}

func (cc *compileContext) funcContext(name string) *compileContext {
	sub := newCompileContext(cc.file, name)
	sub.inFunc = true
	return sub
}

func (cc *compileContext) emit(addr Address, code Opcode, arg int) {
	cc.ops = append(cc.ops, pendingOp{Op: Op{Code: code, Arg: arg, Push: true, Addr: addr}})
}

func (cc *compileContext) emitConst(addr Address, code Opcode, v Value) {
	cc.emit(addr, code, cc.chunk.AddConstant(v))
}

func (cc *compileContext) emitJump(addr Address, code Opcode, label string) {
	cc.ops = append(cc.ops, pendingOp{Op: Op{Code: code, Addr: addr}, target: label})
}

func (cc *compileContext) emitOp(op Op) {
	cc.ops = append(cc.ops, pendingOp{Op: op})
}

func (cc *compileContext) newLabel() string {
	return uuid.NewString()
}

func (cc *compileContext) emitLabel(s string) {
	cc.labels[s] = len(cc.ops)
}

func (cc *compileContext) pushBlock() {
	cc.blocks = append(cc.blocks, make(map[string]bool))
}

func (cc *compileContext) popBlock() {
	cc.blocks = cc.blocks[:len(cc.blocks)-1]
}

func (cc *compileContext) bindInBlock(name string) {
	cc.blocks[len(cc.blocks)-1][name] = true
}

func (cc *compileContext) inBlock(name string) bool {
	for i := len(cc.blocks) - 1; i >= 0; i-- {
		if cc.blocks[i][name] {
			return true
		}
	}
	return false
}

// seal resolves labels and returns the finished chunk.
func (cc *compileContext) seal() (*Chunk, error) {
	c := cc.chunk
	c.Ops = make([]Op, 0, len(cc.ops))
	for _, p := range cc.ops {
		op := p.Op
		if p.target != "" {
			off, ok := cc.labels[p.target]
			if !ok {
				return nil, InternalError(op.Addr, "unresolved jump label %s", p.target)
			}
			op.Arg = off
		}
		c.Ops = append(c.Ops, op)
	}
	return c, nil
}

func (cc *compileContext) addrOf(n syntax.Node) Address {
	start, end := n.Span()
	a := Address{
		File: cc.file,
		Line: int(start.Line),
		Span: Span{Start: int(start.Col), End: int(end.Col)},
	}
	if end.Line != start.Line || a.Span.End <= a.Span.Start {
		a.Span.End = a.Span.Start + 1
	}
	return a
}

func (cc *compileContext) errorf(n syntax.Node, format string, args ...any) *Error {
	return Errorf(CompileError, cc.addrOf(n), format, args...)
}

// Compile lowers a parsed file into a chunk.
func Compile(file *syntax.File) (*Chunk, error) {
	cc := newCompileContext(file.Path, "main")
	if err := cc.buildFromStatements(file.Stmts); err != nil {
		return nil, err
	}
	return cc.seal()
}

func CompilePath(path string) (*Chunk, error) {
	f, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return Compile(f)
}

// CompileSource parses and compiles src, which may be a string, []byte or
// io.Reader.
func CompileSource(name string, src any) (*Chunk, error) {
	f, err := Parse(name, src)
	if err != nil {
		return nil, err
	}
	return Compile(f)
}

func (cc *compileContext) buildFromStatements(stmts []syntax.Stmt) error {
	for _, s := range stmts {
		if err := cc.statement(s); err != nil {
			return err
		}
	}
	return nil
}

// collectAssignedVars returns the names a function body binds, not
// descending into nested defs. For-loop variables are block scoped and are
// left out.
func collectAssignedVars(stmts []syntax.Stmt) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var walk func([]syntax.Stmt)
	walk = func(stmts []syntax.Stmt) {
		for _, s := range stmts {
			switch v := s.(type) {
			case *syntax.AssignStmt:
				if id, ok := unparen(v.LHS).(*syntax.Ident); ok {
					add(id.Name)
				}
			case *syntax.DefStmt:
				add(v.Name.Name)
			case *syntax.IfStmt:
				walk(v.True)
				walk(v.False)
			case *syntax.WhileStmt:
				walk(v.Body)
			case *syntax.ForStmt:
				walk(v.Body)
			}
		}
	}
	walk(stmts)
	return out
}

func funcParams(cc *compileContext, params []syntax.Expr) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, p := range params {
		id, ok := p.(*syntax.Ident)
		if !ok {
			return nil, cc.errorf(p, "only plain parameters are supported, got %T", p)
		}
		if seen[id.Name] {
			return nil, cc.errorf(p, "duplicate parameter %q", id.Name)
		}
		seen[id.Name] = true
		out = append(out, id.Name)
	}
	return out, nil
}

func litToValue(l any) (Value, error) {
	switch t := l.(type) {
	case int64:
		return IntValue(t), nil
	case string:
		return StrValue(t), nil
	case float64:
		return FloatValue(t), nil
	}
	return nil, fmt.Errorf("unsupported literal value type %T", l)
}

func unparen(e syntax.Expr) syntax.Expr {
	if p, ok := e.(*syntax.ParenExpr); ok {
		return unparen(p.X)
	}
	return e
}
