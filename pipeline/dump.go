package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/viper-lang/viper/vm"
	"go.starlark.net/syntax"
)

// Token is a leaf of the syntax tree, used for the lexer dump.
type Token struct {
	Pos  syntax.Position
	Kind string
	Text string
}

func (t Token) String() string {
	return fmt.Sprintf("%d:%d %s %s", t.Pos.Line, t.Pos.Col, t.Kind, t.Text)
}

// Tokens lists the identifiers, literals and operators of src in source
// order. The parser does its own scanning, so this is recovered from the
// tree rather than from a separate token stream.
func Tokens(name string, src []byte) ([]Token, error) {
	f, err := vm.Parse(name, src)
	if err != nil {
		return nil, err
	}
	var out []Token
	syntax.Walk(f, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.Ident:
			out = append(out, Token{Pos: n.NamePos, Kind: "ident", Text: n.Name})
		case *syntax.Literal:
			out = append(out, Token{Pos: n.TokenPos, Kind: strings.ToLower(n.Token.String()), Text: n.Raw})
		case *syntax.BinaryExpr:
			out = append(out, Token{Pos: n.OpPos, Kind: "op", Text: n.Op.String()})
		case *syntax.UnaryExpr:
			out = append(out, Token{Pos: n.OpPos, Kind: "op", Text: n.Op.String()})
		case *syntax.AssignStmt:
			out = append(out, Token{Pos: n.OpPos, Kind: "op", Text: n.Op.String()})
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Pos, out[j].Pos
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return out, nil
}

// DumpAST writes one line per node, indented by depth.
func DumpAST(w io.Writer, f *syntax.File) {
	depth := 0
	syntax.Walk(f, func(n syntax.Node) bool {
		if n == nil {
			depth--
			return false
		}
		start, _ := n.Span()
		fmt.Fprintf(w, "%s%s%s @%d:%d\n", strings.Repeat("  ", depth), nodeName(n), nodeDetail(n), start.Line, start.Col)
		depth++
		return true
	})
}

func nodeName(n syntax.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*syntax.")
}

func nodeDetail(n syntax.Node) string {
	switch n := n.(type) {
	case *syntax.Ident:
		return " " + n.Name
	case *syntax.Literal:
		return " " + n.Raw
	case *syntax.BinaryExpr:
		return " " + n.Op.String()
	case *syntax.UnaryExpr:
		return " " + n.Op.String()
	case *syntax.AssignStmt:
		return " " + n.Op.String()
	case *syntax.BranchStmt:
		return " " + n.Token.String()
	case *syntax.DefStmt:
		return " " + n.Name.Name
	}
	return ""
}
