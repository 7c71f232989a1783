package vm

import (
	"errors"
	"os"

	"go.starlark.net/syntax"
)

// Parse parses src (string, []byte or io.Reader). Syntax errors come back as
// *Error so they are reported like any other diagnostic.
func Parse(name string, src any) (*syntax.File, error) {
	opts := syntax.FileOptions{
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
	f, err := opts.Parse(name, src, 0)
	if err != nil {
		var serr syntax.Error
		if errors.As(err, &serr) {
			return nil, Errorf(CompileError, Address{
				File: name,
				Line: int(serr.Pos.Line),
				Span: Span{Start: int(serr.Pos.Col), End: int(serr.Pos.Col) + 1},
			}, "%s", serr.Msg)
		}
		return nil, err
	}
	return f, nil
}

func ParsePath(path string) (*syntax.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f)
}
