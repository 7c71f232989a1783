package vm

import (
	"errors"
	"fmt"
	"io"

	"github.com/dgryski/go-farm"
	"github.com/shamaton/msgpack/v2"
)

const (
	bundleMagic   = "viper-bundle"
	bundleVersion = 2
)

var ErrBadBundle = errors.New("invalid bundle")

// bundle is the on-disk envelope around a compiled chunk tree.
type bundle struct {
	Magic       string
	Version     int
	Fingerprint uint64
	Payload     []byte
}

type wireConst struct {
	Kind  int
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

type wireOp struct {
	Code  uint32
	Arg   int
	Argc  int
	Push  bool
	Body  *wireChunk
	Post  *wireChunk
	File  string
	Line  int
	Start int
	End   int
}

type wireFunction struct {
	Name   string
	Params []string
	Body   *wireChunk
}

type wireChunk struct {
	Name      string
	Ops       []wireOp
	Constants []wireConst
	Functions []wireFunction
}

// Fingerprint returns a stable hash of the encoded chunk.
func (c *Chunk) Fingerprint() (uint64, error) {
	w, err := toWire(c)
	if err != nil {
		return 0, err
	}
	payload, err := msgpack.Marshal(w)
	if err != nil {
		return 0, err
	}
	return farm.Fingerprint64(payload), nil
}

func (c *Chunk) Serialize(w io.Writer) error {
	wc, err := toWire(c)
	if err != nil {
		return err
	}
	payload, err := msgpack.Marshal(wc)
	if err != nil {
		return fmt.Errorf("encoding chunk %q: %w", c.Name, err)
	}
	b := &bundle{
		Magic:       bundleMagic,
		Version:     bundleVersion,
		Fingerprint: farm.Fingerprint64(payload),
		Payload:     payload,
	}
	return msgpack.MarshalWrite(w, b)
}

func (c *Chunk) Deserialize(r io.Reader) error {
	var b bundle
	if err := msgpack.UnmarshalRead(r, &b); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBundle, err)
	}
	if b.Magic != bundleMagic {
		return fmt.Errorf("%w: not a viper bundle", ErrBadBundle)
	}
	if b.Version != bundleVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadBundle, b.Version)
	}
	if got := farm.Fingerprint64(b.Payload); got != b.Fingerprint {
		return fmt.Errorf("%w: fingerprint mismatch (%x != %x)", ErrBadBundle, got, b.Fingerprint)
	}
	var wc wireChunk
	if err := msgpack.Unmarshal(b.Payload, &wc); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBundle, err)
	}
	out, err := fromWire(&wc)
	if err != nil {
		return err
	}
	*c = *out
	return nil
}

func toWire(c *Chunk) (*wireChunk, error) {
	if c == nil {
		return nil, nil
	}
	out := &wireChunk{Name: c.Name}
	for _, k := range c.Constants {
		wk := wireConst{Kind: int(k.Kind())}
		switch v := k.(type) {
		case IntValue:
			wk.Int = int64(v)
		case FloatValue:
			wk.Float = float64(v)
		case BoolValue:
			wk.Bool = bool(v)
		case StrValue:
			wk.Str = string(v)
		case NoneValue:
		default:
			return nil, fmt.Errorf("chunk %q: constant of kind %s cannot be serialized", c.Name, k.Kind())
		}
		out.Constants = append(out.Constants, wk)
	}
	for _, op := range c.Ops {
		body, err := toWire(op.Body)
		if err != nil {
			return nil, err
		}
		post, err := toWire(op.Post)
		if err != nil {
			return nil, err
		}
		out.Ops = append(out.Ops, wireOp{
			Code:  uint32(op.Code),
			Arg:   op.Arg,
			Argc:  op.Argc,
			Push:  op.Push,
			Body:  body,
			Post:  post,
			File:  op.Addr.File,
			Line:  op.Addr.Line,
			Start: op.Addr.Span.Start,
			End:   op.Addr.Span.End,
		})
	}
	for _, f := range c.Functions {
		body, err := toWire(f.Body)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, wireFunction{Name: f.Name, Params: f.Params, Body: body})
	}
	return out, nil
}

func fromWire(wc *wireChunk) (*Chunk, error) {
	if wc == nil {
		return nil, nil
	}
	c := NewChunk(wc.Name)
	for _, wk := range wc.Constants {
		var v Value
		switch Kind(wk.Kind) {
		case KindInt:
			v = IntValue(wk.Int)
		case KindFloat:
			v = FloatValue(wk.Float)
		case KindBool:
			v = BoolValue(wk.Bool)
		case KindString:
			v = StrValue(wk.Str)
		case KindNone:
			v = None
		default:
			return nil, fmt.Errorf("%w: constant kind %d", ErrBadBundle, wk.Kind)
		}
		c.Constants = append(c.Constants, v)
	}
	for _, wo := range wc.Ops {
		if Opcode(wo.Code) >= OpcodeMax || Opcode(wo.Code) == LABEL {
			return nil, fmt.Errorf("%w: opcode %d", ErrBadBundle, wo.Code)
		}
		body, err := fromWire(wo.Body)
		if err != nil {
			return nil, err
		}
		post, err := fromWire(wo.Post)
		if err != nil {
			return nil, err
		}
		c.Ops = append(c.Ops, Op{
			Code: Opcode(wo.Code),
			Arg:  wo.Arg,
			Argc: wo.Argc,
			Push: wo.Push,
			Body: body,
			Post: post,
			Addr: Address{File: wo.File, Line: wo.Line, Span: Span{Start: wo.Start, End: wo.End}},
		})
	}
	for _, wf := range wc.Functions {
		body, err := fromWire(wf.Body)
		if err != nil {
			return nil, err
		}
		if body == nil {
			body = NewChunk(wf.Name)
		}
		c.Functions = append(c.Functions, &Function{Name: wf.Name, Params: wf.Params, Body: body})
	}
	return c, nil
}
