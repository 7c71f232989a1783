// Package pipeline drives a source file through parsing, compilation and
// execution, with the debug dumps and phase timings the config asks for.
package pipeline

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/viper-lang/viper"
	"github.com/viper-lang/viper/cas"
	"github.com/viper-lang/viper/interp"
	"github.com/viper-lang/viper/natives"
	"github.com/viper-lang/viper/vm"
	"go.starlark.net/syntax"
)

type Runner struct {
	Config viper.Config
	// Out receives program output. Diag receives dumps and benchmarks.
	Out  io.Writer
	Diag io.Writer
	// Client is used by the net natives. nil means the library default.
	Client *http.Client
	Cache  *cas.ChunkCache

	sources map[string][]byte
}

func New(cfg viper.Config, out, diag io.Writer) *Runner {
	return &Runner{
		Config:  cfg,
		Out:     out,
		Diag:    diag,
		Cache:   cas.NewChunkCache(cas.NewLRUCache(cas.NewMemoryCAS(), 0)),
		sources: make(map[string][]byte),
	}
}

// Run compiles and executes the file at path.
func Run(path string, cfg viper.Config, out io.Writer) error {
	return New(cfg, out, out).Run(path)
}

// Exec executes a bundle written by Runner.Bundle.
func Exec(path string, cfg viper.Config, out io.Writer) error {
	return New(cfg, out, out).Exec(path)
}

func (r *Runner) Run(path string) error {
	chunk, err := r.CompileFile(path)
	if err != nil {
		return err
	}
	return r.Execute(chunk)
}

func (r *Runner) CompileFile(path string) (*vm.Chunk, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.Compile(path, src)
}

// Compile turns src into a chunk. A source already compiled by this runner
// skips the lexer, parser and compile phases.
func (r *Runner) Compile(name string, src []byte) (*vm.Chunk, error) {
	r.sources[name] = src
	if r.Cache != nil {
		if chunk, ok := r.Cache.Lookup(name, src); ok {
			r.dumpOpcodes(chunk)
			return chunk, nil
		}
	}

	if r.Config.Debug.Lexer || r.Config.Bench.Lexer {
		err := r.phase("lexer", r.Config.Bench.Lexer, func() error {
			toks, err := Tokens(name, src)
			if err != nil {
				return err
			}
			if r.Config.Debug.Lexer {
				fmt.Fprintln(r.Diag, "tokens debug:")
				for _, tok := range toks {
					fmt.Fprintf(r.Diag, "  %s\n", tok)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	var file *syntax.File
	err := r.phase("parse", r.Config.Bench.Parser, func() error {
		var err error
		file, err = vm.Parse(name, src)
		return err
	})
	if err != nil {
		return nil, err
	}
	if r.Config.Debug.AST {
		fmt.Fprintln(r.Diag, "ast debug:")
		DumpAST(r.Diag, file)
	}

	var chunk *vm.Chunk
	err = r.phase("compile", r.Config.Bench.Compile, func() error {
		var err error
		chunk, err = vm.Compile(file)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.dumpOpcodes(chunk)

	if r.Cache != nil {
		if _, err := r.Cache.Store(name, src, chunk); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("pipeline: chunk not cached")
		}
	}
	return chunk, nil
}

func (r *Runner) dumpOpcodes(chunk *vm.Chunk) {
	if r.Config.Debug.Opcodes {
		fmt.Fprintln(r.Diag, "opcodes debug:")
		chunk.Dump(r.Diag, 0)
	}
}

// Execute runs chunk on a fresh VM with every native library provided. The
// VM is cleaned up before Execute returns.
func (r *Runner) Execute(chunk *vm.Chunk) error {
	m := interp.New(r.Config.VMSettings())
	defer m.Cleanup()

	addr := natives.Builtin()
	if err := natives.ProvideIO(m, addr, r.Out); err != nil {
		return err
	}
	if err := natives.ProvideGC(m, addr); err != nil {
		return err
	}
	if err := natives.ProvideNet(m, addr, r.Client); err != nil {
		return err
	}

	return r.phase("runtime", r.Config.Bench.Runtime, func() error {
		fl := m.Run(chunk, nil)
		if fl.IsError() {
			return fl.Err
		}
		log.Debug().Str("result", interp.FormatValue(fl.Value)).Int("live", m.Heap().Live()).Msg("pipeline: program finished")
		return nil
	})
}

// Bundle compiles the file at path and writes the serialized chunk to w.
func (r *Runner) Bundle(path string, w io.Writer) (uint64, error) {
	chunk, err := r.CompileFile(path)
	if err != nil {
		return 0, err
	}
	if err := chunk.Serialize(w); err != nil {
		return 0, fmt.Errorf("writing bundle: %w", err)
	}
	return chunk.Fingerprint()
}

func (r *Runner) LoadBundle(path string) (*vm.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	chunk := &vm.Chunk{}
	if err := chunk.Deserialize(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.dumpOpcodes(chunk)
	return chunk, nil
}

func (r *Runner) Exec(path string) error {
	chunk, err := r.LoadBundle(path)
	if err != nil {
		return err
	}
	return r.Execute(chunk)
}

// Source returns the text of a file this runner has compiled, for
// diagnostics.
func (r *Runner) Source(name string) ([]byte, bool) {
	src, ok := r.sources[name]
	return src, ok
}
