package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viper-lang/viper"
	"github.com/viper-lang/viper/vm"
)

func TestMain(m *testing.M) {
	color.Disable()
	os.Exit(m.Run())
}

func TestProgramsInTestdata(t *testing.T) {
	matches, err := filepath.Glob("testdata/*.vp")
	require.NoError(t, err)
	for _, path := range matches {
		golden := strings.TrimSuffix(path, ".vp") + ".out"
		want, err := os.ReadFile(golden)
		if os.IsNotExist(err) {
			continue
		}
		require.NoError(t, err)
		t.Run(filepath.Base(path), func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, Run(path, viper.DefaultConfig(), &out))
			assert.Equal(t, string(want), out.String())
		})
	}
}

func TestRuntimeErrorIsReported(t *testing.T) {
	var out, diag bytes.Buffer
	r := New(viper.DefaultConfig(), &out, &diag)
	err := r.Run("testdata/panic.vp")
	require.ErrorIs(t, err, vm.ErrTypeMismatch)

	var report bytes.Buffer
	r.Report(&report, err)
	lines := strings.Split(report.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 7)
	assert.Equal(t, "┌─ panic: expected int or float, got string", lines[0])
	assert.Equal(t, "│", lines[1])
	assert.Equal(t, "│ panic.vp:", lines[2])
	assert.Equal(t, `│ 2 y = x + "one"`, lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "│"))
	assert.Contains(t, lines[4], "^")
	assert.Equal(t, "│ hint: -", lines[6])
}

func TestFormatError(t *testing.T) {
	src := []byte("a = 1\nb = a / 0\n")
	err := vm.Errorf(vm.ZeroDivision, vm.Address{File: "dir/z.vp", Line: 2, Span: vm.Span{Start: 5, End: 10}}, "division by zero").
		WithHint("check the divisor.")
	got := FormatError(err, src)
	want := strings.Join([]string{
		"┌─ panic: division by zero",
		"│",
		"│ z.vp:",
		"│ 2 b = a / 0",
		"│       ^^^^^",
		"│",
		"│ hint: check the divisor.",
		"",
	}, "\n")
	assert.Equal(t, want, got)

	internal := FormatError(vm.InternalError(vm.Unknown(), "bad state"), nil)
	assert.Contains(t, internal, "│ -:")
	assert.Contains(t, internal, "│ - -")
	assert.Contains(t, internal, vm.ReportHint)
	assert.NotContains(t, internal, "^")
}

func TestBenchmarksAndDumps(t *testing.T) {
	cfg := viper.DefaultConfig()
	cfg.Bench = viper.BenchConfig{Lexer: true, Parser: true, Compile: true, Runtime: true}
	cfg.Debug = viper.DebugConfig{Opcodes: true, AST: true, Lexer: true}

	var out, diag bytes.Buffer
	r := New(cfg, &out, &diag)
	require.NoError(t, r.Run("testdata/loops.vp"))

	d := diag.String()
	for _, phase := range []string{"lexer", "parse", "compile", "runtime"} {
		assert.Contains(t, d, "benchmark '"+phase+"', elapsed ")
	}
	assert.Contains(t, d, "tokens debug:")
	assert.Contains(t, d, "1:1 ident count")
	assert.Contains(t, d, "ast debug:")
	assert.Contains(t, d, "WhileStmt")
	assert.Contains(t, d, "opcodes debug:")
	assert.Contains(t, d, "== main ==")
	assert.Contains(t, d, "LOOP")
	assert.Equal(t, "1245\n10,7,4,1,\n", out.String())
}

func TestCompileIsCached(t *testing.T) {
	cfg := viper.DefaultConfig()
	cfg.Bench.Compile = true
	var out, diag bytes.Buffer
	r := New(cfg, &out, &diag)

	require.NoError(t, r.Run("testdata/fib.vp"))
	require.NoError(t, r.Run("testdata/fib.vp"))
	assert.Equal(t, 1, strings.Count(diag.String(), "benchmark 'compile'"))
	assert.Equal(t, 1, r.Cache.Len())
	assert.Equal(t, strings.Repeat("0 1 1 2 3 5 8 13 21 34 \n", 2), out.String())
}

func TestBundleThenExec(t *testing.T) {
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "closures.vpb")

	r := New(viper.DefaultConfig(), &bytes.Buffer{}, &bytes.Buffer{})
	f, err := os.Create(bundlePath)
	require.NoError(t, err)
	fp, err := r.Bundle("testdata/closures.vp", f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.NotZero(t, fp)

	var out bytes.Buffer
	require.NoError(t, Exec(bundlePath, viper.DefaultConfig(), &out))
	want, err := os.ReadFile("testdata/closures.out")
	require.NoError(t, err)
	assert.Equal(t, string(want), out.String())
}

func TestExecRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.vpb")
	require.NoError(t, os.WriteFile(path, []byte("not a bundle"), 0o644))
	err := Exec(path, viper.DefaultConfig(), &bytes.Buffer{})
	assert.ErrorIs(t, err, vm.ErrBadBundle)
}

func TestCompileErrorCarriesSource(t *testing.T) {
	r := New(viper.DefaultConfig(), &bytes.Buffer{}, &bytes.Buffer{})
	_, err := r.Compile("inline.vp", []byte("x = 1\nbreak\n"))
	require.ErrorIs(t, err, vm.ErrCompile)

	var report bytes.Buffer
	r.Report(&report, err)
	assert.Contains(t, report.String(), "│ 2 break")
	assert.Contains(t, report.String(), "outside loop")
}

func TestTokens(t *testing.T) {
	toks, err := Tokens("t.vp", []byte("x = 1 + y\n"))
	require.NoError(t, err)
	var got []string
	for _, tok := range toks {
		got = append(got, tok.Kind+" "+tok.Text)
	}
	assert.Equal(t, []string{"ident x", "op =", "int literal 1", "op +", "ident y"}, got)
}
