package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/viper-lang/viper/pipeline"
	"github.com/viper-lang/viper/vm"
)

var outputPath string

var runCmd = &cobra.Command{
	Use:   "run FILE...",
	Short: "Compile and run source files in order",
	Args:  cobra.MinimumNArgs(1),
	Run:   runCommand,
}

var execCmd = &cobra.Command{
	Use:   "exec BUNDLE",
	Short: "Run a compiled bundle",
	Args:  cobra.ExactArgs(1),
	Run:   execCommand,
}

var compileCmd = &cobra.Command{
	Use:   "compile FILE",
	Short: "Compile a source file to a bundle",
	Args:  cobra.ExactArgs(1),
	Run:   compileCommand,
}

var disasmCmd = &cobra.Command{
	Use:   "disasm FILE|BUNDLE",
	Short: "Print the opcodes of a source file or bundle",
	Args:  cobra.ExactArgs(1),
	Run:   disasmCommand,
}

func init() {
	compileCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Bundle path (default: FILE with a .vpb extension)")
}

func newRunner(cmd *cobra.Command) *pipeline.Runner {
	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't load config")
	}
	return pipeline.New(cfg, os.Stdout, os.Stdout)
}

// fail prints the diagnostic for err and exits with status 1.
func fail(r *pipeline.Runner, err error) {
	r.Report(os.Stdout, err)
	os.Exit(1)
}

func runCommand(cmd *cobra.Command, args []string) {
	r := newRunner(cmd)
	for _, path := range args {
		log.Debug().Str("file", path).Msg("run")
		if err := r.Run(path); err != nil {
			fail(r, err)
		}
	}
}

func execCommand(cmd *cobra.Command, args []string) {
	r := newRunner(cmd)
	if err := r.Exec(args[0]); err != nil {
		fail(r, err)
	}
}

func compileCommand(cmd *cobra.Command, args []string) {
	r := newRunner(cmd)
	src := args[0]
	out := outputPath
	if out == "" {
		out = strings.TrimSuffix(src, filepath.Ext(src)) + ".vpb"
	}

	var buf bytes.Buffer
	fp, err := r.Bundle(src, &buf)
	if err != nil {
		fail(r, err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		log.Fatal().Err(err).Str("path", out).Msg("Couldn't write bundle")
	}
	fmt.Fprintln(os.Stderr, color.Green.Sprintf("✓ wrote %s (%d bytes, fingerprint %016x)", out, buf.Len(), fp))
}

func disasmCommand(cmd *cobra.Command, args []string) {
	r := newRunner(cmd)
	path := args[0]

	var chunk *vm.Chunk
	var err error
	if filepath.Ext(path) == ".vpb" {
		chunk, err = r.LoadBundle(path)
	} else {
		chunk, err = r.CompileFile(path)
	}
	if err != nil {
		fail(r, err)
	}
	if !r.Config.Debug.Opcodes {
		chunk.Dump(os.Stdout, 0)
	}
}
