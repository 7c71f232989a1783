package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/viper-lang/viper"
	"github.com/viper-lang/viper/pipeline"
)

var (
	logLevel   string
	configPath string

	gcThreshold  int
	gcGrowFactor int
	gcDebug      bool
	maxCallDepth int

	opcodesDebug bool
	astDebug     bool
	lexerDebug   bool

	lexerBench   bool
	parserBench  bool
	compileBench bool
	runtimeBench bool
)

var rootCmd = &cobra.Command{
	Use:           "viper",
	Short:         "Compile and run viper programs",
	Long:          "viper compiles programs to bytecode and runs them on a garbage collected stack VM.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'\n", logLevel)
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)

		if !pipeline.ColorEnabled(os.Stdout) {
			color.Disable()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "info", "Set log level (trace, debug, info, warn, error)")
	pf.StringVar(&configPath, "config", "", "Read settings from a toml or yaml file")

	pf.IntVar(&gcThreshold, "gc-threshold", 0, "Live objects that trigger a collection")
	pf.IntVar(&gcGrowFactor, "gc-grow-factor", 0, "Threshold multiplier when a collection frees too little")
	pf.BoolVar(&gcDebug, "gc-debug", false, "Log every collection pass")
	pf.IntVar(&maxCallDepth, "max-call-depth", 0, "Maximum nesting of function calls")

	pf.BoolVar(&opcodesDebug, "opcodes-debug", false, "Dump compiled opcodes")
	pf.BoolVar(&astDebug, "ast-debug", false, "Dump the syntax tree")
	pf.BoolVar(&lexerDebug, "lexer-debug", false, "Dump tokens")

	pf.BoolVar(&lexerBench, "lexer-bench", false, "Time the lexer phase")
	pf.BoolVar(&parserBench, "parser-bench", false, "Time the parse phase")
	pf.BoolVar(&compileBench, "compile-bench", false, "Time the compile phase")
	pf.BoolVar(&runtimeBench, "runtime-bench", false, "Time the runtime phase")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(disasmCmd)
}

// loadConfig reads --config, if any, and applies flags the user set on top.
func loadConfig(cmd *cobra.Command) (viper.Config, error) {
	cfg := viper.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = viper.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("gc-threshold") {
		cfg.GC.Threshold = gcThreshold
	}
	if changed("gc-grow-factor") {
		cfg.GC.GrowFactor = gcGrowFactor
	}
	if changed("gc-debug") {
		cfg.GC.Debug = gcDebug
	}
	if changed("max-call-depth") {
		cfg.Runtime.MaxCallDepth = maxCallDepth
	}
	if changed("opcodes-debug") {
		cfg.Debug.Opcodes = opcodesDebug
	}
	if changed("ast-debug") {
		cfg.Debug.AST = astDebug
	}
	if changed("lexer-debug") {
		cfg.Debug.Lexer = lexerDebug
	}
	if changed("lexer-bench") {
		cfg.Bench.Lexer = lexerBench
	}
	if changed("parser-bench") {
		cfg.Bench.Parser = parserBench
	}
	if changed("compile-bench") {
		cfg.Bench.Compile = compileBench
	}
	if changed("runtime-bench") {
		cfg.Bench.Runtime = runtimeBench
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
