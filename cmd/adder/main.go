package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"
	"github.com/tebeka/atexit"
	"github.com/tinyrange/adder/internal/asm/amd64"
	"github.com/tinyrange/adder/internal/compiler"
	"github.com/tinyrange/adder/internal/config"
	"golang.org/x/term"
)

const usage = `adder - compile add1/sub1 programs to x86-64 and run them in-process

USAGE:
  adder [flags] <input> <output.s>
  adder check [-config file] <dir>

FLAGS:
  -config FILE     YAML configuration (log_level, jit.capacity, jit.alter_scale, output.color)
  -debug           Log at debug level
  -dump            Print the emitted machine code as a hex dump
  -alter-scale N   Multiplier for the altered constant (default from config, 3)

The first form writes the assembly to <output.s>, prints it, runs the native
code, then rewrites the entry point to return result*N and runs it again.
The check form compiles every *.snek file in <dir> and compares the native
result with the interpreter.
`

var (
	bold  = color.New(color.Bold).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

type options struct {
	configPath string
	debug      bool
	dump       bool
	alterScale int64
}

func setup(opts options, stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.alterScale != 0 {
		cfg.JIT.AlterScale = opts.alterScale
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}
	level, err := cfg.Level()
	if err != nil {
		return config.Config{}, nil, err
	}

	switch cfg.Output.Color {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newAssembler(cfg config.Config, logger *slog.Logger) (*amd64.Assembler, error) {
	a, err := amd64.NewAssembler(
		amd64.WithCapacity(cfg.JIT.Capacity),
		amd64.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	atexit.Register(func() {
		if err := a.Release(); err != nil {
			logger.Warn("release code buffer", "error", err)
		}
	})
	return a, nil
}

func runCompile(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adder", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&opts.debug, "debug", false, "log at debug level")
	fs.BoolVar(&opts.dump, "dump", false, "hex dump the machine code")
	fs.Int64Var(&opts.alterScale, "alter-scale", 0, "multiplier for the altered constant")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("expected <input> and <output.s>")
	}
	in, out := fs.Arg(0), fs.Arg(1)

	cfg, logger, err := setup(opts, stderr)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	unit, err := compiler.Compile(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if err := os.WriteFile(out, []byte(unit.Assembly), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Debug("compiled", "input", in, "instructions", len(unit.Instrs))
	fmt.Fprintf(stdout, "Generated assembly:\n%s", unit.Assembly)

	a, err := newAssembler(cfg, logger)
	if err != nil {
		return err
	}
	entry := a.Offset()
	fn, err := unit.Load(a)
	if err != nil {
		return err
	}
	if opts.dump {
		fmt.Fprint(stdout, hex.Dump(a.Bytes()))
	}

	result, err := fn.Call()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s %s\n", bold("result:"), green(result))
	if want := unit.Eval(); result != want {
		logger.Warn("jit disagrees with interpreter", "jit", result, "interpreter", want)
	}

	altered, err := compiler.Replace(a, entry, result*cfg.JIT.AlterScale)
	if err != nil {
		return fmt.Errorf("alter: %w", err)
	}
	result, err = altered.Call()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s %s\n", bold("altered result:"), green(result))
	return nil
}

func runCheck(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adder check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&opts.debug, "debug", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected <dir>")
	}

	cfg, logger, err := setup(opts, stderr)
	if err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(fs.Arg(0), "*.snek"))
	if err != nil {
		return fmt.Errorf("list programs: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .snek files in %s", fs.Arg(0))
	}
	sort.Strings(files)

	a, err := newAssembler(cfg, logger)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("checking"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Close()

	var result *multierror.Error
	for _, file := range files {
		if err := checkFile(a, file); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", file, err))
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if result == nil {
		fmt.Fprintf(stdout, "%s %d programs\n", green("ok"), len(files))
		return nil
	}
	fmt.Fprintf(stdout, "%s %d of %d programs\n", red("FAIL"), len(result.Errors), len(files))
	return result.ErrorOrNil()
}

func checkFile(a *amd64.Assembler, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	unit, err := compiler.Compile(string(src))
	if err != nil {
		return err
	}
	_, err = compiler.CrossCheck(a, unit)
	return err
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "check" {
		return runCheck(args[1:], stdout, stderr)
	}
	return runCompile(args, stdout, stderr)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "adder: %s\n", red(err))
		}
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
