package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/recovery"
)

type globalOptions struct {
	verbose   bool
	logFormat string
	lenient   bool
}

type options struct {
	global  globalOptions
	command string
	args    []string
}

// usageError marks errors that should exit with status 2.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

type command struct {
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"create": {"create a one-page PDF from a JSON spec, or flow Markdown/HTML", runCreate},
	"modify": {"stamp text, add or remove pages", runModify},
	"form":   {"create an AcroForm from a JSON spec", runForm},
	"merge":  {"concatenate PDFs in argument order", runMerge},
	"split":  {"extract a page range", runSplit},
	"info":   {"print page count and metadata", runInfo},
	"text":   {"extract text per page as JSON", runText},
	"render": {"rasterise a page to PNG", runRender},
	"edit":   {"run an editor script against a page and save the result", runEdit},
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfstudio: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "pdfstudio: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("pdfstudio", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfstudio [flags] <command> [command flags] [args]\n\nCommands:\n")
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(fs.Output(), "  %-8s %s\n", name, commands[name].summary)
		}
		fmt.Fprintf(fs.Output(), "\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.BoolVar(&opts.global.verbose, "v", false, "Log debug output")
	fs.StringVar(&opts.global.logFormat, "log-format", "text", "Log format: text or json")
	fs.BoolVar(&opts.global.lenient, "lenient", false, "Recover from malformed input where possible")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.global.logFormat != "text" && opts.global.logFormat != "json" {
		return options{}, fmt.Errorf("unknown log format %q", opts.global.logFormat)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return options{}, fmt.Errorf("missing command")
	}
	opts.command = fs.Arg(0)
	if _, ok := commands[opts.command]; !ok {
		fs.Usage()
		return options{}, fmt.Errorf("unknown command %q", opts.command)
	}
	opts.args = fs.Args()[1:]
	return opts, nil
}

// env is what every command runs with.
type env struct {
	log      observability.Logger
	recovery recovery.Strategy
	stdout   io.Writer
	stderr   io.Writer
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	e := &env{log: newLogger(opts.global, stderr), stdout: stdout, stderr: stderr}
	if opts.global.lenient {
		e.recovery = recovery.NewLenientStrategy(e.log)
	}
	cmd := commands[opts.command]
	e.log = e.log.With(observability.String("command", opts.command))
	return cmd.run(ctx, e, opts.args)
}

func newLogger(g globalOptions, w io.Writer) observability.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if g.logFormat == "json" {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return observability.NewSlogLogger(slog.New(h))
}

// flagSet returns a subcommand flag set whose parse errors are usage
// errors.
func (e *env) flagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfstudio %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes data to path, or to stdout for "-".
func (e *env) writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := e.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	e.log.Info("wrote file", observability.String("path", path), observability.Int("bytes", len(data)))
	if !strings.HasSuffix(path, ".pdf") && !strings.HasSuffix(path, ".png") && !strings.HasSuffix(path, ".html") {
		e.log.Debug("unusual output extension", observability.String("path", path))
	}
	return nil
}
