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
	"strings"

	"golang.org/x/term"

	"github.com/tekikaito/stapler"
	"github.com/tekikaito/stapler/config"
	"github.com/tekikaito/stapler/observability"
)

var version = "dev"

// inputList collects repeated -i values; one value may hold several
// space-separated paths.
type inputList []string

func (l *inputList) String() string { return strings.Join(*l, " ") }

func (l *inputList) Set(v string) error {
	*l = append(*l, strings.Fields(v)...)
	return nil
}

type options struct {
	job      config.Job
	verbose  bool
	showVer  bool
	logLevel slog.Level
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "stapler: %v\n", err)
		os.Exit(2)
	}
	if opts.showVer {
		fmt.Println("stapler", version)
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts, newLogger(os.Stderr, opts.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "stapler: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("stapler", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: stapler -o out.pdf [flags] <pdf|glob>...\n")
		fs.PrintDefaults()
	}
	var inputs inputList
	fs.Var(&inputs, "i", "Input PDF or glob pattern, repeatable; may hold several space-separated paths")
	output := fs.String("o", "", "Output PDF path")
	compress := fs.Bool("c", false, "Compress the merged document (object streams, shared objects)")
	strict := fs.Bool("strict", true, "Fail on malformed input instead of skipping it")
	jobs := fs.Int("j", 1, "Number of sources loaded concurrently")
	jobFile := fs.String("config", "", "YAML job file; flags override its values")
	fs.BoolVar(&opts.verbose, "v", false, "Debug logging")
	fs.BoolVar(&opts.showVer, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.showVer {
		return opts, nil
	}

	if *jobFile != "" {
		job, err := config.Load(*jobFile)
		if err != nil {
			return opts, err
		}
		opts.job = *job
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	inputs = append(inputs, fs.Args()...)
	if len(inputs) > 0 {
		opts.job.Inputs = inputs
	}
	if set["o"] {
		opts.job.Output = *output
	}
	if set["c"] {
		opts.job.Compress = *compress
	}
	if set["strict"] || opts.job.Strict == nil {
		opts.job.Strict = strict
	}
	if set["j"] || opts.job.Parallelism == 0 {
		opts.job.Parallelism = *jobs
	}
	if opts.verbose {
		opts.job.LogLevel = "debug"
	}
	if err := opts.job.Validate(); err != nil {
		return opts, err
	}
	if err := opts.logLevel.UnmarshalText([]byte(levelOrDefault(opts.job.LogLevel))); err != nil {
		return opts, err
	}
	return opts, nil
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

func run(ctx context.Context, opts options, logger observability.Logger) error {
	paths, err := expandInputs(opts.job.Inputs)
	if err != nil {
		return err
	}
	ro := stapler.Files(paths, opts.job.Output)
	ro.Compress = opts.job.Compress
	ro.Strict = opts.job.IsStrict()
	ro.Parallelism = opts.job.Parallelism
	ro.Logger = logger
	return stapler.Run(ctx, ro)
}

// newLogger logs text to a terminal and JSON otherwise.
func newLogger(w *os.File, level slog.Level) observability.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if term.IsTerminal(int(w.Fd())) {
		h = slog.NewTextHandler(w, hopts)
	} else {
		h = slog.NewJSONHandler(w, hopts)
	}
	return observability.NewSlogLogger(slog.New(h))
}
