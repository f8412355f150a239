// Command pdftool reads, edits and writes PDF files.
//
//	pdftool [-log-level level] [-log-format text|json] [-producer name] <command> [flags] <files>
//
// Every command that produces a PDF writes it to the path given by -o, or to
// standard output for "-o -".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wudi/pdftools/observability"
)

const defaultProducer = "pdftool"

type command struct {
	usage string
	run   func(a *app, args []string) error
}

var commands = map[string]command{
	"info":     {"info [-json] <pdf>", runInfo},
	"meta":     {"meta -o out [-title t] [-author a] [-subject s] [-keywords k1,k2] [-creator c] [-producer p] <pdf>", runMeta},
	"sanitize": {"sanitize -o out <pdf>", runSanitize},
	"repair":   {"repair -o out [-compact] <pdf>", runRepair},
	"compress": {"compress -o out [-quality low|medium|high] <pdf>", runCompress},
	"extract":  {"extract -o out -pages selector <pdf>", runExtract},
	"delete":   {"delete -o out -pages selector <pdf>", runDelete},
	"merge":    {"merge -o out <pdf> <pdf>...", runMerge},
	"rotate":   {"rotate -o out [-pages selector] [-degrees 90] <pdf>", runRotate},
	"convert":  {"convert -o out [-format html|md|txt] [-paper A4] [-font-size 12] [-title t] <source>", runConvert},
}

// usageError marks bad invocations, which exit with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type app struct {
	ctx      context.Context
	logger   observability.Logger
	producer string
	stdout   io.Writer
	stderr   io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pdftool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs) }
	level := fs.String("log-level", envOr(getenv, "PDFTOOL_LOG_LEVEL", "warning"), "Log level (debug, info, warning, error)")
	format := fs.String("log-format", envOr(getenv, "PDFTOOL_LOG_FORMAT", "text"), "Log format (text or json)")
	producer := fs.String("producer", envOr(getenv, "PDFTOOL_PRODUCER", defaultProducer), "Producer written to documents that name none")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		printUsage(fs)
		return 2
	}

	log, err := newLogger(*level, *format, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "pdftool: %v\n", err)
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "pdftool: unknown command %q\n", name)
		printUsage(fs)
		return 2
	}

	a := &app{
		ctx:      ctx,
		logger:   observability.NewLogrus(log).With(observability.String("command", name)),
		producer: *producer,
		stdout:   stdout,
		stderr:   stderr,
	}
	if err := cmd.run(a, fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "pdftool %s: %v\nusage: pdftool %s\n", name, err, cmd.usage)
			return 2
		}
		fmt.Fprintf(stderr, "pdftool %s: %v\n", name, err)
		return 1
	}
	return 0
}

func newLogger(level, format string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "Usage: pdftool [flags] <command> [command flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	fs.PrintDefaults()
}
