// Command kiroku records, replays, and diffs AI agent execution traces.
//
// Usage:
//
//	kiroku show [-tree] <trace>
//	kiroku info <trace>
//	kiroku replay <trace>
//	kiroku diff <trace-a> <trace-b>
//	kiroku export [-format json|html|otlp] [-o path] <trace>
//	kiroku import <file.jsonl>
//	kiroku list
//	kiroku rm <trace-id>
//
// <trace> is a JSONL file path or the trace id of an imported trace.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/kiroku/internal/config"
	"github.com/ashita-ai/kiroku/internal/diff"
	"github.com/ashita-ai/kiroku/internal/export"
	"github.com/ashita-ai/kiroku/internal/model"
	"github.com/ashita-ai/kiroku/internal/replay"
	"github.com/ashita-ai/kiroku/internal/storage"
	"github.com/ashita-ai/kiroku/internal/viewer"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env file if present (non-fatal).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			return 2
		}
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func usage() {
	fmt.Fprintf(os.Stderr, `kiroku %s — record, replay, and debug AI agent execution traces

Commands:
  show [-tree] <trace>                     display a trace
  info <trace>                             summary information about a trace
  replay <trace>                           step through a trace interactively
  diff <trace-a> <trace-b>                 compare two traces
  export [-format json|html|otlp] [-o path] <trace>
                                           export a trace
  import <file.jsonl>                      copy a trace file into the local store
  list                                     list stored traces
  rm <trace-id>                            remove a stored trace
`, version)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	store, err := storage.NewStore(cfg.TraceDir, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	v := viewer.New(os.Stdout)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "show":
		fs := flag.NewFlagSet("show", flag.ContinueOnError)
		tree := fs.Bool("tree", false, "show the span hierarchy instead of the flat listing")
		if err := fs.Parse(rest); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		tr, err := store.Load(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		if *tree {
			v.ShowTree(tr)
		} else {
			v.ShowTrace(tr)
		}
		return nil

	case "info":
		if len(rest) != 1 {
			return errUsage
		}
		tr, err := store.Load(ctx, rest[0])
		if err != nil {
			return err
		}
		v.ShowInfo(tr)
		return nil

	case "replay":
		if len(rest) != 1 {
			return errUsage
		}
		tr, err := store.Load(ctx, rest[0])
		if err != nil {
			return err
		}
		return replayLoop(tr, v)

	case "diff":
		if len(rest) != 2 {
			return errUsage
		}
		a, err := store.Load(ctx, rest[0])
		if err != nil {
			return err
		}
		b, err := store.Load(ctx, rest[1])
		if err != nil {
			return err
		}
		v.ShowDiff(diff.Traces(a, b))
		return nil

	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		format := fs.String("format", "json", "export format: json, html, or otlp")
		outPath := fs.String("o", "", "output file path (default: derived from the trace file)")
		if err := fs.Parse(rest); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		tr, err := store.Load(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return runExport(ctx, cfg, tr, *format, *outPath, fs.Arg(0))

	case "import":
		if len(rest) != 1 {
			return errUsage
		}
		tr, err := storage.Load(rest[0])
		if err != nil {
			return err
		}
		path, err := store.Save(ctx, tr)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %s as %s (%s)\n", rest[0], tr.TraceID, path)
		return nil

	case "list":
		if len(rest) != 0 {
			return errUsage
		}
		entries, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No stored traces.")
			return nil
		}
		for _, e := range entries {
			dur := "running"
			if e.DurationSecs != nil {
				dur = fmt.Sprintf("%.3fs", *e.DurationSecs)
			}
			fmt.Printf("%s  %-24s spans=%d events=%d duration=%s saved=%s\n",
				e.TraceID, e.Name, e.SpanCount, e.EventCount, dur,
				time.Unix(e.SavedAt, 0).Format(time.RFC3339))
		}
		return nil

	case "rm":
		if len(rest) != 1 {
			return errUsage
		}
		return store.Remove(ctx, rest[0])

	default:
		return errUsage
	}
}

func runExport(ctx context.Context, cfg config.Config, tr *model.Trace, format, outPath, ref string) error {
	if format == "otlp" {
		return export.OTLP(ctx, tr, export.OTLPConfig{
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    cfg.OTLPInsecure,
			ServiceName: cfg.ServiceName,
		})
	}

	if outPath == "" {
		outPath = strings.TrimSuffix(ref, ".jsonl") + "." + format
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	switch format {
	case "json":
		err = export.JSON(tr, f)
	case "html":
		err = export.HTML(tr, f)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", outPath)
	return nil
}

// replayLoop drives the interactive stepper. Commands: n(ext), p(rev),
// j(ump) N, s(earch) QUERY, r(eset), q(uit).
func replayLoop(tr *model.Trace, v *viewer.Viewer) error {
	engine := replay.New(tr)

	fmt.Printf("Replay: %s\n", tr.Name)
	fmt.Printf("%d events. Commands: (n)ext, (p)rev, (j)ump N, (s)earch Q, (r)eset, (q)uit\n\n", engine.TotalSteps())

	sc := bufio.NewScanner(os.Stdin)
	for {
		v.ShowStep(engine)
		fmt.Print("> ")
		if !sc.Scan() {
			return sc.Err()
		}
		fields := strings.Fields(strings.ToLower(sc.Text()))
		cmd := "n"
		if len(fields) > 0 {
			cmd = fields[0]
		}

		switch cmd {
		case "q", "quit", "exit":
			return nil
		case "n", "next":
			engine.Step()
		case "p", "prev", "back":
			engine.StepBack()
		case "r", "reset":
			engine.Reset()
		case "j", "jump":
			if len(fields) != 2 {
				fmt.Println("Usage: j <position>")
				continue
			}
			pos, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("Usage: j <position>")
				continue
			}
			if _, err := engine.Jump(pos - 1); err != nil {
				fmt.Println(err)
			}
		case "s", "search":
			if len(fields) < 2 {
				fmt.Println("Usage: s <query>")
				continue
			}
			hits := engine.Search(strings.Join(fields[1:], " "))
			if len(hits) == 0 {
				fmt.Println("No matches.")
				continue
			}
			for _, h := range hits {
				fmt.Printf("  match at step %d\n", h+1)
			}
		default:
			fmt.Println("Unknown command")
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
