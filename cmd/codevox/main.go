// Command codevox formats speech-recognition transcripts so that spoken
// mentions of code identifiers appear in their canonical spelling.
//
// Usage:
//
//	codevox [-config codevox.yaml] [-identifiers ids.yaml] [-context buffer.go] -mode format|classify|match|serve
//
// Modes:
//
//	format    read transcript lines from stdin and print them formatted
//	classify  read text from stdin and print the identifiers found in it
//	match     resolve -phrase against the known identifiers
//	serve     run the HTTP API
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/codevox/internal/app"
	"github.com/MrWong99/codevox/internal/config"
	"github.com/MrWong99/codevox/internal/observe"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults apply when empty)")
	identifiersPath := flag.String("identifiers", "", "YAML known-identifier list (overrides context.identifiers_file)")
	contextPath := flag.String("context", "", "text file classified for context identifiers (overrides context.source_file)")
	mode := flag.String("mode", "format", "format | classify | match | serve")
	phrase := flag.String("phrase", "", "spoken phrase to resolve in match mode")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "concurrent lines in format mode")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "codevox: %v\n", err)
			return 1
		}
	}
	if *identifiersPath != "" {
		cfg.Context.IdentifiersFile = *identifiersPath
	}
	if *contextPath != "" {
		cfg.Context.SourceFile = *contextPath
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "codevox: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(newLogger(level))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []app.Option{app.WithLevelVar(level)}

	var provider *observe.Provider
	if *mode == "serve" {
		var err error
		provider, err = observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
		})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		opts = append(opts, app.WithMetricsHandler(provider.Handler()))
		if *configPath != "" {
			opts = append(opts, app.WithConfigPath(*configPath))
		}
	}

	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
		if provider != nil {
			if err := provider.Shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}
	}()

	switch *mode {
	case "format":
		err = formatLines(ctx, application, os.Stdin, os.Stdout, *workers)
	case "classify":
		err = classify(application, os.Stdin, os.Stdout)
	case "match":
		err = matchPhrase(ctx, application, *phrase, os.Stdout)
	case "serve":
		err = serve(ctx, application)
	default:
		fmt.Fprintf(os.Stderr, "codevox: unknown mode %q (want format, classify, match or serve)\n", *mode)
		return 2
	}
	if errors.Is(err, errNoMatch) {
		return 1
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("codevox failed", "mode", *mode, "err", err)
		return 1
	}
	return 0
}

// formatLines formats every stdin line concurrently and prints the results
// in input order.
func formatLines(ctx context.Context, a *app.App, r io.Reader, w io.Writer, workers int) error {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	out := make([]string, len(lines))
	pipeline := a.Engine().Pipeline()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, line := range lines {
		g.Go(func() error {
			res, err := pipeline.FormatText(gctx, line, nil)
			if err != nil {
				return err
			}
			out[i] = res.Text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for _, line := range out {
		fmt.Fprintln(bw, line)
	}
	return bw.Flush()
}

func classify(a *app.App, r io.Reader, w io.Writer) error {
	text, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	bw := bufio.NewWriter(w)
	for _, id := range a.Engine().Classifier().Classify(string(text)) {
		fmt.Fprintf(bw, "%s\t%s\t%.2f\t%s\n", id.Raw, id.Convention, id.Score, strings.Join(id.Words, " "))
	}
	return bw.Flush()
}

var errNoMatch = errors.New("no match")

func matchPhrase(ctx context.Context, a *app.App, phrase string, w io.Writer) error {
	if phrase == "" {
		return errors.New("match mode requires -phrase")
	}
	ids, err := a.Identifiers(ctx)
	if err != nil {
		slog.Warn("context capture failed; matching against the identifier list only", "err", err)
	}
	res, ok := a.Engine().Matcher().Match(phrase, ids)
	if !ok {
		fmt.Fprintf(w, "no match for %q among %d identifiers\n", phrase, len(ids))
		return errNoMatch
	}
	fmt.Fprintf(w, "%s\t%s\t%.3f\n", res.Identifier.Raw, res.Kind, res.Confidence)
	return nil
}

func serve(ctx context.Context, a *app.App) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := a.Reload(ctx); err != nil {
					slog.Warn("reload failed", "err", err)
				}
			}
		}
	}()

	slog.Info("codevox serving, press Ctrl+C to shut down", "version", version)
	return a.Run(ctx)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
