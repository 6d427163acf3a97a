package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"movieview/internal/database"
	"movieview/internal/diskcache"
	"movieview/internal/extractor"
	"movieview/internal/logging"
	"movieview/internal/media"
	"movieview/internal/memcache"
	"movieview/internal/memory"
	"movieview/internal/probestore"
	"movieview/internal/startup"
	"movieview/internal/thumbnail"
	"movieview/internal/thumbnails"
)

// app is the cache as seen by one CLI invocation.
type app struct {
	store       *diskcache.Store
	index       *database.Database
	probes      *probestore.Store
	orch        *thumbnails.Orchestrator
	params      thumbnail.Parameters
	warmWorkers int

	out      io.Writer
	progress bool
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	command := os.Args[1]
	if command == "help" || command == "-h" || command == "--help" {
		printUsage(os.Stdout)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	// Keep the library chatter out of the command output.
	logging.SetLevel(logging.LevelWarn)

	cfg, err := startup.Load(startup.DefaultConfigPaths()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	a.out = os.Stdout
	a.progress = term.IsTerminal(int(os.Stdout.Fd()))

	if err := media.InitVips(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: HEIC unavailable, warming as JPEG: %v\n", err)
	}

	code := a.run(ctx, command, os.Args[2:])
	a.close(context.Background())
	media.ShutdownVips()
	os.Exit(code)
}

func openApp(ctx context.Context, cfg *startup.Config) (*app, error) {
	index, err := database.New(ctx, cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open size index: %w", err)
	}

	store, err := diskcache.Open(ctx, diskcache.Config{
		Root:           cfg.ThumbnailDir,
		MaxBytes:       cfg.Disk.MaxBytes,
		TargetFraction: cfg.Disk.TargetFraction,
	}, index)
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}

	// The server holds the probe database lock while it runs.
	probes, err := probestore.Open(cfg.ProbePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: probe cache unavailable (is the server running?): %v\n", err)
		probes = nil
	}

	runner := extractor.NewCommandRunner()
	prober := probestore.NewCachingProber(probes, extractor.NewFFprobe(cfg.FFprobePath, runner))
	frames := extractor.NewFFmpeg(cfg.FFmpegPath, runner)

	// Sessions only pass through memory on their way to disk.
	orch := thumbnails.New(memcache.New(cfg.Memory.CountLimit, cfg.Memory.CostLimit), store, frames, prober, thumbnails.Config{
		MaxThumbnails: cfg.Thumbnails.MaxThumbnails,
	})

	return &app{
		store:       store,
		index:       index,
		probes:      probes,
		orch:        orch,
		params:      cfg.Parameters,
		warmWorkers: cfg.Thumbnails.WarmWorkers,
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close disk cache: %v\n", err)
	}
	if err := a.index.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close size index: %v\n", err)
	}
	if a.probes != nil {
		if err := a.probes.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close probe cache: %v\n", err)
		}
	}
}

// run executes one command and returns the process exit code.
func (a *app) run(ctx context.Context, command string, args []string) int {
	switch command {
	case "stats":
		return a.stats(ctx)
	case "purge":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Error: purge needs at least one video path")
			return 2
		}
		return a.purge(ctx, args)
	case "clear":
		return a.clear(ctx)
	case "warm":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Error: warm needs at least one video path")
			return 2
		}
		return a.warm(ctx, args)
	case "sweep":
		return a.sweep(ctx)
	case "reindex":
		return a.reindex(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(a.out)
		return 2
	}
}

func (a *app) stats(ctx context.Context) int {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(a.out, "Cache root:    %s\n", a.store.Root())
	fmt.Fprintf(a.out, "Videos:        %d\n", stats.Videos)
	fmt.Fprintf(a.out, "Size:          %s of %s (evicts to %s)\n",
		memory.FormatBytes(stats.TotalBytes), memory.FormatBytes(stats.MaxBytes), memory.FormatBytes(stats.TargetBytes))
	if a.probes != nil {
		fmt.Fprintf(a.out, "Probed videos: %d\n", a.probes.Len())
	}
	return 0
}

func (a *app) purge(ctx context.Context, paths []string) int {
	code := 0
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", p, err)
			code = 1
			continue
		}

		err = a.orch.RemoveCacheForVideo(ctx, abs)
		if err != nil && a.probes != nil {
			// The video may be gone; fall back to the fingerprint it was
			// last cached under.
			if fp, ok := a.probes.FingerprintForPath(abs); ok {
				err = a.orch.RemoveFingerprint(ctx, fp)
				if err == nil {
					_ = a.probes.ForgetPath(abs)
				}
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", p, err)
			code = 1
			continue
		}
		fmt.Fprintf(a.out, "Purged %s\n", p)
	}
	return code
}

func (a *app) clear(ctx context.Context) int {
	if err := a.orch.ClearAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(a.out, "Cache cleared")
	return 0
}

func (a *app) warm(ctx context.Context, paths []string) int {
	abs := make([]string, len(paths))
	for i, p := range paths {
		if full, err := filepath.Abs(p); err == nil {
			abs[i] = full
		} else {
			abs[i] = p
		}
	}

	done := 0
	warmer := thumbnails.NewWarmer(a.orch, nil, a.warmWorkers)
	results, err := warmer.Warm(ctx, abs, a.params, func(r thumbnails.WarmResult) {
		done++
		if a.progress {
			fmt.Fprintf(a.out, "[%d/%d] %s: %d thumbnails\n", done, len(abs), r.Path, r.Thumbnails)
		}
	})

	code := 0
	total := 0
	for _, r := range results {
		total += r.Thumbnails
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", r.Path, r.Err)
			if hint := thumbnails.RecoverySuggestion(r.Err); hint != "" {
				fmt.Fprintf(os.Stderr, "       %s\n", hint)
			}
			code = 1
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.out, "Warmed %d videos, %d thumbnails\n", len(results), total)
	return code
}

func (a *app) sweep(ctx context.Context) int {
	report := a.store.Sweep(ctx)
	fmt.Fprintf(a.out, "Evicted %d videos, %s -> %s\n",
		len(report.Evicted), memory.FormatBytes(report.BytesBefore), memory.FormatBytes(report.BytesAfter))
	if report.Failed > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d videos could not be removed\n", report.Failed)
		return 1
	}
	return 0
}

func (a *app) reindex(ctx context.Context) int {
	if err := a.store.Reconcile(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return a.stats(ctx)
}

// sanitizeCommand replaces anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "MovieView Thumbnail Cache")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: thumbcache <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  stats              - Show disk cache size and video count")
	fmt.Fprintln(w, "  purge <video>...   - Remove cached thumbnails of videos")
	fmt.Fprintln(w, "  clear              - Remove every cached thumbnail")
	fmt.Fprintln(w, "  warm <video>...    - Generate and cache thumbnails of videos")
	fmt.Fprintln(w, "  sweep              - Evict least recently used videos over budget")
	fmt.Fprintln(w, "  reindex            - Rebuild the size index from the cache directory")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Configuration is read from config.yaml and MOVIEVIEW_* variables,")
	fmt.Fprintln(w, "the same way as the server.")
}
