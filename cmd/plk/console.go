package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"plk/internal/config"
	"plk/internal/console"
	"plk/internal/observability"
	"plk/internal/session"
	"plk/internal/views"
	"plk/internal/watch"
)

// runConsole hosts the interactive loop. Everything that touches state runs
// on this one goroutine; the stdin reader only ferries lines across.
func runConsole(cfg config.Config, logger *slog.Logger, par, tim string) int {
	s, store, err := newSession(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer store.Close()

	status := views.NewStatusView(s.Hub())
	bridge := console.NewBridge(s, logger)

	if err := s.Open(par, tim); err != nil {
		logger.Error("load failed", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = observability.WithSessionID(ctx, s.ID())
	ctx = observability.WithPulsar(ctx, s.Container().PulsarName())

	var reload <-chan string
	if cfg.Watch.Enabled {
		w, err := watch.New(par, tim, logger)
		if err != nil {
			logger.Error("watcher setup failed", "error", err)
			return 1
		}
		defer w.Close()
		if err := w.Start(ctx); err != nil {
			logger.Error("watcher start failed", "error", err)
			return 1
		}
		reload = w.Changed()
	}

	lines := lineFeed(ctx, os.Stdin)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Println("plk console. :help for commands, :quit to leave.")
		fmt.Println(status.Render())
		return replLoop(gctx, cancel, s, bridge, status, lines, reload)
	})

	// Only the REPL goroutine is waited on; the stdin reader may stay parked
	// in a blocking read until the process exits.
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		observability.ErrorContext(ctx, "console terminated", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// lineFeed streams lines from r on a detached goroutine. A read blocked on a
// quiet terminal cannot be interrupted, so no shutdown path may ever wait for
// this goroutine; it exits on EOF, on a read error, or at the first send
// after cancellation.
func lineFeed(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// replLoop serializes all state access: console lines and reload requests are
// handled one at a time until quit, end of input or cancellation.
func replLoop(ctx context.Context, cancel context.CancelFunc, s *session.Session, bridge *console.Bridge, status *views.StatusView, lines <-chan string, reload <-chan string) error {
	for {
		fmt.Print("plk> ")
		select {
		case <-ctx.Done():
			return nil

		case path := <-reload:
			fmt.Println()
			observability.InfoContext(ctx, "source changed on disk, reloading",
				slog.String("file", path))
			if err := s.Reload(); err != nil {
				observability.WarnContext(ctx, "reload failed", slog.String("error", err.Error()))
				fmt.Println("reload failed:", err)
			} else {
				fmt.Println(status.Render())
			}

		case line, ok := <-lines:
			if !ok {
				cancel()
				return nil
			}
			if quit := handleLine(ctx, s, bridge, status, line); quit {
				cancel()
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, s *session.Session, bridge *console.Bridge, status *views.StatusView, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case ":quit", ":q", "exit":
		return true
	case ":status":
		fmt.Println(status.Render())
		return false
	case ":reload":
		if err := s.Reload(); err != nil {
			fmt.Println("reload failed:", err)
		} else {
			fmt.Println(status.Render())
		}
		return false
	case ":help":
		fmt.Println("expressions:  psr.Param(\"F0\"), psr.SetParam(\"F0\", 29.946923), psr.Freeze(\"F1\"),")
		fmt.Println("              psr.Deselect(3), psr.Rms(), fit(), revert(), residuals(), params()")
		fmt.Println("commands:     :status :reload :quit")
		return false
	}

	out, err := bridge.Execute(line)
	if err != nil {
		observability.DebugContext(ctx, "console expression failed", slog.String("error", err.Error()))
		fmt.Println("error:", err)
		return false
	}
	if out != nil {
		fmt.Println(out)
	}
	return false
}
