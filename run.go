package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/markis/gh-chartstream/internal/args"
	"github.com/markis/gh-chartstream/internal/config"
	applog "github.com/markis/gh-chartstream/internal/log"
	"github.com/markis/gh-chartstream/internal/render"
	"github.com/markis/gh-chartstream/internal/segment"
	"github.com/markis/gh-chartstream/internal/server"
	"github.com/markis/gh-chartstream/internal/session"
	"github.com/markis/gh-chartstream/internal/stream"
)

func run(ctx context.Context, cfg *config.Config, a args.Arguments) error {
	switch a.Command {
	case args.CommandPlay:
		return runPlay(ctx, a, os.Stdin, os.Stdout)
	case args.CommandStream:
		return runStream(ctx, a, os.Stdin, os.Stdout)
	case args.CommandParse:
		return runParse(a, os.Stdin, os.Stdout)
	case args.CommandServe:
		return runServe(ctx, cfg, a)
	}
	return fmt.Errorf("unknown command %q", a.Command)
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

func newParser(a args.Arguments) *segment.Parser {
	opts := []segment.Option{segment.WithLogger(applog.WithComponent("segment"))}
	if a.Invalid {
		opts = append(opts, segment.WithInvalidSegments())
	}
	return segment.NewParser(opts...)
}

func runPlay(ctx context.Context, a args.Arguments, stdin io.Reader, out io.Writer) error {
	f, err := openInput(a.Input, stdin)
	if err != nil {
		return err
	}
	events, err := stream.ReadEvents(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", a.Input, err)
	}

	applog.WithOperation(applog.WithComponent("play"), "replay").Info("replaying events",
		slog.String("file", a.Input),
		slog.Int("events", len(events)),
		slog.Duration("min_delay", a.MinDelay),
		slog.Duration("jitter", a.Jitter),
	)

	chunks := stream.Replay(ctx, events, stream.Pacing{Min: a.MinDelay, Jitter: a.Jitter})
	return runSession(ctx, a, chunks, out)
}

func runStream(ctx context.Context, a args.Arguments, stdin io.Reader, out io.Writer) error {
	body, err := openInput(a.Input, stdin)
	if err != nil {
		return err
	}

	format := stream.FormatEvents
	if a.SSE {
		format = stream.FormatSSE
	}
	p := stream.NewParser(ctx, format)
	go p.Process(body)

	return runSession(ctx, a, p.Chunks(), out)
}

// runSession feeds chunks through a session. Live formats are drawn as the
// buffer grows; the others are written once from the final snapshot.
func runSession(ctx context.Context, a args.Arguments, chunks <-chan stream.Chunk, out io.Writer) error {
	var (
		term      *render.TerminalRenderer
		renderErr error
	)
	if a.Live() {
		var err error
		term, err = render.NewTerminalRenderer(out, render.TerminalOptions{
			PlainText: a.UsePlainText,
			Wrap:      a.Wrap,
			ChartDir:  a.ChartDir,
		})
		if err != nil {
			return err
		}
	}

	snap, _ := session.New(newParser(a)).Run(ctx, chunks, func(s session.Snapshot) {
		if term != nil && renderErr == nil {
			renderErr = term.Update(s)
		}
	})
	if renderErr != nil {
		return fmt.Errorf("failed to render output: %w", renderErr)
	}

	if term == nil {
		if err := writeFinal(a, snap.Segments, out); err != nil {
			return err
		}
	}
	if snap.Status == session.StatusError {
		return snap.Err
	}
	return nil
}

func runParse(a args.Arguments, stdin io.Reader, out io.Writer) error {
	in, err := openInput(a.Input, stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	buf, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	segs := newParser(a).Parse(string(buf))

	if !a.Live() {
		return writeFinal(a, segs, out)
	}
	term, err := render.NewTerminalRenderer(out, render.TerminalOptions{
		PlainText: a.UsePlainText,
		Wrap:      a.Wrap,
		ChartDir:  a.ChartDir,
	})
	if err != nil {
		return err
	}
	return term.Render(segs)
}

func writeFinal(a args.Arguments, segs []segment.Segment, out io.Writer) error {
	if a.Format == "html" {
		return render.NewHTMLRenderer().Render(out, segs)
	}
	return render.WriteSegments(out, segs, a.Format)
}

func runServe(ctx context.Context, cfg *config.Config, a args.Arguments) error {
	log := applog.WithComponent("server")
	srv := server.New(log, server.Options{
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		InvalidSegments: a.Invalid,
	})

	httpServer := &http.Server{
		Addr:         a.Addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting server", "addr", a.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
