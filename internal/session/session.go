// Package session drives the segment parser from a stream of chunks.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	applog "github.com/markis/gh-chartstream/internal/log"
	"github.com/markis/gh-chartstream/internal/segment"
	"github.com/markis/gh-chartstream/internal/stream"
)

// Status is the lifecycle state of a session.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStreaming:
		return "streaming"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the state reported after every growth of the buffer and once
// more when the session ends.
type Snapshot struct {
	Buffer   string
	Segments []segment.Segment
	Status   Status
	Err      error
}

// Final reports whether no further snapshots will follow.
func (s Snapshot) Final() bool { return s.Status != StatusStreaming }

// Session owns an append-only buffer.
type Session struct {
	parser *segment.Parser
	log    *slog.Logger
	buf    strings.Builder
}

// New returns a session that segments with parser, or with the default parser
// when parser is nil.
func New(parser *segment.Parser) *Session {
	if parser == nil {
		parser = segment.NewParser()
	}
	return &Session{
		parser: parser,
		log:    applog.WithComponent("session"),
	}
}

// Run consumes chunks until the stream finishes, fails, or ctx is cancelled.
// After each non-empty delta the whole buffer is parsed again and onUpdate is
// called; onUpdate is called a last time with the final status. A cancelled
// session ends idle, like a stopped player.
func (s *Session) Run(ctx context.Context, chunks <-chan stream.Chunk, onUpdate func(Snapshot)) (Snapshot, error) {
	if onUpdate == nil {
		onUpdate = func(Snapshot) {}
	}
	done := ctx.Done()
	updates := 0

	finish := func(status Status, err error) (Snapshot, error) {
		snap := s.snapshot(status, err)
		s.log.Debug("session finished",
			slog.String("status", status.String()),
			slog.Int("bytes", s.buf.Len()),
			slog.Int("updates", updates),
			slog.Int("segments", len(snap.Segments)),
		)
		onUpdate(snap)
		return snap, err
	}

	for {
		select {
		case <-done:
			return finish(StatusIdle, ctx.Err())
		case chunk, ok := <-chunks:
			switch {
			case !ok || chunk.Done:
				return finish(StatusDone, nil)
			case errors.Is(chunk.Error, context.Canceled), errors.Is(chunk.Error, context.DeadlineExceeded):
				return finish(StatusIdle, chunk.Error)
			case errors.Is(chunk.Error, stream.ErrDecode):
				s.log.Warn("skipping bad chunk", slog.Any("error", chunk.Error))
				continue
			case chunk.Error != nil:
				return finish(StatusError, chunk.Error)
			case chunk.Content == "":
				continue
			}

			s.buf.WriteString(chunk.Content)
			updates++
			onUpdate(s.snapshot(StatusStreaming, nil))
		}
	}
}

// Buffer returns the text accumulated so far.
func (s *Session) Buffer() string { return s.buf.String() }

func (s *Session) snapshot(status Status, err error) Snapshot {
	buf := s.buf.String()
	return Snapshot{
		Buffer:   buf,
		Segments: s.parser.Parse(buf),
		Status:   status,
		Err:      err,
	}
}
