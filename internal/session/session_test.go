package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	applog "github.com/markis/gh-chartstream/internal/log"
	"github.com/markis/gh-chartstream/internal/segment"
	"github.com/markis/gh-chartstream/internal/stream"
)

func feed(chunks ...stream.Chunk) <-chan stream.Chunk {
	ch := make(chan stream.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func newSession() *Session {
	return New(segment.NewParser(segment.WithLogger(applog.Discard())))
}

func TestRun_ReparsesOnEveryDelta(t *testing.T) {
	deltas := []string{"Intro\n", "```js", "on\n{\"mark\":\"bar\",", "\"encoding\":{}}\n``", "`\nOutro"}
	var in []stream.Chunk
	for _, d := range deltas {
		in = append(in, stream.Chunk{Content: d})
	}
	in = append(in, stream.Chunk{Done: true})

	var snaps []Snapshot
	final, err := newSession().Run(context.Background(), feed(in...), func(s Snapshot) {
		snaps = append(snaps, s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snaps) != len(deltas)+1 {
		t.Fatalf("expected %d snapshots, got %d", len(deltas)+1, len(snaps))
	}
	if final.Status != StatusDone || !final.Final() {
		t.Errorf("expected done, got %v", final.Status)
	}
	if final.Buffer != "Intro\n```json\n{\"mark\":\"bar\",\"encoding\":{}}\n```\nOutro" {
		t.Errorf("unexpected buffer %q", final.Buffer)
	}

	pendingSeen := false
	for _, s := range snaps[:len(snaps)-1] {
		if s.Status != StatusStreaming {
			t.Errorf("intermediate snapshot has status %v", s.Status)
		}
		if segment.Pending(s.Segments) {
			pendingSeen = true
		}
	}
	if !pendingSeen {
		t.Errorf("expected a pending chart while the block was open")
	}

	got := final.Segments
	if len(got) != 3 || got[1].Kind != segment.KindChart {
		t.Errorf("unexpected final segments %v", got)
	}
}

func TestRun_EmptyDeltaSkipped(t *testing.T) {
	updates := 0
	_, err := newSession().Run(context.Background(), feed(
		stream.Chunk{Content: "a"},
		stream.Chunk{Content: ""},
		stream.Chunk{Content: "b"},
	), func(s Snapshot) { updates++ })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// two deltas plus the final snapshot on close
	if updates != 3 {
		t.Errorf("expected 3 updates, got %d", updates)
	}
}

func TestRun_RemoteError(t *testing.T) {
	remote := fmt.Errorf("%w: overloaded", stream.ErrRemote)
	final, err := newSession().Run(context.Background(), feed(
		stream.Chunk{Content: "partial"},
		stream.Chunk{Error: remote},
		stream.Chunk{Content: "never"},
	), nil)

	if !errors.Is(err, stream.ErrRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if final.Status != StatusError || final.Buffer != "partial" {
		t.Errorf("unexpected final snapshot %+v", final)
	}
	if len(final.Segments) != 1 || final.Segments[0].Text != "partial" {
		t.Errorf("prose before the error should survive: %v", final.Segments)
	}
}

func TestRun_DecodeErrorSkipped(t *testing.T) {
	final, err := newSession().Run(context.Background(), feed(
		stream.Chunk{Content: "a"},
		stream.Chunk{Error: fmt.Errorf("%w: line 2", stream.ErrDecode)},
		stream.Chunk{Content: "b"},
		stream.Chunk{Done: true},
	), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Buffer != "ab" || final.Status != StatusDone {
		t.Errorf("unexpected final snapshot %+v", final)
	}
}

func TestRun_CancelledEndsIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	never := make(chan stream.Chunk)
	final, err := newSession().Run(ctx, never, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if final.Status != StatusIdle {
		t.Errorf("expected idle, got %v", final.Status)
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusIdle:      "idle",
		StatusStreaming: "streaming",
		StatusDone:      "done",
		StatusError:     "error",
		Status(9):       "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
