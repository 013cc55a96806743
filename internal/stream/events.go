package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"
)

// ReadEvents loads a whole event log. Blank lines are skipped; the first line
// that is not a JSON event fails the load.
func ReadEvents(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var events []Event
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// Pacing controls simulated playback. Each event is delayed by Min plus a
// random duration in [0, Jitter).
type Pacing struct {
	Min    time.Duration
	Jitter time.Duration
}

// DefaultPacing matches the 50–150ms per-token cadence of a typical model.
var DefaultPacing = Pacing{Min: 50 * time.Millisecond, Jitter: 100 * time.Millisecond}

func (p Pacing) next() time.Duration {
	d := p.Min
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// Replay plays events back as chunks, sleeping before each one. The stream ends
// after a done or error event, after the last event, or when ctx is cancelled
// (with a final chunk carrying ctx.Err()).
func Replay(ctx context.Context, events []Event, pacing Pacing) <-chan Chunk {
	chunks := make(chan Chunk)

	go func() {
		defer close(chunks)
		done := ctx.Done()

		for _, ev := range events {
			if d := pacing.next(); d > 0 {
				timer := time.NewTimer(d)
				select {
				case <-done:
					timer.Stop()
					cancelled(ctx, chunks)
					return
				case <-timer.C:
				}
			}

			chunk, ok, _ := chunkFor(ev)
			if !ok {
				continue
			}
			select {
			case <-done:
				cancelled(ctx, chunks)
				return
			case chunks <- chunk:
			}
			if chunk.Done || chunk.Error != nil {
				return
			}
		}
	}()

	return chunks
}

// cancelled reports ctx.Err() to a reader that is still listening.
func cancelled(ctx context.Context, chunks chan<- Chunk) {
	select {
	case chunks <- Chunk{Error: ctx.Err()}:
	default:
	}
}
