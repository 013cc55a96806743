package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ChatResponse represents the structure of a chat completion stream event.
type ChatResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Process reads body until EOF, a terminal event, or context cancellation and
// sends the decoded chunks. The chunk channel is closed on return.
func (p *Parser) Process(body io.ReadCloser) {
	defer close(p.chunks)
	defer func() { _ = body.Close() }()

	reader := bufio.NewReaderSize(body, 4096)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanLines)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		chunk, ok, err := p.decode(line)
		if err != nil {
			// A bad line does not end the stream.
			chunk = Chunk{Error: fmt.Errorf("%w: line %d: %v", ErrDecode, lineNo, err)}
			ok = true
		}
		if !ok {
			continue
		}
		if !p.send(chunk) {
			return
		}
		if chunk.Done || errors.Is(chunk.Error, ErrRemote) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		p.send(Chunk{Error: err})
	}
}

// send delivers c unless the context is done first.
func (p *Parser) send(c Chunk) bool {
	select {
	case <-p.ctx.Done():
		cancelled(p.ctx, p.chunks)
		return false
	case p.chunks <- c:
		return true
	}
}

// decode turns one input line into a chunk; ok is false for lines that carry
// nothing.
func (p *Parser) decode(line string) (Chunk, bool, error) {
	if strings.TrimSpace(line) == "" {
		return Chunk{}, false, nil
	}

	if p.format == FormatSSE {
		if line == "data: [DONE]" {
			return Chunk{Done: true}, true, nil
		}
		if !strings.HasPrefix(line, "data:") {
			return Chunk{}, false, nil
		}
		var resp ChatResponse
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			return Chunk{}, false, err
		}
		if len(resp.Choices) == 0 {
			return Chunk{}, false, nil
		}
		content := resp.Choices[0].Delta.Content
		if content == "" {
			content = resp.Choices[0].Message.Content
		}
		return Chunk{Content: content}, content != "", nil
	}

	var ev Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return Chunk{}, false, err
	}
	return chunkFor(ev)
}

var (
	// ErrRemote wraps the message of an error event.
	ErrRemote = errors.New("stream error")
	// ErrDecode marks an input line that could not be decoded. The stream
	// continues after it.
	ErrDecode = errors.New("undecodable stream line")
)

func chunkFor(ev Event) (Chunk, bool, error) {
	switch ev.Event {
	case EventToken:
		d := ev.Delta()
		return Chunk{Content: d}, d != "", nil
	case EventDone:
		return Chunk{Done: true}, true, nil
	case EventError:
		return Chunk{Error: fmt.Errorf("%w: %s", ErrRemote, ev.Message())}, true, nil
	default:
		return Chunk{}, false, nil
	}
}
