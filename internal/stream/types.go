package stream

import (
	"context"
	"encoding/json"
)

// Chunk represents a processed piece of content from the stream
type Chunk struct {
	Content string
	Done    bool
	Error   error
}

// Format selects how Parser.Process decodes its input.
type Format int

const (
	// FormatEvents is a newline-delimited log of token/done/error events.
	FormatEvents Format = iota
	// FormatSSE is an OpenAI-style chat completion event stream ("data: {...}").
	FormatSSE
)

// Event is one line of an event log, e.g.
//
//	{"event":"token","data":{"delta":"Hel"}}
//	{"event":"done","data":{}}
//	{"event":"error","data":{"message":"rate limited"}}
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const (
	EventToken = "token"
	EventDone  = "done"
	EventError = "error"
)

type eventData struct {
	Delta   string `json:"delta"`
	Message string `json:"message"`
}

func (e Event) data() eventData {
	var d eventData
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &d)
	}
	return d
}

// Delta returns the text carried by a token event.
func (e Event) Delta() string { return e.data().Delta }

// Message returns the message carried by an error event.
func (e Event) Message() string { return e.data().Message }

// Parser handles the processing of raw stream data into chunks
type Parser struct {
	ctx    context.Context
	format Format
	chunks chan Chunk
}

func NewParser(ctx context.Context, format Format) *Parser {
	return &Parser{
		ctx:    ctx,
		format: format,
		chunks: make(chan Chunk),
	}
}

func (p *Parser) Chunks() <-chan Chunk {
	return p.chunks
}
