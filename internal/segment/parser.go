package segment

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/markis/gh-chartstream/internal/chartspec"
	applog "github.com/markis/gh-chartstream/internal/log"
)

const (
	// Opener starts a chart block. Anything may follow the tag on the same line.
	Opener = "```json"
	// Closer ends the nearest open chart block.
	Closer = "```"
)

// region is the byte range of one fenced block, fences included. inner is the
// range between the fences and is only meaningful when closed.
type region struct {
	start, end           int
	innerStart, innerEnd int
	closed               bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithInvalidSegments makes the parser emit a KindInvalid segment for a
// completed block that fails normalization instead of dropping it.
func WithInvalidSegments() Option {
	return func(p *Parser) { p.reportInvalid = true }
}

// WithLogger sets where dropped blocks are reported.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.log = l }
}

// Parser turns a buffer into segments. A Parser holds only configuration and is
// safe for concurrent use.
type Parser struct {
	reportInvalid bool
	log           *slog.Logger
}

// NewParser returns a Parser configured by opts.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse segments buffer with the default policy: malformed chart blocks are
// silently dropped.
func Parse(buffer string) []Segment {
	return NewParser().Parse(buffer)
}

// Parse returns the ordered segments of buffer. It never fails: a block that
// cannot be normalized is dropped (or reported as KindInvalid), and an
// unterminated block yields a single KindChartPending.
func (p *Parser) Parse(buffer string) []Segment {
	regions := scan(buffer)

	segs := make([]Segment, 0, 2*len(regions)+1)
	pos := 0
	for _, r := range regions {
		segs = appendText(segs, buffer, pos, r.start)
		pos = r.end

		if !r.closed {
			segs = append(segs, Segment{Kind: KindChartPending, Start: r.start, End: r.end})
			continue
		}

		spec, err := chartspec.Normalize(buffer[r.innerStart:r.innerEnd])
		if err != nil {
			p.logger().Debug("chart block dropped",
				slog.Int("start", r.start),
				slog.Int("end", r.end),
				slog.Bool("malformed", errors.Is(err, chartspec.ErrMalformed)),
				slog.Any("error", err),
			)
			if p.reportInvalid {
				segs = append(segs, Segment{Kind: KindInvalid, Reason: err.Error(), Start: r.start, End: r.end})
			}
			continue
		}
		segs = append(segs, Segment{Kind: KindChart, Chart: spec, Start: r.start, End: r.end})
	}

	return appendText(segs, buffer, pos, len(buffer))
}

func (p *Parser) logger() *slog.Logger {
	if p.log != nil {
		return p.log
	}
	return applog.WithComponent("segment")
}

// appendText adds buffer[from:to] unless it is blank. The slice is kept as is;
// trimming only decides whether it is emitted.
func appendText(segs []Segment, buffer string, from, to int) []Segment {
	if from >= to {
		return segs
	}
	s := buffer[from:to]
	if strings.TrimSpace(s) == "" {
		return segs
	}
	return append(segs, Text(s, from))
}

// scan finds chart blocks left to right. Each opener pairs with the nearest
// closer after it, so blocks never overlap. An opener with no closer runs to the
// end of the buffer and is necessarily the last region.
func scan(buffer string) []region {
	var regions []region
	pos := 0
	for pos < len(buffer) {
		i := strings.Index(buffer[pos:], Opener)
		if i < 0 {
			break
		}
		start := pos + i
		innerStart := start + len(Opener)

		j := strings.Index(buffer[innerStart:], Closer)
		if j < 0 {
			regions = append(regions, region{start: start, end: len(buffer)})
			break
		}
		innerEnd := innerStart + j
		end := innerEnd + len(Closer)
		regions = append(regions, region{
			start:      start,
			end:        end,
			innerStart: innerStart,
			innerEnd:   innerEnd,
			closed:     true,
		})
		pos = end
	}
	return regions
}
