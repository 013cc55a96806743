// Package segment splits accumulated model output into prose and embedded
// Vega-Lite chart blocks.
//
// The whole buffer is re-parsed on every call; nothing is carried between calls.
// As long as the buffer only grows, every segment but the last one keeps its
// value from one call to the next, so consumers can render the stable prefix
// once and only refresh the tail.
package segment

import (
	"encoding/json"

	"github.com/markis/gh-chartstream/internal/chartspec"
)

// Kind identifies the variant held by a Segment.
type Kind int

const (
	// KindText is prose to display verbatim.
	KindText Kind = iota
	// KindChart is a completed, normalized chart block.
	KindChart
	// KindChartPending marks a chart block whose closing fence has not arrived.
	KindChartPending
	// KindInvalid is a completed block that failed normalization. It is only
	// produced by a Parser built with WithInvalidSegments.
	KindInvalid
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindChart:
		return "chart"
	case KindChartPending:
		return "chart-loading"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// MarshalText lets Kind serialize as its wire name in JSON and YAML.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Segment is one classified span of the buffer.
type Segment struct {
	Kind Kind
	// Text is set for KindText and holds the untrimmed source slice.
	Text string
	// Chart is set for KindChart.
	Chart chartspec.Spec
	// Reason is set for KindInvalid.
	Reason string

	// Start and End are the byte offsets of the segment's source range.
	Start int
	End   int
}

// Text returns a prose segment.
func Text(s string, start int) Segment {
	return Segment{Kind: KindText, Text: s, Start: start, End: start + len(s)}
}

type wireSegment struct {
	Type    string `json:"type" yaml:"type"`
	Content any    `json:"content,omitempty" yaml:"content,omitempty"`
	Start   int    `json:"start" yaml:"start"`
	End     int    `json:"end" yaml:"end"`
}

func (s Segment) wire() wireSegment {
	w := wireSegment{Type: s.Kind.String(), Start: s.Start, End: s.End}
	switch s.Kind {
	case KindText:
		w.Content = s.Text
	case KindChart:
		w.Content = s.Chart
	case KindInvalid:
		w.Content = s.Reason
	}
	return w
}

// MarshalJSON encodes the segment as {"type": ..., "content": ...}.
func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wire())
}

// MarshalYAML mirrors MarshalJSON for yaml.v3.
func (s Segment) MarshalYAML() (any, error) {
	return s.wire(), nil
}

// Charts returns the chart specs in source order.
func Charts(segs []Segment) []chartspec.Spec {
	var out []chartspec.Spec
	for _, s := range segs {
		if s.Kind == KindChart {
			out = append(out, s.Chart)
		}
	}
	return out
}

// Pending reports whether the last segment is an unfinished chart block.
func Pending(segs []Segment) bool {
	return len(segs) > 0 && segs[len(segs)-1].Kind == KindChartPending
}
