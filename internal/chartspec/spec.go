package chartspec

import (
	"encoding/json"
	"strconv"
)

// Spec is a normalized Vega-Lite declaration. Numbers decoded from a block are
// kept as json.Number so they re-encode exactly as written.
type Spec map[string]any

// Mark returns the mark type, accepting both "bar" and {"type": "bar"}.
func (s Spec) Mark() string {
	switch m := s["mark"].(type) {
	case string:
		return m
	case map[string]any:
		t, _ := m["type"].(string)
		return t
	}
	return ""
}

// Encoding returns the channel mapping, or nil.
func (s Spec) Encoding() map[string]any {
	enc, _ := s["encoding"].(map[string]any)
	return enc
}

// Field returns the data field bound to an encoding channel such as "x" or "y".
func (s Spec) Field(channel string) string {
	ch, _ := s.Encoding()[channel].(map[string]any)
	f, _ := ch["field"].(string)
	return f
}

// FieldType returns the Vega-Lite measurement type of a channel ("nominal",
// "quantitative", ...), or "" when unspecified.
func (s Spec) FieldType(channel string) string {
	ch, _ := s.Encoding()[channel].(map[string]any)
	t, _ := ch["type"].(string)
	return t
}

// Values returns the inline dataset rows. Rows that are not objects are skipped.
func (s Spec) Values() []map[string]any {
	data, _ := s["data"].(map[string]any)
	rows, _ := data["values"].([]any)
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		if m, ok := r.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Title returns the chart title, accepting both "t" and {"text": "t"}.
func (s Spec) Title() string {
	switch t := s["title"].(type) {
	case string:
		return t
	case map[string]any:
		text, _ := t["text"].(string)
		return text
	}
	return ""
}

func (s Spec) Width() int  { return s.dimension("width", DefaultWidth) }
func (s Spec) Height() int { return s.dimension("height", DefaultHeight) }

// dimension falls back when the value is missing or not a positive number, e.g.
// Vega-Lite's "container".
func (s Spec) dimension(key string, fallback int) int {
	f, ok := Float(s[key])
	if !ok || f <= 0 {
		return fallback
	}
	return int(f)
}

// Clone returns a deep copy so renderers can adjust a spec without touching the
// one owned by its segment.
func (s Spec) Clone() Spec {
	if s == nil {
		return nil
	}
	return Spec(cloneValue(map[string]any(s)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = cloneValue(e)
		}
		return a
	default:
		return v
	}
}

// Float converts the numeric representations found in a Spec to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
