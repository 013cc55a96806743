// Package chartimg draws normalized chart specs as PNG images.
package chartimg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/markis/gh-chartstream/internal/chartspec"
)

// ErrUnsupported is returned for specs this renderer cannot draw.
var ErrUnsupported = errors.New("unsupported chart")

// series is the x/y data extracted from a spec's inline values.
type series struct {
	xField, yField string
	labels         []string
	xs, ys         []float64
	numericX       bool
}

// Render writes spec as a PNG image to w.
func Render(spec chartspec.Spec, w io.Writer) error {
	s, err := extract(spec)
	if err != nil {
		return err
	}

	switch mark := strings.ToLower(spec.Mark()); mark {
	case "bar":
		return renderBar(spec, s, w)
	case "line", "area", "point", "circle", "square", "tick":
		return renderContinuous(spec, s, mark, w)
	default:
		return fmt.Errorf("%w: mark %q", ErrUnsupported, spec.Mark())
	}
}

// WriteFile renders spec to path, creating parent directories.
func WriteFile(spec chartspec.Spec, path string) error {
	var buf bytes.Buffer
	if err := Render(spec, &buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

func extract(spec chartspec.Spec) (series, error) {
	s := series{xField: spec.Field("x"), yField: spec.Field("y")}
	if s.xField == "" || s.yField == "" {
		return s, fmt.Errorf("%w: both x and y encodings need a field", ErrUnsupported)
	}

	rows := spec.Values()
	if len(rows) == 0 {
		return s, fmt.Errorf("%w: no inline data values", ErrUnsupported)
	}

	// Bars may be oriented either way; the label is whichever side is not numeric.
	xType, yType := spec.FieldType("x"), spec.FieldType("y")
	if xType == "quantitative" && (yType == "nominal" || yType == "ordinal") {
		s.xField, s.yField = s.yField, s.xField
		xType = yType
	}

	s.numericX = xType == "quantitative" || xType == "temporal"
	for i, row := range rows {
		y, ok := chartspec.Float(row[s.yField])
		if !ok {
			return s, fmt.Errorf("%w: row %d: %q is not numeric", ErrUnsupported, i, s.yField)
		}
		label := fmt.Sprint(row[s.xField])
		x := float64(i)
		if s.numericX {
			if v, ok := chartspec.Float(row[s.xField]); ok {
				x = v
			} else {
				s.numericX = false
			}
		}
		s.labels = append(s.labels, label)
		s.xs = append(s.xs, x)
		s.ys = append(s.ys, y)
	}
	if !s.numericX {
		for i := range s.xs {
			s.xs[i] = float64(i)
		}
	}
	return s, nil
}

func renderBar(spec chartspec.Spec, s series, w io.Writer) error {
	bars := make([]chart.Value, len(s.ys))
	for i := range s.ys {
		bars[i] = chart.Value{Label: s.labels[i], Value: s.ys[i]}
	}

	width := spec.Width()
	barWidth := width / (2*len(bars) + 1)
	if barWidth < 4 {
		barWidth = 4
	}

	bc := chart.BarChart{
		Title:      spec.Title(),
		Width:      width,
		Height:     spec.Height(),
		BarWidth:   barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      chart.YAxis{Name: s.yField},
		Bars:       bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render bar chart: %w", err)
	}
	return nil
}

func renderContinuous(spec chartspec.Spec, s series, mark string, w io.Writer) error {
	style := chart.Style{StrokeWidth: 2}
	switch mark {
	case "point", "circle", "square", "tick":
		style = chart.Style{StrokeColor: drawing.ColorTransparent, DotWidth: 4, DotColor: chart.GetDefaultColor(0)}
	case "area":
		style = chart.Style{StrokeWidth: 2, FillColor: chart.GetDefaultColor(0).WithAlpha(64)}
	}

	xs, ys := s.xs, s.ys
	if len(xs) == 1 {
		// go-chart needs a non-empty x range
		xs = []float64{xs[0] - 0.5, xs[0] + 0.5}
		ys = []float64{ys[0], ys[0]}
	}

	xAxis := chart.XAxis{Name: s.xField}
	if !s.numericX {
		ticks := make([]chart.Tick, len(s.labels))
		for i, l := range s.labels {
			ticks[i] = chart.Tick{Value: float64(i), Label: l}
		}
		xAxis.Ticks = ticks
	}

	ch := chart.Chart{
		Title:      spec.Title(),
		Width:      spec.Width(),
		Height:     spec.Height(),
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: s.yField},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: s.yField, Style: style, XValues: xs, YValues: ys},
		},
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render %s chart: %w", mark, err)
	}
	return nil
}
