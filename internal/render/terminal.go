package render

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/cli/go-gh/v2/pkg/markdown"

	"github.com/markis/gh-chartstream/internal/chartimg"
	applog "github.com/markis/gh-chartstream/internal/log"
	"github.com/markis/gh-chartstream/internal/segment"
	"github.com/markis/gh-chartstream/internal/session"
)

// TerminalOptions configures a TerminalRenderer.
type TerminalOptions struct {
	PlainText bool
	Wrap      int
	// ChartDir receives one PNG per chart. Empty disables image output.
	ChartDir string
}

// TerminalRenderer writes segments to a terminal as they stop changing. Every
// segment except the last is final once it appears, so each is written once;
// the tail is written when the stream ends.
type TerminalRenderer struct {
	out       io.Writer
	markdown  *glamour.TermRenderer
	plainText bool
	chartDir  string
	log       *slog.Logger

	printed   int
	pendingAt int
	charts    int
}

func NewTerminalRenderer(out io.Writer, opts TerminalOptions) (*TerminalRenderer, error) {
	t := &TerminalRenderer{
		out:       out,
		plainText: opts.PlainText,
		chartDir:  opts.ChartDir,
		log:       applog.WithComponent("render"),
		pendingAt: -1,
	}
	if !opts.PlainText {
		wrap := opts.Wrap
		if wrap <= 0 {
			wrap = 120
		}
		md, err := glamour.NewTermRenderer(
			markdown.WithWrap(wrap),
			glamour.WithAutoStyle(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		t.markdown = md
	}
	return t, nil
}

// Update renders what became stable in snap. On the final snapshot everything
// left is written.
func (t *TerminalRenderer) Update(snap session.Snapshot) error {
	segs := snap.Segments
	stable := len(segs)
	if !snap.Final() && stable > 0 {
		stable--
	}

	// A block that closes invalid can shorten the list; what was written stays.
	for ; t.printed < stable; t.printed++ {
		if err := t.renderSegment(segs[t.printed]); err != nil {
			return err
		}
	}

	if !snap.Final() && segment.Pending(segs) {
		last := segs[len(segs)-1]
		if last.Start != t.pendingAt {
			t.pendingAt = last.Start
			if _, err := fmt.Fprintln(t.out, "⏳ chart loading..."); err != nil {
				return err
			}
		}
	}

	if snap.Final() && snap.Status == session.StatusError && snap.Err != nil {
		_, err := fmt.Fprintf(t.out, "\n✗ %v\n", snap.Err)
		return err
	}
	return nil
}

// Render writes a complete segment list at once.
func (t *TerminalRenderer) Render(segs []segment.Segment) error {
	return t.Update(session.Snapshot{Segments: segs, Status: session.StatusDone})
}

func (t *TerminalRenderer) renderSegment(s segment.Segment) error {
	switch s.Kind {
	case segment.KindText:
		return t.renderContent(s.Text)
	case segment.KindChart:
		return t.renderChart(s)
	case segment.KindInvalid:
		_, err := fmt.Fprintf(t.out, "⚠ invalid chart: %s\n", s.Reason)
		return err
	case segment.KindChartPending:
		// only stable once the stream ended inside a block
		_, err := fmt.Fprintln(t.out, "⏳ chart incomplete")
		return err
	}
	return nil
}

func (t *TerminalRenderer) renderContent(content string) error {
	if t.plainText {
		_, err := fmt.Fprint(t.out, content)
		return err
	}

	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "#") {
		fmt.Fprintln(t.out)
	}

	mdContent, err := t.markdown.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	_, err = fmt.Fprintln(t.out, strings.TrimSpace(mdContent))
	return err
}

func (t *TerminalRenderer) renderChart(s segment.Segment) error {
	t.charts++
	spec := s.Chart
	summary := fmt.Sprintf("📊 %s chart", spec.Mark())
	if title := spec.Title(); title != "" {
		summary += fmt.Sprintf(" %q", title)
	}
	if x, y := spec.Field("x"), spec.Field("y"); x != "" || y != "" {
		summary += fmt.Sprintf(" (%s × %s, %d rows)", x, y, len(spec.Values()))
	}

	if t.chartDir != "" {
		path := filepath.Join(t.chartDir, fmt.Sprintf("chart-%d.png", t.charts))
		if err := chartimg.WriteFile(spec, path); err != nil {
			t.log.Warn("chart not rendered", slog.String("path", path), slog.Any("error", err))
			summary += " [not rendered]"
		} else {
			summary += " → " + path
		}
	}

	_, err := fmt.Fprintln(t.out, summary)
	return err
}
