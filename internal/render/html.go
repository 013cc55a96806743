package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/markis/gh-chartstream/internal/segment"
)

// embedOptions are passed to vega-embed for every chart.
const embedOptions = `{"actions":{"export":true,"source":false,"compiled":false,"editor":false},` +
	`"config":{"view":{"continuousWidth":600,"continuousHeight":400},"bar":{"discreteBandSize":40}}}`

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://cdn.jsdelivr.net/npm/vega@5"></script>
<script src="https://cdn.jsdelivr.net/npm/vega-lite@5"></script>
<script src="https://cdn.jsdelivr.net/npm/vega-embed@6"></script>
<style>
body { max-width: 900px; margin: 40px auto; font-family: sans-serif; }
.chart, .chart-loading, .chart-error { margin: 16px 0; padding: 16px; border-radius: 8px; }
.chart-loading { background: #f1f5f9; color: #64748b; }
.chart-error { background: #fef2f2; color: #b91c1c; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTMLRenderer renders segments as a standalone page: prose through goldmark,
// charts through vega-embed.
type HTMLRenderer struct {
	md    goldmark.Markdown
	Title string
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		Title: "gh-chartstream",
	}
}

// RenderBody writes the page body fragment for segs.
func (h *HTMLRenderer) RenderBody(w io.Writer, segs []segment.Segment) error {
	charts := 0
	for _, s := range segs {
		switch s.Kind {
		case segment.KindText:
			if err := h.md.Convert([]byte(s.Text), w); err != nil {
				return fmt.Errorf("failed to convert markdown: %w", err)
			}
		case segment.KindChart:
			charts++
			spec, err := json.Marshal(s.Chart)
			if err != nil {
				return fmt.Errorf("failed to encode chart: %w", err)
			}
			// json.Marshal escapes <, > and &, so the spec cannot end the script element.
			if _, err := fmt.Fprintf(w, "<div class=\"chart\" id=\"chart-%d\"></div>\n<script>vegaEmbed(\"#chart-%d\", %s, %s);</script>\n",
				charts, charts, spec, embedOptions); err != nil {
				return err
			}
		case segment.KindChartPending:
			if _, err := io.WriteString(w, "<div class=\"chart-loading\">Loading chart…</div>\n"); err != nil {
				return err
			}
		case segment.KindInvalid:
			if _, err := fmt.Fprintf(w, "<div class=\"chart-error\">%s</div>\n", html.EscapeString(s.Reason)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Render writes a full HTML document for segs.
func (h *HTMLRenderer) Render(w io.Writer, segs []segment.Segment) error {
	var body bytes.Buffer
	if err := h.RenderBody(&body, segs); err != nil {
		return err
	}
	return pageTemplate.Execute(w, struct {
		Title string
		Body  template.HTML
	}{Title: h.Title, Body: template.HTML(body.String())})
}
