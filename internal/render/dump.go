package render

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/markis/gh-chartstream/internal/segment"
)

// WriteSegments encodes segs as "json" or "yaml".
func WriteSegments(w io.Writer, segs []segment.Segment, format string) error {
	if segs == nil {
		segs = []segment.Segment{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(segs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(segs); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown segment format %q", format)
	}
}
