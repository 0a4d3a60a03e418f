package export

import (
	"fmt"
	"strings"

	"mercator-hq/warden/pkg/evidence"
)

// Supported export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ForFormat returns the exporter for a format name. An empty name selects
// JSON.
func ForFormat(format string) (evidence.Exporter, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return NewJSONExporter(false), nil
	case FormatCSV:
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (must be 'json' or 'csv')", format)
	}
}
