package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/warden/pkg/evidence"
)

// JSONExporter exports decision records as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// ContentType returns the MIME type of the export.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// Export writes decision records to w as a JSON array. An empty slice
// produces "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*evidence.DecisionRecord, w io.Writer) error {
	if records == nil {
		records = []*evidence.DecisionRecord{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return evidence.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return evidence.NewExportError("json", len(records), err)
	}
	return nil
}

// ExportStream exports decision records from a channel as a JSON array,
// writing each record as it arrives.
func (e *JSONExporter) ExportStream(ctx context.Context, recordsCh <-chan *evidence.DecisionRecord, w io.Writer) error {
	if _, err := w.Write([]byte("[")); err != nil {
		return evidence.NewExportError("json", 0, err)
	}

	first := true
	recordCount := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-recordsCh:
			if !ok {
				if _, err := w.Write([]byte("]")); err != nil {
					return evidence.NewExportError("json", recordCount, err)
				}
				return nil
			}

			if !first {
				sep := ","
				if e.Pretty {
					sep = ",\n"
				}
				if _, err := io.WriteString(w, sep); err != nil {
					return evidence.NewExportError("json", recordCount, err)
				}
			}
			first = false

			data, err := e.serializeRecord(record)
			if err != nil {
				return evidence.NewExportError("json", recordCount, err)
			}
			if _, err := w.Write(data); err != nil {
				return evidence.NewExportError("json", recordCount, err)
			}
			recordCount++
		}
	}
}

func (e *JSONExporter) serializeRecord(record *evidence.DecisionRecord) ([]byte, error) {
	if e.Pretty {
		return json.MarshalIndent(record, "  ", "  ")
	}
	return json.Marshal(record)
}
