package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"mercator-hq/warden/pkg/evidence"
)

// CSVExporter exports decision records to CSV format.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// ContentType returns the MIME type of the export.
func (e *CSVExporter) ContentType() string {
	return "text/csv"
}

// Export writes decision records to w in CSV format. The context column
// holds the stored context as a JSON object.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.DecisionRecord, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(headerRow); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(recordToRow(record)); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

// ExportStream exports decision records from a channel to CSV format,
// flushing every 100 records.
func (e *CSVExporter) ExportStream(ctx context.Context, recordsCh <-chan *evidence.DecisionRecord, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow); err != nil {
			return evidence.NewExportError("csv", 0, err)
		}
	}

	recordCount := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-recordsCh:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return evidence.NewExportError("csv", recordCount, err)
				}
				return nil
			}

			if err := writer.Write(recordToRow(record)); err != nil {
				return evidence.NewExportError("csv", recordCount, err)
			}
			recordCount++

			if recordCount%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return evidence.NewExportError("csv", recordCount, err)
				}
			}
		}
	}
}

var headerRow = []string{
	"decision_id", "tenant_id", "created_at",
	"decision", "reason", "risk_level", "policy_version",
	"matched_rule", "escalation_id", "rate_limited",
	"action", "actor", "resource",
	"context", "context_hash",
}

func recordToRow(record *evidence.DecisionRecord) []string {
	ctxJSON := ""
	if len(record.Context) > 0 {
		data, _ := json.Marshal(record.Context)
		ctxJSON = string(data)
	}

	return []string{
		record.DecisionID,
		record.TenantID,
		formatTime(record.CreatedAt),
		record.Decision,
		record.Reason,
		record.RiskLevel.String(),
		record.PolicyVersion,
		deref(record.MatchedRule),
		deref(record.EscalationID),
		strconv.FormatBool(record.RateLimited),
		record.Action,
		record.Actor,
		record.Resource,
		ctxJSON,
		record.ContextHash,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
