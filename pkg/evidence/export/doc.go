// Package export writes decision records for auditors.
//
// Two formats are supported:
//
//   - JSON: an array of records, optionally pretty-printed
//   - CSV: one row per decision with a header row; the context column holds
//     the stored context as a JSON object
//
// Both exporters implement evidence.Exporter and also stream records from a
// channel without holding the whole result set:
//
//	exporter, err := export.ForFormat("csv")
//	if err != nil {
//	    return err
//	}
//	w.Header().Set("Content-Type", exporter.ContentType())
//	err = exporter.Export(ctx, records, w)
//
// Exporters return evidence.ExportError when encoding or writing fails.
package export
