// Package codec converts records and record views to and from their
// serialized forms: the "name = value" text used by iscsid.conf and record
// printing, the CBOR encoding of stored records, and export formats.
package codec

import (
	"fmt"
	"io"

	"iscsidb/internal/recinfo"
)

// Record is one record's field view, labelled for export
type Record struct {
	Kind   string
	ID     uint32
	Fields []recinfo.Field
}

// Exporter renders record views in a display format
type Exporter interface {
	Export(records []Record, w io.Writer) error
	Format() string
}

// NewExporter returns the exporter for a format name
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "text", "":
		return NewTextExporter(), nil
	case "yaml":
		return NewYAMLExporter(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// TextExporter writes records as "name = value" blocks
type TextExporter struct{}

// NewTextExporter creates a new text exporter
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Format returns the codec format identifier
func (e *TextExporter) Format() string {
	return "text"
}

// Export writes one commented header and field block per record
func (e *TextExporter) Export(records []Record, w io.Writer) error {
	for i, rec := range records {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "# %s [%06x]\n%s", rec.Kind, rec.ID, Format(rec.Fields)); err != nil {
			return fmt.Errorf("failed to write %s record: %w", rec.Kind, err)
		}
	}
	return nil
}
