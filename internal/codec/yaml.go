package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"iscsidb/internal/domain"
	"iscsidb/internal/recinfo"
)

// YAMLExporter writes records as a YAML sequence, keeping field order
type YAMLExporter struct{}

// NewYAMLExporter creates a new YAML exporter
func NewYAMLExporter() *YAMLExporter {
	return &YAMLExporter{}
}

// Format returns the codec format identifier
func (e *YAMLExporter) Format() string {
	return "yaml"
}

// Export encodes records as
//
//	- kind: node
//	  id: 07ff91
//	  params:
//	    node.name: iqn...
//
// Masked values are exported masked.
func (e *YAMLExporter) Export(records []Record, w io.Writer) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, rec := range records {
		doc.Content = append(doc.Content, recordNode(rec))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func recordNode(rec Record) *yaml.Node {
	params := &yaml.Node{Kind: yaml.MappingNode}
	for i := range rec.Fields {
		f := &rec.Fields[i]
		if f.Visibility == recinfo.Hidden {
			continue
		}
		params.Content = append(params.Content, scalar(f.Name, "!!str"), valueNode(f))
	}

	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			scalar("kind", "!!str"), scalar(rec.Kind, "!!str"),
			scalar("id", "!!str"), scalar(domain.FormatID(rec.ID), "!!str"),
			scalar("params", "!!str"), params,
		},
	}
}

func valueNode(f *recinfo.Field) *yaml.Node {
	if f.Type == recinfo.TypeInt {
		return scalar(f.Value, "!!int")
	}
	return scalar(DisplayValue(f), "!!str")
}

func scalar(value, tag string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
