package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/probelab/deepresearch/internal/research"
)

// Writer defines the interface for report output. Implementations render a
// result to their configured destination and report the bytes written.
type Writer interface {
	Write(result research.ResearchResult) (int, error)
}

// JSONWriter emits the wire-shape document consumed by the PDF renderer and
// other downstream tooling.
type JSONWriter struct {
	output io.Writer
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{output: output}
}

// Write serializes the result as indented JSON.
func (w *JSONWriter) Write(result research.ResearchResult) (int, error) {
	doc := BuildDocument(result)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	n, err := w.output.Write(data)
	if err != nil {
		return n, fmt.Errorf("write report: %w", err)
	}
	return n, nil
}
