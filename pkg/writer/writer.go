// Package writer renders values as JSON or YAML for command output.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output format name.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Writer renders values of type T.
type Writer[T any] interface {
	Write(data T, w io.Writer) error
}

// New returns the writer for format. JSON output is indented.
func New[T any](format string) (Writer[T], error) {
	switch Format(strings.ToLower(format)) {
	case FormatJSON, "":
		return NewPrettyJSONWriter[T](), nil
	case FormatYAML, "yml":
		return NewYAMLWriter[T](), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q", format)
	}
}

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: ""}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write writes the data as JSON to the writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	return encoder.Encode(data)
}

// YAMLWriter writes data as YAML.
type YAMLWriter[T any] struct {
	Indent int
}

// NewYAMLWriter creates a YAML writer with two-space indentation.
func NewYAMLWriter[T any]() *YAMLWriter[T] {
	return &YAMLWriter[T]{Indent: 2}
}

// Write writes the data as YAML to the writer.
func (w *YAMLWriter[T]) Write(data T, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(w.Indent)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return encoder.Close()
}

// WriteToFile renders data with w into a new file at path.
func WriteToFile[T any](w Writer[T], data T, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return w.Write(data, file)
}
