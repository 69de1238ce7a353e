// internal/storage/factory.go
package storage

import (
	"encoding/json"
	"fmt"
	"io"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Codec writes an export document in one encoding.
type Codec interface {
	Encode(w io.Writer, doc Document) error
	Ext() string
}

// NewCodec creates an export codec based on the configured format
func NewCodec(format string) (Codec, error) {
	switch format {
	case "", "json":
		return JSONCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	case "toml":
		return TOMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
}

// JSONCodec writes indented JSON.
type JSONCodec struct{}

func (JSONCodec) Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func (JSONCodec) Ext() string { return ".json" }

// YAMLCodec writes YAML with the same field names as the JSON form.
type YAMLCodec struct{}

func (YAMLCodec) Encode(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func (YAMLCodec) Ext() string { return ".yaml" }

// TOMLCodec writes TOML. Annotations become an array of tables.
type TOMLCodec struct{}

func (TOMLCodec) Encode(w io.Writer, doc Document) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return nil
}

func (TOMLCodec) Ext() string { return ".toml" }
