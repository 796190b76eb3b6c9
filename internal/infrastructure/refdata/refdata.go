// Package refdata reads nutrient reference data from YAML.
package refdata

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nutritrack/backend/internal/domain"
)

//go:embed nutrients.yaml
var defaultFS embed.FS

const defaultFile = "nutrients.yaml"

// Parse decodes and validates reference data. Unknown keys are rejected.
func Parse(r io.Reader) (*domain.ReferenceData, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var data domain.ReferenceData
	if err := dec.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode reference data: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseFile reads reference data from path.
func ParseFile(path string) (*domain.ReferenceData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference data: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Default returns the reference data shipped with the binary.
func Default() (*domain.ReferenceData, error) {
	b, err := defaultFS.ReadFile(defaultFile)
	if err != nil {
		return nil, fmt.Errorf("read embedded reference data: %w", err)
	}
	return Parse(bytes.NewReader(b))
}
