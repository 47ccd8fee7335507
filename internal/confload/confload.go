// Package confload decodes declarative configuration files as JSON or YAML,
// chosen by file extension.
package confload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// File reads path and decodes it into v.
func File(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Bytes(filepath.Ext(path), raw, v)
}

// Bytes decodes raw as YAML when ext is .yaml/.yml and as JSON otherwise.
func Bytes(ext string, raw []byte, v interface{}) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("failed to parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("failed to parse json: %w", err)
		}
	}
	return nil
}
