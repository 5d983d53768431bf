package dag

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/taskgraph/engine/internal/models"
)

// LoadYAML parses a DAG document from YAML bytes and validates it.
func LoadYAML(data []byte) (models.DAGDocument, error) {
	var doc models.DAGDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return models.DAGDocument{}, fmt.Errorf("parse DAG YAML: %w", err)
	}
	if err := Validate(doc); err != nil {
		return models.DAGDocument{}, err
	}
	return doc, nil
}

// LoadJSON parses a DAG document from JSON bytes (the wire format of §6)
// and validates it.
func LoadJSON(data []byte) (models.DAGDocument, error) {
	var doc models.DAGDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.DAGDocument{}, fmt.Errorf("parse DAG JSON: %w", err)
	}
	if err := Validate(doc); err != nil {
		return models.DAGDocument{}, err
	}
	return doc, nil
}

// LoadFile reads a DAG document from path, dispatching on its extension
// (.yaml/.yml or .json).
func LoadFile(path string) (models.DAGDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.DAGDocument{}, fmt.Errorf("read DAG file %s: %w", path, err)
	}
	if isJSONFile(path) {
		return LoadJSON(data)
	}
	return LoadYAML(data)
}

func isJSONFile(path string) bool {
	n := len(path)
	return n >= 5 && path[n-5:] == ".json"
}
