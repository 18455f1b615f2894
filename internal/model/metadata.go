package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadMetadata reads the manifest written by the trainer.
func LoadMetadata(path string) (*Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if len(metadata.Classes) == 0 {
		return nil, fmt.Errorf("metadata %s lists no classes", path)
	}
	for i, c := range metadata.Classes {
		if idx, ok := metadata.ClassIndices[c]; ok && idx != i {
			return nil, fmt.Errorf("metadata class %q is at position %d but indexed %d", c, i, idx)
		}
	}
	return &metadata, nil
}

// SaveMetadata writes m as indented JSON, creating the parent directory.
func SaveMetadata(path string, m *Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}
