package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// SerializeManifests marshals the resource set into one multi-document
// YAML stream in apply order. Objects must carry their TypeMeta so the
// output is self-contained at apply time.
func SerializeManifests(objects []interface{}) ([]byte, error) {
	var out []byte
	for i, obj := range objects {
		doc, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal resource %d: %w", i, err)
		}
		if i > 0 {
			out = append(out, []byte("---\n")...)
		}
		out = append(out, doc...)
	}
	return out, nil
}

// HashManifests returns the hex SHA-256 of the rendered stream, used as
// the staleness marker on the published manifest set.
func HashManifests(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// WriteManifestTemp writes content to a temporary file next to the final
// path so the later rename stays on one filesystem.
func WriteManifestTemp(finalPath string, content []byte) (string, error) {
	dir := filepath.Dir(finalPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(finalPath)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp manifest: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp manifest: %w", err)
	}
	return tmp.Name(), nil
}

// PublishManifest atomically replaces the published manifest with the
// validated temp file. Never called when validation failed, which keeps
// the previous published manifest intact.
func PublishManifest(tmpPath, finalPath string) error {
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish manifest: %w", err)
	}
	return nil
}
