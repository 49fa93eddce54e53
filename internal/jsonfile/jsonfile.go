// Package jsonfile writes JSON and text artifacts the same way everywhere:
// two-space indentation, non-ASCII kept verbatim, atomic replace.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
)

// Indented encodes v with two-space indentation and no HTML escaping.
func Indented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// IndentedElem encodes v exactly as it appears as an element of an Indented
// top-level array, without the leading indent.
func IndentedElem(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("  ", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Write encodes v with Indented and replaces path atomically.
func Write(path string, v any) error {
	data, err := Indented(v)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// WriteFile replaces path with data:
//   - Ensures parent directory exists.
//   - Writes to a temp file in the same directory, then renames.
//   - Final permissions are 0644.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
