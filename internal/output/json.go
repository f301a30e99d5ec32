package output

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// Open returns the destination for path: stdout for "-" or "", otherwise a
// newly created file. The returned closer is a no-op for stdout.
func Open(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

// EncodeJSON writes v as JSON indented by two spaces.
func EncodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// WriteJSON serializes v (a report or a diff) as indented JSON.
// If path is "-" or empty, writes to stdout.
func WriteJSON(v interface{}, path string) error {
	w, closeFn, err := Open(path)
	if err != nil {
		return err
	}
	if err := EncodeJSON(w, v); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

// LoadReport reads a JSON report previously written by WriteJSON.
// Statistics and the summary are re-derived from the probe data.
func LoadReport(path string) (*model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r model.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
