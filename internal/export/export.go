// Package export writes batch results to disk: a JSON or YAML report, a CSV
// convergence trace and a PNG convergence plot.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/spiderwasp/internal/runner"
)

// Format selects the report encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unsupported report extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// EncodeReport writes batch to w in the given format.
func EncodeReport(w io.Writer, format Format, batch *runner.Batch) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(batch); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteReport writes batch to path, choosing the encoding by extension.
func WriteReport(path string, batch *runner.Batch) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error {
		return EncodeReport(w, format, batch)
	})
}

// WriteTraceCSV writes one row per function and iteration with the best
// score reached so far.
func WriteTraceCSV(w io.Writer, reports []runner.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"function", "iteration", "best_score"}); err != nil {
		return err
	}
	for _, rep := range reports {
		for i, v := range rep.Convergence {
			row := []string{rep.Function, strconv.Itoa(i + 1), strconv.FormatFloat(v, 'g', -1, 64)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTraceFile is WriteTraceCSV into a new file at path.
func WriteTraceFile(path string, reports []runner.Report) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteTraceCSV(w, reports)
	})
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
