package workflow

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"github.com/go-preflow/preflow"
)

// snapshot is the persisted statistics document: the statistic-name to value
// mapping plus the full column context, including the final resolution.
// Loading a snapshot resumes a later run without recomputing statistics.
type snapshot struct {
	Stats      map[string]interface{}     `yaml:"stats"`
	ColumnsCtx preflow.ColumnContextData  `yaml:"columns_ctx"`
}

const compressedSuffix = ".lz4"

// SaveStats persists the statistics store and column context to a YAML
// document at path. A path ending in .lz4 is transparently compressed.
func (w *Workflow) SaveStats(path string) error {
	snap := snapshot{
		Stats:      w.stats.Export(),
		ColumnsCtx: w.columns.Export(),
	}
	buf, err := yaml.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("unable to marshal stats snapshot: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	var out io.Writer = f
	var compressor *lz4.Writer
	if strings.HasSuffix(path, compressedSuffix) {
		compressor = lz4.NewWriter(f)
		out = compressor
	}
	if _, err := out.Write(buf); err != nil {
		f.Close()
		return err
	}
	if compressor != nil {
		if err := compressor.Close(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// LoadStats restores the statistics store and column context from a
// previously saved snapshot
func (w *Workflow) LoadStats(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var in io.Reader = f
	if strings.HasSuffix(path, compressedSuffix) {
		in = lz4.NewReader(f)
	}
	buf, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	var snap snapshot
	if err := yaml.Unmarshal(buf, &snap); err != nil {
		return fmt.Errorf("unable to unmarshal stats snapshot: %w", err)
	}
	w.stats.Import(snap.Stats)
	w.columns.Import(snap.ColumnsCtx)
	return nil
}

// ClearStats discards all statistics collected so far
func (w *Workflow) ClearStats() {
	w.stats.Clear()
}
