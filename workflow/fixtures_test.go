package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-preflow/preflow"
	"github.com/go-preflow/preflow/datasource/memory"
)

// resolveTargets maps column-context sub-keys to concrete input column
// names, falling back to base columns for keys no operator has produced yet
func resolveTargets(cctx preflow.ColumnContext, group preflow.ColumnGroup, targets []string) []string {
	var cols []string
	for _, key := range targets {
		named := cctx.Columns(group, key)
		if named == nil {
			named = cctx.Columns(group, preflow.BaseKey)
		}
		cols = append(cols, named...)
	}
	return cols
}

// doubleOp is a pure transform doubling every numeric input value into a
// <col>_<id> column
type doubleOp struct {
	id      string
	in      preflow.ColumnGroup
	applies int64
}

func (o *doubleOp) ID() string                     { return o.id }
func (o *doubleOp) DefaultIn() preflow.ColumnGroup { return o.in }

func (o *doubleOp) Apply(part preflow.Partition, cctx preflow.ColumnContext, group preflow.ColumnGroup, targets []string, stats preflow.StatsReader) (preflow.Partition, error) {
	atomic.AddInt64(&o.applies, 1)
	var produced []string
	for _, col := range resolveTargets(cctx, group, targets) {
		values, err := part.Column(col)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = v.(float64) * 2
		}
		name := col + "_" + o.id
		part, err = part.WithColumn(name, out)
		if err != nil {
			return nil, err
		}
		produced = append(produced, name)
	}
	cctx.Register(group, o.id, produced)
	return part, nil
}

// suffixOp is a pure transform mapping values to strings tagged with its ID
type suffixOp struct {
	id string
	in preflow.ColumnGroup
}

func (o *suffixOp) ID() string                     { return o.id }
func (o *suffixOp) DefaultIn() preflow.ColumnGroup { return o.in }

func (o *suffixOp) Apply(part preflow.Partition, cctx preflow.ColumnContext, group preflow.ColumnGroup, targets []string, stats preflow.StatsReader) (preflow.Partition, error) {
	var produced []string
	for _, col := range resolveTargets(cctx, group, targets) {
		values, err := part.Column(col)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = fmt.Sprintf("%v_%s", v, o.id)
		}
		name := col + "_" + o.id
		part, err = part.WithColumn(name, out)
		if err != nil {
			return nil, err
		}
		produced = append(produced, name)
	}
	cctx.Register(group, o.id, produced)
	return part, nil
}

// meanStat computes per-column means over the realized dataset
type meanStat struct {
	id           string
	in           preflow.ColumnGroup
	computeCalls int64
	collected    map[string]interface{}
}

func (s *meanStat) ID() string                     { return s.id }
func (s *meanStat) DefaultIn() preflow.ColumnGroup { return s.in }

func (s *meanStat) Compute(ctx context.Context, ds preflow.Dataset, cctx preflow.ColumnContext, group preflow.ColumnGroup, targets []string) (preflow.RawStat, error) {
	atomic.AddInt64(&s.computeCalls, 1)
	// realize first, so transformed columns are registered in the context
	parts, err := ds.Collect(ctx)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]float64)
	counts := make(map[string]float64)
	cols := resolveTargets(cctx, group, targets)
	for _, part := range parts {
		for _, col := range cols {
			values, err := part.Column(col)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				if v == nil {
					continue
				}
				sums[col] += v.(float64)
				counts[col]++
			}
		}
	}
	means := make(map[string]interface{}, len(sums))
	for col, sum := range sums {
		means[col] = sum / counts[col]
	}
	return means, nil
}

func (s *meanStat) Finalize(raw preflow.RawStat) error {
	s.collected = map[string]interface{}{s.id: raw}
	return nil
}

func (s *meanStat) StatsCollected() map[string]interface{} { return s.collected }
func (s *meanStat) Clear()                                 { s.collected = nil }

// countStat counts rows per distinct value of its input columns
type countStat struct {
	id        string
	in        preflow.ColumnGroup
	collected map[string]interface{}
}

func (s *countStat) ID() string                     { return s.id }
func (s *countStat) DefaultIn() preflow.ColumnGroup { return s.in }

func (s *countStat) Compute(ctx context.Context, ds preflow.Dataset, cctx preflow.ColumnContext, group preflow.ColumnGroup, targets []string) (preflow.RawStat, error) {
	parts, err := ds.Collect(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]interface{})
	cols := resolveTargets(cctx, group, targets)
	for _, part := range parts {
		for _, col := range cols {
			values, err := part.Column(col)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				key := fmt.Sprint(v)
				n, _ := counts[key].(int)
				counts[key] = n + 1
			}
		}
	}
	return counts, nil
}

func (s *countStat) Finalize(raw preflow.RawStat) error {
	s.collected = map[string]interface{}{s.id: raw}
	return nil
}

func (s *countStat) StatsCollected() map[string]interface{} { return s.collected }
func (s *countStat) Clear()                                 { s.collected = nil }

// normalizeOp is a stat-dependent transform subtracting the means computed
// by its required meanStat
type normalizeOp struct {
	id      string
	in      preflow.ColumnGroup
	req     []preflow.StatOperator
	applies int64
}

func (o *normalizeOp) ID() string                            { return o.id }
func (o *normalizeOp) DefaultIn() preflow.ColumnGroup        { return o.in }
func (o *normalizeOp) RequiredStats() []preflow.StatOperator { return o.req }

func (o *normalizeOp) Apply(part preflow.Partition, cctx preflow.ColumnContext, group preflow.ColumnGroup, targets []string, stats preflow.StatsReader) (preflow.Partition, error) {
	atomic.AddInt64(&o.applies, 1)
	raw, ok := stats.Get(o.req[0].ID())
	if !ok {
		return nil, fmt.Errorf("statistic %s has not been computed", o.req[0].ID())
	}
	means := raw.(map[string]interface{})
	var produced []string
	for _, col := range resolveTargets(cctx, group, targets) {
		values, err := part.Column(col)
		if err != nil {
			return nil, err
		}
		mean, _ := means[col].(float64)
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = v.(float64) - mean
		}
		name := col + "_" + o.id
		part, err = part.WithColumn(name, out)
		if err != nil {
			return nil, err
		}
		produced = append(produced, name)
	}
	cctx.Register(group, o.id, produced)
	return part, nil
}

// encodeOp is a stat-dependent transform tagging values with their
// occurrence count from its required countStat
type encodeOp struct {
	id  string
	in  preflow.ColumnGroup
	req []preflow.StatOperator
}

func (o *encodeOp) ID() string                            { return o.id }
func (o *encodeOp) DefaultIn() preflow.ColumnGroup        { return o.in }
func (o *encodeOp) RequiredStats() []preflow.StatOperator { return o.req }

func (o *encodeOp) Apply(part preflow.Partition, cctx preflow.ColumnContext, group preflow.ColumnGroup, targets []string, stats preflow.StatsReader) (preflow.Partition, error) {
	raw, ok := stats.Get(o.req[0].ID())
	if !ok {
		return nil, fmt.Errorf("statistic %s has not been computed", o.req[0].ID())
	}
	counts := raw.(map[string]interface{})
	var produced []string
	for _, col := range resolveTargets(cctx, group, targets) {
		values, err := part.Column(col)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(values))
		for i, v := range values {
			n, _ := counts[fmt.Sprint(v)].(int)
			out[i] = fmt.Sprintf("%v:%d", v, n)
		}
		name := col + "_" + o.id
		part, err = part.WithColumn(name, out)
		if err != nil {
			return nil, err
		}
		produced = append(produced, name)
	}
	cctx.Register(group, o.id, produced)
	return part, nil
}

// rekeyStat is a statistic whose computation re-keys the working dataset
type rekeyStat struct {
	id        string
	in        preflow.ColumnGroup
	keyCol    string
	out       preflow.Dataset
	collected map[string]interface{}
}

func (s *rekeyStat) ID() string                     { return s.id }
func (s *rekeyStat) DefaultIn() preflow.ColumnGroup { return s.in }

func (s *rekeyStat) Compute(ctx context.Context, ds preflow.Dataset, cctx preflow.ColumnContext, group preflow.ColumnGroup, targets []string) (preflow.RawStat, error) {
	md, ok := ds.(*memory.Dataset)
	if !ok {
		return nil, fmt.Errorf("rekeyStat requires a memory dataset, got %T", ds)
	}
	rekeyed, err := md.Rekey(ctx, s.keyCol, 2)
	if err != nil {
		return nil, err
	}
	s.out = rekeyed
	parts, err := rekeyed.Collect(ctx)
	if err != nil {
		return nil, err
	}
	rows := 0
	for _, part := range parts {
		rows += part.NumRows()
	}
	return rows, nil
}

func (s *rekeyStat) Finalize(raw preflow.RawStat) error {
	s.collected = map[string]interface{}{s.id: raw}
	return nil
}

func (s *rekeyStat) StatsCollected() map[string]interface{} { return s.collected }
func (s *rekeyStat) Clear()                                 { s.collected = nil }
func (s *rekeyStat) ReplacementDataset() preflow.Dataset    { return s.out }

// bogusOp satisfies none of the operator kind contracts
type bogusOp struct{ id string }

func (o *bogusOp) ID() string                     { return o.id }
func (o *bogusOp) DefaultIn() preflow.ColumnGroup { return preflow.AllColumns }

// spyDataset wraps a Dataset, counting Cancel calls across a whole chain of
// derived handles
type spyDataset struct {
	inner   preflow.Dataset
	cancels *int64
}

func newSpyDataset(inner preflow.Dataset) *spyDataset {
	return &spyDataset{inner: inner, cancels: new(int64)}
}

func (s *spyDataset) ID() string { return s.inner.ID() }

func (s *spyDataset) MapPartitions(fn preflow.PartitionMapper) preflow.Dataset {
	return &spyDataset{inner: s.inner.MapPartitions(fn), cancels: s.cancels}
}

func (s *spyDataset) Collect(ctx context.Context) ([]preflow.Partition, error) {
	return s.inner.Collect(ctx)
}

func (s *spyDataset) Partitions(ctx context.Context) (preflow.PartitionIterator, error) {
	return s.inner.Partitions(ctx)
}

func (s *spyDataset) Cancel() {
	atomic.AddInt64(s.cancels, 1)
	s.inner.Cancel()
}

// captureWriter records everything handed to it
type captureWriter struct {
	needsNames          bool
	cats, conts, labels []string
	parts               []preflow.Partition
	closed              bool
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{needsNames: true}
}

func (w *captureWriter) NeedsColumnNames() bool { return w.needsNames }

func (w *captureWriter) SetColumnNames(cats, conts, labels []string) {
	w.cats, w.conts, w.labels = cats, conts, labels
	w.needsNames = false
}

func (w *captureWriter) AddPartition(part preflow.Partition) error {
	w.parts = append(w.parts, part)
	return nil
}

func (w *captureWriter) Close() (map[string]interface{}, map[string]interface{}, error) {
	w.closed = true
	rows := 0
	for _, part := range w.parts {
		rows += part.NumRows()
	}
	return map[string]interface{}{"rows": rows}, map[string]interface{}{}, nil
}

// testDataset builds numParts partitions with continuous columns x and y,
// categorical column c and label column lab
func testDataset(t *testing.T, numParts, rowsPer int) *memory.Dataset {
	t.Helper()
	parts := make([]preflow.Partition, 0, numParts)
	for p := 0; p < numParts; p++ {
		x := make([]interface{}, rowsPer)
		y := make([]interface{}, rowsPer)
		c := make([]interface{}, rowsPer)
		lab := make([]interface{}, rowsPer)
		for i := 0; i < rowsPer; i++ {
			x[i] = float64(p*rowsPer + i)
			y[i] = float64(10 * (p*rowsPer + i))
			c[i] = fmt.Sprintf("cat-%d", i%3)
			lab[i] = float64(i % 2)
		}
		part, err := memory.CreatePartition([]string{"x", "y", "c", "lab"}, map[string][]interface{}{
			"x": x, "y": y, "c": c, "lab": lab,
		})
		require.Nil(t, err)
		parts = append(parts, part)
	}
	return memory.FromPartitions(parts)
}

func newTestWorkflow() *Workflow {
	return New(Options{
		ContinuousNames:  []string{"x", "y"},
		CategoricalNames: []string{"c"},
		LabelNames:       []string{"lab"},
	})
}

// phaseIDs flattens a phase list into operator ID slices, for comparisons
func phaseIDs(phases []phase) [][]string {
	out := make([][]string, len(phases))
	for i, ph := range phases {
		ids := make([]string, len(ph))
		for j, t := range ph {
			ids[j] = t.op.ID()
		}
		out[i] = ids
	}
	return out
}
