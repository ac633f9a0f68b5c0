// Package workflow organizes and runs the feature-engineering and
// preprocessing operators of a pipeline. Operators are compiled into a flat
// task graph, assembled into ordered phases, and executed phase by phase
// against a partitioned dataset, collecting statistics in as few passes over
// transformed data as possible.
package workflow

import (
	"context"
	"log/slog"

	uuid "github.com/gofrs/uuid"

	"github.com/go-preflow/preflow"
	"github.com/go-preflow/preflow/columns"
	perrors "github.com/go-preflow/preflow/errors"
	"github.com/go-preflow/preflow/wcache"
)

// Options configures a Workflow
type Options struct {
	ContinuousNames  []string            // names of the continuous columns
	CategoricalNames []string            // names of the categorical columns
	LabelNames       []string            // names of the label columns
	Client           preflow.StatBackend // optional distributed statistic backend. Nil means synchronous in-driver realization.
	Logger           *slog.Logger        // optional logger. Nil means slog.Default.
}

// A Workflow organizes and runs all the feature engineering and
// preprocessing operators for a pipeline. It owns the statistics store, the
// column context and the working dataset handle for the duration of a run.
type Workflow struct {
	id      string
	log     *slog.Logger
	columns preflow.ColumnContext
	stats   *Store
	client  preflow.StatBackend

	config    *pipelineConfig
	taskSets  map[stageKey][]*task
	master    []*task
	phases    []phase
	finalized bool

	ds        preflow.Dataset
	basePhase int
}

// New creates a Workflow for the given column names
func New(opts Options) *Workflow {
	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		id:      id.String(),
		log:     logger.With("workflow", id.String()),
		columns: columns.NewContext(opts.ContinuousNames, opts.CategoricalNames, opts.LabelNames),
		stats:   newStore(),
		client:  opts.Client,
		config:  newPipelineConfig(),
	}
}

// Columns returns this Workflow's ColumnContext
func (w *Workflow) Columns() preflow.ColumnContext {
	return w.columns
}

// Stats returns a read view of this Workflow's statistics store
func (w *Workflow) Stats() preflow.StatsReader {
	return w.stats
}

// NumPhases returns the number of assembled phases. Zero before Finalize.
func (w *Workflow) NumPhases() int {
	return len(w.phases)
}

// SetDataset replaces the working dataset handle
func (w *Workflow) SetDataset(ds preflow.Dataset) {
	w.ds = ds
}

// Dataset returns the working dataset handle, or an error if none is set
func (w *Workflow) Dataset() (preflow.Dataset, error) {
	if w.ds == nil {
		return nil, perrors.NoDatasetError{}
	}
	return w.ds, nil
}

// Finalize declares that all operators have been added, compiling the
// accumulated configuration into tasks and phases
func (w *Workflow) Finalize() error {
	w.taskSets = make(map[stageKey][]*task, len(stageOrder))
	w.master = nil
	w.phases = nil
	for _, stage := range stageOrder {
		tasks := buildTasks(compileChains(w.config.stage(stage)), w.master)
		w.taskSets[stage] = tasks
		w.master = append(w.master, tasks...)
	}
	if err := w.assemblePhases(w.master); err != nil {
		return err
	}
	w.createFinalColRefs(w.taskSets[preprocessStage])
	w.finalized = true
	return nil
}

// ApplyOptions configures a run of the pipeline
type ApplyOptions struct {
	Online      bool           // apply transforms partition-by-partition without collecting statistics
	RecordStats bool           // evaluate statistic operators during the run
	Writer      preflow.Writer // optional destination for processed partitions
	EndPhase    int            // stop after this many phases. Zero or negative means all phases.
}

// Apply runs all the preprocessing and feature engineering operators against
// a dataset. Offline runs build and execute the full phase graph; online
// runs iterate the dataset partition by partition, applying transforms
// eagerly using previously collected statistics.
func (w *Workflow) Apply(ctx context.Context, ds preflow.Dataset, opts ApplyOptions) error {
	if !w.finalized {
		if err := w.Finalize(); err != nil {
			return err
		}
	}
	if opts.Online {
		return w.IterateOnline(ctx, ds, opts.Writer)
	}
	return w.BuildAndProcessGraph(ctx, ds, opts)
}

// UpdateStats collects statistics only, without producing output. endPhase
// limits how many phases run; zero or negative means all.
func (w *Workflow) UpdateStats(ctx context.Context, ds preflow.Dataset, endPhase int) error {
	if !w.finalized {
		if err := w.Finalize(); err != nil {
			return err
		}
	}
	return w.BuildAndProcessGraph(ctx, ds, ApplyOptions{RecordStats: true, EndPhase: endPhase})
}

// BuildAndProcessGraph executes the assembled phases against a dataset. The
// working dataset handle is only advanced on the final executed phase, so
// intermediate transformed data is not retained between phases.
func (w *Workflow) BuildAndProcessGraph(ctx context.Context, ds preflow.Dataset, opts ApplyOptions) error {
	if !w.finalized {
		if err := w.Finalize(); err != nil {
			return err
		}
	}
	w.Reorder()

	end := opts.EndPhase
	if end <= 0 || end > len(w.phases) {
		end = len(w.phases)
	}

	// stale encoder state from a previous run must not leak into this one
	wcache.Clean()

	w.SetDataset(ds)
	w.basePhase = 0
	for idx := 0; idx < end; idx++ {
		w.log.Debug("executing phase", "phase", idx, "tasks", len(w.phases[idx]))
		if err := w.ExecPhase(ctx, idx, opts.RecordStats, idx == end-1); err != nil {
			return err
		}
	}
	w.basePhase = 0

	if opts.Writer != nil {
		return w.writeOutput(ctx, opts.Writer)
	}
	return nil
}

// IterateOnline iterates through a dataset partition by partition, applying
// all transform phases eagerly and (optionally) handing processed partitions
// to a writer. Statistic operators are skipped: statistics must already be
// present in the store, collected by a prior offline run or LoadStats.
func (w *Workflow) IterateOnline(ctx context.Context, ds preflow.Dataset, writer preflow.Writer) error {
	if !w.finalized {
		if err := w.Finalize(); err != nil {
			return err
		}
	}
	it, err := ds.Partitions(ctx)
	if err != nil {
		return err
	}
	for it.HasNextPartition() {
		part, err := it.NextPartition()
		if err != nil {
			return err
		}
		out, err := w.ApplyPartition(part, 0, len(w.phases))
		if err != nil {
			return err
		}
		if writer != nil {
			if writer.NeedsColumnNames() {
				w.setWriterColumns(writer)
			}
			if err := writer.AddPartition(out); err != nil {
				return err
			}
		}
	}
	if writer != nil {
		return w.closeWriter(writer)
	}
	return nil
}

// ApplyPartition eagerly applies the transform operators of phases
// [start, end) to a single partition. Statistic tasks are ignored. end of
// zero or less means all phases.
func (w *Workflow) ApplyPartition(part preflow.Partition, start, end int) (preflow.Partition, error) {
	if end <= 0 || end > len(w.phases) {
		end = len(w.phases)
	}
	if start < 0 {
		start = 0
	}
	for _, ph := range w.phases[start:end] {
		for _, t := range ph {
			switch preflow.KindOf(t.op) {
			case preflow.DFKind:
				next, err := t.op.(preflow.TransformOperator).Apply(part, w.columns, t.group, t.deps, w.stats)
				if err != nil {
					return nil, err
				}
				part = next
			case preflow.TransformKind:
				next, err := t.op.(preflow.TransformOperator).Apply(part, w.columns, t.group, t.deps, nil)
				if err != nil {
					return nil, err
				}
				part = next
			case preflow.StatKind:
				// statistics are never evaluated per-partition
			default:
				return nil, perrors.UnknownOperatorError{ID: t.op.ID()}
			}
		}
	}
	return part, nil
}

// CreateFinalColumns materializes the final output column lists from the
// recorded final refs
func (w *Workflow) CreateFinalColumns() map[preflow.ColumnGroup][]string {
	return w.columns.ResolveFinal()
}

// ColumnNames returns every column name ever recorded for a group, used to
// size output schemas
func (w *Workflow) ColumnNames(group preflow.ColumnGroup) []string {
	return w.columns.Names(group)
}

// FinalColumnNames returns the resolved output columns for a group.
// CreateFinalColumns must have run first, which every offline run with a
// writer does.
func (w *Workflow) FinalColumnNames(group preflow.ColumnGroup) []string {
	return w.columns.FinalColumns(group)
}

func (w *Workflow) setWriterColumns(writer preflow.Writer) {
	writer.SetColumnNames(
		w.columns.Names(preflow.CategoricalColumns),
		w.columns.Names(preflow.ContinuousColumns),
		w.columns.Names(preflow.LabelColumns),
	)
}

// writeOutput streams the final dataset's partitions to a writer
func (w *Workflow) writeOutput(ctx context.Context, writer preflow.Writer) error {
	ds, err := w.Dataset()
	if err != nil {
		return err
	}
	// realize before resolving names: transforms record their output columns
	// as they apply
	it, err := ds.Partitions(ctx)
	if err != nil {
		return err
	}
	w.CreateFinalColumns()
	if writer.NeedsColumnNames() {
		w.setWriterColumns(writer)
	}
	for it.HasNextPartition() {
		part, err := it.NextPartition()
		if err != nil {
			return err
		}
		if err := writer.AddPartition(part); err != nil {
			return err
		}
	}
	return w.closeWriter(writer)
}

func (w *Workflow) closeWriter(writer preflow.Writer) error {
	general, special, err := writer.Close()
	if err != nil {
		return err
	}
	w.log.Debug("writer closed", "general_md", len(general), "special_md", len(special))
	return nil
}
