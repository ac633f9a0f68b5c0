package workflow

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/go-preflow/preflow"
	perrors "github.com/go-preflow/preflow/errors"
)

// boundTransform is a transform operator bound to its column group and
// target sub-keys, ready for composition. stats is nil unless the operator
// is stat-dependent.
type boundTransform struct {
	op      preflow.TransformOperator
	group   preflow.ColumnGroup
	targets []string
	stats   preflow.StatsReader
}

// ExecPhase executes statistics for one phase only (given by phase index),
// but lazily performs all transforms from the base phase up to and including
// it. Replaying transforms cumulatively avoids persisting the intermediate
// transformed data needed for statistics: the working dataset handle is only
// advanced when updateDataset is set, typically on the final phase of a run.
func (w *Workflow) ExecPhase(ctx context.Context, phaseIdx int, recordStats, updateDataset bool) error {
	var transforms []boundTransform
	for ind := w.basePhase; ind <= phaseIdx; ind++ {
		for _, t := range w.phases[ind] {
			switch preflow.KindOf(t.op) {
			case preflow.DFKind:
				transforms = append(transforms, boundTransform{
					op:      t.op.(preflow.TransformOperator),
					group:   t.group,
					targets: t.deps,
					stats:   w.stats,
				})
			case preflow.TransformKind:
				transforms = append(transforms, boundTransform{
					op:      t.op.(preflow.TransformOperator),
					group:   t.group,
					targets: t.deps,
				})
			case preflow.StatKind:
				// statistics are never replayed
			default:
				return perrors.UnknownOperatorError{ID: t.op.ID()}
			}
		}
	}

	ds, err := w.Dataset()
	if err != nil {
		return err
	}

	// compose all pending transforms into a single lazy per-partition
	// computation, threading each output into the next
	composed := ds
	if len(transforms) > 0 {
		cctx := w.columns
		composed = ds.MapPartitions(func(part preflow.Partition) (preflow.Partition, error) {
			for _, tr := range transforms {
				next, err := tr.op.Apply(part, cctx, tr.group, tr.targets, tr.stats)
				if err != nil {
					return nil, err
				}
				part = next
			}
			return part, nil
		})
	}
	committed := false
	defer func() {
		// an uncommitted composed result must be released, or eager
		// future-based backends leak it
		if !committed && composed != ds {
			composed.Cancel()
		}
	}()

	var pending []preflow.PendingStat
	if recordStats {
		for _, t := range w.phases[phaseIdx] {
			stat, ok := t.op.(preflow.StatOperator)
			if !ok {
				continue
			}
			group, targets := t.group, t.deps
			pending = append(pending, preflow.PendingStat{
				Op: stat,
				Compute: func(ctx context.Context) (preflow.RawStat, error) {
					// statistics read the composed result, not the raw input
					return stat.Compute(ctx, composed, w.columns, group, targets)
				},
			})
		}
	}

	if len(pending) > 0 {
		computed, err := w.realizeStats(ctx, pending)
		if err != nil {
			return err
		}
		var merr *multierror.Error
		for _, cs := range computed {
			if err := cs.Op.Finalize(cs.Raw); err != nil {
				merr = multierror.Append(merr, err)
				continue
			}
			w.stats.Merge(cs.Op.StatsCollected())
			cs.Op.Clear()
			if replacer, ok := cs.Op.(preflow.DatasetReplacer); ok {
				if out := replacer.ReplacementDataset(); out != nil {
					// the statistic re-derived the dataset; later phases only
					// replay transforms from this point forward
					w.SetDataset(out)
					w.basePhase = phaseIdx
				}
			}
		}
		if err := merr.ErrorOrNil(); err != nil {
			return err
		}
	}

	if len(transforms) > 0 && updateDataset {
		w.SetDataset(composed)
		committed = true
	}
	return nil
}

// realizeStats realizes a batch of pending statistics, either through the
// configured backend or synchronously in the driver. Failures propagate
// unmodified: there is no retry layer here.
func (w *Workflow) realizeStats(ctx context.Context, pending []preflow.PendingStat) ([]preflow.ComputedStat, error) {
	if w.client != nil {
		return w.client.Compute(ctx, pending)
	}
	computed := make([]preflow.ComputedStat, 0, len(pending))
	for _, p := range pending {
		raw, err := p.Compute(ctx)
		if err != nil {
			return nil, err
		}
		computed = append(computed, preflow.ComputedStat{Op: p.Op, Raw: raw})
	}
	return computed, nil
}
