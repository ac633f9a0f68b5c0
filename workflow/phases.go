package workflow

import (
	"github.com/go-preflow/preflow"
	perrors "github.com/go-preflow/preflow/errors"
)

// A phase is an ordered sequence of tasks whose dependencies are all
// satisfied by strictly earlier phases. Phases execute strictly in order;
// within one phase, all transforms apply before any statistic is evaluated.
type phase []*task

// sortTaskTypes partitions the master task list into the dependency-free
// tasks (which seed phase 0) and the remainder, preserving declaration order
func sortTaskTypes(master []*task) (nodeps, rest []*task) {
	for _, t := range master {
		if t.dependencyFree() {
			nodeps = append(nodeps, t)
		} else {
			rest = append(rest, t)
		}
	}
	return nodeps, rest
}

// assemblePhases groups the master task list into the ordered phase list.
// Tasks are processed in declaration order and greedily committed to the
// first qualifying phase, which yields a deterministic, stable ordering. A
// round which fails to place any pending task means the remainder form a
// dependency cycle, which is fatal.
func (w *Workflow) assemblePhases(master []*task) error {
	nodeps, rest := sortTaskTypes(master)
	var phases []phase
	if len(nodeps) > 0 {
		phases = append(phases, nodeps)
	}
	pending := rest
	for len(pending) > 0 {
		var deferred []*task
		placed := false
		for _, t := range pending {
			if placeTask(&phases, t) {
				placed = true
			} else {
				deferred = append(deferred, t)
			}
		}
		if !placed {
			ids := make([]string, len(deferred))
			for i, t := range deferred {
				ids[i] = t.op.ID()
			}
			return perrors.DependencyCycleError{OperatorIDs: ids}
		}
		pending = deferred
	}
	w.phases = phases
	return nil
}

// placeTask commits a task to the first phase k whose preceding phases
// (inclusive of k) produce all of the task's column dependencies, and whose
// strictly earlier phases contain all of its required parent operators. When
// no existing phase qualifies, a new trailing phase is appended, provided
// the existing phases can satisfy the task at all.
func placeTask(phases *[]phase, t *task) bool {
	needed := make(map[string]bool)
	for _, dep := range t.nonBaseDeps() {
		needed[dep] = true
	}
	for k, ph := range *phases {
		for _, pt := range ph {
			delete(needed, pt.op.ID())
		}
		if len(needed) == 0 && parentsPlaced(*phases, t.parents, k) {
			(*phases)[k] = append(ph, t)
			return true
		}
	}
	if len(needed) == 0 && parentsPlaced(*phases, t.parents, len(*phases)) {
		*phases = append(*phases, phase{t})
		return true
	}
	return false
}

// parentsPlaced reports whether every parent operator appears somewhere in
// phases[0:before]. Matching is exact identifier equality.
func parentsPlaced(phases []phase, parents []preflow.StatOperator, before int) bool {
	for _, parent := range parents {
		found := false
		for _, ph := range phases[:before] {
			for _, t := range ph {
				if t.op.ID() == parent.ID() {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// createFinalColRefs records, per column group, the operator identifiers
// whose produced columns belong to the final output schema. Preprocessing
// tasks contribute in declaration order; a previously-recorded contributor
// is removed when a later task lists it as a dependency, since its columns
// have been superseded. Statistic operators never contribute columns.
func (w *Workflow) createFinalColRefs(ppTasks []*task) {
	if w.columns.FinalRefs() != nil {
		return
	}
	final := make(map[preflow.ColumnGroup][]string)
	for _, t := range ppTasks {
		kept := final[t.group][:0]
		for _, ref := range final[t.group] {
			superseded := false
			for _, dep := range t.deps {
				if dep == ref {
					superseded = true
					break
				}
			}
			if !superseded {
				kept = append(kept, ref)
			}
		}
		if preflow.KindOf(t.op) != preflow.StatKind {
			kept = append(kept, t.op.ID())
		}
		final[t.group] = kept
	}
	// groups with no contributing operator pass their raw columns through
	for _, group := range preflow.ColumnGroups() {
		if len(final[group]) == 0 {
			final[group] = []string{preflow.BaseKey}
		}
	}
	w.columns.SetFinalRefs(final)
}

// Reorder hoists dependency-free statistic tasks into dedicated leading
// phases, categorical before continuous, ahead of all transform phases.
// Dependency-free statistics can run directly against raw input, so this
// minimizes how many phases must materialize transformed intermediates.
// Reorder is idempotent and is invoked automatically before offline runs.
func (w *Workflow) Reorder() {
	var catStats, contStats []*task
	var newPhases []phase
	for _, ph := range w.phases {
		var kept phase
		for _, t := range ph {
			if preflow.KindOf(t.op) == preflow.StatKind && len(t.deps) == 1 && t.deps[0] == preflow.BaseKey {
				if t.group == preflow.CategoricalColumns {
					catStats = append(catStats, t)
				} else {
					contStats = append(contStats, t)
				}
				continue
			}
			// stats depending on a transform's output stay in place
			kept = append(kept, t)
		}
		if len(kept) > 0 {
			newPhases = append(newPhases, kept)
		}
	}
	phases := make([]phase, 0, len(newPhases)+2)
	if len(catStats) > 0 {
		phases = append(phases, catStats)
	}
	if len(contStats) > 0 {
		phases = append(phases, contStats)
	}
	w.phases = append(phases, newPhases...)
}
