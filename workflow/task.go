package workflow

import (
	"github.com/go-preflow/preflow"
)

// A task is a dependency-annotated unit of scheduling: an operator, the
// column group it targets, the column-context sub-keys its input depends on
// (producing operator IDs, or preflow.BaseKey for raw input), and the
// statistic operators whose outputs it consumes. Dependencies constrain
// which columns the task reads; parents gate its phase placement.
type task struct {
	op      preflow.Operator
	group   preflow.ColumnGroup
	deps    []string
	parents []preflow.StatOperator
}

// a task with no dependencies beyond base columns and no required parents
// may execute in the very first phase
func (t *task) dependencyFree() bool {
	return len(t.parents) == 0 && len(t.deps) == 1 && t.deps[0] == preflow.BaseKey
}

func (t *task) nonBaseDeps() []string {
	var deps []string
	for _, dep := range t.deps {
		if dep != preflow.BaseKey {
			deps = append(deps, dep)
		}
	}
	return deps
}

// A taskPair is a chain-flattened operator together with its immediate
// predecessor's identifier (empty for the head of a chain)
type taskPair struct {
	op   preflow.Operator
	deps []string
}

// compileChains flattens every chain of a stage's configuration into
// (operator, dependency) pairs: each operator depends on its immediate
// predecessor in the chain, and chain heads have no dependency yet
func compileChains(cfg map[preflow.ColumnGroup][]opChain) map[preflow.ColumnGroup][]taskPair {
	compiled := make(map[preflow.ColumnGroup][]taskPair, len(cfg))
	for _, group := range preflow.ColumnGroups() {
		var pairs []taskPair
		for _, chain := range cfg[group] {
			for i, op := range chain {
				var deps []string
				if i > 0 {
					deps = []string{chain[i-1].ID()}
				}
				pairs = append(pairs, taskPair{op: op, deps: deps})
			}
		}
		compiled[group] = pairs
	}
	return compiled
}

// buildTasks converts a stage's compiled pairs into dependency-annotated
// tasks. For every stat-dependent transform, any required statistic not
// already present as a task for the same column group is synthesized as a
// preceding Statistic task sharing the transform's dependency. Repeats (an
// operator with the same ID already targeting the same group) are dropped.
func buildTasks(compiled map[preflow.ColumnGroup][]taskPair, master []*task) []*task {
	var tasks []*task
	for _, group := range preflow.ColumnGroups() {
		for _, pair := range compiled[group] {
			deps := pair.deps
			if len(deps) == 0 {
				deps = []string{preflow.BaseKey}
			}
			if df, ok := pair.op.(preflow.DFOperator); ok {
				for _, stat := range df.RequiredStats() {
					if isRepeat(stat, group, master, tasks) {
						continue
					}
					tasks = append(tasks, &task{
						op:    stat,
						group: group,
						deps:  append([]string{}, deps...),
					})
				}
			}
			if isRepeat(pair.op, group, master, tasks) {
				continue
			}
			tasks = append(tasks, &task{
				op:      pair.op,
				group:   group,
				deps:    append([]string{}, deps...),
				parents: requiredStats(pair.op),
			})
		}
	}
	return tasks
}

// isRepeat reports whether an operator with the same identifier already
// targets the same column group in either task list. Matching is exact
// identifier equality.
func isRepeat(op preflow.Operator, group preflow.ColumnGroup, lists ...[]*task) bool {
	for _, list := range lists {
		for _, t := range list {
			if t.op.ID() == op.ID() && t.group == group {
				return true
			}
		}
	}
	return false
}

func requiredStats(op preflow.Operator) []preflow.StatOperator {
	if df, ok := op.(preflow.DFOperator); ok {
		return df.RequiredStats()
	}
	return nil
}
