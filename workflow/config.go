package workflow

import (
	"github.com/go-preflow/preflow"
)

// stageKey identifies one of the two ordered pipeline stages:
// feature engineering runs before preprocessing.
type stageKey string

const (
	featureStage    stageKey = "FE"
	preprocessStage stageKey = "PP"
)

// stageOrder fixes the declaration order in which stages are compiled
var stageOrder = []stageKey{featureStage, preprocessStage}

// An opChain is an ordered chain of operators: each operator's input depends
// on the output of its predecessor, and the first depends on base columns.
type opChain []preflow.Operator

// pipelineConfig is the declarative operator configuration: for each stage,
// for each column group, an ordered list of operator chains
type pipelineConfig struct {
	fe map[preflow.ColumnGroup][]opChain
	pp map[preflow.ColumnGroup][]opChain
}

func newPipelineConfig() *pipelineConfig {
	cfg := &pipelineConfig{
		fe: make(map[preflow.ColumnGroup][]opChain),
		pp: make(map[preflow.ColumnGroup][]opChain),
	}
	for _, group := range preflow.ColumnGroups() {
		cfg.fe[group] = nil
		cfg.pp[group] = nil
	}
	return cfg
}

func (cfg *pipelineConfig) stage(stage stageKey) map[preflow.ColumnGroup][]opChain {
	if stage == featureStage {
		return cfg.fe
	}
	return cfg.pp
}

// AddFeature adds feature engineering operator(s). Multiple operators form a
// chain: each depends on the output of the previous one.
func (w *Workflow) AddFeature(ops ...preflow.Operator) {
	w.addChain(featureStage, opChain(ops))
}

// AddPreprocess adds preprocessing operator(s). The tail operator of the
// matching feature engineering chain, if any, is prepended so that
// preprocessing continues from feature engineering output.
func (w *Workflow) AddPreprocess(ops ...preflow.Operator) {
	if len(ops) == 0 {
		return
	}
	target := ops[0].DefaultIn()
	chain := opChain{}
	if feChains := w.config.fe[target]; len(feChains) > 0 {
		last := feChains[len(feChains)-1]
		if len(last) > 0 {
			chain = append(chain, last[len(last)-1])
		}
	}
	chain = append(chain, ops...)
	w.addChain(preprocessStage, chain)
}

// AddCategoricalFeature adds categorical feature engineering operator(s),
// skipping any not designed for categorical columns
func (w *Workflow) AddCategoricalFeature(ops ...preflow.Operator) {
	if kept := w.defaultCheck(preflow.CategoricalColumns, ops); len(kept) > 0 {
		w.AddFeature(kept...)
	}
}

// AddContinuousFeature adds continuous feature engineering operator(s),
// skipping any not designed for continuous columns
func (w *Workflow) AddContinuousFeature(ops ...preflow.Operator) {
	if kept := w.defaultCheck(preflow.ContinuousColumns, ops); len(kept) > 0 {
		w.AddFeature(kept...)
	}
}

// AddCategoricalPreprocess adds categorical preprocessing operator(s),
// skipping any not designed for categorical columns
func (w *Workflow) AddCategoricalPreprocess(ops ...preflow.Operator) {
	if kept := w.defaultCheck(preflow.CategoricalColumns, ops); len(kept) > 0 {
		w.AddPreprocess(kept...)
	}
}

// AddContinuousPreprocess adds continuous preprocessing operator(s),
// skipping any not designed for continuous columns
func (w *Workflow) AddContinuousPreprocess(ops ...preflow.Operator) {
	if kept := w.defaultCheck(preflow.ContinuousColumns, ops); len(kept) > 0 {
		w.AddPreprocess(kept...)
	}
}

// addChain appends an operator chain to a stage's configuration. Chains
// targeting a group with no base columns are skipped with a warning: this is
// a recoverable configuration issue, not a hard failure.
func (w *Workflow) addChain(stage stageKey, chain opChain) {
	if len(chain) == 0 {
		return
	}
	target := chain[0].DefaultIn()
	if len(w.columns.Columns(target, preflow.BaseKey)) == 0 {
		w.log.Warn("did not add operators: target column group is empty",
			"group", target, "operators", chainIDs(chain))
		return
	}
	cfg := w.config.stage(stage)
	if _, ok := cfg[target]; !ok {
		w.log.Warn("did not add operators: unknown target column group",
			"group", target, "operators", chainIDs(chain))
		return
	}
	cfg[target] = append(cfg[target], chain)
	w.finalized = false
}

// defaultCheck drops operators whose default column group matches neither
// the requested group nor "all", warning for each
func (w *Workflow) defaultCheck(group preflow.ColumnGroup, ops []preflow.Operator) []preflow.Operator {
	kept := make([]preflow.Operator, 0, len(ops))
	for _, op := range ops {
		if op.DefaultIn() != group && op.DefaultIn() != preflow.AllColumns {
			w.log.Warn("operator not added: not designed for this column group",
				"operator", op.ID(), "group", group)
			continue
		}
		kept = append(kept, op)
	}
	return kept
}

func chainIDs(chain opChain) []string {
	ids := make([]string, len(chain))
	for i, op := range chain {
		ids[i] = op.ID()
	}
	return ids
}
