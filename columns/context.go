// Package columns implements preflow.ColumnContext: the mapping from column
// groups to the ordered column name lists recorded under each producing
// operator, plus the resolution of the final output schema.
package columns

import (
	"sync"

	"github.com/go-preflow/preflow"
)

// groupCtx holds the column lists for one ColumnGroup, preserving the order
// in which sub-keys were recorded
type groupCtx struct {
	keys []string
	cols map[string][]string
}

func newGroupCtx() *groupCtx {
	return &groupCtx{cols: make(map[string][]string)}
}

func (g *groupCtx) set(key string, cols []string) {
	if _, ok := g.cols[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.cols[key] = append([]string{}, cols...)
}

// Context tracks named groups of columns as they flow through phases.
// Register may be called from concurrently-executing partition mappers, so
// all access is lock-protected.
type Context struct {
	lock      sync.Mutex
	groups    map[preflow.ColumnGroup]*groupCtx
	finalRefs map[preflow.ColumnGroup][]string
	finalCols map[preflow.ColumnGroup][]string
}

// NewContext creates a Context seeded with base column lists for every
// ColumnGroup. The "all" group is the concatenation of continuous,
// categorical and label columns, in that order.
func NewContext(conts, cats, labels []string) *Context {
	ctx := &Context{groups: make(map[preflow.ColumnGroup]*groupCtx)}
	for _, group := range preflow.ColumnGroups() {
		ctx.groups[group] = newGroupCtx()
	}
	all := make([]string, 0, len(conts)+len(cats)+len(labels))
	all = append(all, conts...)
	all = append(all, cats...)
	all = append(all, labels...)
	ctx.DeclareBase(preflow.AllColumns, all)
	ctx.DeclareBase(preflow.ContinuousColumns, conts)
	ctx.DeclareBase(preflow.CategoricalColumns, cats)
	ctx.DeclareBase(preflow.LabelColumns, labels)
	return ctx
}

// DeclareBase seeds a group's raw input column list
func (c *Context) DeclareBase(group preflow.ColumnGroup, cols []string) {
	c.Register(group, preflow.BaseKey, cols)
}

// Register records columns produced under key for a group. Re-registering a
// key replaces its column list.
func (c *Context) Register(group preflow.ColumnGroup, key string, cols []string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[group]
	if !ok {
		g = newGroupCtx()
		c.groups[group] = g
	}
	g.set(key, cols)
}

// Columns returns the column list recorded under key for a group, or nil if
// the key has not been recorded
func (c *Context) Columns(group preflow.ColumnGroup, key string) []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[group]
	if !ok {
		return nil
	}
	cols, ok := g.cols[key]
	if !ok {
		return nil
	}
	return append([]string{}, cols...)
}

// HasKey returns true iff key has been recorded for group
func (c *Context) HasKey(group preflow.ColumnGroup, key string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[group]
	if !ok {
		return false
	}
	_, ok = g.cols[key]
	return ok
}

// Names returns the de-duplicated list of all columns ever recorded for a
// group, in recording order. Used to size output schemas before the final
// column resolution is ready.
func (c *Context) Names(group preflow.ColumnGroup) []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[group]
	if !ok {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, key := range g.keys {
		for _, name := range g.cols[key] {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// SetFinalRefs records which sub-keys contribute to the output schema for
// each group
func (c *Context) SetFinalRefs(refs map[preflow.ColumnGroup][]string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.finalRefs = make(map[preflow.ColumnGroup][]string, len(refs))
	for group, keys := range refs {
		c.finalRefs[group] = append([]string{}, keys...)
	}
}

// FinalRefs returns the recorded contributor sub-keys, or nil if unset
func (c *Context) FinalRefs() map[preflow.ColumnGroup][]string {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.finalRefs == nil {
		return nil
	}
	refs := make(map[preflow.ColumnGroup][]string, len(c.finalRefs))
	for group, keys := range c.finalRefs {
		refs[group] = append([]string{}, keys...)
	}
	return refs
}

// ResolveFinal computes, for each group, the de-duplicated union of columns
// from all final-referenced sub-keys. A referenced key which was never
// recorded falls back to the group's base columns, as does a group with no
// refs at all: an untouched group passes its raw input columns through.
func (c *Context) ResolveFinal() map[preflow.ColumnGroup][]string {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.finalCols = make(map[preflow.ColumnGroup][]string)
	for _, group := range preflow.ColumnGroups() {
		g := c.groups[group]
		keys := c.finalRefs[group]
		if len(keys) == 0 {
			keys = []string{preflow.BaseKey}
		}
		var cols []string
		seen := make(map[string]bool)
		for _, key := range keys {
			if _, ok := g.cols[key]; !ok {
				key = preflow.BaseKey
			}
			for _, name := range g.cols[key] {
				if !seen[name] {
					seen[name] = true
					cols = append(cols, name)
				}
			}
		}
		c.finalCols[group] = cols
	}
	out := make(map[preflow.ColumnGroup][]string, len(c.finalCols))
	for group, cols := range c.finalCols {
		out[group] = append([]string{}, cols...)
	}
	return out
}

// FinalColumns returns the resolved final columns for a group. ResolveFinal
// must have been called first.
func (c *Context) FinalColumns(group preflow.ColumnGroup) []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string{}, c.finalCols[group]...)
}

// Export produces a serializable snapshot of this Context
func (c *Context) Export() preflow.ColumnContextData {
	c.lock.Lock()
	defer c.lock.Unlock()
	data := preflow.ColumnContextData{
		Groups:   make(map[preflow.ColumnGroup]map[string][]string, len(c.groups)),
		KeyOrder: make(map[preflow.ColumnGroup][]string, len(c.groups)),
	}
	for group, g := range c.groups {
		cols := make(map[string][]string, len(g.cols))
		for key, list := range g.cols {
			cols[key] = append([]string{}, list...)
		}
		data.Groups[group] = cols
		data.KeyOrder[group] = append([]string{}, g.keys...)
	}
	if c.finalRefs != nil {
		data.FinalRefs = make(map[preflow.ColumnGroup][]string, len(c.finalRefs))
		for group, keys := range c.finalRefs {
			data.FinalRefs[group] = append([]string{}, keys...)
		}
	}
	if c.finalCols != nil {
		data.FinalCols = make(map[preflow.ColumnGroup][]string, len(c.finalCols))
		for group, cols := range c.finalCols {
			data.FinalCols[group] = append([]string{}, cols...)
		}
	}
	return data
}

// Import replaces the state of this Context with a snapshot
func (c *Context) Import(data preflow.ColumnContextData) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.groups = make(map[preflow.ColumnGroup]*groupCtx, len(data.Groups))
	for group, cols := range data.Groups {
		g := newGroupCtx()
		for _, key := range data.KeyOrder[group] {
			g.set(key, cols[key])
		}
		// tolerate snapshots missing key ordering
		for key, list := range cols {
			if _, ok := g.cols[key]; !ok {
				g.set(key, list)
			}
		}
		c.groups[group] = g
	}
	c.finalRefs = nil
	if data.FinalRefs != nil {
		c.finalRefs = make(map[preflow.ColumnGroup][]string, len(data.FinalRefs))
		for group, keys := range data.FinalRefs {
			c.finalRefs[group] = append([]string{}, keys...)
		}
	}
	c.finalCols = nil
	if data.FinalCols != nil {
		c.finalCols = make(map[preflow.ColumnGroup][]string, len(data.FinalCols))
		for group, cols := range data.FinalCols {
			c.finalCols[group] = append([]string{}, cols...)
		}
	}
}
