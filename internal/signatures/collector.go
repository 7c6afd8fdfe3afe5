// Package signatures aggregates per-file signing results and writes the
// signature map consumed by the persisted query validator.
package signatures

import (
	"sort"
)

// Entry is the signature of one extracted operation.
type Entry struct {
	Name      string
	Signature string // lowercase hex
	Source    string // path of the generated file
	// Kind is the operation kind reported by the generator, possibly empty.
	Kind string
}

// Collision records several files declaring the same operation name.
type Collision struct {
	Name    string
	Kept    string
	Dropped []string
}

// Collector keeps at most one Entry per operation name. When several files
// declare the same name, the entry whose source path sorts first wins, so
// the outcome does not depend on the order entries arrive in.
//
// A Collector is not safe for concurrent use.
type Collector struct {
	entries map[string]Entry
	dropped map[string][]string
}

func NewCollector() *Collector {
	return &Collector{
		entries: make(map[string]Entry),
		dropped: make(map[string][]string),
	}
}

// Add inserts e, resolving name collisions by source path.
func (c *Collector) Add(e Entry) {
	cur, ok := c.entries[e.Name]
	if !ok {
		c.entries[e.Name] = e
		return
	}
	if e.Source < cur.Source {
		c.entries[e.Name] = e
		c.dropped[e.Name] = append(c.dropped[e.Name], cur.Source)
		return
	}
	c.dropped[e.Name] = append(c.dropped[e.Name], e.Source)
}

// Len returns the number of distinct operation names.
func (c *Collector) Len() int { return len(c.entries) }

// Map returns name → hex signature.
func (c *Collector) Map() map[string]string {
	m := make(map[string]string, len(c.entries))
	for name, e := range c.entries {
		m[name] = e.Signature
	}
	return m
}

// Entries returns the kept entries sorted by name.
func (c *Collector) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Collisions returns every name declared by more than one file, sorted by
// name. Dropped paths are sorted.
func (c *Collector) Collisions() []Collision {
	out := make([]Collision, 0, len(c.dropped))
	for name, dropped := range c.dropped {
		d := append([]string(nil), dropped...)
		sort.Strings(d)
		out = append(out, Collision{Name: name, Kept: c.entries[name].Source, Dropped: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
