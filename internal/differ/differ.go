// Package differ compares the binding sets of a sandbox before and after
// the application ran.
package differ

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Source is anything that lists own enumerable keys, such as *goja.Object.
type Source interface {
	Keys() []string
}

// Snapshot is an immutable, ordered record of binding names.
type Snapshot struct {
	names []string
	set   mapset.Set[string]
}

// Take snapshots the keys of src. Reading keys may run proxy traps, so
// callers holding a sandbox object should take snapshots under its guard.
func Take(src Source) Snapshot {
	return Of(src.Keys()...)
}

// Of builds a snapshot from names, dropping duplicates but keeping the
// first occurrence's position.
func Of(names ...string) Snapshot {
	set := mapset.NewThreadUnsafeSet[string]()
	ordered := make([]string, 0, len(names))
	for _, name := range names {
		if set.Add(name) {
			ordered = append(ordered, name)
		}
	}
	return Snapshot{names: ordered, set: set}
}

// Names returns a copy of the names in snapshot order.
func (s Snapshot) Names() []string {
	return append([]string{}, s.names...)
}

// Len returns the number of names.
func (s Snapshot) Len() int {
	return len(s.names)
}

// Has reports whether name is in the snapshot.
func (s Snapshot) Has(name string) bool {
	return s.set != nil && s.set.Contains(name)
}

// Diff lists binding names added and deleted between two snapshots.
type Diff struct {
	Added   []string `json:"added"`
	Deleted []string `json:"deleted"`
}

// Unchanged reports whether nothing was added or deleted.
func (d Diff) Unchanged() bool {
	return len(d.Added) == 0 && len(d.Deleted) == 0
}

// Compare returns the names in after but not before (Added) and in before
// but not after (Deleted). Both lists keep snapshot order and are never nil.
func Compare(before, after Snapshot) Diff {
	return Diff{
		Added:   missingFrom(after, before),
		Deleted: missingFrom(before, after),
	}
}

// missingFrom returns the names of s absent from other.
func missingFrom(s, other Snapshot) []string {
	out := []string{}
	for _, name := range s.names {
		if !other.Has(name) {
			out = append(out, name)
		}
	}
	return out
}
