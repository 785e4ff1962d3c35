// Package untyped implements the untyped projector (§4.H): every event is
// produced as an ordered field-name -> value mapping, with names shared
// (flyweight) across every record of the same metadata shape and values
// materialized eagerly, lazily, or sparsely per the configured mode.
package untyped

import "sort"

// NameSet is the shared, sorted field-name table for one metadata class,
// reused by every Record of that class (flyweight, §3 "keys stored once per
// type shape"). Lookup is by binary search.
type NameSet struct {
	names []string
}

func newNameSet(fieldNames []string) *NameSet {
	names := append([]string(nil), fieldNames...)
	sort.Strings(names)
	return &NameSet{names: names}
}

// Len reports the number of fields.
func (n *NameSet) Len() int { return len(n.names) }

// NameAt returns the field name at sorted position i.
func (n *NameSet) NameAt(i int) string { return n.names[i] }

// IndexOf returns the sorted position of name, if present.
func (n *NameSet) IndexOf(name string) (int, bool) {
	i := sort.SearchStrings(n.names, name)
	if i < len(n.names) && n.names[i] == name {
		return i, true
	}
	return -1, false
}
