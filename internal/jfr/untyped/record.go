package untyped

import (
	"errors"
	"fmt"
)

// ErrThunkInvalidated is wrapped into any error returned by accessing a
// lazy/sparse thunk after its owning chunk has ended (§9 "lazy untyped
// materialization": thunks must not outlive the chunk).
var ErrThunkInvalidated = errors.New("untyped: value accessed after its chunk ended")

// Record is one event's or compound's decoded field set: a Values array
// running parallel to a shared NameSet (§3 "projected record (untyped
// path)"). A slot may hold a *thunk, transparently resolved by Value/At.
type Record struct {
	Names  *NameSet
	Values []any
}

// Value looks up a field by name, resolving any thunk on first access.
func (r *Record) Value(name string) (any, error) {
	i, ok := r.Names.IndexOf(name)
	if !ok {
		return nil, fmt.Errorf("untyped: no such field %q", name)
	}
	return r.At(i)
}

// At returns the value at a sorted NameSet position, resolving any thunk.
func (r *Record) At(i int) (any, error) {
	v := r.Values[i]
	if th, ok := v.(*thunk); ok {
		resolved, err := th.resolve()
		if err != nil {
			return nil, err
		}
		r.Values[i] = resolved
		return resolved, nil
	}
	return v, nil
}

// Len reports the number of fields.
func (r *Record) Len() int { return r.Names.Len() }

// thunk defers materialization of a decoded compound/array value: the raw
// value is already structurally decoded (consuming its wire bytes is
// unavoidable up front, since JFR compounds carry no length prefix), but its
// conversion into the untyped Record tree is deferred until first access.
type thunk struct {
	raw       any
	convert   func(any) (any, error)
	chunkDone *bool

	resolved bool
	value    any
	err      error
}

func (t *thunk) resolve() (any, error) {
	if t.resolved {
		return t.value, t.err
	}
	if t.chunkDone != nil && *t.chunkDone {
		return nil, fmt.Errorf("%w", ErrThunkInvalidated)
	}
	t.value, t.err = t.convert(t.raw)
	t.resolved = true
	return t.value, t.err
}
