package attr

import (
	"fmt"

	"github.com/crmarques/jelapi/faults"
)

type FetchState int

const (
	NotFetched FetchState = iota
	Fetching
	Fetched
)

func (s FetchState) String() string {
	switch s {
	case NotFetched:
		return "not-fetched"
	case Fetching:
		return "fetching"
	case Fetched:
		return "fetched"
	default:
		return fmt.Sprintf("FetchState(%d)", int(s))
	}
}

// FetchState of a non-lazy field is always Fetched.
func (r *Record) FetchState(name string) FetchState {
	state, ok := r.fetch[name]
	if !ok {
		return Fetched
	}
	return state
}

// EnsureFetched runs fetch exactly once for a lazy field, stores its result
// and snapshots that field only. Later calls are no-ops. A failed fetch
// leaves the field NotFetched.
func (r *Record) EnsureFetched(name string, fetch func() (any, error)) error {
	field, err := r.lookup(name)
	if err != nil {
		return err
	}
	if !field.Lazy {
		return faults.ObjectState(fmt.Sprintf("%s: %q is not lazily fetched", r.schema.kind, name), nil)
	}

	switch r.fetch[name] {
	case Fetched:
		return nil
	case Fetching:
		return faults.ObjectState(fmt.Sprintf("%s: fetch of %q already in progress", r.schema.kind, name), nil)
	}

	if !isEmpty(r.values[name]) {
		return faults.ObjectState(
			fmt.Sprintf("%s: %q holds a local value that was never fetched; clear it before reading", r.schema.kind, name),
			nil,
		)
	}

	r.fetch[name] = Fetching
	value, err := fetch()
	if err != nil {
		r.fetch[name] = NotFetched
		return err
	}
	if err := r.Load(name, value); err != nil {
		r.fetch[name] = NotFetched
		return err
	}
	r.fetch[name] = Fetched
	r.TakeSnapshot(name)
	return nil
}
