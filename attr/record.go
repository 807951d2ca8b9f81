package attr

import (
	"fmt"

	"github.com/crmarques/jelapi/faults"
)

type Origin int

const (
	// OriginLocal records describe resources that do not exist remotely yet.
	// Their lazy fields start Fetched and empty, and they diverge until the
	// first snapshot.
	OriginLocal Origin = iota
	// OriginRemote records are populated from a (partial) remote snapshot.
	// Their lazy fields start NotFetched.
	OriginRemote
)

type Record struct {
	schema   *Schema
	values   map[string]any
	baseline map[string]any
	fetch    map[string]FetchState
	synced   bool
}

func NewRecord(schema *Schema, origin Origin) *Record {
	record := &Record{
		schema:   schema,
		values:   make(map[string]any, len(schema.fields)),
		baseline: make(map[string]any, len(schema.fields)),
		fetch:    map[string]FetchState{},
	}
	for _, field := range schema.fields {
		if !field.Lazy {
			continue
		}
		if origin == OriginRemote {
			record.fetch[field.Name] = NotFetched
		} else {
			record.fetch[field.Name] = Fetched
		}
	}
	return record
}

func (r *Record) Schema() *Schema {
	return r.schema
}

func (r *Record) Kind() string {
	return r.schema.kind
}

func (r *Record) Get(name string) any {
	return r.values[name]
}

// Set assigns a caller-provided value.
func (r *Record) Set(name string, value any) error {
	field, err := r.lookup(name)
	if err != nil {
		return err
	}
	if field.ReadOnly {
		return faults.ObjectState(fmt.Sprintf("%s: %q is read only", r.schema.kind, name), nil)
	}
	if field.Lazy && r.fetch[name] == Fetching {
		return faults.ObjectState(fmt.Sprintf("%s: %q is being fetched", r.schema.kind, name), nil)
	}
	if err := r.check(field, value); err != nil {
		return err
	}
	r.values[name] = value
	return nil
}

// Load stores a value coming from the remote service. Read-only fields can
// only be written this way.
func (r *Record) Load(name string, value any) error {
	field, err := r.lookup(name)
	if err != nil {
		return err
	}
	if err := r.check(field, value); err != nil {
		return err
	}
	r.values[name] = value
	return nil
}

func (r *Record) check(field Field, value any) error {
	if field.Check == nil {
		return nil
	}
	if err := field.Check(value); err != nil {
		return faults.TypeMismatch(fmt.Sprintf("%s: field %q", r.schema.kind, field.Name), err)
	}
	return nil
}

func (r *Record) lookup(name string) (Field, error) {
	field, ok := r.schema.Field(name)
	if !ok {
		return Field{}, faults.ObjectState(fmt.Sprintf("%s: unknown field %q", r.schema.kind, name), nil)
	}
	return field, nil
}

// Value returns the typed value of a field, or the zero value of T when the
// field is unset or holds another type.
func Value[T any](r *Record, name string) T {
	value, _ := r.values[name].(T)
	return value
}
