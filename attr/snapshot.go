package attr

import (
	"maps"
	"reflect"
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var equalOptions = []cmp.Option{cmpopts.EquateEmpty()}

// TakeSnapshot copies the current value of the named mutable fields, or of
// every mutable field when no name is given, into the baseline. Lazy fields
// that were not fetched yet are skipped in the latter case. The record is
// marked synchronized.
func (r *Record) TakeSnapshot(names ...string) {
	if len(names) == 0 {
		for _, field := range r.schema.fields {
			if field.ReadOnly {
				continue
			}
			if field.Lazy && r.fetch[field.Name] != Fetched {
				continue
			}
			r.baseline[field.Name] = cloneValue(r.values[field.Name])
		}
	} else {
		for _, name := range names {
			field, ok := r.schema.Field(name)
			if !ok || field.ReadOnly {
				continue
			}
			r.baseline[name] = cloneValue(r.values[name])
		}
	}
	r.synced = true
}

// Assume overrides the baseline of a field and marks it fetched. Used when a
// bulk remote operation is known to have written the field.
func (r *Record) Assume(name string, value any) {
	field, ok := r.schema.Field(name)
	if !ok || field.ReadOnly {
		return
	}
	if field.Lazy {
		r.fetch[name] = Fetched
	}
	r.baseline[name] = cloneValue(value)
}

// Adopt assumes every given baseline and marks the record synchronized
// without touching current values.
func (r *Record) Adopt(baseline map[string]any) {
	for name, value := range baseline {
		r.Assume(name, value)
	}
	r.synced = true
}

// Forget drops the synchronized marker, as for a resource removed remotely.
func (r *Record) Forget() {
	r.synced = false
	clear(r.baseline)
}

func (r *Record) Synced() bool {
	return r.synced
}

// Baseline returns a copy of the last synchronized value of a field.
func (r *Record) Baseline(name string) (any, bool) {
	value, ok := r.baseline[name]
	if !ok {
		return nil, false
	}
	return cloneValue(value), true
}

// Diverged reports whether the record differs from its baseline. It never
// mutates the record.
func (r *Record) Diverged() bool {
	if !r.synced {
		return true
	}
	for _, field := range r.schema.fields {
		if !field.tracked() {
			continue
		}
		if r.fieldDiverged(field) {
			return true
		}
	}
	return false
}

// Changed reports whether a single field differs from its baseline,
// regardless of the synchronized marker.
func (r *Record) Changed(name string) bool {
	field, ok := r.schema.Field(name)
	if !ok || !field.tracked() {
		return false
	}
	return r.fieldDiverged(field)
}

// ChangedFields lists diverged fields in schema order. Never synchronized
// records report every tracked field that holds a value.
func (r *Record) ChangedFields() []string {
	changed := make([]string, 0)
	for _, field := range r.schema.fields {
		if !field.tracked() {
			continue
		}
		if !r.synced {
			if !isEmpty(r.values[field.Name]) {
				changed = append(changed, field.Name)
			}
			continue
		}
		if r.fieldDiverged(field) {
			changed = append(changed, field.Name)
		}
	}
	return changed
}

func (r *Record) fieldDiverged(field Field) bool {
	value := r.values[field.Name]
	if field.Lazy && r.fetch[field.Name] != Fetched {
		return !isEmpty(value)
	}

	base, ok := r.baseline[field.Name]
	if !ok {
		return !isEmpty(value)
	}

	if field.Diff == DiffDeep {
		return collectionDiverged(value, base)
	}
	if isEmpty(value) && isEmpty(base) {
		return false
	}
	return !cmp.Equal(value, base, equalOptions...)
}

func collectionDiverged(value any, base any) bool {
	current, _ := value.(Collection)
	previous, _ := base.(Collection)
	if collectionLen(current) != collectionLen(previous) {
		return true
	}
	if current == nil {
		return false
	}
	for _, member := range current.Members() {
		if member.Diverged() {
			return true
		}
	}
	return false
}

func collectionLen(collection Collection) int {
	if collection == nil {
		return 0
	}
	return collection.Len()
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if collection, ok := value.(Collection); ok {
		return collection.Len() == 0
	}
	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Slice, reflect.Map:
		return reflected.Len() == 0
	default:
		return reflected.IsZero()
	}
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case Collection:
		return typed.CloneCollection()
	case []string:
		return slices.Clone(typed)
	case map[string]string:
		return maps.Clone(typed)
	case []any:
		cloned := make([]any, len(typed))
		for idx, item := range typed {
			cloned[idx] = cloneValue(item)
		}
		return cloned
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for key, item := range typed {
			cloned[key] = cloneValue(item)
		}
		return cloned
	default:
		return value
	}
}
