package attr

import "fmt"

type DiffMode int

const (
	// DiffEquality compares the live value with its baseline by value.
	DiffEquality DiffMode = iota
	// DiffDeep compares collection cardinality, then asks every member.
	DiffDeep
	// DiffIgnored fields never contribute to divergence.
	DiffIgnored
)

func (m DiffMode) String() string {
	switch m {
	case DiffEquality:
		return "equality"
	case DiffDeep:
		return "deep"
	case DiffIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("DiffMode(%d)", int(m))
	}
}

// Check validates a value before it is stored. It must not coerce.
type Check func(value any) error

type Field struct {
	Name     string
	ReadOnly bool
	Diff     DiffMode
	// Lazy fields are fetched on first access and start NotFetched on
	// records built from remote data.
	Lazy  bool
	Check Check
}

func (f Field) tracked() bool {
	return !f.ReadOnly && f.Diff != DiffIgnored
}

type Schema struct {
	kind   string
	fields []Field
	index  map[string]int
}

// NewSchema panics on empty or duplicate field names.
func NewSchema(kind string, fields ...Field) *Schema {
	schema := &Schema{
		kind:   kind,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, field := range fields {
		if field.Name == "" {
			panic(fmt.Sprintf("attr: %s schema declares a field without name", kind))
		}
		if _, exists := schema.index[field.Name]; exists {
			panic(fmt.Sprintf("attr: %s schema declares field %q twice", kind, field.Name))
		}
		schema.index[field.Name] = len(schema.fields)
		schema.fields = append(schema.fields, field)
	}
	return schema
}

func (s *Schema) Kind() string {
	return s.kind
}

func (s *Schema) Field(name string) (Field, bool) {
	idx, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[idx], true
}

func (s *Schema) Fields() []Field {
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	return fields
}
