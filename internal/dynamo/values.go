package dynamo

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

// VarID identifies a variable within one loaded model. It is assigned by the
// model and never by the host.
type VarID int32

// Kind is the value type of a variable, fixed for the model's lifetime.
type Kind int

const (
	KindReal Kind = iota
	KindInt
	KindBool
	KindText
)

var kindNames = [...]string{"real", "int", "bool", "text"}

func (k Kind) String() string {
	if k < KindReal || k > KindText {
		return "unknown"
	}
	return kindNames[k]
}

func (k Kind) Valid() bool {
	return k >= KindReal && k <= KindText
}

// ParseKind maps a kind name as produced by String back to a Kind.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Value is a tagged variant holding exactly one typed payload.
type Value struct {
	kind Kind
	r    float64
	i    int32
	b    bool
	s    string
}

func RealValue(v float64) Value { return Value{kind: KindReal, r: v} }
func IntValue(v int32) Value    { return Value{kind: KindInt, i: v} }
func BoolValue(v bool) Value    { return Value{kind: KindBool, b: v} }
func TextValue(v string) Value  { return Value{kind: KindText, s: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Real() (float64, bool) { return v.r, v.kind == KindReal }
func (v Value) Int() (int32, bool)    { return v.i, v.kind == KindInt }
func (v Value) Bool() (bool, bool)    { return v.b, v.kind == KindBool }
func (v Value) Text() (string, bool)  { return v.s, v.kind == KindText }

// Float converts numeric kinds for plotting. Text yields NaN.
func (v Value) Float() float64 {
	switch v.kind {
	case KindReal:
		return v.r
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	}
	return math.NaN()
}

// String formats the payload the way rows are reported: booleans as 0/1.
func (v Value) String() string {
	switch v.kind {
	case KindReal:
		return strconv.FormatFloat(v.r, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindBool:
		if v.b {
			return "1"
		}
		return "0"
	case KindText:
		return v.s
	}
	return fmt.Sprintf("<invalid kind %d>", v.kind)
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v == o
}

// Schema maps variable identifiers to their declared kinds.
type Schema map[VarID]Kind

// Store holds typed values for the identifiers of one model operation. Every
// write is checked against the declared kind; nothing is coerced.
type Store struct {
	schema Schema
	values map[VarID]Value
	order  []VarID
}

func NewStore(schema Schema) *Store {
	return &Store{
		schema: schema,
		values: make(map[VarID]Value, len(schema)),
		order:  make([]VarID, 0, len(schema)),
	}
}

// Set writes v for id. Unknown identifiers fail with ErrLookup and values of
// the wrong kind fail with ErrKindMismatch.
func (s *Store) Set(id VarID, v Value) error {
	want, ok := s.schema[id]
	if !ok {
		return &VariableError{ID: id, Wrapped: ErrLookup}
	}
	if v.kind != want {
		return &VariableError{ID: id, Want: want, Got: v.kind, Wrapped: ErrKindMismatch}
	}
	if _, seen := s.values[id]; !seen {
		s.order = append(s.order, id)
	}
	s.values[id] = v
	return nil
}

func (s *Store) Get(id VarID) (Value, error) {
	v, ok := s.values[id]
	if !ok {
		return Value{}, &VariableError{ID: id, Wrapped: ErrLookup}
	}
	return v, nil
}

func (s *Store) get(id VarID, kind Kind) (Value, error) {
	v, err := s.Get(id)
	if err != nil {
		return Value{}, err
	}
	if v.kind != kind {
		return Value{}, &VariableError{ID: id, Want: v.kind, Got: kind, Wrapped: ErrKindMismatch}
	}
	return v, nil
}

func (s *Store) Real(id VarID) (float64, error) {
	v, err := s.get(id, KindReal)
	return v.r, err
}

func (s *Store) Int(id VarID) (int32, error) {
	v, err := s.get(id, KindInt)
	return v.i, err
}

func (s *Store) Bool(id VarID) (bool, error) {
	v, err := s.get(id, KindBool)
	return v.b, err
}

func (s *Store) Text(id VarID) (string, error) {
	v, err := s.get(id, KindText)
	return v.s, err
}

func (s *Store) Len() int { return len(s.order) }

// IDs returns the populated identifiers in write order.
func (s *Store) IDs() []VarID {
	ids := make([]VarID, len(s.order))
	copy(ids, s.order)
	return ids
}

// Each calls fn for every populated entry in write order.
func (s *Store) Each(fn func(id VarID, v Value)) {
	for _, id := range s.order {
		fn(id, s.values[id])
	}
}

// Schema returns the declared kinds the store validates against.
func (s *Store) Schema() Schema {
	return s.schema
}

// Lookup returns the values for ids in the given order.
func (s *Store) Lookup(ids []VarID) ([]Value, error) {
	out := make([]Value, len(ids))
	for i, id := range ids {
		v, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Partition is the four-mapping layout used at the sandbox boundary.
type Partition struct {
	Real map[VarID]float64
	Int  map[VarID]int32
	Bool map[VarID]bool
	Text map[VarID]string
}

func (p Partition) Len() int {
	return len(p.Real) + len(p.Int) + len(p.Bool) + len(p.Text)
}

// Partition splits the store by kind.
func (s *Store) Partition() Partition {
	p := Partition{
		Real: make(map[VarID]float64),
		Int:  make(map[VarID]int32),
		Bool: make(map[VarID]bool),
		Text: make(map[VarID]string),
	}
	s.Each(func(id VarID, v Value) {
		switch v.kind {
		case KindReal:
			p.Real[id] = v.r
		case KindInt:
			p.Int[id] = v.i
		case KindBool:
			p.Bool[id] = v.b
		case KindText:
			p.Text[id] = v.s
		}
	})
	return p
}

// StoreFromPartition rebuilds a store from per-kind mappings. An identifier
// filed under a mapping that differs from its declared kind is rejected.
// Entries are inserted in the order of ids, or ascending identifier order when
// ids is nil.
func StoreFromPartition(schema Schema, p Partition, ids []VarID) (*Store, error) {
	s := NewStore(schema)
	if p.Len() == 0 {
		return s, nil
	}

	lookup := func(id VarID) (Value, bool) {
		if v, ok := p.Real[id]; ok {
			return RealValue(v), true
		}
		if v, ok := p.Int[id]; ok {
			return IntValue(v), true
		}
		if v, ok := p.Bool[id]; ok {
			return BoolValue(v), true
		}
		if v, ok := p.Text[id]; ok {
			return TextValue(v), true
		}
		return Value{}, false
	}

	if ids == nil {
		ids = sortedPartitionIDs(p)
	}
	seen := 0
	for _, id := range ids {
		v, ok := lookup(id)
		if !ok {
			continue
		}
		if err := s.Set(id, v); err != nil {
			return nil, err
		}
		seen++
	}
	if seen != p.Len() {
		return nil, fmt.Errorf("%w: partition carries %d unexpected entries", ErrLookup, p.Len()-seen)
	}
	return s, nil
}

func sortedPartitionIDs(p Partition) []VarID {
	ids := make([]VarID, 0, p.Len())
	for id := range p.Real {
		ids = append(ids, id)
	}
	for id := range p.Int {
		ids = append(ids, id)
	}
	for id := range p.Bool {
		ids = append(ids, id)
	}
	for id := range p.Text {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
