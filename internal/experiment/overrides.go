package experiment

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

// ParseValue converts text to a value of the given kind.
func ParseValue(kind dynamo.Kind, text string) (dynamo.Value, error) {
	switch kind {
	case dynamo.KindReal:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return dynamo.Value{}, err
		}
		return dynamo.RealValue(f), nil
	case dynamo.KindInt:
		i, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return dynamo.Value{}, err
		}
		return dynamo.IntValue(int32(i)), nil
	case dynamo.KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return dynamo.Value{}, err
		}
		return dynamo.BoolValue(b), nil
	case dynamo.KindText:
		return dynamo.TextValue(text), nil
	}
	return dynamo.Value{}, fmt.Errorf("%w: kind %d", dynamo.ErrKindMismatch, kind)
}

// startValues replaces declared defaults by name before the driver sees the
// description, so overridden values travel with the initialize call and, for
// inputs, with every set-values call.
type startValues struct {
	dynamo.Model
	values map[string]string
}

// WithStartValues wraps m so that the named variables default to the given
// text, parsed by their declared kind. Unknown names fail the describe call.
func WithStartValues(m dynamo.Model, values map[string]string) dynamo.Model {
	if len(values) == 0 {
		return m
	}
	return &startValues{Model: m, values: values}
}

func (s *startValues) Describe(ctx context.Context) (*dynamo.ModelDescription, error) {
	desc, err := s.Model.Describe(ctx)
	if err != nil {
		return nil, err
	}

	out := *desc
	out.Variables = append([]dynamo.Variable(nil), desc.Variables...)
	byName := make(map[string]int, len(out.Variables))
	for i, v := range out.Variables {
		byName[v.Name] = i
	}

	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		i, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: no variable named %q", dynamo.ErrLookup, name)
		}
		v := &out.Variables[i]
		if v.Causality.Observable() || v.Causality == dynamo.CausalityIndependent {
			return nil, fmt.Errorf("cannot set %s variable %q", v.Causality, name)
		}
		val, err := ParseValue(v.Kind, s.values[name])
		if err != nil {
			return nil, fmt.Errorf("value %q for %s variable %q: %w", s.values[name], v.Kind, name, err)
		}
		v.Default = val
		v.HasDefault = true
	}
	return &out, nil
}
