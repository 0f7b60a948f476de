package physics

import "fmt"

// params binds parameter names to the fields of a system.
type params map[string]*float64

func (p params) values() map[string]float64 {
	out := make(map[string]float64, len(p))
	for name, field := range p {
		out[name] = *field
	}
	return out
}

func (p params) set(name string, value float64) error {
	field, ok := p[name]
	if !ok {
		return fmt.Errorf("unknown param: %s", name)
	}
	*field = value
	return nil
}
