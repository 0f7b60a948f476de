// Package optim searches start-value grids for the run that minimizes a metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Evaluate runs one grid point and returns the value to minimize.
type Evaluate func(ctx context.Context, params map[string]float64) (float64, error)

type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every point in row-major order. Failed evaluations are kept
// in the returned points and never win. It stops early only when ctx ends.
func (g *GridSearch) Search(ctx context.Context, eval Evaluate) (best Point, all []Point, err error) {
	if len(g.paramNames) == 0 || len(g.paramNames) != len(g.ranges) {
		return Point{}, nil, errors.New("grid needs one range per parameter")
	}
	best.Value = math.Inf(1)
	all = make([]Point, 0, g.Size())
	err = g.searchRecursive(ctx, 0, make(map[string]float64), eval, &best, &all)
	if err == nil && best.Params == nil {
		err = errors.New("every grid point failed")
	}
	return best, all, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	eval Evaluate,
	best *Point,
	all *[]Point,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}
		val, err := eval(ctx, params)
		p := Point{Params: params, Value: val, Err: err}
		*all = append(*all, p)
		if err == nil && !math.IsNaN(val) && val < best.Value {
			*best = p
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, current, eval, best, all); err != nil {
			return err
		}
	}
	delete(current, paramName)
	return nil
}

// ParseAxis reads "name=lo:hi:n" (n evenly spaced values, n >= 2) or
// "name=v1,v2,...".
func ParseAxis(arg string) (string, []float64, error) {
	name, values, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("axis %q: want name=lo:hi:n or name=v1,v2", arg)
	}

	if parts := strings.Split(values, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2, err3); err != nil {
			return "", nil, fmt.Errorf("axis %q: %w", arg, err)
		}
		if n < 2 {
			return "", nil, fmt.Errorf("axis %q: need at least 2 points", arg)
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
		}
		return name, out, nil
	}

	var out []float64
	for _, field := range strings.Split(values, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return "", nil, fmt.Errorf("axis %q: %w", arg, err)
		}
		out = append(out, v)
	}
	return name, out, nil
}
