package experiment

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/wasmsim/internal/optim"
)

// Sweep runs base once per grid point, with the point's values set as start
// values, and minimizes the named metric.
func (e *Experiment) Sweep(ctx context.Context, base Config, grid *optim.GridSearch, metric string) (optim.Point, []optim.Point, error) {
	return grid.Search(ctx, func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := base
		cfg.Save = false
		cfg.Reporters = nil
		cfg.Set = make(map[string]string, len(base.Set)+len(params))
		for k, v := range base.Set {
			cfg.Set[k] = v
		}
		for k, v := range params {
			cfg.Set[k] = strconv.FormatFloat(v, 'g', -1, 64)
		}

		out, err := e.Run(ctx, cfg)
		if err != nil {
			return 0, err
		}
		v, ok := out.Metrics[metric]
		if !ok {
			return 0, fmt.Errorf("run has no metric %q (have %s)", metric, strings.Join(metricNames(out.Metrics), ", "))
		}
		e.logger.Debug().Interface("params", params).Float64(metric, v).Msg("grid point done")
		return v, nil
	})
}

func metricNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
