// Package optimization runs grid searches over strategy parameters.
package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/mainframe"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/strategy/analytics"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// Params is one point of the grid.
type Params map[string]float64

// Int returns the named parameter rounded to an int.
func (p Params) Int(name string) int {
	return int(math.Round(p[name]))
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters Params
	Summary    analytics.Summary
	Score      float64
}

// PositionBroker is a broker that can report its positions once a run ends.
// *broker.MemoryBroker satisfies it.
type PositionBroker interface {
	ports.Broker
	Positions() []*domain.Position
}

// Factory builds fresh collaborators for one grid point. Every call must
// return its own feed, broker and strategy. Returning an error that wraps
// ports.ErrConfiguration skips the point; any other error aborts the search.
type Factory func(params Params) (mainframe.Config, error)

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Concurrency     int     // parallel backtests, GOMAXPROCS when zero
	FeeRate         float64 // passed to analytics.Summarize
	ScoreFunction   func(analytics.Summary) float64
	Logger          ports.Logger
}

// Optimizer implements strategy parameter optimization
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.GOMAXPROCS(0)
	}
	if config.Logger == nil {
		config.Logger = ports.NopLogger{}
	}
	return &Optimizer{config: config}
}

// Optimize backtests every parameter combination and returns the results
// sorted by score, best first.
func (o *Optimizer) Optimize(ctx context.Context, factory Factory) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	slots := make([]*OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)

	for i, params := range combinations {
		g.Go(func() error {
			res, err := o.run(gctx, factory, params)
			if err != nil {
				return err
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]OptimizationResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sortResultsByScore(results)

	o.config.Logger.Info(ctx, "Optimization finished", map[string]interface{}{
		"combinations": len(combinations),
		"evaluated":    len(results),
	})
	return results, nil
}

func (o *Optimizer) run(ctx context.Context, factory Factory, params Params) (*OptimizationResult, error) {
	cfg, err := factory(params)
	if err != nil {
		if errors.Is(err, ports.ErrConfiguration) {
			o.config.Logger.Warn(ctx, "Skipping parameter combination", map[string]interface{}{
				"params": params,
				"error":  err.Error(),
			})
			return nil, nil
		}
		return nil, fmt.Errorf("build backtest for %v: %w", params, err)
	}

	b, ok := cfg.Broker.(PositionBroker)
	if !ok {
		return nil, fmt.Errorf("broker %T cannot list positions: %w", cfg.Broker, ports.ErrConfiguration)
	}

	m, err := mainframe.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := m.Backtest(ctx); err != nil {
		return nil, fmt.Errorf("backtest %v: %w", params, err)
	}

	summary := analytics.Summarize(b.Positions(), analytics.WithFeeRate(o.config.FeeRate))
	return &OptimizationResult{
		Parameters: params,
		Summary:    summary,
		Score:      o.config.ScoreFunction(summary),
	}, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []Params {
	var combinations []Params
	current := make(Params)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(Params, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		for _, value := range param.values() {
			current[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// values lists Min, Min+Step, ... up to Max. A non-positive step yields Min only.
func (p ParameterRange) values() []float64 {
	if p.Step <= 0 {
		return []float64{p.round(p.Min)}
	}
	var out []float64
	for i := 0; ; i++ {
		v := p.Min + float64(i)*p.Step
		if v > p.Max+1e-9*math.Max(1, math.Abs(p.Step)) {
			break
		}
		out = append(out, p.round(v))
	}
	return out
}

func (p ParameterRange) round(v float64) float64 {
	if p.IsInt {
		return math.Round(v)
	}
	return v
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction combines return, hit rate, profit factor and
// drawdown. An infinite profit factor is capped.
func DefaultScoreFunction(s analytics.Summary) float64 {
	if s.TradesCount == 0 {
		return 0
	}
	score := 0.0
	score += s.ProfitResult * 0.4
	score += s.Winrate * 0.3
	score += math.Min(s.ProfitFactor, 10) * 0.02
	score += (1 - s.MaxDrawdown) * 0.1
	return score
}
