package detector

import (
	"strings"

	"github.com/polyinsider/tracker/internal/store"
)

// Stage names, in pipeline order.
const (
	StageExcludedCategory = "excluded_category"
	StageMinSize          = "min_size"
	StageAggressive       = "aggressive"
	StageContrarian       = "contrarian"
)

// CategoryFilter reports whether a market title belongs to an excluded category.
type CategoryFilter func(title string) bool

// KeywordFilter excludes titles containing any keyword, case-insensitively.
func KeywordFilter(keywords []string) CategoryFilter {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}

	return func(title string) bool {
		lower := strings.ToLower(title)
		for _, kw := range lowered {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
}

// FilterConfig holds the thresholds for the insider filter chain.
type FilterConfig struct {
	Excluded          CategoryFilter
	MinTradeSizeUSD   float64
	MaxPriceThreshold float64
}

// Stage is one named predicate of the pipeline.
type Stage struct {
	Name string
	Keep func(store.Trade) bool
}

// StageCount is the number of trades surviving a stage.
type StageCount struct {
	Name      string
	Survivors int
}

// StageCounts reports the input size and each stage's survivors, in order.
type StageCounts struct {
	Input  int
	Stages []StageCount
}

// Survivors returns the survivor count of the named stage, or -1.
func (c StageCounts) Survivors(name string) int {
	for _, s := range c.Stages {
		if s.Name == name {
			return s.Survivors
		}
	}
	return -1
}

// Final returns the survivor count of the last stage.
func (c StageCounts) Final() int {
	if len(c.Stages) == 0 {
		return c.Input
	}
	return c.Stages[len(c.Stages)-1].Survivors
}

// Pipeline narrows a batch of trades through ordered stages.
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds the fixed insider filter chain: excluded categories,
// minimum size, aggressive buys, contrarian odds.
func NewPipeline(cfg FilterConfig) *Pipeline {
	excluded := cfg.Excluded
	if excluded == nil {
		excluded = func(string) bool { return false }
	}

	return &Pipeline{stages: []Stage{
		{Name: StageExcludedCategory, Keep: func(t store.Trade) bool { return !excluded(t.Title) }},
		{Name: StageMinSize, Keep: func(t store.Trade) bool { return t.ValueUSD() >= cfg.MinTradeSizeUSD }},
		{Name: StageAggressive, Keep: func(t store.Trade) bool { return t.IsAggressiveBuy() }},
		{Name: StageContrarian, Keep: func(t store.Trade) bool { return t.Price < cfg.MaxPriceThreshold }},
	}}
}

// Run applies every stage in order and returns the final survivors along with
// per-stage counts. Input order is preserved.
func (p *Pipeline) Run(batch []store.Trade) ([]store.Trade, StageCounts) {
	counts := StageCounts{
		Input:  len(batch),
		Stages: make([]StageCount, 0, len(p.stages)),
	}

	current := batch
	for _, stage := range p.stages {
		next := make([]store.Trade, 0, len(current))
		for _, trade := range current {
			if stage.Keep(trade) {
				next = append(next, trade)
			}
		}
		counts.Stages = append(counts.Stages, StageCount{Name: stage.Name, Survivors: len(next)})
		current = next
	}

	return current, counts
}
