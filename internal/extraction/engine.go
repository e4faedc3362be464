// Package extraction infers a fuel expense (amount paid, price per unit and
// quantity) from the noisy text lines recognized on a receipt photo.
//
// The pipeline is extract -> classify -> consistency search -> fallback. It is
// deterministic and holds no state between calls, so one Engine can serve any
// number of goroutines.
package extraction

import (
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Outcome is the terminal state of one extraction
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeFallback  Outcome = "fallback"
	OutcomeNoExpense Outcome = "no_expense"
)

// stage names the steps an extraction moves through, strictly forward.
type stage string

const (
	stageStart      stage = "start"
	stageExtracted  stage = "extracted"
	stageClassified stage = "classified"
	stageDone       stage = "done"
)

// Result is what one call to Extract produces
type Result struct {
	Outcome      Outcome            `json:"outcome"`
	Expense      *ExtractedExpense  `json:"expense,omitempty"`
	Alternatives []ExtractedExpense `json:"alternatives,omitempty"` // other consistent triples, best first
	Candidates   []Candidate        `json:"candidates"`
}

// Detected reports whether an expense was found.
func (r Result) Detected() bool {
	return r.Expense != nil
}

// Config holds the tunable parts of the heuristics
type Config struct {
	Tolerance       decimal.Decimal
	AmountPolicy    AmountPolicy
	UnitPricePolicy UnitPricePolicy
	// DistinctPriceAndQuantity stops one printed number from serving as both
	// the unit price and the quantity of a triple. Off by default.
	DistinctPriceAndQuantity bool
}

// DefaultConfig returns half-cent tolerance, repeated-total amount selection
// and marked-price selection within the typical fuel price band.
func DefaultConfig() Config {
	return Config{
		Tolerance:       DefaultTolerance(),
		AmountPolicy:    RepeatedAmount{},
		UnitPricePolicy: MarkedUnitPrice{Band: DefaultPriceBand()},
	}
}

// Engine runs the extraction pipeline
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for stage tracing at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine. Unset fields of cfg fall back to DefaultConfig.
func NewEngine(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.Tolerance.IsZero() || cfg.Tolerance.IsNegative() {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.AmountPolicy == nil {
		cfg.AmountPolicy = def.AmountPolicy
	}
	if cfg.UnitPricePolicy == nil {
		cfg.UnitPricePolicy = def.UnitPricePolicy
	}

	e := &Engine{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract processes one receipt's text lines and returns exactly one of a
// matched expense, a fallback expense or no expense.
func (e *Engine) Extract(lines []string) Result {
	e.trace(stageStart, "lines", len(lines))

	candidates := ExtractCandidates(lines)
	e.trace(stageExtracted, "candidates", len(candidates))

	pools := Classify(candidates)
	e.trace(stageClassified)

	result := Result{Candidates: candidates}
	if matches := search(pools, e.cfg.Tolerance, e.cfg.DistinctPriceAndQuantity, nil); len(matches) > 0 {
		result.Outcome = OutcomeMatched
		result.Expense = &matches[0]
		result.Alternatives = matches[1:]
	} else if expense := Fallback(pools, e.cfg.AmountPolicy, e.cfg.UnitPricePolicy); expense != nil {
		result.Outcome = OutcomeFallback
		result.Expense = expense
	} else {
		result.Outcome = OutcomeNoExpense
	}

	e.trace(stageDone, "outcome", result.Outcome)
	return result
}

func (e *Engine) trace(s stage, args ...any) {
	e.logger.Debug("extraction stage", append([]any{"stage", s}, args...)...)
}
