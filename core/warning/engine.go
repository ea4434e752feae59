// Package warning evaluates physiological readings against threshold
// rules and reports out-of-range parameters.
package warning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"healthledger/core/errs"
)

// Threshold names the side of the range that was crossed.
type Threshold string

const (
	ThresholdLow  Threshold = "low"
	ThresholdHigh Threshold = "high"
)

// Warning is one out-of-range parameter.
type Warning struct {
	Parameter string    `json:"parameter"`
	Value     float64   `json:"value"`
	Threshold Threshold `json:"threshold"`
	Limit     float64   `json:"limit"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s-%s(%s)", w.Parameter, w.Threshold, strconv.FormatFloat(w.Value, 'f', -1, 64))
}

// Result of evaluating one reading. Warnings is never nil.
type Result struct {
	Warnings []Warning
	Skipped  []*errs.ParseError
}

// Key identifies the warning set independent of order, for deduplication.
func (r Result) Key() string {
	parts := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		parts[i] = w.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Engine holds a compiled rule table. It is safe for concurrent use.
type Engine struct {
	checks map[string][]check
	log    *zap.Logger
}

// NewEngine compiles rules. A later rule for the same parameter replaces
// an earlier one.
func NewEngine(rules []Rule, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{checks: make(map[string][]check), log: log}
	for _, r := range rules {
		cs, err := compile(r)
		if err != nil {
			return nil, err
		}
		e.checks[r.Parameter] = cs
	}
	return e, nil
}

// NewDefaultEngine uses DefaultRules.
func NewDefaultEngine(log *zap.Logger) *Engine {
	e, err := NewEngine(DefaultRules(), log)
	if err != nil {
		panic(err)
	}
	return e
}

// Evaluate parses each known field and checks the resulting values.
// Unparseable fields are reported in Skipped and do not stop evaluation
// of the others. The error is non-nil only if rule evaluation itself
// fails, for instance because ctx was cancelled.
func (e *Engine) Evaluate(ctx context.Context, fields map[string]string) (Result, error) {
	res := Result{Warnings: []Warning{}}
	for _, field := range parsedFields {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		raw, ok := fields[field]
		if !ok || raw == "" {
			continue
		}
		values, err := ParseReading(field, raw)
		if err != nil {
			var perr *errs.ParseError
			if errors.As(err, &perr) {
				res.Skipped = append(res.Skipped, perr)
			}
			skippedFieldsTotal.WithLabelValues(field).Inc()
			e.log.Debug("skipping unparseable field", zap.String("field", field), zap.String("raw", raw), zap.Error(err))
			continue
		}
		for _, param := range Parameters {
			v, ok := values[param]
			if !ok {
				continue
			}
			for _, c := range e.checks[param] {
				hit, err := c.violated(ctx, v)
				if err != nil {
					return Result{}, fmt.Errorf("evaluate %s %s rule: %w", param, c.threshold, err)
				}
				if hit {
					res.Warnings = append(res.Warnings, Warning{Parameter: param, Value: v, Threshold: c.threshold, Limit: c.limit})
					detectionsTotal.WithLabelValues(param, string(c.threshold)).Inc()
				}
			}
		}
	}
	return res, nil
}
