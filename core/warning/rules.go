package warning

import (
	"context"
	"fmt"
	"os"

	"github.com/PaesslerAG/gval"
	"gopkg.in/yaml.v3"
)

// Rule bounds one parameter. Either bound may be omitted.
type Rule struct {
	Parameter string   `yaml:"parameter" json:"parameter"`
	Low       *float64 `yaml:"low,omitempty" json:"low,omitempty"`
	High      *float64 `yaml:"high,omitempty" json:"high,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

func bound(v float64) *float64 { return &v }

// DefaultRules is the built-in adult threshold table. Temperatures are °F.
func DefaultRules() []Rule {
	return []Rule{
		{Parameter: ParamSystolic, Low: bound(90), High: bound(140)},
		{Parameter: ParamDiastolic, Low: bound(60), High: bound(90)},
		{Parameter: ParamPulse, Low: bound(50), High: bound(100)},
		{Parameter: ParamHeartRate, Low: bound(50), High: bound(100)},
		{Parameter: ParamTemperature, Low: bound(95), High: bound(100.4)},
	}
}

// LoadRules reads a YAML rule file of the form
//
//	rules:
//	  - parameter: systolic_bp
//	    low: 90
//	    high: 140
func LoadRules(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		ruleLoadsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		ruleLoadsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("decode rule file %s: %w", path, err)
	}
	for _, r := range f.Rules {
		if err := r.validate(); err != nil {
			ruleLoadsTotal.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("rule file %s: %w", path, err)
		}
	}
	ruleLoadsTotal.WithLabelValues("success").Inc()
	return f.Rules, nil
}

func (r Rule) validate() error {
	known := false
	for _, p := range Parameters {
		if p == r.Parameter {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown parameter %q", r.Parameter)
	}
	if r.Low == nil && r.High == nil {
		return fmt.Errorf("rule %s has no bounds", r.Parameter)
	}
	if r.Low != nil && r.High != nil && *r.Low >= *r.High {
		return fmt.Errorf("rule %s: low %g must be below high %g", r.Parameter, *r.Low, *r.High)
	}
	return nil
}

// check is one compiled comparison of a parameter against a limit.
type check struct {
	parameter string
	threshold Threshold
	limit     float64
	expr      gval.Evaluable
}

var language = gval.Full()

func compile(r Rule) ([]check, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	var out []check
	add := func(th Threshold, op string, limit *float64) error {
		if limit == nil {
			return nil
		}
		expr, err := language.NewEvaluable(fmt.Sprintf("value %s limit", op))
		if err != nil {
			return fmt.Errorf("compile %s %s rule: %w", r.Parameter, th, err)
		}
		out = append(out, check{parameter: r.Parameter, threshold: th, limit: *limit, expr: expr})
		return nil
	}
	if err := add(ThresholdLow, "<", r.Low); err != nil {
		return nil, err
	}
	if err := add(ThresholdHigh, ">", r.High); err != nil {
		return nil, err
	}
	return out, nil
}

func (c check) violated(ctx context.Context, value float64) (bool, error) {
	return c.expr.EvalBool(ctx, map[string]interface{}{"value": value, "limit": c.limit})
}
