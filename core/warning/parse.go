package warning

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"healthledger/core/asset"
	"healthledger/core/errs"
)

// Parameters checked by the rule table. Blood pressure yields two.
const (
	ParamSystolic    = "systolic_bp"
	ParamDiastolic   = "diastolic_bp"
	ParamTemperature = "body_temperature"
	ParamPulse       = "pulse"
	ParamHeartRate   = "heart_rate"
)

// Parameters lists every parameter in evaluation order.
var Parameters = []string{ParamSystolic, ParamDiastolic, ParamTemperature, ParamPulse, ParamHeartRate}

// Values maps parameter names to parsed numbers.
type Values map[string]float64

type parser func(raw string) (Values, error)

var parsers = map[string]parser{
	asset.FieldBloodPressure:   parseBloodPressure,
	asset.FieldBodyTemperature: parseTemperature,
	asset.FieldPulse:           rateParser(ParamPulse),
	asset.FieldHeartRate:       rateParser(ParamHeartRate),
}

// parsedFields is the order fields are evaluated in.
var parsedFields = []string{asset.FieldBloodPressure, asset.FieldBodyTemperature, asset.FieldPulse, asset.FieldHeartRate}

// Parseable reports whether field has a numeric parser. EEG and ECG
// traces are stored but not evaluated.
func Parseable(field string) bool {
	_, ok := parsers[field]
	return ok
}

// ParseReading converts one raw reading field into parameter values.
func ParseReading(field, raw string) (Values, error) {
	p, ok := parsers[field]
	if !ok {
		return nil, &errs.ParseError{Field: field, Raw: raw, Err: fmt.Errorf("no parser for field")}
	}
	v, err := p(strings.TrimSpace(raw))
	if err != nil {
		return nil, &errs.ParseError{Field: field, Raw: raw, Err: err}
	}
	return v, nil
}

// parseBloodPressure reads "120/80", optionally followed by "mmHg".
func parseBloodPressure(raw string) (Values, error) {
	s := trimSuffixFold(raw, "mmhg")
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("want systolic/diastolic")
	}
	sys, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("systolic: %w", err)
	}
	dia, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("diastolic: %w", err)
	}
	return Values{ParamSystolic: float64(sys), ParamDiastolic: float64(dia)}, nil
}

// parseTemperature reads a Fahrenheit value with an optional "°F", "F"
// or bare "°" suffix. Celsius ("°C", "C") is converted to Fahrenheit.
func parseTemperature(raw string) (Values, error) {
	s := strings.TrimSpace(raw)
	celsius := false
	switch {
	case hasSuffixFold(s, "c"):
		celsius = true
		s = s[:len(s)-1]
	case hasSuffixFold(s, "f"):
		s = s[:len(s)-1]
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "°"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("not a finite temperature")
	}
	if celsius {
		v = math.Round((v*9/5+32)*100) / 100
	}
	return Values{ParamTemperature: v}, nil
}

// rateParser reads "72", "72 bpm" or "72bpm".
func rateParser(param string) parser {
	return func(raw string) (Values, error) {
		s := strings.TrimSpace(trimSuffixFold(raw, "bpm"))
		if fields := strings.Fields(s); len(fields) == 2 && isWord(fields[1]) {
			s = fields[0]
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		return Values{param: float64(v)}, nil
	}
}

func isWord(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && r != '/' {
			return false
		}
	}
	return s != ""
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func trimSuffixFold(s, suffix string) string {
	s = strings.TrimSpace(s)
	if hasSuffixFold(s, suffix) {
		return strings.TrimSpace(s[:len(s)-len(suffix)])
	}
	return s
}
