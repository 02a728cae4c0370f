package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

type referenceRange struct {
	key       string
	low, high float64
}

// referenceRanges is matched in order against the normalized test name.
// Specific keys precede the generic ones they contain ("ldlcholesterol").
var referenceRanges = []referenceRange{
	{"hdl", 40, 1000},
	{"ldl", 0, 100},
	{"hba1c", 0, 5.7},
	{"triglycerides", 0, 150},
	{"glucose", 70, 100},
	{"cholesterol", 0, 200},
	{"hemoglobin", 12, 16},
	{"haemoglobin", 12, 16},
	{"creatinine", 0.6, 1.2},
}

// Blood pressure readings ("120/80") are rated per component.
var (
	systolicRange  = referenceRange{"systolic", 90, 120}
	diastolicRange = referenceRange{"diastolic", 60, 80}
)

var explicitRange = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)`)

// Classify rates value against rangeText when it holds "<low> - <high>",
// otherwise against the built-in table. Bounds are inclusive.
func Classify(name string, value float64, rangeText string) Status {
	if low, high, ok := parseRange(rangeText); ok {
		return compare(value, low, high)
	}

	key := strings.Join(strings.Fields(strings.ToLower(name)), "")
	for _, r := range referenceRanges {
		if strings.Contains(key, r.key) {
			return compare(value, r.low, r.high)
		}
	}
	return StatusUnknown
}

// ClassifyAll returns a copy of tests with Status filled in.
func ClassifyAll(tests []TestResult) []TestResult {
	out := make([]TestResult, len(tests))
	for i, t := range tests {
		out[i] = t
		if strings.Contains(t.Value, "/") {
			out[i].Status = classifyPressure(t.Name, t.Value)
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
		if err != nil {
			out[i].Status = StatusUnknown
			continue
		}
		out[i].Status = Classify(t.Name, v, t.Range)
	}
	return out
}

func classifyPressure(name, value string) Status {
	if !strings.Contains(strings.ToLower(name), "pressure") {
		return StatusUnknown
	}
	parts := strings.SplitN(value, "/", 2)
	sys, errSys := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	dia, errDia := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errSys != nil || errDia != nil {
		return StatusUnknown
	}
	s := compare(sys, systolicRange.low, systolicRange.high)
	d := compare(dia, diastolicRange.low, diastolicRange.high)
	switch {
	case s == StatusHigh || d == StatusHigh:
		return StatusHigh
	case s == StatusLow || d == StatusLow:
		return StatusLow
	default:
		return StatusNormal
	}
}

func parseRange(text string) (low, high float64, ok bool) {
	m := explicitRange.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	low, errLow := strconv.ParseFloat(m[1], 64)
	high, errHigh := strconv.ParseFloat(m[2], 64)
	if errLow != nil || errHigh != nil || low > high {
		return 0, 0, false
	}
	return low, high, true
}

func compare(value, low, high float64) Status {
	switch {
	case value < low:
		return StatusLow
	case value > high:
		return StatusHigh
	default:
		return StatusNormal
	}
}
