package analysis

import (
	"fmt"
	"strings"
)

const (
	noTestsMessage = "No specific test results were clearly identified in the report. Manual review recommended."
	disclaimer     = "⚠️ Important: This is an automated analysis. Please consult with your healthcare provider for proper interpretation and treatment recommendations."
)

type advisory struct {
	keyword string
	text    string
}

var advisories = []advisory{
	{"glucose", "📋 Blood glucose is outside the normal range. Consider dietary review and regular monitoring."},
	{"cholesterol", "📋 Cholesterol levels are outside the normal range. Lifestyle changes and possible medication may be needed."},
	{"pressure", "📋 Blood pressure is outside the normal range. Regular monitoring and stress management recommended."},
}

// Summarize renders a plain-language report for classified tests.
func Summarize(info PatientInfo, tests []TestResult) string {
	name := info[FieldName]
	if name == "" {
		name = "Patient"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Medical Report Analysis for %s:\n\n", name)

	if len(tests) == 0 {
		b.WriteString(noTestsMessage + "\n")
		return b.String()
	}

	var abnormal []TestResult
	unknown := 0
	for _, t := range tests {
		switch {
		case t.Status.IsAbnormal():
			abnormal = append(abnormal, t)
		case t.Status == StatusUnknown:
			unknown++
		}
	}

	switch {
	case len(abnormal) > 0:
		fmt.Fprintf(&b, "⚠️ %d of %d test(s) show abnormal values:\n\n", len(abnormal), len(tests))
		for _, t := range abnormal {
			b.WriteString(abnormalLine(t) + "\n")
		}
		b.WriteString("\n")
	case unknown == 0:
		fmt.Fprintf(&b, "✅ All %d test(s) are within normal ranges.\n\n", len(tests))
	default:
		fmt.Fprintf(&b, "✅ No abnormal values were found among the %d test(s) identified; %d could not be rated against a reference range.\n\n", len(tests), unknown)
	}

	for _, a := range advisories {
		if anyAbnormal(abnormal, a.keyword) {
			b.WriteString(a.text + "\n")
		}
	}

	b.WriteString("\n" + disclaimer)
	return b.String()
}

func abnormalLine(t TestResult) string {
	arrow := "↑"
	if t.Status == StatusLow {
		arrow = "↓"
	}
	line := fmt.Sprintf("%s %s: %s", arrow, t.Name, t.Value)
	if t.Unit != "" {
		line += " " + t.Unit
	}
	line += fmt.Sprintf(" (%s)", strings.ToUpper(string(t.Status)))
	if t.Range != "" {
		line += " - Normal range: " + t.Range
	}
	return line
}

func anyAbnormal(tests []TestResult, keyword string) bool {
	for _, t := range tests {
		if strings.Contains(strings.ToLower(t.Name), keyword) {
			return true
		}
	}
	return false
}
