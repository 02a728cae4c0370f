// Package analysis turns recognized report text into structured clinical data.
// Everything in this package is pure: no I/O, no shared state.
package analysis

// Status is the classification of a single test value.
type Status string

const (
	StatusNormal  Status = "normal"
	StatusHigh    Status = "high"
	StatusLow     Status = "low"
	StatusUnknown Status = "unknown"
)

// IsAbnormal reports whether the status is high or low.
func (s Status) IsAbnormal() bool {
	return s == StatusHigh || s == StatusLow
}

// Recognized patient field keys. Free-form labeled fields use their label as key.
const (
	FieldName      = "name"
	FieldAge       = "age"
	FieldGender    = "gender"
	FieldDate      = "date"
	FieldPatientID = "patientId"
)

// PatientInfo maps field names to extracted values. Absent fields are omitted.
type PatientInfo map[string]string

// PageText is the OCR output for one page.
type PageText struct {
	Page int
	Text string
}

// TestResult is one lab measurement found in the report.
type TestResult struct {
	Name   string `json:"test"`
	Value  string `json:"value"`
	Unit   string `json:"unit,omitempty"`
	Range  string `json:"range,omitempty"`
	Status Status `json:"status"`
}

// AnalysisResult is the structured outcome returned to callers.
type AnalysisResult struct {
	Success     bool         `json:"success"`
	PatientInfo PatientInfo  `json:"patientInfo"`
	TestResults []TestResult `json:"testResults"`
	Summary     string       `json:"summary"`
	Error       string       `json:"error,omitempty"`
}

// Failure builds the result shape reported for a failed analysis.
func Failure(message string) *AnalysisResult {
	return &AnalysisResult{
		Success:     false,
		PatientInfo: PatientInfo{},
		TestResults: []TestResult{},
		Summary:     "",
		Error:       message,
	}
}

// Analyze runs extraction, classification and summarization over normalized text.
func Analyze(text string) *AnalysisResult {
	info, tests := Extract(text)
	tests = ClassifyAll(tests)
	return &AnalysisResult{
		Success:     true,
		PatientInfo: info,
		TestResults: tests,
		Summary:     Summarize(info, tests),
	}
}
