package analysis

import (
	"regexp"
	"sort"
	"strings"
)

// A fieldRule proposes at most one value for a patient field. Rules for the
// same field are tried in order and the first one that yields a value wins.
type fieldRule struct {
	field string
	re    *regexp.Regexp
	value func(groups []string) string
}

func (r fieldRule) match(text string) string {
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		if v := r.value(m); v != "" {
			return v
		}
	}
	return ""
}

// A testRule yields candidate test results with their position in the text.
// Group layout is fixed: 1 name, 2 value, 3 unit, 4 range.
type testRule struct {
	name    string
	re      *regexp.Regexp
	exclude func(name string) bool
}

type candidate struct {
	start, end int
	result     TestResult
}

const (
	properName = `([A-Z][a-z]+(?:\s[A-Z][a-z]+)*)`
	testValue  = `(\d+(?:\.\d+)?(?:/\d+(?:\.\d+)?)?)`
	testUnit   = `(%|[A-Za-z]+/[A-Za-z0-9.]+|[a-z][A-Za-z]*)`
	testRange  = `(?:\s*\(([^)]*)\))?`
	testSep    = `(?:\s*:\s*|\s+)`

	testVocabulary = `glucose|cholesterol|ha?emoglobin|creatinine|triglycerides|hdl|ldl|hba1c|blood\s+pressure|platelets?(?:\s+count)?`
)

var patientRules = []fieldRule{
	{FieldName, regexp.MustCompile(`(?i:\bpatient\s+name)[:\s]+` + properName), cleanName},
	{FieldName, regexp.MustCompile(`(?i:\bname)[:\s]+` + properName), cleanName},
	{FieldName, regexp.MustCompile(`(?i:\bpatient)[:\s]+` + properName), cleanName},
	{FieldName, regexp.MustCompile(`(?i:\b(?:mrs|mr|ms|miss|dr))\.?\s+` + properName), cleanName},
	{FieldAge, regexp.MustCompile(`(?i)\bage\b[:\s]+(\d{1,3})\s*(?:years|yrs|yr|y)?\b`), func(g []string) string {
		return g[1] + " years"
	}},
	{FieldGender, regexp.MustCompile(`(?i)\b(?:gender|sex)\b[:\s]+(male|female|m|f)\b`), func(g []string) string {
		switch strings.ToUpper(g[1]) {
		case "M", "MALE":
			return "Male"
		case "F", "FEMALE":
			return "Female"
		}
		return g[1]
	}},
	{FieldDate, regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})\b`), func(g []string) string {
		return g[1]
	}},
	{FieldPatientID, regexp.MustCompile(`(?i)(?:\bpatient\s*id|\buhid|\bid)\b\s*(?:no\.?)?[:\s]+([A-Z0-9][A-Z0-9-]*)`), func(g []string) string {
		if !strings.ContainsAny(g[1], "0123456789") {
			return ""
		}
		return g[1]
	}},
}

var testRules = []testRule{
	{
		name: "vocabulary",
		re: regexp.MustCompile(`(?:^|[\s,;(])((?:[A-Z][A-Za-z0-9]*\s+)?(?i:` + testVocabulary + `)(?:\s+[A-Z][A-Za-z]*){0,2}(?:\s*\([A-Za-z ]+\))?)` +
			testSep + testValue + `(?:\s*` + testUnit + `)?` + testRange),
		exclude: func(string) bool { return false },
	},
	{
		name:    "generic",
		re:      regexp.MustCompile(`\b` + properName + testSep + `(\d+(?:\.\d+)?)\s*` + testUnit + testRange),
		exclude: hasLabelWord,
	},
}

var freeFormLabel = regexp.MustCompile(`\b([A-Z][A-Za-z.]*(?:\s[A-Za-z][A-Za-z.]*)?)\s*:`)

// labelWords are header words that never belong to a name or a test name.
var labelWords = map[string]bool{
	"name": true, "patient": true, "age": true, "gender": true, "sex": true,
	"date": true, "id": true, "uhid": true, "dob": true, "mrn": true,
	"ref": true, "referred": true, "report": true, "sample": true,
	"test": true, "result": true, "results": true, "unit": true, "units": true,
	"value": true, "reference": true, "range": true, "doctor": true,
	"collected": true, "lab": true, "page": true, "years": true,
}

// recognizedLabels are the label synonyms already handled by patientRules.
var recognizedLabels = map[string]bool{
	"name": true, "patient name": true, "patient": true, "age": true,
	"gender": true, "sex": true, "date": true, "patient id": true,
	"id": true, "uhid": true,
}

var (
	vocabularyRe   = regexp.MustCompile(`(?i)` + testVocabulary)
	vocabularyWord = regexp.MustCompile(`(?i)^(?:` + testVocabulary + `)$`)
)

const maxFreeFormWords = 6

// Extract pulls patient information and lab test results out of normalized text.
func Extract(text string) (PatientInfo, []TestResult) {
	candidates := extractTestCandidates(text)
	return extractPatientInfo(text, candidates), dedupe(candidates)
}

// ExtractPatientInfo returns the patient fields found in text.
func ExtractPatientInfo(text string) PatientInfo {
	return extractPatientInfo(text, extractTestCandidates(text))
}

// ExtractTestResults returns tests in text order, one per distinct name.
// Later readings of a name already seen are dropped even when their values differ.
func ExtractTestResults(text string) []TestResult {
	return dedupe(extractTestCandidates(text))
}

func extractPatientInfo(text string, tests []candidate) PatientInfo {
	info := PatientInfo{}
	for _, rule := range patientRules {
		if _, done := info[rule.field]; done {
			continue
		}
		if v := rule.match(text); v != "" {
			info[rule.field] = v
		}
	}
	for label, value := range extractFreeForm(text, tests) {
		if _, taken := info[label]; !taken {
			info[label] = value
		}
	}
	return info
}

// cleanName cuts a captured name at the first word that starts another field
// or a test, e.g. "John Doe Age" -> "John Doe".
func cleanName(g []string) string {
	words := strings.Fields(g[1])
	for i, w := range words {
		if labelWords[strings.ToLower(w)] || vocabularyWord.MatchString(w) {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

func hasLabelWord(name string) bool {
	for _, w := range strings.Fields(name) {
		if labelWords[strings.ToLower(w)] {
			return true
		}
	}
	return false
}

func extractTestCandidates(text string) []candidate {
	var accepted []candidate
	for _, rule := range testRules {
		for _, idx := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			c := candidate{
				start: idx[2],
				end:   idx[1],
				result: TestResult{
					Name:   collapseSpaces(group(text, idx, 1)),
					Value:  group(text, idx, 2),
					Unit:   group(text, idx, 3),
					Range:  strings.TrimSpace(group(text, idx, 4)),
					Status: StatusUnknown,
				},
			}
			if c.result.Name == "" || rule.exclude(c.result.Name) || overlapsAny(c.start, c.end, accepted) {
				continue
			}
			accepted = append(accepted, c)
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	return accepted
}

func dedupe(candidates []candidate) []TestResult {
	seen := make(map[string]bool, len(candidates))
	tests := make([]TestResult, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.result.Name] {
			continue
		}
		seen[c.result.Name] = true
		tests = append(tests, c.result)
	}
	return tests
}

// extractFreeForm collects "Label: value" pairs that no other rule claims.
// A value runs until the next label, the next test or the end of the page.
func extractFreeForm(text string, tests []candidate) map[string]string {
	fields := map[string]string{}
	labels := freeFormLabel.FindAllStringSubmatchIndex(text, -1)
	for i, idx := range labels {
		label := collapseSpaces(text[idx[2]:idx[3]])
		key := strings.ToLower(label)
		words := strings.Fields(key)
		// "Doe Age:" is the tail of a name followed by a known label
		if recognizedLabels[key] || labelWords[words[len(words)-1]] ||
			vocabularyRe.MatchString(label) || overlapsAny(idx[0], idx[1], tests) {
			continue
		}

		end := len(text)
		if i+1 < len(labels) {
			end = labels[i+1][0]
		}
		for _, c := range tests {
			if c.start >= idx[1] && c.start < end {
				end = c.start
				break
			}
		}
		if br := strings.Index(text[idx[1]:end], "---"); br >= 0 {
			end = idx[1] + br
		}

		value := firstWords(text[idx[1]:end], maxFreeFormWords)
		value = strings.TrimRight(value, " ,;:-")
		if value == "" {
			continue
		}
		if _, exists := fields[label]; !exists {
			fields[label] = value
		}
	}
	return fields
}

func overlapsAny(start, end int, accepted []candidate) bool {
	for _, c := range accepted {
		if start < c.end && c.start < end {
			return true
		}
	}
	return false
}

func group(text string, idx []int, n int) string {
	if 2*n+1 >= len(idx) || idx[2*n] < 0 {
		return ""
	}
	return text[idx[2*n]:idx[2*n+1]]
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
