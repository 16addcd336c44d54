package domain

import (
	"encoding/json"
	"time"
)

// TestCase is one grading scenario. The zero value of every field is its default.
type TestCase struct {
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
	Description    string `json:"description"`
	// Hidden only affects presentation; grading ignores it.
	Hidden bool `json:"hidden"`
}

// TestResult is the verdict for one TestCase.
type TestResult struct {
	Passed         bool   `json:"passed"`
	ActualOutput   string `json:"actual_output"`
	ExpectedOutput string `json:"expected_output"`
	Description    string `json:"description"`
	Hidden         bool   `json:"hidden"`
	// ErrorMessage is set only when the program failed to run successfully.
	ErrorMessage string `json:"error_message"`
	TimedOut     bool   `json:"timed_out"`
}

// TestRunResults aggregates the verdicts of a whole submission, in input order.
type TestRunResults struct {
	Results     []TestResult
	PassedCount int
	TotalTests  int
}

// NewTestRunResults computes the counters from the ordered results.
func NewTestRunResults(results []TestResult) *TestRunResults {
	if results == nil {
		results = []TestResult{}
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return &TestRunResults{
		Results:     results,
		PassedCount: passed,
		TotalTests:  len(results),
	}
}

// AllPassed is true when every test passed, including the empty run.
func (r *TestRunResults) AllPassed() bool {
	return r.PassedCount == r.TotalTests
}

type testRunResultsJSON struct {
	Results     []TestResult `json:"test_results"`
	PassedCount int          `json:"passed_count"`
	TotalTests  int          `json:"total_tests"`
	AllPassed   bool         `json:"all_passed"`
}

func (r TestRunResults) MarshalJSON() ([]byte, error) {
	results := r.Results
	if results == nil {
		results = []TestResult{}
	}
	return json.Marshal(testRunResultsJSON{
		Results:     results,
		PassedCount: r.PassedCount,
		TotalTests:  r.TotalTests,
		AllPassed:   r.AllPassed(),
	})
}

// UnmarshalJSON recomputes the counters from the stored results.
func (r *TestRunResults) UnmarshalJSON(data []byte) error {
	var raw testRunResultsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = *NewTestRunResults(raw.Results)
	return nil
}

// GradeRequest is the input of a full grading run.
type GradeRequest struct {
	Code      string
	TestCases []TestCase
	DataFiles []DataFile
	Timeout   time.Duration
}
