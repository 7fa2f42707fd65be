package models

import (
	"strings"
	"time"
)

// DefaultProvider is the provider used when nothing else is configured or
// the service cannot be asked for its list.
const DefaultProvider = "OpenAI GPT-4"

// Review is the result of one analysis attempt, as reported by the review service.
type Review struct {
	ID            string    `json:"id,omitempty"`
	FileName      string    `json:"fileName,omitempty"`
	Code          string    `json:"code,omitempty"`
	AIProvider    string    `json:"aiProvider"`
	ReviewTime    time.Time `json:"reviewTime"`
	Summary       string    `json:"summary"`
	Errors        []string  `json:"errors"`
	Warnings      []string  `json:"warnings"`
	Suggestions   []string  `json:"suggestions"`
	GoodPractices []string  `json:"goodPractices"`
	TotalIssues   int       `json:"totalIssues"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
}

// IssueCount is the number of issues derived from the finding lists.
// Good practices are not issues.
func (r Review) IssueCount() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Suggestions)
}

// Normalize returns a well-formed copy of r. Finding lists are copied so the
// result never aliases the caller's slices, nil lists become empty, and a
// failed review carries no findings. A negative TotalIssues is treated as
// absent and replaced with IssueCount.
func (r Review) Normalize() Review {
	r.ID = strings.TrimSpace(r.ID)
	r.AIProvider = strings.TrimSpace(r.AIProvider)

	if !r.Success {
		r.Errors = []string{}
		r.Warnings = []string{}
		r.Suggestions = []string{}
		r.GoodPractices = []string{}
		r.TotalIssues = 0
		return r
	}

	r.Errors = cloneFindings(r.Errors)
	r.Warnings = cloneFindings(r.Warnings)
	r.Suggestions = cloneFindings(r.Suggestions)
	r.GoodPractices = cloneFindings(r.GoodPractices)
	if r.TotalIssues < 0 {
		r.TotalIssues = r.IssueCount()
	}
	return r
}

// Clone returns a copy of r that shares no slices with it.
func (r Review) Clone() Review {
	r.Errors = cloneFindings(r.Errors)
	r.Warnings = cloneFindings(r.Warnings)
	r.Suggestions = cloneFindings(r.Suggestions)
	r.GoodPractices = cloneFindings(r.GoodPractices)
	return r
}

func cloneFindings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
