// Package report renders a review as a plain-text document.
//
// Rendering is a pure function of the review and Options: nothing reads the
// wall clock, and the same input always yields byte-identical output.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joescharf/crv/internal/models"
)

// Title heads every report.
const Title = "AI-POWERED CODE REVIEW REPORT"

// TimeLayout formats the generation time.
const TimeLayout = "2006-01-02 15:04:05 MST"

// Options parameterize a report.
type Options struct {
	// GeneratedAt is stamped in the header. Zero renders as N/A.
	GeneratedAt time.Time
	// IncludeCode appends Code verbatim. Only in-session exports set it.
	IncludeCode bool
	Code        string
}

type section struct {
	title string
	items []string
}

// Render writes the report for r to w.
func Render(w io.Writer, r models.Review, opts Options) error {
	ew := &errWriter{w: w}

	ew.heading(Title, "=")
	generated := "N/A"
	if !opts.GeneratedAt.IsZero() {
		generated = opts.GeneratedAt.Format(TimeLayout)
	}
	ew.printf("Generated: %s\n", generated)
	ew.printf("AI Provider: %s\n", orNA(r.AIProvider))
	ew.printf("File: %s\n", orNA(r.FileName))

	if r.Summary != "" {
		ew.println("")
		ew.heading("SUMMARY", "-")
		ew.println(r.Summary)
	}

	ew.println("")
	ew.heading("STATISTICS", "-")
	ew.printf("Total Issues: %d\n", r.IssueCount())
	ew.printf("Errors: %d\n", len(r.Errors))
	ew.printf("Warnings: %d\n", len(r.Warnings))
	ew.printf("Suggestions: %d\n", len(r.Suggestions))
	ew.printf("Good Practices: %d\n", len(r.GoodPractices))

	for _, s := range []section{
		{"ERRORS", r.Errors},
		{"WARNINGS", r.Warnings},
		{"SUGGESTIONS", r.Suggestions},
		{"GOOD PRACTICES", r.GoodPractices},
	} {
		if len(s.items) == 0 {
			continue
		}
		ew.println("")
		ew.heading(s.title, "-")
		for i, item := range s.items {
			ew.printf("%d. %s\n", i+1, item)
		}
	}

	if opts.IncludeCode {
		ew.println("")
		ew.heading("ORIGINAL CODE", "-")
		ew.printf("%s", opts.Code)
		if !strings.HasSuffix(opts.Code, "\n") {
			ew.println("")
		}
	}

	return ew.err
}

// Generate returns the report for r as a string.
func Generate(r models.Review, opts Options) string {
	var sb strings.Builder
	_ = Render(&sb, r, opts)
	return sb.String()
}

// FileName is the download name for a review's report.
func FileName(id string) string {
	if id == "" {
		id = "report"
	}
	return fmt.Sprintf("code-review-%s.txt", sanitize(id))
}

// WriteFile renders r into dir under FileName and returns the path.
func WriteFile(dir string, r models.Review, opts Options) (string, error) {
	return Save(dir, FileName(r.ID), Generate(r, opts))
}

// Save writes an already rendered document into dir and returns the path.
func Save(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// sanitize keeps ids from escaping the export directory.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, id)
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func (ew *errWriter) heading(title, underline string) {
	ew.println(title)
	ew.println(strings.Repeat(underline, len(title)))
}
