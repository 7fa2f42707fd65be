package output

import (
	"fmt"
	"strings"

	"github.com/joescharf/crv/internal/models"
)

const timeLayout = "2006-01-02 15:04"

// ReviewTable prints one row per review.
func (u *UI) ReviewTable(reviews []models.Review) error {
	table := u.Table([]string{"ID", "PROVIDER", "FILE", "ISSUES", "TIME", "SUMMARY"})
	for _, r := range reviews {
		issues := IssueColor(r.IssueCount(), len(r.Errors))
		if !r.Success {
			issues = red("failed")
		}
		if err := table.Append([]string{
			r.ID,
			r.AIProvider,
			orDash(r.FileName),
			issues,
			formatTime(r),
			truncate(firstLine(r.Summary), 60),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintReview prints a review's findings grouped by category.
func (u *UI) PrintReview(r models.Review) {
	fmt.Fprintf(u.Out, "%s %s\n", cyan("Review"), r.ID)
	fmt.Fprintf(u.Out, "  Provider: %s\n", r.AIProvider)
	fmt.Fprintf(u.Out, "  File:     %s\n", orDash(r.FileName))
	fmt.Fprintf(u.Out, "  Time:     %s\n", formatTime(r))
	if !r.Success {
		fmt.Fprintf(u.Out, "  Status:   %s\n", red("failed"))
		if r.ErrorMessage != "" {
			fmt.Fprintf(u.Out, "  Error:    %s\n", r.ErrorMessage)
		}
		return
	}
	fmt.Fprintf(u.Out, "  Issues:   %s (%d errors, %d warnings, %d suggestions)\n",
		IssueColor(r.IssueCount(), len(r.Errors)), len(r.Errors), len(r.Warnings), len(r.Suggestions))

	if r.Summary != "" {
		fmt.Fprintf(u.Out, "\n%s\n", r.Summary)
	}
	u.findings("Errors", red, r.Errors)
	u.findings("Warnings", yellow, r.Warnings)
	u.findings("Suggestions", cyan, r.Suggestions)
	u.findings("Good practices", green, r.GoodPractices)
}

// PrintStatistics prints aggregate counts and the per-provider breakdown.
func (u *UI) PrintStatistics(s models.Statistics) error {
	fmt.Fprintf(u.Out, "Reviews:        %d (%d completed, %d failed)\n", s.TotalReviews, s.CompletedReviews, s.FailedReviews)
	fmt.Fprintf(u.Out, "Total issues:   %d\n", s.TotalIssues)
	fmt.Fprintf(u.Out, "Errors:         %s\n", red(fmt.Sprint(s.Errors)))
	fmt.Fprintf(u.Out, "Warnings:       %s\n", yellow(fmt.Sprint(s.Warnings)))
	fmt.Fprintf(u.Out, "Suggestions:    %s\n", cyan(fmt.Sprint(s.Suggestions)))
	fmt.Fprintf(u.Out, "Good practices: %s\n", green(fmt.Sprint(s.GoodPractices)))
	if len(s.Providers) == 0 {
		return nil
	}

	fmt.Fprintln(u.Out)
	table := u.Table([]string{"PROVIDER", "REVIEWS", "ISSUES"})
	for _, p := range s.Providers {
		if err := table.Append([]string{p.Provider, fmt.Sprint(p.Reviews), fmt.Sprint(p.TotalIssues)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func (u *UI) findings(title string, paint func(a ...any) string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(u.Out, "\n%s\n", paint(title))
	for i, item := range items {
		fmt.Fprintf(u.Out, "  %d. %s\n", i+1, item)
	}
}

func formatTime(r models.Review) string {
	if r.ReviewTime.IsZero() {
		return "-"
	}
	return r.ReviewTime.Local().Format(timeLayout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
