package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/crv/internal/history"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/report"
)

var (
	historySearch   string
	historyProvider string
	historyJSON     bool
	historyRemote   bool
	historyOut      string
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"hist"},
	Short:   "Browse past reviews",
	Long: `Browse past reviews kept by the review service.

Running bare 'crv history' is the same as 'crv history list'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun(cmd.Context())
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent reviews, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun(cmd.Context())
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one review's findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyShowRun(cmd.Context(), args[0])
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over recent reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyStatsRun(cmd.Context())
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search KEYWORD",
	Short: "Search all reviews on the service by keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historySearchRun(cmd.Context(), args[0])
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a review",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyDeleteRun(cmd.Context(), args[0])
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Write a review's plain-text report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyExportRun(cmd.Context(), args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, historyListCmd} {
		c.Flags().StringVarP(&historySearch, "search", "s", "", "Only reviews whose summary or file name contains this text")
		c.Flags().StringVarP(&historyProvider, "provider", "p", history.AllProviders, `Only reviews from this provider ("all" for every provider)`)
		c.Flags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	}
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	historyStatsCmd.Flags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	historyStatsCmd.Flags().BoolVar(&historyRemote, "remote", false, "Ask the service for its statistics over all reviews")
	historySearchCmd.Flags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	historyExportCmd.Flags().StringVarP(&historyOut, "out", "o", ".", "Directory to write the report to")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyStatsCmd, historySearchCmd, historyDeleteCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadedApp wires the app and loads history. A failed load leaves an empty
// history and is reported as a warning.
func loadedApp(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.history.Load(ctx); err != nil {
		ui.Warning("Could not load review history: %v", err)
	}
	return a, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func historyListRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := loadedApp(ctx)
	if err != nil {
		return err
	}

	reviews := a.history.Filter(historySearch, historyProvider)
	if historyJSON {
		return printJSON(reviews)
	}
	if len(reviews) == 0 {
		ui.Info("No reviews found")
		return nil
	}
	return ui.ReviewTable(reviews)
}

func historyShowRun(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	rev, err := a.history.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(rev)
	}
	ui.PrintReview(rev)
	return nil
}

func historyStatsRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if historyRemote {
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		stats, err := a.router.Statistics(ctx)
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(stats)
		}
		return printServiceStatistics(stats)
	}

	a, err := loadedApp(ctx)
	if err != nil {
		return err
	}
	stats := a.history.Statistics()
	if historyJSON {
		return printJSON(stats)
	}
	return ui.PrintStatistics(stats)
}

func printServiceStatistics(stats models.ServiceStatistics) error {
	fmt.Fprintf(ui.Out, "Reviews: %d\n\n", stats.TotalReviews)
	if len(stats.Providers) == 0 {
		return nil
	}
	table := ui.Table([]string{"PROVIDER", "REVIEWS", "AVG ISSUES"})
	for _, p := range stats.Providers {
		if err := table.Append([]string{p.Provider, fmt.Sprint(p.Reviews), fmt.Sprintf("%.1f", p.AvgTotalIssues)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func historySearchRun(ctx context.Context, keyword string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	reviews, err := a.router.SearchReviews(ctx, keyword)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(reviews)
	}
	if len(reviews) == 0 {
		ui.Info("No reviews match %q", keyword)
		return nil
	}
	return ui.ReviewTable(reviews)
}

func historyDeleteRun(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	if err := a.history.Delete(ctx, id); err != nil {
		return err
	}
	ui.Success("Deleted review %s", id)
	return nil
}

func historyExportRun(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	name, doc, err := a.history.Export(ctx, id)
	if err != nil {
		return err
	}
	path, err := report.Save(historyOut, name, doc)
	if err != nil {
		return err
	}
	ui.Success("Report written to %s", path)
	return nil
}
