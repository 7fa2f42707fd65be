package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joescharf/crv/internal/output"
	"github.com/joescharf/crv/internal/report"
)

var (
	reviewProvider string
	reviewFileName string
	reviewExport   string
	reviewShowCode bool
	reviewJSON     bool
)

// stdin is replaceable in tests.
var stdin io.Reader = os.Stdin

var reviewCmd = &cobra.Command{
	Use:   "review FILE",
	Short: "Submit a file for AI code review",
	Long: `Submit a source file to the review service and print the findings.

Use "-" to read the code from stdin. The provider defaults to the
defaultProvider setting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context(), args[0])
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewProvider, "provider", "p", "", "AI provider (see 'crv providers')")
	reviewCmd.Flags().StringVar(&reviewFileName, "file-name", "", "File name to report (defaults to FILE's base name)")
	reviewCmd.Flags().StringVarP(&reviewExport, "export", "e", "", "Write the report to this directory")
	reviewCmd.Flags().BoolVar(&reviewShowCode, "show-code", false, "Print the submitted code with syntax highlighting")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Print the review as JSON")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	code, name, err := readSource(path)
	if err != nil {
		return err
	}
	if reviewFileName != "" {
		name = reviewFileName
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	a.session.SetCode(code)
	a.session.SetFileName(name)
	if reviewProvider != "" {
		a.session.SetProvider(reviewProvider)
	}
	provider := a.session.Snapshot().Provider

	if reviewShowCode && !reviewJSON {
		if lang := output.Language(name, code); lang != "" {
			ui.VerboseLog("Language: %s", lang)
		}
		if err := output.Highlight(ui.Out, name, code, a.prefs.Theme); err != nil {
			return err
		}
		fmt.Fprintln(ui.Out)
	}

	ui.VerboseLog("Submitting %s to %s", displayName(name), provider)
	rev, err := a.session.Submit(ctx)
	if err != nil {
		return err
	}

	if reviewJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rev); err != nil {
			return err
		}
	} else {
		ui.PrintReview(rev)
	}

	if reviewExport != "" {
		exp, err := a.session.ExportCurrent()
		if err != nil {
			return err
		}
		out, err := report.Save(reviewExport, exp.FileName, exp.Content)
		if err != nil {
			return err
		}
		ui.Success("Report written to %s", out)
	}
	return nil
}

// readSource reads code from path, or from stdin when path is "-".
func readSource(path string) (code, name string, err error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), filepath.Base(path), nil
}

func displayName(name string) string {
	if name == "" {
		return "code"
	}
	return name
}
