package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the AI providers reviews can be submitted to",
	RunE: func(cmd *cobra.Command, args []string) error {
		return providersRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func providersRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	for _, p := range a.session.Providers(ctx) {
		marker := " "
		if p == a.prefs.DefaultProvider {
			marker = "*"
		}
		fmt.Fprintf(ui.Out, "%s %s\n", marker, p)
	}
	return nil
}
