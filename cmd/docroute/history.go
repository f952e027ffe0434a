package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tbernier/docroute/internal/cli"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently routed documents",
		Long: `List the most recent routing journal entries: where each document
went and why. The journal is informational; deleting it never affects
routing behavior.`,
		RunE: runHistory,
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	_ = viper.BindPFlag("history.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit := viper.GetInt("history.limit")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	journal, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = journal.Close()
	}()

	outcomes, err := journal.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Println(cli.Subtle("journal is empty"))
		return nil
	}

	fmt.Println(cli.TitleStyle.Render("Recent routing outcomes"))
	for _, o := range outcomes {
		fmt.Printf("%s  %s  %s",
			cli.Subtle(o.ProcessedAt.Local().Format("2006-01-02 15:04:05")),
			cli.FormatRoute(o.Route),
			o.SourcePath)
		if o.Destination != "" {
			fmt.Printf(" → %s", o.Destination)
		}
		if o.Reason != "" {
			fmt.Printf("  %s", cli.Subtle("("+o.Reason+")"))
		}
		fmt.Println()
	}

	counts, err := journal.CountByRoute(ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(cli.Subtle(fmt.Sprintf("totals: %d classified, %d review, %d failed",
		counts["CLASSIFIED"], counts["NEEDS_REVIEW"], counts["FAILED"])))
	return nil
}
