package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tbernier/docroute/internal/cli"
	"github.com/tbernier/docroute/internal/model"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Process every document already sitting in the inbox",
		Long: `One-shot batch mode: route all eligible files currently in the inbox
and exit. Useful for backlogs accumulated while the daemon was down.`,
		RunE: runScan,
	}

	cmd.Flags().Bool("dry-run", false, "Report destinations without moving anything")
	_ = viper.BindPFlag("scan.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

var scanExtensions = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".tif": {}, ".tiff": {},
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dryRun := viper.GetBool("scan.dry_run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := eligibleFiles(cfg.Inbox, cfg.ExcludePatterns, cfg.MinFileSize)
	if err != nil {
		return fmt.Errorf("failed to list inbox: %w", err)
	}
	if len(files) == 0 {
		fmt.Println(cli.Subtle("inbox is empty, nothing to do"))
		return nil
	}

	journal, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = journal.Close()
	}()

	p := buildPipeline(cfg, journal)

	bar := progressbar.Default(int64(len(files)), "routing")
	counts := make(map[model.Route]int)

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		if dryRun {
			result := p.Preview(ctx, path)
			counts[result.Route]++
		} else {
			result := p.ProcessFile(ctx, path)
			counts[result.Route]++
		}
		_ = bar.Add(1)
	}

	fmt.Println()
	fmt.Printf("%s %d classified, %d to review, %d failed\n",
		cli.FormatSuccess("done:"),
		counts[model.RouteClassified],
		counts[model.RouteNeedsReview],
		counts[model.RouteFailed])
	return nil
}

// eligibleFiles mirrors the watcher's exclusion rules for one-shot mode.
func eligibleFiles(inbox string, excludePatterns []string, minSize int64) ([]string, error) {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := scanExtensions[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		excluded := false
		for _, pattern := range excludePatterns {
			if ok, matchErr := filepath.Match(pattern, e.Name()); matchErr == nil && ok {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil || info.Size() < minSize {
			continue
		}
		files = append(files, filepath.Join(inbox, e.Name()))
	}
	return files, nil
}
