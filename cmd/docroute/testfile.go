package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tbernier/docroute/internal/cli"
	"github.com/tbernier/docroute/internal/pipeline"
)

func testFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-file <path>",
		Short: "Run one document through the pipeline",
		Long: `Process a single file and report the classification and destination.

By default nothing is moved (dry-run); pass --apply to perform the
actual placement.

Examples:
  docroute test-file scan_001.pdf
  docroute test-file scan_001.pdf --apply
  docroute test-file scan_001.pdf --json`,
		Args: cobra.ExactArgs(1),
		RunE: runTestFile,
	}

	cmd.Flags().Bool("apply", false, "Actually move the file instead of reporting only")
	cmd.Flags().Bool("json", false, "Emit the result as JSON")

	_ = viper.BindPFlag("testfile.apply", cmd.Flags().Lookup("apply"))
	_ = viper.BindPFlag("testfile.json", cmd.Flags().Lookup("json"))

	return cmd
}

// testFileReport is the structured output of test-file.
type testFileReport struct {
	Route          string          `json:"route"`
	DryRun         bool            `json:"dry_run"`
	Reason         string          `json:"reason,omitempty"`
	Destination    string          `json:"destination,omitempty"`
	Classification testFileDetails `json:"classification"`
}

type testFileDetails struct {
	Type          string   `json:"type"`
	Confidence    float64  `json:"confidence"`
	NeedsReview   bool     `json:"needs_review"`
	DocumentDate  *string  `json:"document_date"`
	Amount        *float64 `json:"amount"`
	InvoiceNumber *string  `json:"invoice_number"`
	SupplierRaw   *string  `json:"supplier_raw"`
	Supplier      string   `json:"supplier"`
	SupplierScore float64  `json:"supplier_score"`
}

func runTestFile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	apply := viper.GetBool("testfile.apply")
	asJSON := viper.GetBool("testfile.json")

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read file: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := buildPipeline(cfg, nil)

	var result pipeline.Result
	if apply {
		result = p.ProcessFile(ctx, path)
	} else {
		result = p.Preview(ctx, path)
	}

	report := buildReport(result)
	if asJSON {
		data, marshalErr := json.MarshalIndent(report, "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("failed to encode report: %w", marshalErr)
		}
		fmt.Println(string(data))
		return nil
	}

	printReport(report, result)
	return nil
}

func buildReport(result pipeline.Result) testFileReport {
	c := result.Classification
	details := testFileDetails{
		Type:          string(c.Type),
		Confidence:    c.Confidence,
		NeedsReview:   c.NeedsReview,
		Amount:        c.Extraction.Amount,
		InvoiceNumber: c.Extraction.InvoiceNumber,
		SupplierRaw:   c.Extraction.SupplierRaw,
		Supplier:      c.Supplier.Canonical,
		SupplierScore: c.Supplier.Score,
	}
	if c.Extraction.DocumentDate != nil {
		d := c.Extraction.DocumentDate.Format("2006-01-02")
		details.DocumentDate = &d
	}

	destination := result.FinalPath
	if destination == "" && result.Decision != nil {
		destination = result.Decision.Path()
	}

	return testFileReport{
		Route:          string(result.Route),
		DryRun:         result.DryRun,
		Reason:         result.Reason,
		Destination:    destination,
		Classification: details,
	}
}

func printReport(report testFileReport, result pipeline.Result) {
	fmt.Println(cli.TitleStyle.Render("docroute test-file"))
	fmt.Printf("Route:       %s\n", cli.FormatRoute(result.Route))
	if report.DryRun {
		fmt.Println(cli.Subtle("dry-run: nothing was moved"))
	}
	if report.Destination != "" {
		fmt.Printf("Destination: %s\n", report.Destination)
	}
	if report.Reason != "" {
		fmt.Printf("Reason:      %s\n", report.Reason)
	}

	c := report.Classification
	fmt.Printf("Type:        %s (confidence %.2f)\n", c.Type, c.Confidence)
	if c.DocumentDate != nil {
		fmt.Printf("Date:        %s\n", *c.DocumentDate)
	}
	if c.Amount != nil {
		fmt.Printf("Amount:      %.2f\n", *c.Amount)
	}
	if c.InvoiceNumber != nil {
		fmt.Printf("Invoice no:  %s\n", *c.InvoiceNumber)
	}
	if c.Supplier != "" {
		fmt.Printf("Supplier:    %s (score %.2f)\n", c.Supplier, c.SupplierScore)
	} else if c.SupplierRaw != nil {
		fmt.Printf("Supplier:    %s %s\n", cli.Subtle("unresolved, raw:"), *c.SupplierRaw)
	}
}
