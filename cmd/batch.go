package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intel/internal/catalog"
	"github.com/sells-group/lead-intel/internal/export"
	"github.com/sells-group/lead-intel/internal/intake"
	"github.com/sells-group/lead-intel/internal/model"
	"github.com/sells-group/lead-intel/internal/pipeline"
	"github.com/sells-group/lead-intel/internal/store"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Score a file of signals (.jsonl, .json, .csv, .xlsx)",
	Long: `Read signals from a file, score and classify each one and store the
resulting leads. Inputs without a product code get inferred products.

Examples:
  # Score and store a CSV export
  batch signals.csv

  # Preview an Excel sheet without writing to the database
  batch leads.xlsx --sheet Signals --dry-run --format json

Sending SIGHUP reloads the product catalog from catalog.path. Inputs not
yet scored use the new rules; a catalog that fails to load is ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.Bool("dry-run", false, "score without storing leads")
	f.Int("concurrency", 0, "max concurrent inputs (overrides batch.max_concurrent)")
	f.String("sheet", "", "xlsx sheet name (default: first sheet)")
	f.Int("skip-rows", 0, "xlsx rows to skip before the header")
	f.String("format", "", "also print scored leads as csv, xlsx or json")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if concurrency, _ := cmd.Flags().GetInt("concurrency"); concurrency > 0 {
		cfg.Batch.MaxConcurrent = concurrency
	}
	if err := cfg.Validate("batch"); err != nil {
		return err
	}

	var format export.Format
	if s, _ := cmd.Flags().GetString("format"); s != "" {
		f, err := export.ParseFormat(s)
		if err != nil {
			return err
		}
		format = f
	}

	inputs, err := readBatchInputs(cmd, args[0])
	if err != nil {
		return err
	}

	var st store.Store
	if !dryRun {
		st, err = openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
	}

	p, err := initPipeline(st)
	if err != nil {
		return err
	}

	go watchCatalogReload(ctx, p.Rules(), cfg.Catalog.Path)

	res, err := p.RunBatch(ctx, inputs)
	if err != nil {
		return err
	}

	if format != "" {
		return export.Write(cmd.OutOrStdout(), format, res.Leads)
	}
	formatBatchResult(cmd.OutOrStdout(), len(inputs), res)
	return nil
}

// watchCatalogReload reloads the catalog on SIGHUP until ctx is done.
func watchCatalogReload(ctx context.Context, rules *catalog.Holder, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			_ = reloadCatalog(rules, path)
		}
	}
}

// reloadCatalog installs the catalog at path. On error the current catalog
// stays in effect.
func reloadCatalog(rules *catalog.Holder, path string) error {
	prev := rules.Current()
	c, err := rules.Reload(path)
	if err != nil {
		zap.L().Error("catalog reload failed, keeping current rules",
			zap.String("path", path),
			zap.String("version", prev.Version()),
			zap.Error(err),
		)
		return err
	}
	zap.L().Info("catalog reloaded",
		zap.String("path", path),
		zap.String("previous_version", prev.Version()),
		zap.String("version", c.Version()),
		zap.Int("products", c.Len()),
	)
	return nil
}

func readBatchInputs(cmd *cobra.Command, path string) ([]model.LeadInput, error) {
	fileFormat, err := intake.DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var inputs []model.LeadInput
	if fileFormat == intake.FormatXLSX {
		sheet, _ := cmd.Flags().GetString("sheet")
		skip, _ := cmd.Flags().GetInt("skip-rows")
		inputs, err = intake.ReadXLSX(path, intake.XLSXOptions{SheetName: sheet, SkipRows: skip})
	} else {
		inputs, err = intake.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	zap.L().Info("batch inputs loaded",
		zap.String("path", path),
		zap.String("format", string(fileFormat)),
		zap.Int("inputs", len(inputs)),
	)
	return inputs, nil
}

// formatBatchResult writes the batch summary and per-input errors to w.
func formatBatchResult(out io.Writer, inputs int, res *pipeline.BatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Inputs:\t%d\n", inputs)
	_, _ = fmt.Fprintf(w, "Succeeded:\t%d\n", res.Succeeded)
	_, _ = fmt.Fprintf(w, "Skipped (no product):\t%d\n", res.Skipped)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", res.Failed)
	_, _ = fmt.Fprintf(w, "Leads:\t%d\n", len(res.Leads))

	counts := pipeline.StatusCounts(res.Leads)
	for _, s := range model.AllLeadStatuses {
		if n := counts[s]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", s, n)
		}
	}

	for _, e := range res.Errors {
		_, _ = fmt.Fprintf(w, "#%d\t%s\t%s\n", e.Index+1, e.Company, e.Message)
	}
	_ = w.Flush()
}
