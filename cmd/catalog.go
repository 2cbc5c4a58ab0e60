package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-intel/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate the product rule catalog",
}

// -- catalog show --

var catalogShowCmd = &cobra.Command{
	Use:   "show [code]",
	Short: "Print the catalog, or one product's rules",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := loadCatalog()
		if err != nil {
			return err
		}
		c := h.Current()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			p, ok := c.Lookup(args[0])
			if !ok {
				return eris.Errorf("unknown product %q", args[0])
			}
			return writeJSON(out, p)
		}

		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			return catalog.Encode(out, c)
		}
		formatCatalog(out, c)
		return nil
	},
}

// -- catalog validate --

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Check a catalog file without installing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog.Load(args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d products (version %s)\n", c.Len(), c.Version())
		return nil
	},
}

// -- catalog infer --

var catalogInferCmd = &cobra.Command{
	Use:   "infer <text>",
	Short: "Rank the products a piece of text points at",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}
		h, err := loadCatalog()
		if err != nil {
			return err
		}

		inferred := h.Current().Infer(strings.Join(args, " "), catalog.InferOptions{
			MinConfidence: cfg.Inference.MinConfidence,
			Limit:         cfg.Inference.MaxProducts,
		})
		formatInferences(cmd.OutOrStdout(), inferred)
		return nil
	},
}

func init() {
	catalogShowCmd.Flags().Bool("yaml", false, "print the full catalog as YAML")

	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogInferCmd)
	rootCmd.AddCommand(catalogCmd)
}

// formatCatalog writes a one-line summary per product.
func formatCatalog(out io.Writer, c *catalog.Catalog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Catalog version:\t%s\n\n", c.Version())
	_, _ = fmt.Fprintln(w, "CODE\tNAME\tBASE_RULES\tFACTORS\tNEGATIVE_KEYWORDS")
	for _, p := range c.Products() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			p.Code,
			p.Name,
			len(p.BaseConfidenceRules),
			len(p.ScoringFactors),
			strings.Join(p.NegativeKeywords, ", "),
		)
	}
	_ = w.Flush()
}

// formatInferences writes ranked product candidates.
func formatInferences(out io.Writer, inferred []catalog.Inference) {
	if len(inferred) == 0 {
		_, _ = fmt.Fprintln(out, "No products matched.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tNAME\tCONFIDENCE\tREASONING")
	for _, inf := range inferred {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", inf.Code, inf.Name, inf.Confidence, inf.Reasoning)
	}
	_ = w.Flush()
}
