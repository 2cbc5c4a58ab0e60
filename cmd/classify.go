package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-intel/internal/classifier"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <confidence>...",
	Short: "Map confidence values to lead tiers",
	Long: `Print the lead tier for each confidence value using the configured
thresholds (classifier.auto_assign_threshold, classifier.qualified_threshold).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}
		c, err := classifier.New(cfg.Classifier)
		if err != nil {
			return err
		}

		values := make([]float64, 0, len(args))
		for _, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return eris.Wrapf(err, "parse confidence %q", a)
			}
			values = append(values, v)
		}

		formatClassification(cmd.OutOrStdout(), c, values)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

// formatClassification writes one confidence/status line per value.
func formatClassification(out io.Writer, c *classifier.Classifier, values []float64) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CONFIDENCE\tSTATUS")
	for _, v := range values {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", strconv.FormatFloat(v, 'f', -1, 64), c.Classify(v))
	}
	_ = w.Flush()
}
