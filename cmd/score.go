package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-intel/internal/model"
	"github.com/sells-group/lead-intel/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one signal against the product catalog",
	Long: `Score a single signal and print the confidence, reasons and lead tier.

Without --product the catalog infers candidate products from the text and
each candidate is scored.

Examples:
  # Tender with explicit volume for diesel
  score --product HSD --type TENDER --has-volume \
    --text "Tender for supply of 500 KL HSD for DG sets"

  # Let the catalog pick products and store the leads
  score --type NEWS --text "Cement plant commissions new boiler" --save`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("product", "", "product code (empty = infer from text)")
	f.String("type", string(model.SignalTypeNews), "signal type (TENDER, NEWS, WEB_STORY, DIRECTORY, PROCUREMENT, EXPANSION, COMMISSIONING)")
	f.String("text", "", "signal text (required)")
	f.Bool("has-volume", false, "signal states a volume")
	f.Bool("has-capacity", false, "signal states an installed capacity")
	f.Bool("high-confidence-industry", false, "company is in a high-confidence industry")
	f.StringSlice("property", nil, "truthy feature name (repeatable)")
	f.String("company", "", "company name")
	f.String("industry", "", "company industry")
	f.String("location", "", "company location")
	f.String("source", "", "signal source name")
	f.String("source-url", "", "signal source URL")
	f.Bool("save", false, "persist the resulting leads")
	_ = scoreCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	in, err := scoreInputFromFlags(cmd)
	if err != nil {
		return err
	}

	save, _ := cmd.Flags().GetBool("save")
	var st store.Store
	if save {
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

	leads, err := p.Run(ctx, in)
	if err != nil {
		return eris.Wrap(err, "score")
	}
	return writeScoreOutput(cmd.OutOrStdout(), leads)
}

func scoreInputFromFlags(cmd *cobra.Command) (model.LeadInput, error) {
	f := cmd.Flags()
	typ, _ := f.GetString("type")
	signalType, ok := model.ParseSignalType(typ)
	if !ok {
		return model.LeadInput{}, eris.Errorf("unknown signal type %q", typ)
	}

	text, _ := f.GetString("text")
	hasVolume, _ := f.GetBool("has-volume")
	hasCapacity, _ := f.GetBool("has-capacity")
	highConf, _ := f.GetBool("high-confidence-industry")
	props, _ := f.GetStringSlice("property")
	product, _ := f.GetString("product")
	company, _ := f.GetString("company")
	industry, _ := f.GetString("industry")
	location, _ := f.GetString("location")
	source, _ := f.GetString("source")
	sourceURL, _ := f.GetString("source-url")

	var properties map[string]bool
	if len(props) > 0 {
		properties = make(map[string]bool, len(props))
		for _, p := range props {
			properties[p] = true
		}
	}

	return model.LeadInput{
		Company:     model.Company{Name: company, Industry: industry, Location: location},
		Source:      source,
		SourceURL:   sourceURL,
		ProductCode: product,
		Signal: model.Signal{
			Text:                      text,
			Type:                      signalType,
			HasVolume:                 hasVolume,
			HasCapacity:               hasCapacity,
			HasHighConfidenceIndustry: highConf,
			Properties:                properties,
		},
	}, nil
}

// scoreOutput is one scored product as printed by the score command.
type scoreOutput struct {
	LeadID      string            `json:"leadId,omitempty"`
	ProductCode string            `json:"productCode"`
	Status      model.LeadStatus  `json:"status"`
	Score       model.ScoreResult `json:"score"`
	Priority    model.Priority    `json:"priority"`
}

func writeScoreOutput(w io.Writer, leads []model.Lead) error {
	out := make([]scoreOutput, 0, len(leads))
	for _, l := range leads {
		out = append(out, scoreOutput{
			LeadID:      l.ID,
			ProductCode: l.ProductCode,
			Status:      l.Status,
			Score:       l.Score,
			Priority:    l.Priority,
		})
	}
	return writeJSON(w, out)
}
