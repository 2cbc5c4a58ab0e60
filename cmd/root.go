package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intel/internal/catalog"
	"github.com/sells-group/lead-intel/internal/config"
	"github.com/sells-group/lead-intel/internal/pipeline"
	"github.com/sells-group/lead-intel/internal/resilience"
	"github.com/sells-group/lead-intel/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lead-intel",
	Short: "Lead confidence scoring for product sales signals",
	Long:  "Scores market signals against the product rule catalog, classifies them into lead tiers and tracks the resulting leads.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadCatalog loads the configured product catalog.
func loadCatalog() (*catalog.Holder, error) {
	c, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("catalog loaded",
		zap.String("version", c.Version()),
		zap.Int("products", c.Len()),
	)
	return catalog.NewHolder(c), nil
}

func retryConfig() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = cfg.Store.WriteAttempts
	return rc
}

// initPipeline builds a pipeline from config. A nil st disables
// persistence.
func initPipeline(st store.Store) (*pipeline.Pipeline, error) {
	rules, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return pipeline.New(rules, st, pipeline.Options{
		Thresholds: cfg.Classifier,
		Inference: catalog.InferOptions{
			MinConfidence: cfg.Inference.MinConfidence,
			Limit:         cfg.Inference.MaxProducts,
		},
		MaxConcurrent: cfg.Batch.MaxConcurrent,
		RatePerSec:    cfg.Batch.RatePerSec,
		Burst:         cfg.Batch.Burst,
		Retry:         retryConfig(),
		Priority:      cfg.Priority,
	})
}
