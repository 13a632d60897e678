// Command nlq turns natural-language analytics questions into validated,
// executed queries against an analytics engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nlq/internal/analytics"
	"nlq/internal/catalog"
	"nlq/internal/config"
	"nlq/internal/extractor"
	"nlq/internal/intent"
	"nlq/internal/pipeline"
)

var (
	cfgPath     string
	catalogPath string
	verbose     bool
	jsonOutput  bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nlq",
	Short: "Natural-language analytics queries",
	Long: `nlq parses a natural-language question into a structured intent,
validates it against a reference catalog, translates it into an analytics
query document, and executes it. Every intermediate artifact is reported.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "nlq.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "path to catalog file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON responses")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(catalogCmd)
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildPipeline assembles the orchestrator from configuration. The catalog
// is loaded once here; a failure is fatal before any request is taken.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Orchestrator, *catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}
	catalogText, err := cat.Text()
	if err != nil {
		return nil, nil, err
	}

	var client extractor.Client
	switch cfg.LLM.Provider {
	case "gemini":
		client, err = extractor.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, nil, err
		}
	default:
		client = extractor.NewOpenAIClientWithConfig(extractor.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.GetLLMTimeout(),
		})
	}
	ext := extractor.New(client, catalogText, logger)

	executor := analytics.NewClient(analytics.Config{
		BaseURL:  cfg.Analytics.BaseURL,
		APIToken: cfg.Analytics.APIToken,
		Timeout:  cfg.GetAnalyticsTimeout(),
		MaxRows:  cfg.Analytics.MaxRows,
	}, logger)

	states, err := buildStateStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	orch := pipeline.New(ext, intent.NewValidator(cat), executor, states, logger)
	return orch, cat, nil
}

// buildStateStore prefers the durable SQLite store, degrading to memory-only
// if it cannot be opened at all.
func buildStateStore(cfg *config.Config) (pipeline.StateStore, error) {
	ttl := cfg.GetStateTTL()
	memory := pipeline.NewMemoryStore(ttl)

	durable, err := pipeline.NewSQLiteStore(cfg.State.DatabasePath, ttl)
	if err != nil {
		logger.Warn("state database unavailable, clarifications will not survive restarts",
			zap.String("path", cfg.State.DatabasePath), zap.Error(err))
		return memory, nil
	}
	return pipeline.NewFallbackStore(durable, memory, logger), nil
}

// printResponse renders a pipeline response for humans or machines.
func printResponse(resp *pipeline.Response) error {
	if jsonOutput {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	switch {
	case resp.Success:
		fmt.Printf("ok (%s, %dms, %d rows)\n", resp.Stage, resp.DurationMS, len(resp.Data))
		for _, row := range resp.Data {
			line, _ := json.Marshal(row)
			fmt.Println(string(line))
		}
	case resp.Stage == pipeline.StageClarificationRequested:
		fmt.Printf("needs clarification (request_id %s)\n", resp.RequestID)
		fmt.Println(resp.ClarificationMessage)
	default:
		fmt.Printf("failed at %s: [%s] %s\n", resp.Error.Stage, resp.Error.Kind, resp.Error.Message)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
