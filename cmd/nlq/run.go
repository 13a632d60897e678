package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nlq/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [query...]",
	Short: "Run one or more natural-language queries",
	Long: `Run each query through the full pipeline and print its response.
Multiple queries execute concurrently; responses print in argument order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		orch, _, err := buildPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		responses := make([]*pipeline.Response, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(4)
		for i, query := range args {
			g.Go(func() error {
				responses[i] = orch.Run(ctx, query)
				return nil
			})
		}
		// Run never returns an error; failures live inside the responses.
		_ = g.Wait()

		exitCode := 0
		for _, resp := range responses {
			if err := printResponse(resp); err != nil {
				return err
			}
			if !resp.Success && resp.Stage != pipeline.StageClarificationRequested {
				exitCode = 1
			}
		}
		if exitCode != 0 {
			os.Exit(exitCode)
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [request-id] [answers-json]",
	Short: "Answer a clarification and continue a suspended query",
	Long: `Resume a pipeline that stopped to ask for clarification. The answers
are a JSON object keyed by the missing field names, e.g.
'{"time_range":{"window":"last_7_days"}}'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		requestID := args[0]

		var answers map[string]any
		if err := json.Unmarshal([]byte(args[1]), &answers); err != nil {
			return fmt.Errorf("answers must be a JSON object: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		orch, _, err := buildPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		resp := orch.Resume(cmd.Context(), requestID, answers)
		if err := printResponse(resp); err != nil {
			return err
		}
		if !resp.Success && resp.Stage != pipeline.StageClarificationRequested {
			os.Exit(1)
		}
		return nil
	},
}
