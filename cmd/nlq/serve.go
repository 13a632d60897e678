package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nlq/internal/catalog"
	"nlq/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query pipeline over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		orch, cat, err := buildPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: server.New(orch, cat, logger).Handler(),
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [term]",
	Short: "List the catalog vocabulary or resolve a term",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			for _, category := range catalog.Categories {
				fmt.Printf("%s:\n", category)
				for _, item := range cat.Items(category) {
					line := fmt.Sprintf("  %-30s %s", item.ID, item.Name)
					if len(item.Aliases) > 0 {
						line += " (" + strings.Join(item.Aliases, ", ") + ")"
					}
					fmt.Println(line)
				}
			}
			return nil
		}

		term := args[0]
		found := false
		for _, category := range catalog.Categories {
			result := cat.ResolveSafe(term, category)
			switch {
			case result.Ambiguous:
				found = true
				fmt.Printf("%s: ambiguous, matches", category)
				for _, m := range result.Matches {
					fmt.Printf(" %s", m.ID)
				}
				fmt.Println()
			case result.Found():
				found = true
				fmt.Printf("%s: %s (%s)\n", category, result.Match.ID, result.Match.Name)
			}
		}
		if !found {
			fmt.Printf("%q not found in any category\n", term)
		}
		return nil
	},
}
