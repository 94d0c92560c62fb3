package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/logkn/poemprobe/internal/completion"
	"github.com/logkn/poemprobe/internal/config"
	"github.com/logkn/poemprobe/internal/mockserver"
	"github.com/logkn/poemprobe/internal/provider"
	"github.com/logkn/poemprobe/internal/schema"
	"github.com/logkn/poemprobe/internal/utils"
)

func newRootCommand() *cobra.Command {
	cfg := config.Default()
	var logger *slog.Logger

	rootCmd := &cobra.Command{
		Use:          "poemprobe",
		Short:        "Ask a chat model for a short poem on OpenTelemetry and print it",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			if err := config.ApplyEnv(cmd.Flags(), nil); err != nil {
				return err
			}
			logger = utils.SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p := provider.NewOpenAIProvider(provider.Options{
				BaseURL: cfg.BaseURL,
				APIKey:  cfg.APIKey,
				Logger:  logger,
			})
			return completion.Invoke(cmd.Context(), p, cmd.OutOrStdout(), cfg.Model)
		},
	}
	cfg.BindLogFlags(rootCmd.PersistentFlags())
	cfg.BindProbeFlags(rootCmd.Flags())

	mockCmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve a canned /v1/chat/completions endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveMock(ctx, mockserver.New(cfg.ListenAddr, mockserver.WithLogger(logger)), logger, cfg.ListenAddr)
		},
	}
	cfg.BindServerFlags(mockCmd.Flags())

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the request and response shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := schema.Dumps(schema.Document())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	rootCmd.AddCommand(mockCmd, schemaCmd)
	return rootCmd
}

// serveMock runs srv until ctx is cancelled, then shuts it down.
func serveMock(ctx context.Context, srv *mockserver.Server, logger *slog.Logger, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock server listening", "addr", addr)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mock server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down mock server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mock server shutdown: %w", err)
	}
	return nil
}
