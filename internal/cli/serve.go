package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eunmann/agesplit/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve split requests over HTTP",
		Long: `Serve accepts multipart uploads on POST /split (zip response) and
POST /summary (JSON response). Flags set the defaults that form fields
date_column, chunk_size, delimiter, output_delimiter, prefix, reference
and keep_age override per request.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	addRunFlags(cmd.Flags())
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	// Fail at startup on a bad base configuration.
	if _, err := cfg.Pipeline(time.Now(), nil); err != nil {
		return err
	}
	budget, err := cfg.Budget()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(*cfg, budget).ListenAndServe(ctx, cfg.Serve.Addr)
}
