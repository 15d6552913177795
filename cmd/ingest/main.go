// Command ingest is the Matchsheet offline ingestion CLI. It runs payload
// files through the same normalizer and sink as the HTTP endpoint, which is
// handy for replaying bodies captured from failed requests.
//
// Usage:
//
//	matchsheet-ingest normalize payload.json
//	matchsheet-ingest normalize --content-type application/x-www-form-urlencoded body.txt
//	matchsheet-ingest append payload.json
//	matchsheet-ingest append - < payload.json
//	matchsheet-ingest check
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/matchsheet/internal/config"
	"github.com/albapepper/matchsheet/internal/ingest"
	"github.com/albapepper/matchsheet/internal/payload"
	"github.com/albapepper/matchsheet/internal/sink"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "matchsheet-ingest",
		Short:        "Matchsheet payload ingestion CLI",
		SilenceUsage: true,
	}

	root.AddCommand(normalizeCmd())
	root.AddCommand(appendCmd())
	root.AddCommand(checkCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// normalize command
// --------------------------------------------------------------------------

func normalizeCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Print the rows a payload normalizes to, without appending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args[0], contentType)
			if err != nil {
				return err
			}
			table, err := payload.Normalize(in)
			if err != nil {
				return describeShapeError(in, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(table)
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "application/json", "Content type the body was sent with")
	return cmd
}

// --------------------------------------------------------------------------
// append command
// --------------------------------------------------------------------------

func appendCmd() *cobra.Command {
	var (
		contentType string
		tab         string
	)
	cmd := &cobra.Command{
		Use:   "append <file|->",
		Short: "Normalize a payload and append it to the configured sink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args[0], contentType)
			if err != nil {
				return err
			}
			return runWithSink(func(ctx context.Context, cfg *config.Config, appender sink.Appender) error {
				if tab == "" {
					tab = cfg.SheetName
				}
				svc := ingest.New(appender, cfg.SheetID, tab, logger)
				start := time.Now()
				updates, err := svc.Ingest(ctx, in)
				if err != nil {
					return describeShapeError(in, err)
				}
				logger.Info("Append finished",
					"range", updates.UpdatedRange,
					"rows", updates.UpdatedRows,
					"cells", updates.UpdatedCells,
					"duration", time.Since(start).Round(time.Millisecond))
				return json.NewEncoder(cmd.OutOrStdout()).Encode(updates)
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "application/json", "Content type the body was sent with")
	cmd.Flags().StringVar(&tab, "tab", "", "Target tab (defaults to SHEET_NAME)")
	return cmd
}

// --------------------------------------------------------------------------
// check command
// --------------------------------------------------------------------------

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and sink credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSink(func(ctx context.Context, cfg *config.Config, appender sink.Appender) error {
				if err := ingest.CheckSink(ctx, cfg, appender); err != nil {
					return err
				}
				logger.Info("Configuration OK",
					"driver", cfg.SinkDriver,
					"sheet_id", cfg.SheetID,
					"range", sink.RangeFor(cfg.SheetName))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runWithSink handles config loading, sink setup, and context cancellation.
func runWithSink(fn func(ctx context.Context, cfg *config.Config, appender sink.Appender) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appender, closeSink, err := ingest.OpenAppender(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer closeSink()

	return fn(ctx, cfg, appender)
}

func readInput(cmd *cobra.Command, path, contentType string) (payload.Input, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return payload.Input{}, fmt.Errorf("read payload: %w", err)
	}
	return payload.NewInput(string(data), contentType), nil
}

func describeShapeError(in payload.Input, err error) error {
	var shapeErr *payload.ShapeError
	if !errors.As(err, &shapeErr) {
		return err
	}
	return fmt.Errorf("%w (parsed as %s): %q", err, in.ParsedKind(), shapeErr.Preview)
}
