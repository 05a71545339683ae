package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/crmgate/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the API server and show the gateway dashboard",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	cfg.Polling.Enabled = new(bool)
	cfg.Server.HealthPort = 0

	app, err := control.NewApp(cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize gateway", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout+5*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start gateway", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	gw := app.Gateway()
	start := time.Now()
	status, probeErr := gw.Probe(ctx)
	latency := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SERVER\tREACHABLE\tLAST WRITE\tLATENCY")
	switch {
	case probeErr != nil:
		_, _ = fmt.Fprintf(w, "%s\tno (%v)\t-\t%s\n", cfg.Server.BaseURL, probeErr, latency.Round(time.Millisecond))
	case status.LastWriteTimestamp == 0:
		_, _ = fmt.Fprintf(w, "%s\tyes\t-\t%s\n", cfg.Server.BaseURL, latency.Round(time.Millisecond))
	default:
		lastWrite := time.UnixMilli(status.LastWriteTimestamp).Format(time.RFC3339)
		_, _ = fmt.Fprintf(w, "%s\tyes\t%s\t%s\n", cfg.Server.BaseURL, lastWrite, latency.Round(time.Millisecond))
	}
	_ = w.Flush()

	fmt.Println()
	fmt.Print(gw.Dashboard())
}
