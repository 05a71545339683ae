package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/crmgate/internal/control"
	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/infra/rpc"
)

var (
	callData        string
	callSkipRefresh bool
)

var callCmd = &cobra.Command{
	Use:   "call METHOD PATH",
	Short: "Send one call through the gateway and print the response",
	Args:  cobra.ExactArgs(2),
	Run:   runCall,
}

func init() {
	callCmd.Flags().StringVar(&callData, "data", "", "JSON request body")
	callCmd.Flags().BoolVar(&callSkipRefresh, "skip-refresh", false, "skip the post-write refresh")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	cfg.Polling.Enabled = new(bool)
	cfg.Server.HealthPort = 0

	var body any
	if callData != "" {
		if err := json.Unmarshal([]byte(callData), &body); err != nil {
			slog.Error("Invalid --data", "error", err)
			os.Exit(1)
		}
	}

	op := rpc.NewOperation(args[0], args[1], body)
	op.SkipRefresh = callSkipRefresh

	app, err := control.NewApp(cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize gateway", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout*time.Duration(cfg.RateLimit.MaxRetries+2))
	defer cancel()
	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start gateway", "error", err)
		os.Exit(1)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	env, err := app.Gateway().Call(ctx, op)
	if err != nil {
		slog.Error("Call failed", "method", op.Method, "path", op.Path, "error", err)
		fmt.Fprintln(os.Stderr, domain.DisplayMessage(err))
		_ = app.Stop(context.Background())
		os.Exit(1)
	}
	printEnvelope(env)
}

func printEnvelope(env *domain.Envelope) {
	if len(env.Raw) > 0 {
		fmt.Println(string(env.Raw))
		return
	}
	out, _ := json.MarshalIndent(env, "", "  ")
	fmt.Println(string(out))
}
