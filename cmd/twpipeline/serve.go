package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielbelay23/data-pipelines/internal/statusapi"
	"github.com/danielbelay23/data-pipelines/pkg/ui"
)

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only status API",
	Long: `Serve the status API: /healthz, /sessions, /sessions/{id}, /gate,
/documents and /metrics.`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen-addr", "", "address to listen on (default from metrics.listen_addr or :9311)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, log, err := loadConfig(map[string]interface{}{"listen-addr": listenAddr})
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	a, err := newApp(cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		os.Exit(1)
	}
	defer a.Close()

	addr := cfg.Metrics.ListenAddr
	if addr == "" {
		addr = ":9311"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintInfo("Listening on", addr)
	if err := statusapi.Serve(ctx, addr, a.router(), log); err != nil {
		ui.PrintError("Status API failed", err.Error())
		os.Exit(1)
	}
}
