package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/size-analysis/internal/service"
	"github.com/size-analysis/pkg/telemetry"
)

var (
	// Serve command flags
	addr       string
	storageDir string
	historyDB  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the viewer protocol",
	Long: `Start an HTTP server that runs tree builds for viewers.

Each websocket connection on /ws gets its own session: load requests are
debounced so only the newest one runs, progress snapshots stream back while
the input is read, and open requests expand nodes of the current tree.

Also served:
  POST /api/upload   keep a size stream in object storage
  GET  /api/loads    recent loads (requires --history or database config)
  GET  /metrics      Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Serve on the default port with uploads kept in ./storage
  ` + binName + ` serve

  # Record load history in a sqlite file
  ` + binName + ` serve --addr :9090 --history ./loads.db

  # Use a configuration file
  ` + binName + ` serve -c ./config.yaml`

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&storageDir, "storage-dir", "", "Local directory for uploads (overrides config)")
	serveCmd.Flags().StringVar(&historyDB, "history", "", "Record load history in this sqlite file")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if storageDir != "" {
		cfg.Storage.Type = "local"
		cfg.Storage.LocalPath = storageDir
	}
	if historyDB != "" {
		cfg.Database.Enabled = true
		cfg.Database.Type = "sqlite"
		cfg.Database.Path = historyDB
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.WithServiceVersion(Version))
	if err != nil {
		log.Warn("Failed to initialize telemetry: %v", err)
	}
	defer shutdown(context.Background())

	svc, err := service.New(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Initialize(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	log.Info("Serving viewers at http://%s (Ctrl+C to stop)", cfg.Server.Addr)
	return svc.Run(ctx)
}
