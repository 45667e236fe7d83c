package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/size-analysis/internal/service"
	"github.com/size-analysis/pkg/config"
	"github.com/size-analysis/pkg/telemetry"
	"github.com/size-analysis/pkg/utils"
)

// Version information (injected by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Command line flags
var (
	configPath string
	envFile    string
	verbose    bool
)

// binName returns the base name of the current executable
func binName() string {
	return filepath.Base(os.Args[0])
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "size-viewer-server",
	Short: "The size viewer service",
	Long: `size-viewer-server runs the size viewer backend: websocket tree builds,
uploads into object storage, load history and metrics, all configured from
a YAML file with SIZEVIEW_* environment overrides.`,
	SilenceUsage: true,
	RunE:         runService,
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s version %s\n", binName(), Version)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Go Version: %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	bin := binName()
	rootCmd.Example = `  # Start service with config file
  ` + bin + ` -c /etc/size-viewer/config.yaml

  # Override the listen address from the environment
  SIZEVIEW_SERVER_ADDR=:9090 ` + bin + ` -c ./config.yaml

  # Start with verbose output
  ` + bin + ` -c ./config.yaml -v`

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")

	rootCmd.AddCommand(versionCmd)
}

func newLogger(cfg *config.Config) (utils.Logger, error) {
	level := utils.ParseLogLevel(cfg.Log.Level)
	if verbose {
		level = utils.LevelDebug
	}

	logger := utils.NewDefaultLogger(level, os.Stdout)
	if cfg.Log.OutputPath != "" {
		fileLogger, err := utils.NewFileLogger(level, cfg.Log.OutputPath)
		if err != nil {
			return nil, err
		}
		logger = fileLogger
	}
	return logger.SetFormat(utils.LogFormat(cfg.Log.Format)), nil
}

func runService(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	utils.SetGlobalLogger(logger)

	logger.Info("Starting size-viewer service...")
	logger.Info("Version: %s, Commit: %s, Built: %s", Version, GitCommit, BuildTime)
	logger.Info("Listen address: %s", cfg.Server.Addr)
	logger.Info("Storage: %s", cfg.Storage.Type)
	if cfg.Database.Enabled {
		logger.Info("Load history: %s", cfg.Database.Type)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.WithServiceVersion(Version))
	if err != nil {
		logger.Warn("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces: %v", err)
		}
	}()

	svc, err := service.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	runErr := svc.Run(ctx)
	if err := svc.Stop(); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}
	if runErr != nil {
		return fmt.Errorf("server error: %w", runErr)
	}
	logger.Info("Service stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
