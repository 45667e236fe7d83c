package cmd

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/size-analysis/pkg/config"
	"github.com/size-analysis/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string
	logger     utils.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "size-viewer",
	Short: "Build and browse binary size trees",
	Long: `size-viewer builds hierarchical size trees from newline-delimited size
streams (one metadata line followed by one line per source file) and serves
them to the viewer over a websocket.

Inputs may be local files, http(s) URLs, storage:// keys in the configured
object store, or "-" for stdin. gzip and zstd inputs are detected
automatically.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine.
		_ = godotenv.Load()

		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stderr)
		utils.SetGlobalLogger(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	binName := BinName()
	rootCmd.Example = `  # Build a tree and print its top two levels
  ` + binName + ` build -i ./chrome.ndjson --depth 2

  # Group by component, keep symbols of at least 1 KiB, write gzip
  ` + binName + ` build -i ./chrome.ndjson.gz --options "group_by=component&min_size=1024" -o tree.json.gz

  # Serve the viewer protocol
  ` + binName + ` serve --addr :8080`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return utils.OrNull(logger)
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

// loadConfig reads --config, falling back to defaults and environment.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
