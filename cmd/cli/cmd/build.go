package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/size-analysis/internal/options"
	"github.com/size-analysis/internal/parser"
	"github.com/size-analysis/internal/parser/ndjson"
	"github.com/size-analysis/internal/sizetree"
	"github.com/size-analysis/internal/storage"
	"github.com/size-analysis/pkg/compression"
	"github.com/size-analysis/pkg/config"
	"github.com/size-analysis/pkg/model"
	"github.com/size-analysis/pkg/utils"
	"github.com/size-analysis/pkg/writer"
)

var (
	// Build command flags
	inputPath    string
	outputPath   string
	buildOpts    string
	depth        int
	compressWith string
	pretty       bool
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a size tree from a size stream",
	Long: `Build reads a size stream, builds the symbol tree with the given options
and writes the formatted tree as JSON.

Options use the viewer's query syntax:
  group_by=component    group by component instead of source path
  method_count          count dex methods instead of bytes
  min_size=N            drop symbols smaller than N bytes
  include=RE exclude=RE keep or drop symbols by full name
  type=tdr              keep only these symbol types
  flag_filter=hot       keep only symbols with this flag

--depth limits how many levels below the root are expanded; -1 expands the
whole tree.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	binName := BinName()
	buildCmd.Example = `  # Print the top level of a tree
  ` + binName + ` build -i ./size.ndjson

  # Read from stdin and write the full tree with zstd
  cat size.ndjson | ` + binName + ` build -i - --depth -1 -o tree.json.zst

  # Method counts from an object store key
  ` + binName + ` build -c config.yaml -i storage://builds/42/size.ndjson.gz --options method_count`

	buildCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input size stream: path, URL, storage:// key or - for stdin (required)")
	buildCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file, - for stdout")
	buildCmd.Flags().StringVar(&buildOpts, "options", "", "Build options query string")
	buildCmd.Flags().IntVar(&depth, "depth", 1, "Levels to expand below the root, -1 for all")
	buildCmd.Flags().StringVar(&compressWith, "compress", "", "Output compression: none, gzip or zstd (default: from output extension)")
	buildCmd.Flags().BoolVar(&pretty, "pretty", false, "Indent JSON output")
	buildCmd.MarkFlagRequired("input")
}

func runBuild(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	src, err := openInput(inputPath, cfg, cmd.InOrStdin())
	if err != nil {
		return err
	}

	opts := options.Parse(buildOpts)
	for _, w := range opts.Warnings {
		log.Warn("options: %s", w)
	}

	log.Info("Building %s (options: %s)", src.Key(), opts)
	b, err := buildTree(ctx, src, opts, cfg.Build.ChunkSize, log)
	if err != nil {
		return err
	}
	log.Info("Built %d file entries, %d symbols, root size %.0f", b.FileEntries(), b.Leaves(), b.Root().Size())

	ct, err := outputCompression(compressWith, outputPath)
	if err != nil {
		return err
	}
	w := writer.NewCompressedJSONWriter[*model.TreeNode](ct, compression.LevelDefault)
	if pretty {
		w.Indent = "  "
	}

	root := b.Format(b.Root(), expandDepth(depth))
	var res *writer.WriteResult
	if outputPath == "-" {
		res, err = w.Write(root, cmd.OutOrStdout())
	} else {
		res, err = w.WriteToFile(root, outputPath)
	}
	if err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}
	if ct != compression.TypeNone {
		log.Info("Wrote %d bytes (%s, %.1f%% of %d)", res.CompressedSize, ct, res.Ratio()*100, res.JSONSize)
	} else {
		log.Debug("Wrote %d bytes", res.JSONSize)
	}
	return nil
}

// openInput resolves input to a source. Storage inputs open the configured
// object store.
func openInput(input string, cfg *config.Config, stdin io.Reader) (ndjson.Source, error) {
	if input == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return ndjson.NewBlobSource(data), nil
	}

	var store storage.Storage
	if ndjson.IsStorageInput(input) {
		s, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		store = s
	}
	return ndjson.Resolve(input, store, http.DefaultClient)
}

// buildTree streams src into a finished builder.
func buildTree(ctx context.Context, src ndjson.Source, opts *options.BuildOptions, chunkSize int, log utils.Logger) (*sizetree.Builder, error) {
	dec := ndjson.NewDecoder(src, ndjson.WithChunkSize(chunkSize), ndjson.WithLogger(log))

	var (
		b        *sizetree.Builder
		diffMode bool
	)
	_, err := parser.Decode(ctx, dec, parser.HandlerFuncs{
		Meta: func(meta *model.Meta) error {
			b = sizetree.NewBuilder(sizetree.ConfigFromOptions(opts, meta))
			diffMode = meta.DiffMode
			return nil
		},
		FileEntry: func(fe *model.FileEntry) error {
			return b.AddFileEntry(fe, diffMode)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", src.Key(), err)
	}
	b.Build()
	return b, nil
}

// outputCompression picks the explicit compression, else the one implied
// by the output file extension.
func outputCompression(explicit, output string) (compression.Type, error) {
	if explicit != "" {
		return compression.ParseType(explicit)
	}
	if output == "-" {
		return compression.TypeNone, nil
	}
	t, err := compression.ParseType(filepath.Ext(output))
	if err != nil {
		return compression.TypeNone, nil
	}
	return t, nil
}

func expandDepth(d int) int {
	if d < 0 {
		return math.MaxInt32
	}
	return d
}
