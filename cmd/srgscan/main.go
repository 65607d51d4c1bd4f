package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"srgscan/app"
	"srgscan/internal/config"
	"srgscan/internal/container"
	"srgscan/internal/errors"
	"srgscan/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(errors.ExitCode(err))
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "srgscan",
		Short:         "Classify Spatially Restricted Genes in single-cell DGE matrices",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.AddCommand(
		newClassifyCmd(),
		newKneeCmd(),
	)
	return rootCmd
}

// loadContainer reads the environment configuration, applies the flags that
// were set explicitly on cmd, validates the merged result and wires the
// application.
func loadContainer(cmd *cobra.Command, apply func(*config.Config)) (*container.Container, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return container.New(cfg, cmd.ErrOrStderr(), version)
}

func newClassifyCmd() *cobra.Command {
	var (
		minCells int
		maxCells int
		zCutoff  float64
		center   bool
		autoMax  bool
		workers  int
		outDir   string
		format   string
		jsonOut  bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "classify <matrix>",
		Short: "Run the SRG pipeline and write the statistics table, hits and manifest",
		Long: `Run the SRG pipeline over a gene x cell UMI count matrix.

The matrix is CSV, TSV (.tsv, .txt, .dge, optionally .gz) or XLSX. Its first
row holds cell barcodes, every other row a gene id followed by its counts.

Example: srgscan classify sample.dge.txt.gz --max-cells 500 --out-dir results`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer(cmd, func(c *config.Config) {
				flags := cmd.Flags()
				if flags.Changed("min-cells") {
					c.Pipeline.MinCellsDetected = minCells
				}
				if flags.Changed("max-cells") {
					c.Pipeline.MaxCellsDetected = maxCells
				}
				if flags.Changed("z-cutoff") {
					c.Pipeline.ZScoreCutoff = zCutoff
				}
				if flags.Changed("center") {
					c.Pipeline.CenterResiduals = center
				}
				if flags.Changed("auto-max") {
					c.Pipeline.AutoMaxCells = autoMax
				}
				if flags.Changed("workers") {
					c.Pipeline.Workers = workers
				}
				if flags.Changed("out-dir") {
					c.Output.Dir = outDir
				}
				if flags.Changed("format") {
					c.Output.TableFormat = strings.ToLower(format)
				}
				if flags.Changed("log-level") {
					c.LogLevel = strings.ToUpper(logLevel)
				}
			})
			if err != nil {
				return err
			}

			res, err := c.SRGService.Classify(cmd.Context(), app.ClassifyRequest{
				InputPath: args[0],
				Options:   c.Config.Options(),
			})
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Manifest)
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.Describe(res))
			for _, kind := range []string{ports.ArtifactTable, ports.ArtifactHits, ports.ArtifactManifest} {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %s\n", kind, res.Outputs[kind])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&minCells, "min-cells", 2, "Drop genes detected in fewer cells (>= 2)")
	cmd.Flags().IntVar(&maxCells, "max-cells", 0, "Drop genes detected in this many cells or more (0: no cap)")
	cmd.Flags().Float64Var(&zCutoff, "z-cutoff", -1.0, "Genes with a Z-score strictly below this are SRGs")
	cmd.Flags().BoolVar(&center, "center", false, "Subtract the residual mean before computing Z-scores")
	cmd.Flags().BoolVar(&autoMax, "auto-max", false, "Apply the knee-detected max threshold when --max-cells is unset")
	cmd.Flags().IntVar(&workers, "workers", 0, "Aggregation workers (0: one per CPU)")
	cmd.Flags().StringVar(&outDir, "out-dir", "srg_out", "Directory for the table, hits.txt and manifest.json")
	cmd.Flags().StringVar(&format, "format", "tsv", "Statistics table format: csv, tsv or xlsx")
	cmd.Flags().StringVar(&logLevel, "log-level", "INFO", "ERROR, WARN, INFO, DEBUG or TRACE")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run manifest as JSON")

	return cmd
}

func newKneeCmd() *cobra.Command {
	var (
		minCells int
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "knee <matrix>",
		Short: "Suggest a max-detection threshold from the knee of the detection curve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer(cmd, func(c *config.Config) {
				if cmd.Flags().Changed("min-cells") {
					c.Pipeline.MinCellsDetected = minCells
				}
				if cmd.Flags().Changed("workers") {
					c.Pipeline.Workers = workers
				}
			})
			if err != nil {
				return err
			}

			knee, err := c.SRGService.SuggestKnee(cmd.Context(), app.KneeRequest{
				InputPath:        args[0],
				MinCellsDetected: c.Config.Pipeline.MinCellsDetected,
				Workers:          c.Config.Pipeline.Workers,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "suggested --max-cells %d (distance %.3f over %d detection counts)\n",
				knee.Threshold, knee.Distance, knee.Points)
			return nil
		},
	}

	cmd.Flags().IntVar(&minCells, "min-cells", 2, "Drop genes detected in fewer cells before the search (>= 2)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Aggregation workers (0: one per CPU)")

	return cmd
}
