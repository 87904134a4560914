package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// How good our fuzzy match needs to be.
const confidence = 75

var (
	configFile string
	logLevel   string

	cfg    *Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "orderocr",
	Short: "Turn photographed order sheets into purchase orders",
	Long: `orderocr recognises tables in photos of order sheets, normalises the products
into the purchase order template, and merges several orders into one.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		cfg, err = LoadConfig(configFile)
		if err != nil {
			return err
		}

		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}

		logger, err = initLogger(level, cfg.Log.File)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		return cfg.ensureDirs()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var ocrCmd = &cobra.Command{
	Use:   "ocr",
	Short: "Recognise order sheet images into workbooks",
	RunE:  runOCR,
}

var excelCmd = &cobra.Command{
	Use:   "excel",
	Short: "Build a purchase order from a recognised workbook",
	Long: `Builds a purchase order on the template from a recognised workbook.  Without
--input the newest workbook in the output folder is used.`,
	RunE: runExcel,
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge purchase orders into one",
	RunE:  runMerge,
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run OCR, purchase orders and merge in one go",
	RunE:  runPipeline,
}

var cleanLogsCmd = &cobra.Command{
	Use:   "clean-logs",
	Short: "Delete old log files",
	RunE:  runCleanLogs,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	ocrCmd.Flags().String("input", "", "Single image to recognise")
	ocrCmd.Flags().Bool("batch", false, "Recognise every unprocessed image in the input folder")
	ocrCmd.Flags().Int("batch-size", 0, "Images per batch (default from config)")
	ocrCmd.Flags().Int("max-workers", 0, "Concurrent requests (default from config)")

	excelCmd.Flags().String("input", "", "Recognised workbook")

	mergeCmd.Flags().String("input", "", "Comma separated purchase orders (default all)")

	pipelineCmd.Flags().String("input", "", "Single image to run through the pipeline")

	cleanLogsCmd.Flags().Int("days", 7, "Delete logs older than this many days")
	cleanLogsCmd.Flags().Int("keep", 10, "Keep at most this many logs")
	cleanLogsCmd.Flags().String("dir", "logs", "Log folder")

	rootCmd.AddCommand(ocrCmd)
	rootCmd.AddCommand(excelCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(cleanLogsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on Ctrl-C, so workers stop between images.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runOCR(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	batch, _ := cmd.Flags().GetBool("batch")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	maxWorkers, _ := cmd.Flags().GetInt("max-workers")

	if batch {
		input = ""
	}

	ctx, cancel := signalContext()
	defer cancel()

	service, err := NewService(cfg, nil)
	if err != nil {
		return err
	}

	outputs, err := service.RunOCR(ctx, input, batchSize, maxWorkers)
	if err != nil {
		return err
	}

	for _, output := range outputs {
		fmt.Fprintln(cmd.OutOrStdout(), output)
	}

	return nil
}

func runExcel(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")

	ctx, cancel := signalContext()
	defer cancel()

	service, err := NewService(cfg, nil)
	if err != nil {
		return err
	}

	output, err := service.ProcessExcel(ctx, input)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)

	return nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")

	ctx, cancel := signalContext()
	defer cancel()

	service, err := NewService(cfg, nil)
	if err != nil {
		return err
	}

	output, err := service.MergeOrders(ctx, splitList(input, false))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)

	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")

	ctx, cancel := signalContext()
	defer cancel()

	service, err := NewService(cfg, nil)
	if err != nil {
		return err
	}

	outputs, err := service.Pipeline(ctx, input)

	for _, output := range outputs {
		fmt.Fprintln(cmd.OutOrStdout(), output)
	}

	return err
}

func runCleanLogs(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	keep, _ := cmd.Flags().GetInt("keep")
	dir, _ := cmd.Flags().GetString("dir")

	// Default to wherever we are logging.
	if !cmd.Flags().Changed("dir") && cfg.Log.File != "" {
		dir = filepath.Dir(cfg.Log.File)
	}

	removed, err := CleanLogs(dir, days, keep)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d logs\n", removed)

	return nil
}
