package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/sink"
	"github.com/ppiankov/veritas/internal/worker"
)

var (
	concurrency  int
	outPath      string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify many texts from a file in parallel",
	Long: `Batch verifies many texts concurrently:
- Read inputs from a file, one per line
- A line starting with "{" is a JSON object: {"id": "...", "text": "...", "domain": "..."}
- Any other line is verified as plain text
- Blank lines and lines starting with # are skipped
- Write one JSON result per line, in input order

Example:
  veritas batch responses.jsonl
  veritas batch responses.jsonl --concurrency 8 --out results.jsonl
  veritas batch responses.txt --mode strict --sources wikipedia`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.batch_workers)")
	batchCmd.Flags().StringVar(&outPath, "out", "-", "output JSONL path (- for stdout)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")

	// Shared with verify
	batchCmd.Flags().StringVar(&mode, "mode", "", "verification mode (strict, balanced, lenient)")
	batchCmd.Flags().IntVar(&maxClaims, "max-claims", 0, "maximum claims to score per text")
	batchCmd.Flags().Float64Var(&threshold, "threshold", 0, "confidence threshold (0-1)")
	batchCmd.Flags().StringSliceVar(&sources, "sources", nil, "evidence sources (wikipedia, llm)")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the evidence cache")
	batchCmd.Flags().BoolVar(&noRecord, "no-record", false, "do not record runs in the sink")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyVerifyFlags(cfg)

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.BatchWorkers
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veritas Batch Verification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", outPath)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	engine, err := pipeline.NewFromConfig(cfg, newLogger())
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	records, err := openSink(cfg)
	if err != nil {
		return err
	}
	if records != nil {
		defer func() { _ = records.Close() }()
	}

	base := pipeline.Options{Mode: mode, MaxClaims: maxClaims, ConfidenceThreshold: threshold}
	verify := func(ctx context.Context, in worker.Input) model.VerificationResult {
		opts := base
		opts.DomainOverride = in.Domain
		return engine.Verify(ctx, in.Text, opts)
	}

	processor := worker.NewBatchProcessor(verify, workers)

	fmt.Fprintf(os.Stderr, "⚙️  Verifying inputs with %d workers...\n", workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	out, closeOut, err := openOutput(outPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOut()

	enc := json.NewEncoder(out)
	successCount, failureCount, flagged := 0, 0, 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.ID, result.Error)
		} else {
			successCount++
			flagged += result.Result.HallucinationCount()
			if records != nil {
				if _, err := records.Append(ctx, sink.KindVerify, "batch", sink.Pair{Verification: *result.Result}); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: could not record %s: %v\n", result.ID, err)
				}
			}
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("write result %s: %w", result.ID, err)
		}
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:           %d inputs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:         %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:        %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Hallucinations:  %d\n", flagged)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// openOutput returns the writer for path, or stdout for "-"
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "-" || path == "" {
		return stdout, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
