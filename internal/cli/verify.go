package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/sink"
	"github.com/ppiankov/veritas/internal/worker"
)

var (
	inFile         string
	inURL          string
	outJSON        string
	mode           string
	maxClaims      int
	threshold      float64
	retrievalDepth int
	domainOverride string
	sources        []string
	enforce        bool
	enhanced       bool
	withUncert     bool
	withHITL       bool
	withAgents     bool
	withQuantum    bool
	timeout        time.Duration
	maxBytes       int64
	noCache        bool
	noRecord       bool
	llmProvider    string
	llmModel       string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [text]",
	Short: "Verify the factual claims in a piece of agent output",
	Long: `Verify extracts claims from text, gathers evidence, checks them against
the reference tables and scores each claim.

Text is read from the arguments, --file, --url, or standard input.

Example:
  veritas verify "Neil Armstrong's first words were 'That's one small step for man'."
  veritas verify --file response.txt --enforce
  echo "In Turner v. Cognivault the court ruled..." | veritas verify --domain legal
  veritas verify --url https://example.com/answer.html --sources wikipedia --json result.json
  veritas verify --enhanced --hitl --agents --quantum "It is possible that..."`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	// Input flags
	verifyCmd.Flags().StringVarP(&inFile, "file", "f", "", "read text from file (- for stdin)")
	verifyCmd.Flags().StringVar(&inURL, "url", "", "fetch text or HTML from a URL")
	verifyCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall verification timeout")
	verifyCmd.Flags().Int64Var(&maxBytes, "max-bytes", 2_000_000, "max response bytes to read for --url")

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "write the JSON result to a path (- for stdout)")
	verifyCmd.Flags().BoolVar(&noRecord, "no-record", false, "do not record the run in the sink")

	// Verification flags
	verifyCmd.Flags().StringVar(&mode, "mode", "", "verification mode (strict, balanced, lenient)")
	verifyCmd.Flags().IntVar(&maxClaims, "max-claims", 0, "maximum claims to score")
	verifyCmd.Flags().Float64Var(&threshold, "threshold", 0, "confidence threshold (0-1)")
	verifyCmd.Flags().IntVar(&retrievalDepth, "depth", 0, "evidence items to retrieve per claim")
	verifyCmd.Flags().StringVar(&domainOverride, "domain", "", "force a domain by id or name")
	verifyCmd.Flags().StringSliceVar(&sources, "sources", nil, "evidence sources (wikipedia, llm)")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the evidence cache")
	verifyCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider for the llm source (openai, anthropic, ollama)")
	verifyCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")

	// Decision flags
	verifyCmd.Flags().BoolVar(&enforce, "enforce", false, "print the enforced response and trust delta")
	verifyCmd.Flags().BoolVar(&enhanced, "enhanced", false, "run the enhanced verification")
	verifyCmd.Flags().BoolVar(&withUncert, "uncertainty", false, "enhanced: evaluate hedging of each claim")
	verifyCmd.Flags().BoolVar(&withHITL, "hitl", false, "enhanced: open a review session for low confidence")
	verifyCmd.Flags().BoolVar(&withAgents, "agents", false, "enhanced: run the multi-agent panel")
	verifyCmd.Flags().BoolVar(&withQuantum, "quantum", false, "enhanced: include evidence spread in the panel")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyVerifyFlags(cfg)

	text, err := readInput(ctx, cfg, args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	logger := newLogger()
	engine, err := pipeline.NewFromConfig(cfg, logger)
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

	opts := pipeline.Options{
		Mode:                mode,
		MaxClaims:           maxClaims,
		ConfidenceThreshold: threshold,
		RetrievalDepth:      retrievalDepth,
		DomainOverride:      domainOverride,
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Verifying %d bytes (sources: %v)\n", len(text), cfg.Evidence.Sources)
	}

	var (
		out         interface{}
		result      model.VerificationResult
		enforcement *model.EnforcementResult
		kind        = sink.KindVerify
	)
	switch {
	case enhanced:
		res := engine.VerifyEnhanced(ctx, text, pipeline.EnhancedOptions{
			Options:                 opts,
			UncertaintyAnalysis:     withUncert,
			HITLCollaboration:       withHITL,
			MultiAgentOrchestration: withAgents,
			QuantumUncertainty:      withQuantum,
		})
		out, result, kind = res, res.VerificationResult, sink.KindEnhanced
		if enforce {
			dec := engine.Decide(text, result)
			enforcement = &dec
		}
	case enforce:
		dec := engine.Enforce(ctx, text, opts)
		out, result, enforcement, kind = dec, dec.VerificationResult, &dec, sink.KindEnforce
	default:
		result = engine.Verify(ctx, text, opts)
		out = result
	}

	if records != nil {
		rec, err := records.Append(ctx, kind, "cli", sink.Pair{Verification: result, Enforcement: enforcement})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not record run: %v\n", err)
		} else if verbose {
			fmt.Fprintf(os.Stderr, "✓ Recorded run %s\n", rec.ID)
		}
	}

	switch outJSON {
	case "":
		pipeline.RenderSummary(cmd.OutOrStdout(), result, enforcement)
		if enforcement != nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", enforcement.EnforcedResponse)
		}
	case "-":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	default:
		if err := pipeline.RenderJSON(out, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outJSON)
		}
	}
	return nil
}

// applyVerifyFlags layers explicit flags over the loaded configuration
func applyVerifyFlags(cfg *model.Config) {
	if len(sources) > 0 {
		cfg.Evidence.Sources = sources
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noRecord {
		cfg.Sink.Enabled = false
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		applyAPIKey(&cfg.LLM)
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

// readInput resolves the text to verify
func readInput(ctx context.Context, cfg *model.Config, args []string, stdin io.Reader) (string, error) {
	switch {
	case inURL != "":
		fetcher := pipeline.NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, maxBytes, cfg.HTTP.RespectRobots,
			cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy).
			WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize))
		if verbose {
			fmt.Fprintf(os.Stderr, "Fetching: %s\n", inURL)
		}
		res, err := fetcher.FetchWithRetry(ctx, inURL)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", inURL, err)
		}
		return res.Body, nil
	case inFile == "-":
		return readAll(stdin)
	case inFile != "":
		data, err := os.ReadFile(inFile)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", inFile, err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return readAll(stdin)
	}
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// openSink opens the record store when recording is enabled
func openSink(cfg *model.Config) (*sink.Store, error) {
	if !cfg.Sink.Enabled {
		return nil, nil
	}
	records, err := sink.Open(cfg.Sink.Path)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	return records, nil
}
