package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/evidence"
	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/orchestration"
	"github.com/ppiankov/veritas/internal/reference"
	"github.com/ppiankov/veritas/internal/session"
	"github.com/ppiankov/veritas/internal/util"
	"github.com/ppiankov/veritas/internal/worker"
)

// Evidence source names accepted in evidence.sources
const (
	SourceWikipedia = "wikipedia"
	SourceLLM       = "llm"
)

// NewFromConfig wires an engine from configuration. Extra options are
// applied last and override the configured ones.
func NewFromConfig(cfg *model.Config, logger *slog.Logger, extra ...Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tables, err := reference.LoadTables(cfg.Reference.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("load reference tables: %w", err)
	}
	verifier, err := reference.NewVerifier(tables)
	if err != nil {
		return nil, fmt.Errorf("reference verifier: %w", err)
	}

	source, err := BuildSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	domains := cfg.Domains
	if len(domains) == 0 {
		domains = model.DefaultDomains()
	}

	opts := []Option{
		WithLogger(logger),
		WithReference(verifier),
		WithDomains(domains),
		WithDefaults(OptionsFromConfig(cfg.Verification)),
		WithRetrievalWorkers(cfg.Concurrency.RetrievalWorkers),
		WithRetrievalTimeout(cfg.Evidence.Timeout),
		WithHITLThreshold(cfg.Verification.HITLThreshold),
		WithSessions(session.NewStore(cfg.Session.Timeout, cfg.Session.Retention, logger)),
		WithOrchestrator(orchestration.NewPanel()),
	}
	if source != nil {
		opts = append(opts, WithSource(source))
	}
	return New(append(opts, extra...)...)
}

// BuildSource assembles the configured evidence sources. Each source is rate
// limited by name and, when caching is enabled, cached. It returns nil when
// no source is configured.
func BuildSource(cfg *model.Config, logger *slog.Logger) (evidence.Source, error) {
	if len(cfg.Evidence.Sources) == 0 {
		return nil, nil
	}

	client := util.NewHTTPClient(cfg.HTTP.Timeout, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	store := cache.New(cfg.Cache)
	authority := evidence.NewAuthorityClassifier(&cfg.Authority)

	wrap := func(src evidence.Source) evidence.Source {
		src = evidence.NewRateLimited(src, limiter)
		if store != nil {
			src = evidence.NewCached(src, store, 0, logger)
		}
		return src
	}

	var (
		sources   []evidence.Source
		wikipedia evidence.Source
		wantJudge bool
	)
	for _, name := range cfg.Evidence.Sources {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case SourceWikipedia:
			var robots *util.RobotsChecker
			if cfg.HTTP.RespectRobots {
				robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, client)
			}
			wikipedia = wrap(evidence.NewWikipediaSource(cfg.Evidence.WikipediaAPI, client, cfg.HTTP.UserAgent, robots, authority))
			sources = append(sources, wikipedia)
		case SourceLLM:
			wantJudge = true
		default:
			return nil, fmt.Errorf("unknown evidence source %q", name)
		}
	}

	if wantJudge {
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		if err != nil {
			return nil, fmt.Errorf("llm evidence source: %w", err)
		}
		if provider == nil {
			return nil, fmt.Errorf("llm evidence source requires llm.provider")
		}
		// The judge reuses the wikipedia snippets as grounding when both are enabled
		judge := evidence.NewJudgeSource(provider, wikipedia)
		if rps := cfg.RateLimiting.LLMRequestsPerSecond; rps > 0 {
			limiter.SetRate(judge.Name(), rps, cfg.RateLimiting.BurstSize)
		}
		sources = append(sources, wrap(judge))
	}

	if len(sources) == 1 {
		return sources[0], nil
	}
	return evidence.NewMulti(logger, sources...), nil
}
