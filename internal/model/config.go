package model

import (
	"errors"
	"fmt"
	"time"
)

// Verification modes
const (
	ModeStrict   = "strict"
	ModeBalanced = "balanced"
	ModeLenient  = "lenient"
)

// Config is the complete Veritas configuration
type Config struct {
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Domains      []Domain           `yaml:"domains" mapstructure:"domains"`
	Reference    ReferenceConfig    `yaml:"reference" mapstructure:"reference"`
	Evidence     EvidenceConfig     `yaml:"evidence" mapstructure:"evidence"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig    `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Session      SessionConfig      `yaml:"session" mapstructure:"session"`
	Sink         SinkConfig         `yaml:"sink" mapstructure:"sink"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
}

// VerificationConfig holds the defaults of the verify call
type VerificationConfig struct {
	Mode                string  `yaml:"mode" mapstructure:"mode"`
	MaxClaims           int     `yaml:"max_claims" mapstructure:"max_claims"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	RetrievalDepth      int     `yaml:"retrieval_depth" mapstructure:"retrieval_depth"`
	HITLThreshold       float64 `yaml:"hitl_threshold" mapstructure:"hitl_threshold"`
}

// ReferenceConfig points at the versioned trivia/citation tables
type ReferenceConfig struct {
	TablesPath string `yaml:"tables_path" mapstructure:"tables_path"` // Empty uses the built-in tables
}

// EvidenceConfig selects which evidence sources are consulted
type EvidenceConfig struct {
	Sources      []string      `yaml:"sources" mapstructure:"sources"` // wikipedia, llm
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	WikipediaAPI string        `yaml:"wikipedia_api" mapstructure:"wikipedia_api"`
}

// HTTPConfig contains HTTP client settings for URL-backed sources
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// AuthorityConfig defines authority classification rules for source URLs
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	PathPatterns     []PathPattern     `yaml:"path_patterns" mapstructure:"path_patterns"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// PathPattern maps a URL path regex to a tier name
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// CacheConfig controls the evidence cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds parallelism
type ConcurrencyConfig struct {
	RetrievalWorkers int `yaml:"retrieval_workers" mapstructure:"retrieval_workers"` // Concurrent claim retrievals per run
	BatchWorkers     int `yaml:"batch_workers" mapstructure:"batch_workers"`         // Concurrent texts in batch mode
}

// RateLimitConfig limits calls per evidence source
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	// LLMRequestsPerSecond overrides the rate for the LLM judge; zero keeps the shared rate
	LLMRequestsPerSecond float64 `yaml:"llm_requests_per_second" mapstructure:"llm_requests_per_second"`
}

// LLMConfig configures the optional LLM evidence judge
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai or empty
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SessionConfig configures human-in-the-loop sessions
type SessionConfig struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retention time.Duration `yaml:"retention" mapstructure:"retention"` // How long terminal sessions stay queryable
}

// SinkConfig configures the result record sink
type SinkConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// Per-client request limit on /v1; zero disables it
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// DefaultDomains returns the built-in domain catalogue
func DefaultDomains() []Domain {
	return []Domain{
		{
			ID: "general", Name: "General", RiskLevel: RiskMedium,
			ConfidenceThreshold: 0.7, EvidenceRequirement: 1,
		},
		{
			ID: "legal", Name: "Legal", RiskLevel: RiskHigh,
			ConfidenceThreshold: 0.85, EvidenceRequirement: 2,
			BlockingEnabled: true, UncertaintyRequired: true,
			Keywords: []string{
				"court", "ruled", "ruling", "lawsuit", "statute", "v.", "plaintiff",
				"defendant", "liable", "liability", "judge", "legal", "law", "attorney",
				"contract", "precedent", "jurisdiction", "regulation",
			},
		},
		{
			ID: "medical", Name: "Medical", RiskLevel: RiskHigh,
			ConfidenceThreshold: 0.9, EvidenceRequirement: 2,
			BlockingEnabled: true, UncertaintyRequired: true,
			Keywords: []string{
				"patient", "diagnosis", "treatment", "dose", "dosage", "symptom", "disease",
				"clinical", "drug", "medication", "vaccine", "therapy", "surgery", "cancer",
			},
		},
		{
			ID: "financial", Name: "Financial", RiskLevel: RiskHigh,
			ConfidenceThreshold: 0.8, EvidenceRequirement: 2,
			BlockingEnabled: true, UncertaintyRequired: true,
			Keywords: []string{
				"stock", "investment", "interest rate", "inflation", "portfolio", "dividend",
				"bond", "earnings", "revenue", "tax", "loan", "mortgage", "crypto",
			},
		},
		{
			ID: "technical", Name: "Technical", RiskLevel: RiskMedium,
			ConfidenceThreshold: 0.7, EvidenceRequirement: 1,
			Keywords: []string{
				"software", "algorithm", "protocol", "database", "api", "compiler",
				"server", "kernel", "network", "programming",
			},
		},
		{
			ID: "entertainment", Name: "Entertainment", RiskLevel: RiskLow,
			ConfidenceThreshold: 0.5, EvidenceRequirement: 0,
			Keywords: []string{
				"movie", "film", "song", "album", "actor", "actress", "celebrity",
				"tv show", "series", "game", "cartoon", "band",
			},
		},
	}
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Verification: VerificationConfig{
			Mode:                ModeBalanced,
			MaxClaims:           5,
			ConfidenceThreshold: 0.7,
			RetrievalDepth:      3,
			HITLThreshold:       0.6,
		},
		Domains: DefaultDomains(),
		Evidence: EvidenceConfig{
			Sources:      []string{},
			Timeout:      10 * time.Second,
			WikipediaAPI: "https://en.wikipedia.org",
		},
		HTTP: HTTPConfig{
			Timeout:       10 * time.Second,
			UserAgent:     "Veritas/0.1 (+https://github.com/ppiankov/veritas)",
			RespectRobots: true,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov", "gov.uk", "europa.eu", "legislation.gov.uk", "law.cornell.edu",
				"nih.gov", "who.int", "doi.org", "nature.com", "science.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com", "apnews.com", "bbc.co.uk",
			},
			PathPatterns: []PathPattern{
				{Pattern: `/(statute|legislation|regulation)s?/`, Tier: "primary"},
				{Pattern: `/(blog|forum)s?/`, Tier: "tertiary"},
			},
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			RetrievalWorkers: 8,
			BatchWorkers:     4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond:    5,
			BurstSize:            5,
			LLMRequestsPerSecond: 1,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 400,
		},
		Session: SessionConfig{
			Timeout:   15 * time.Minute,
			Retention: 1 * time.Hour,
		},
		Sink: SinkConfig{
			Enabled: false,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}
}

// Validate reports every setting that verification would silently correct or
// reject. A nil return means the configuration is used as written.
func (c *Config) Validate() error {
	var errs []error
	v := c.Verification
	switch v.Mode {
	case ModeStrict, ModeBalanced, ModeLenient, "":
	default:
		errs = append(errs, fmt.Errorf("verification.mode: unknown mode %q (falls back to %s)", v.Mode, ModeBalanced))
	}
	if v.MaxClaims < 0 {
		errs = append(errs, fmt.Errorf("verification.max_claims: must not be negative, got %d", v.MaxClaims))
	}
	// Zero means "use the default" in per-call options, so it cannot be configured
	if v.ConfidenceThreshold <= 0 || v.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("verification.confidence_threshold: must be in (0,1], got %g", v.ConfidenceThreshold))
	}
	if v.HITLThreshold <= 0 || v.HITLThreshold > 1 {
		errs = append(errs, fmt.Errorf("verification.hitl_threshold: must be in (0,1], got %g", v.HITLThreshold))
	}

	seen := make(map[string]bool, len(c.Domains))
	for i, d := range c.Domains {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("domains[%d]: missing id", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("domains[%d]: duplicate id %q", i, d.ID))
		}
		seen[d.ID] = true
		switch d.RiskLevel {
		case RiskLow, RiskMedium, RiskHigh:
		default:
			errs = append(errs, fmt.Errorf("domains[%d]: unknown risk level %q", i, d.RiskLevel))
		}
		if !unitInterval(d.ConfidenceThreshold) {
			errs = append(errs, fmt.Errorf("domains[%d]: confidence_threshold must be in [0,1], got %g", i, d.ConfidenceThreshold))
		}
	}

	for _, name := range c.Evidence.Sources {
		if name != "wikipedia" && name != "llm" {
			errs = append(errs, fmt.Errorf("evidence.sources: unknown source %q", name))
		}
	}
	if c.RateLimiting.RequestsPerSecond < 0 || c.RateLimiting.LLMRequestsPerSecond < 0 || c.Server.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("rate limits: requests per second must not be negative"))
	}
	if c.Session.Timeout < 0 {
		errs = append(errs, errors.New("session.timeout: must not be negative"))
	}
	return errors.Join(errs...)
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
