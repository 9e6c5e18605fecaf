package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/veritas/internal/model"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// envKeys are the config keys that can be set from VERITAS_* variables
var envKeys = []string{
	"verification.mode",
	"verification.max_claims",
	"verification.confidence_threshold",
	"verification.retrieval_depth",
	"verification.hitl_threshold",
	"evidence.sources",
	"reference.tables_path",
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.base_url",
	"cache.enabled",
	"cache.dir",
	"sink.enabled",
	"sink.path",
	"server.addr",
	"server.requests_per_second",
	"rate_limiting.requests_per_second",
	"rate_limiting.llm_requests_per_second",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "veritas",
	Short: "Veritas - fact verification and hallucination detection for agent output",
	Long: `Veritas checks the factual claims in AI agent output before it reaches
a user.

It extracts claims, gathers evidence, checks them against versioned
reference tables of known fabrications, scores each claim and decides
whether the response should be blocked, modified or allowed.

Verification never aborts the response pipeline: failures degrade to a
neutral result.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Veritas.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("veritas %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.veritas/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".veritas"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match VERITAS_*
	viper.SetEnvPrefix("VERITAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Domains) == 0 {
		cfg.Domains = model.DefaultDomains()
	}
	if cfg.Cache.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Cache.Dir = filepath.Join(home, ".veritas", "cache")
		}
	}
	if cfg.Sink.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Sink.Path = filepath.Join(home, ".veritas", "records.db")
		}
	}
	applyAPIKey(&cfg.LLM)
	return cfg, nil
}

// applyAPIKey falls back to the provider's conventional environment variable
func applyAPIKey(llmCfg *model.LLMConfig) {
	if llmCfg.APIKey != "" {
		return
	}
	switch strings.ToLower(llmCfg.Provider) {
	case "openai":
		llmCfg.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		llmCfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && llmCfg.BaseURL == "" {
			llmCfg.BaseURL = baseURL
		}
	}
}

// newLogger returns a stderr logger; verbose lowers the level to debug
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
