package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/reference"
)

const configHierarchy = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (VERITAS_*, OPENAI_API_KEY, ANTHROPIC_API_KEY)
  3. Config file (~/.veritas/config.yaml)
  4. Defaults`

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Veritas configuration",
	Long:  "Inspect, validate and initialize the Veritas configuration.\n\n" + configHierarchy,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Print the configuration verification runs with: defaults, config file and environment merged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", used)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	Long: `Validate thresholds, domains and evidence sources, and load the
reference tables the configuration points at.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return validateConfig(cmd.OutOrStdout(), cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Create ~/.veritas/config.yaml holding every option at its default value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		path := filepath.Join(home, ".veritas", "config.yaml")
		if err := writeDefaultConfig(path); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", path)
		fmt.Printf("\nTo check it:\n  veritas config validate\n")
		return nil
	},
}

// validateConfig prints one line per problem and fails when there are any
func validateConfig(w io.Writer, cfg *model.Config) error {
	problems := 0
	report := func(err error) {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				_, _ = fmt.Fprintf(w, "✗ %v\n", e)
				problems++
			}
			return
		}
		_, _ = fmt.Fprintf(w, "✗ %v\n", err)
		problems++
	}

	if err := cfg.Validate(); err != nil {
		report(err)
	}
	if _, err := reference.LoadTables(cfg.Reference.TablesPath); err != nil {
		report(fmt.Errorf("reference.tables_path: %w", err))
	}

	if problems > 0 {
		return fmt.Errorf("%d configuration problem(s)", problems)
	}
	_, _ = fmt.Fprintln(w, "✓ Configuration is valid")
	return nil
}

// writeDefaultConfig refuses to overwrite an existing file
func writeDefaultConfig(path string) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'veritas config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	_, err = fmt.Fprintf(f, `# Veritas configuration
#
%s
#
# API keys belong in the environment:
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OLLAMA_BASE_URL=http://localhost:11434

%s`, commentBlock(configHierarchy), data)
	return err
}

func commentBlock(text string) string {
	return "# " + strings.ReplaceAll(text, "\n", "\n# ")
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
}
