package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/sink"
)

var recordsLimit int

// recordsCmd represents the records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect the recorded run log",
	Long: `Every recorded verification is appended to the sink at sink.path with a
SHA-256 digest chained to the previous record.

Example:
  veritas records list --limit 20
  veritas records verify`,
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := openRecords()
		if err != nil {
			return err
		}
		defer func() { _ = records.Close() }()

		recs, err := records.Recent(cmd.Context(), recordsLimit)
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Printf("%6d  %s  %-8s  %-5s  %s  %s\n", r.Seq, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Kind, r.Origin, r.ID, r.Digest[:12])
		}
		return nil
	},
}

var recordsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute the digest chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := openRecords()
		if err != nil {
			return err
		}
		defer func() { _ = records.Close() }()

		n, err := records.VerifyChain(cmd.Context())
		if errors.Is(err, sink.ErrChainBroken) {
			return fmt.Errorf("✗ %w (%d records intact before the break)", err, n)
		}
		if err != nil {
			return err
		}
		fmt.Printf("✓ %d records, chain intact\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsVerifyCmd)

	recordsListCmd.Flags().IntVar(&recordsLimit, "limit", 20, "number of records to show")
}

// openRecords opens the sink regardless of sink.enabled
func openRecords() (*sink.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	records, err := sink.Open(cfg.Sink.Path)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	return records, nil
}
