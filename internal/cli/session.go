package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/server"
	"github.com/ppiankov/veritas/internal/session"
)

var (
	serverURL   string
	reviewer    string
	approve     bool
	notes       string
	corrections []string
)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Review human-in-the-loop sessions on a running server",
	Long: `Review sessions are opened by enhanced verification when confidence is low.
They live in the server process, so these commands talk to a running
'veritas serve'.

Example:
  veritas session list
  veritas session show 6f1c...
  veritas session complete 6f1c... --approve --reviewer ana
  veritas session complete 6f1c... --correction "0=The Earth orbits the Sun."`,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := newClient().ListSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No review sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-9s  %d item(s)  expires %s\n", s.ID, s.State, len(s.Items), s.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one review session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newClient().GetSession(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Submit reviewer feedback and close a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := parseCorrections(corrections)
		if err != nil {
			return err
		}
		s, err := newClient().CompleteSession(cmd.Context(), args[0], session.Feedback{
			Reviewer:    reviewer,
			Approved:    approve,
			Corrections: parsed,
			Notes:       notes,
		})
		if err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		fmt.Printf("✓ Session %s %s\n", s.ID, s.State)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionCompleteCmd)

	sessionCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "veritas server URL")

	sessionCompleteCmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer name")
	sessionCompleteCmd.Flags().BoolVar(&approve, "approve", false, "approve the flagged claims")
	sessionCompleteCmd.Flags().StringVar(&notes, "notes", "", "free-form reviewer notes")
	sessionCompleteCmd.Flags().StringArrayVar(&corrections, "correction", nil, "sentence correction as index=text (repeatable)")
}

func newClient() *server.Client {
	return server.NewClient(serverURL, nil)
}

// parseCorrections turns index=text pairs into a correction map
func parseCorrections(pairs []string) (map[int]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[int]string, len(pairs))
	for _, pair := range pairs {
		idx, text, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid correction %q: expected index=text", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid correction index %q", idx)
		}
		out[n] = strings.TrimSpace(text)
	}
	return out, nil
}
