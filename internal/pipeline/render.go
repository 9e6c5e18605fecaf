package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ppiankov/veritas/internal/model"
)

// RenderJSON writes v as indented JSON to path, creating parent directories
func RenderJSON(v interface{}, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderSummary prints a short human-readable summary
func RenderSummary(w io.Writer, result model.VerificationResult, enforcement *model.EnforcementResult) {
	_, _ = fmt.Fprintf(w, "\nVerification (%s mode)\n", result.Mode)
	_, _ = fmt.Fprintf(w, "  Accuracy:   %.2f\n", result.OverallScore.Accuracy)
	_, _ = fmt.Fprintf(w, "  Confidence: %.2f\n", result.OverallScore.Confidence)
	if result.Domain != nil {
		_, _ = fmt.Fprintf(w, "  Domain:     %s (%s risk, threshold %.2f)\n",
			result.Domain.Domain.Name, result.Domain.Domain.RiskLevel, result.Threshold)
	}
	_, _ = fmt.Fprintf(w, "  Claims:     %d (%d flagged)\n", len(result.Claims), result.HallucinationCount())

	for i, c := range result.Claims {
		mark := "?"
		switch {
		case c.IsHallucination:
			mark = "✗"
		case c.Verified:
			mark = "✓"
		}
		_, _ = fmt.Fprintf(w, "  %s %d. %s (%.2f)\n", mark, i+1, c.Claim, c.Score.Confidence)
	}

	if enforcement != nil {
		_, _ = fmt.Fprintln(w)
		for _, note := range enforcement.Notes {
			_, _ = fmt.Fprintf(w, "  %s\n", note)
		}
	}
}
