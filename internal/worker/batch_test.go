package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

// stubVerify echoes the input text as the single claim
func stubVerify(_ context.Context, in Input) model.VerificationResult {
	time.Sleep(5 * time.Millisecond) // Simulate work
	return model.VerificationResult{
		Claims: []model.ClaimValidation{{Claim: in.Text}},
		Mode:   in.Domain,
	}
}

func TestBatchProcessor_Process(t *testing.T) {
	processor := NewBatchProcessor(stubVerify, 2)

	inputs := []Input{
		{ID: "a", Text: "first"},
		{ID: "b", Text: "second", Domain: "legal"},
		{ID: "c", Text: "third"},
	}
	results := processor.Process(context.Background(), inputs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.ID, res.Error)
			continue
		}
		if res.ID != inputs[i].ID {
			t.Errorf("expected id %s at index %d, got %s", inputs[i].ID, i, res.ID)
		}
		if res.Result == nil || res.Result.Claims[0].Claim != inputs[i].Text {
			t.Errorf("expected result for %q, got %+v", inputs[i].Text, res.Result)
		}
	}
	if results[1].Result.Mode != "legal" {
		t.Errorf("expected domain passed through, got %q", results[1].Result.Mode)
	}
}

func TestBatchProcessor_Process_Empty(t *testing.T) {
	processor := NewBatchProcessor(stubVerify, 2)

	results := processor.Process(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_Process_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(stubVerify, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := []Input{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}}
	results := processor.Process(ctx, inputs)

	if len(results) != 2 {
		t.Fatalf("expected a result per input, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("expected context.Canceled for %s, got %v", res.ID, res.Error)
		}
	}
}

func TestReadInputs(t *testing.T) {
	content := `# header
The Earth orbits the Sun.

{"id": "turner", "text": "In Turner v. Smith the court ruled.", "domain": "legal"}
{"text": "Water boils at 100 degrees."}
`
	inputs, err := ReadInputs(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ReadInputs failed: %v", err)
	}

	expected := []Input{
		{ID: "2", Text: "The Earth orbits the Sun."},
		{ID: "turner", Text: "In Turner v. Smith the court ruled.", Domain: "legal"},
		{ID: "5", Text: "Water boils at 100 degrees."},
	}
	if len(inputs) != len(expected) {
		t.Fatalf("expected %d inputs, got %d", len(expected), len(inputs))
	}
	for i := range expected {
		if inputs[i] != expected[i] {
			t.Errorf("input %d: expected %+v, got %+v", i, expected[i], inputs[i])
		}
	}
}

func TestReadInputs_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", "{not json}\n"},
		{"duplicate id", `{"id": "x", "text": "a"}` + "\n" + `{"id": "x", "text": "b"}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadInputs(strings.NewReader(tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestReadInputsFromFile_NonExistent(t *testing.T) {
	_, err := ReadInputsFromFile("non_existent_file.jsonl")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchResult_GetError(t *testing.T) {
	r1 := &BatchResult{ID: "1"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("verify failed")
	r2 := &BatchResult{ID: "1", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchResult_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(&BatchResult{ID: "x", Error: errors.New("boom")})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"id":"x","error":"boom"}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	content := "first text\n# comment\n\nsecond text\n"

	tmpfile, err := os.CreateTemp("", "batch_inputs")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	processor := NewBatchProcessor(stubVerify, 2)
	results, err := processor.ProcessFile(context.Background(), tmpfile.Name())
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(stubVerify, 2)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.jsonl")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
