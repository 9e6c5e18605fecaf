package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// Input is one text of a batch
type Input struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Domain string `json:"domain,omitempty"` // Optional domain override
}

// VerifierFunc verifies one input. Verification never fails, so there is no
// error return.
type VerifierFunc func(ctx context.Context, in Input) model.VerificationResult

// VerifyJob verifies a single batch input
type VerifyJob struct {
	Input  Input
	Verify VerifierFunc
}

// Execute executes the verify job
func (j *VerifyJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &BatchResult{ID: j.Input.ID, Error: err}
	}
	result := j.Verify(ctx, j.Input)
	return &BatchResult{ID: j.Input.ID, Result: &result}
}

// BatchResult is the outcome of one batch input
type BatchResult struct {
	ID     string                    `json:"id"`
	Result *model.VerificationResult `json:"result,omitempty"`
	Error  error                     `json:"-"`
}

// GetError returns the error from the batch result
func (r *BatchResult) GetError() error {
	return r.Error
}

// MarshalJSON adds the error text as a string field
func (r *BatchResult) MarshalJSON() ([]byte, error) {
	type alias BatchResult
	out := struct {
		*alias
		Error string `json:"error,omitempty"`
	}{alias: (*alias)(r)}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}

// BatchProcessor verifies many texts concurrently
type BatchProcessor struct {
	verify      VerifierFunc
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verify VerifierFunc, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verify:      verify,
		concurrency: concurrency,
	}
}

// Process verifies inputs and returns results in input order. Input ids must
// be unique.
func (b *BatchProcessor) Process(ctx context.Context, inputs []Input) []*BatchResult {
	if len(inputs) == 0 {
		return []*BatchResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, in := range inputs {
		if !pool.Submit(&VerifyJob{Input: in, Verify: b.verify}) {
			break
		}
	}

	results := pool.Wait()

	byID := make(map[string]*BatchResult, len(results))
	for _, result := range results {
		r := result.(*BatchResult)
		byID[r.ID] = r
	}

	// Inputs dropped by cancellation still get a result
	batch := make([]*BatchResult, len(inputs))
	for i, in := range inputs {
		if r, ok := byID[in.ID]; ok {
			batch[i] = r
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		batch[i] = &BatchResult{ID: in.ID, Error: cause}
	}
	return batch
}

// ProcessFile reads inputs from a file and verifies them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	inputs, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.Process(ctx, inputs), nil
}

// ReadInputsFromFile reads batch inputs from a file
func ReadInputsFromFile(filePath string) ([]Input, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadInputs(file)
}

// ReadInputs parses one input per line. A line starting with "{" is a JSON
// object with id, text and optional domain; any other line is plain text.
// Blank lines and lines starting with "#" are skipped. Inputs without an id
// are numbered by line.
func ReadInputs(r io.Reader) ([]Input, error) {
	var inputs []Input
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		in := Input{Text: line}
		if strings.HasPrefix(line, "{") {
			in = Input{}
			if err := json.Unmarshal([]byte(line), &in); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
		if in.ID == "" {
			in.ID = strconv.Itoa(lineNo)
		}
		if seen[in.ID] {
			return nil, fmt.Errorf("line %d: duplicate id %q", lineNo, in.ID)
		}
		seen[in.ID] = true
		inputs = append(inputs, in)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	return inputs, nil
}
