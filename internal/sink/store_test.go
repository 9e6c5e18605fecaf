package sink

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppend_ChainsDigests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, KindVerify, "cli", Pair{Verification: model.EmptyResult()})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.PrevDigest != "" {
		t.Errorf("expected empty prev digest for first record, got %q", first.PrevDigest)
	}
	if first.Digest != Digest("", first.Payload) {
		t.Errorf("digest mismatch for first record")
	}

	second, err := s.Append(ctx, KindEnforce, "http", Pair{
		Verification: model.EmptyResult(),
		Enforcement:  &model.EnforcementResult{Blocked: true},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.PrevDigest != first.Digest {
		t.Errorf("expected prev digest %s, got %s", first.Digest, second.PrevDigest)
	}
	if second.Seq <= first.Seq {
		t.Errorf("expected increasing seq, got %d then %d", first.Seq, second.Seq)
	}
	if first.ID == second.ID {
		t.Error("expected distinct run ids")
	}

	n, err := s.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 records checked, got %d", n)
	}
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Append(ctx, KindVerify, "cli", map[string]int{"i": i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if _, err := s.db.Exec(`UPDATE records SET payload = '{"i":42}' WHERE seq = 2`); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	n, err := s.VerifyChain(ctx)
	if !errors.Is(err, ErrChainBroken) {
		t.Fatalf("expected ErrChainBroken, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected break after 1 valid record, got %d", n)
	}
}

func TestGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Append(ctx, KindEnhanced, "http", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind != KindEnhanced || got.Origin != "http" || got.Digest != rec.Digest {
		t.Errorf("unexpected record: %+v", got)
	}
	var payload map[string]string
	if err := json.Unmarshal(got.Payload, &payload); err != nil || payload["k"] != "v" {
		t.Errorf("unexpected payload %s (%v)", got.Payload, err)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, KindVerify, "batch", i); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if string(recs[0].Payload) != "4" || string(recs[1].Payload) != "3" {
		t.Errorf("expected newest first, got %s, %s", recs[0].Payload, recs[1].Payload)
	}
}

func TestAppend_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Append(ctx, KindVerify, "http", i); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	n, err := s.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if n != 10 {
		t.Errorf("expected 10 records, got %d", n)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "records.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Append(context.Background(), KindVerify, "cli", 1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	n, err := reopened.VerifyChain(context.Background())
	if err != nil || n != 1 {
		t.Errorf("expected 1 persisted record, got %d (%v)", n, err)
	}
}
