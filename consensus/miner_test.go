package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/luca-patrignani/docledger/chain"
)

func testShell() chain.Block {
	id := strings.Repeat("a", 64)
	return chain.Assemble(nil, map[string]chain.Document{
		id: {ID: id, CreatedAt: time.Unix(1700000000, 0).UTC(), Payload: json.RawMessage(`"x"`)},
	})
}

// failingHasher fails on every call.
type failingHasher struct{}

func (failingHasher) Sum(chain.Block) (string, error) {
	return "", errors.New("digest unavailable")
}

// neverHasher returns a digest that never carries a prefix of zeroes.
type neverHasher struct{}

func (neverHasher) Sum(chain.Block) (string, error) {
	return strings.Repeat("f", 128), nil
}

// recordingHasher remembers the first nonce each residue class hashed.
type recordingHasher struct {
	mu         sync.Mutex
	partitions uint64
	first      map[uint64]uint64
}

func (r *recordingHasher) Sum(b chain.Block) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	class := b.Nonce % r.partitions
	if _, ok := r.first[class]; !ok {
		r.first[class] = b.Nonce
	}
	return chain.SHA3Hasher{}.Sum(b)
}

// TestMineProducesValidBlock verifies that a mined block carries the prefix and its
// digest matches the recomputed one.
func TestMineProducesValidBlock(t *testing.T) {
	m := NewMiner(WithWorkers(4), WithPrefix("00"))
	shell := testShell()
	b, err := m.Mine(context.Background(), shell)
	if err != nil {
		t.Fatalf("Mine failed: %v", err)
	}
	if !strings.HasPrefix(b.Hash, "00") {
		t.Fatalf("hash %s lacks prefix", b.Hash)
	}
	hash, err := chain.SHA3Hasher{}.Sum(b)
	if err != nil || hash != b.Hash {
		t.Fatalf("recomputed hash differs: %s vs %s (err=%v)", hash, b.Hash, err)
	}
	if b.CreatedAt.IsZero() {
		t.Fatal("expected a creation time")
	}
	if !m.Verify(b) {
		t.Fatal("Verify rejected a mined block")
	}
	if shell.IsMined() {
		t.Fatal("Mine must not touch the caller's shell")
	}
	if !chain.NewValidator("00", nil).IsBlockValid(b) {
		t.Fatal("validator rejected a mined block")
	}
}

// TestMineSingleWorker verifies that one worker covers the whole nonce space.
func TestMineSingleWorker(t *testing.T) {
	m := NewMiner(WithWorkers(1), WithPrefix("0"))
	b, err := m.Mine(context.Background(), testShell())
	if err != nil {
		t.Fatalf("Mine failed: %v", err)
	}
	if !m.Verify(b) {
		t.Fatal("Verify rejected a mined block")
	}
}

// TestMineWorkerFault verifies that a worker error fails the attempt.
func TestMineWorkerFault(t *testing.T) {
	m := NewMiner(WithWorkers(3), WithPrefix("00"), WithHasher(failingHasher{}))
	_, err := m.Mine(context.Background(), testShell())
	if !errors.Is(err, ErrWorkerFault) {
		t.Fatalf("expected ErrWorkerFault, got %v", err)
	}
}

// TestMineMalformedPayload verifies that a digest error inside a worker surfaces.
func TestMineMalformedPayload(t *testing.T) {
	id := strings.Repeat("b", 64)
	shell := chain.Assemble(nil, map[string]chain.Document{
		id: {ID: id, Payload: json.RawMessage(`{`)},
	})
	_, err := NewMiner(WithWorkers(2), WithPrefix("0")).Mine(context.Background(), shell)
	if !errors.Is(err, ErrWorkerFault) {
		t.Fatalf("expected ErrWorkerFault, got %v", err)
	}
}

// TestMineCancellation verifies that cancelling the context stops every worker.
func TestMineCancellation(t *testing.T) {
	m := NewMiner(WithWorkers(4), WithHasher(neverHasher{}), WithCheckInterval(16))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.Mine(ctx, testShell())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// TestMineWithoutWorkers verifies that zero workers waits for the context.
func TestMineWithoutWorkers(t *testing.T) {
	m := NewMiner(WithWorkers(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Mine(ctx, testShell()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// TestWorkersStayInResidueClass verifies that each worker starts hashing at its own
// residue and never leaves its class.
func TestWorkersStayInResidueClass(t *testing.T) {
	const workers = 4
	h := &recordingHasher{partitions: workers, first: map[uint64]uint64{}}
	m := NewMiner(WithWorkers(workers), WithPrefix("000"), WithHasher(h))
	if _, err := m.Mine(context.Background(), testShell()); err != nil {
		t.Fatalf("Mine failed: %v", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for class, nonce := range h.first {
		if nonce != class {
			t.Errorf("class %d started at nonce %d", class, nonce)
		}
	}
}

// TestWorkSkipsForeignNonces verifies the residue walk of a single worker.
func TestWorkSkipsForeignNonces(t *testing.T) {
	var seen []uint64
	h := hasherFunc(func(b chain.Block) (string, error) {
		seen = append(seen, b.Nonce)
		if len(seen) == 5 {
			return "0", nil
		}
		return "f", nil
	})
	job := Job{Partitions: 3, Residue: 2, Prefix: "0", Shell: testShell()}
	r, err := work(context.Background(), job, h, 1, time.Now)
	if err != nil {
		t.Fatalf("work failed: %v", err)
	}
	want := []uint64{2, 5, 8, 11, 14}
	for i, n := range want {
		if seen[i] != n {
			t.Fatalf("step %d hashed nonce %d, want %d", i, seen[i], n)
		}
	}
	if r.Nonce != 14 || r.Hash != "0" {
		t.Fatalf("unexpected result %+v", r)
	}
}

type hasherFunc func(chain.Block) (string, error)

func (f hasherFunc) Sum(b chain.Block) (string, error) { return f(b) }

// TestMineFaultStopsSiblings verifies that a single failing worker ends the attempt
// even when the other workers would search forever.
func TestMineFaultStopsSiblings(t *testing.T) {
	const workers = 4
	h := hasherFunc(func(b chain.Block) (string, error) {
		if b.Nonce%workers == 0 {
			return "", errors.New("residue 0 broken")
		}
		return strings.Repeat("f", 128), nil
	})
	m := NewMiner(WithWorkers(workers), WithHasher(h), WithCheckInterval(8))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := m.Mine(ctx, testShell())
	if !errors.Is(err, ErrWorkerFault) {
		t.Fatalf("expected ErrWorkerFault, got %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("siblings were not cancelled by the fault")
	}
}
