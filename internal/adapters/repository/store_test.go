package repository_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	repository "github.com/verax/verax/internal/adapters/repository"
	"github.com/verax/verax/internal/domain/model"
)

func key(b byte) model.IdentityKey {
	var k model.IdentityKey
	k[0] = b
	return k
}

// storeUnderTest runs the same contract suite against every backend.
func storeUnderTest(t *testing.T, name string, open func(t *testing.T) repository.BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run(name+"/absent key reads as empty bytes", func(t *testing.T) {
		s := open(t)
		buf, err := s.Get(ctx, key(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(buf) != 0 {
			t.Errorf("expected empty buffer, got %d bytes", len(buf))
		}
		if size, _ := s.Size(ctx, key(1)); size != 0 {
			t.Errorf("expected size 0, got %d", size)
		}
	})

	t.Run(name+"/append creates then extends", func(t *testing.T) {
		s := open(t)
		if err := s.Append(ctx, key(1), []byte("abc")); err != nil {
			t.Fatalf("create append failed: %v", err)
		}
		if err := s.Append(ctx, key(1), []byte("def")); err != nil {
			t.Fatalf("extend append failed: %v", err)
		}

		buf, err := s.Get(ctx, key(1))
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !bytes.Equal(buf, []byte("abcdef")) {
			t.Errorf("expected abcdef, got %q", buf)
		}
		if size, _ := s.Size(ctx, key(1)); size != 6 {
			t.Errorf("expected size 6, got %d", size)
		}
	})

	t.Run(name+"/reads are idempotent snapshots", func(t *testing.T) {
		s := open(t)
		if err := s.Append(ctx, key(1), []byte("abc")); err != nil {
			t.Fatalf("append failed: %v", err)
		}

		first, _ := s.Get(ctx, key(1))
		second, _ := s.Get(ctx, key(1))
		if !bytes.Equal(first, second) {
			t.Error("two reads with no intervening append differ")
		}

		// Mutating a returned snapshot must not corrupt the ledger.
		first[0] = 'X'
		third, _ := s.Get(ctx, key(1))
		if !bytes.Equal(third, []byte("abc")) {
			t.Errorf("snapshot mutation leaked into store: %q", third)
		}
	})

	t.Run(name+"/keys are independent", func(t *testing.T) {
		s := open(t)
		if err := s.Append(ctx, key(1), []byte("one")); err != nil {
			t.Fatal(err)
		}
		if err := s.Append(ctx, key(2), []byte("two")); err != nil {
			t.Fatal(err)
		}

		one, _ := s.Get(ctx, key(1))
		two, _ := s.Get(ctx, key(2))
		if !bytes.Equal(one, []byte("one")) || !bytes.Equal(two, []byte("two")) {
			t.Errorf("cross-key contamination: %q / %q", one, two)
		}
		if n := s.Count(ctx); n != 2 {
			t.Errorf("expected 2 ledgers, got %d", n)
		}
	})

	t.Run(name+"/append past the ceiling fails loudly", func(t *testing.T) {
		s := open(t)
		if err := s.Append(ctx, key(1), make([]byte, 30)); err != nil {
			t.Fatal(err)
		}
		err := s.Append(ctx, key(1), make([]byte, 40))
		if !errors.Is(err, repository.ErrLedgerFull) {
			t.Fatalf("expected ErrLedgerFull, got %v", err)
		}

		// The failed append must not have touched the buffer.
		buf, _ := s.Get(ctx, key(1))
		if len(buf) != 30 {
			t.Errorf("failed append modified buffer: %d bytes", len(buf))
		}
	})

	t.Run(name+"/put replaces a whole buffer", func(t *testing.T) {
		s := open(t)
		if err := s.Put(ctx, key(1), []byte("first")); err != nil {
			t.Fatal(err)
		}
		if err := s.Put(ctx, key(1), []byte("second")); err != nil {
			t.Fatal(err)
		}
		buf, _ := s.Get(ctx, key(1))
		if !bytes.Equal(buf, []byte("second")) {
			t.Errorf("expected second, got %q", buf)
		}
	})

	t.Run(name+"/concurrent appends to distinct keys", func(t *testing.T) {
		s := open(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if err := s.Append(ctx, key(byte(i)), []byte{byte(j)}); err != nil {
						t.Errorf("append failed: %v", err)
						return
					}
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < 8; i++ {
			buf, _ := s.Get(ctx, key(byte(i)))
			if len(buf) != 10 {
				t.Errorf("key %d: expected 10 bytes, got %d", i, len(buf))
			}
		}
	})
}

func TestMemStore(t *testing.T) {
	storeUnderTest(t, "mem", func(t *testing.T) repository.BlobStore {
		return repository.NewMemStore(repository.WithMaxLedgerBytes(64))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeUnderTest(t, "sqlite", func(t *testing.T) repository.BlobStore {
		s, err := repository.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "ledger.db"),
			repository.WithMaxLedgerBytes(64))
		if err != nil {
			t.Fatalf("failed to open sqlite store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
