package confighash

import "testing"

func TestHashDeterministic(t *testing.T) {
	cfg := [][]int{{21, 25, 28}, {17}, {17, 22, 17, 19, 17}}
	first, err := Hash(cfg)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(first))
	}
	for i := 0; i < 10; i++ {
		again, err := Hash(cfg)
		if err != nil {
			t.Fatalf("hash failed: %v", err)
		}
		if again != first {
			t.Fatalf("hash not deterministic: %s vs %s", first, again)
		}
	}
}

func TestHashProfileOrderSensitive(t *testing.T) {
	a, _ := Hash([][]int{{1, 2}, {3}})
	b, _ := Hash([][]int{{3}, {1, 2}})
	if a == b {
		t.Fatalf("profile order must affect the hash")
	}

	c, _ := Hash([][]int{{1, 2}})
	d, _ := Hash([][]int{{2, 1}})
	if c == d {
		t.Fatalf("section order must affect the hash")
	}
}

func TestHashEmpty(t *testing.T) {
	empty, err := Hash([][]int{})
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	asNil, err := Hash([][]int(nil))
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if empty == "" || asNil == "" {
		t.Fatalf("empty configurations must still hash")
	}

	p1, _ := HashProfile(nil)
	p2, _ := HashProfile([]int{})
	if p1 != p2 {
		t.Fatalf("nil and empty profile should hash identically")
	}
}

func TestProfileHashes(t *testing.T) {
	cfg := [][]int{{21, 25, 28}, {17}, {21, 25, 28}}
	hashes, err := ProfileHashes(cfg)
	if err != nil {
		t.Fatalf("profile hashes failed: %v", err)
	}
	if len(hashes) != 3 {
		t.Fatalf("expected 3 profile hashes, got %d", len(hashes))
	}
	if hashes[1] != hashes[3] {
		t.Fatalf("identical profiles must share a hash")
	}
	if hashes[1] == hashes[2] {
		t.Fatalf("different profiles must not share a hash")
	}
}
