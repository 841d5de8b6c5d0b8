package merkle

import (
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

func TestTrieGetMissingKeyReturnsFalse(t *testing.T) {
	tr := NewTrie()
	if _, ok := tr.Get(jamtypes.Hash{1}); ok {
		t.Fatal("expected miss on empty trie")
	}
}

func TestTriePutThenGetRoundTrips(t *testing.T) {
	tr := NewTrie()
	key := jamtypes.Hash{0xAB}
	tr.Put(key, []byte("hello"))

	got, ok := tr.Get(key)
	if !ok || string(got) != "hello" {
		t.Fatalf("expected hello, got %q ok=%v", got, ok)
	}
}

func TestTrieRootChangesWithContent(t *testing.T) {
	tr := NewTrie()
	empty := tr.Root()

	tr.Put(jamtypes.Hash{1}, []byte("a"))
	afterOne := tr.Root()
	if afterOne == empty {
		t.Fatal("expected root to change after insert")
	}

	tr.Put(jamtypes.Hash{2}, []byte("b"))
	afterTwo := tr.Root()
	if afterTwo == afterOne {
		t.Fatal("expected root to change after second insert")
	}
}

func TestTrieHandlesCollidingKeyPrefixes(t *testing.T) {
	tr := NewTrie()
	var a, b jamtypes.Hash
	a[0] = 0x00
	b[0] = 0x01 // differs only in the low bit of byte 0

	tr.Put(a, []byte("a-value"))
	tr.Put(b, []byte("b-value"))

	gotA, ok := tr.Get(a)
	if !ok || string(gotA) != "a-value" {
		t.Fatalf("expected a-value, got %q ok=%v", gotA, ok)
	}
	gotB, ok := tr.Get(b)
	if !ok || string(gotB) != "b-value" {
		t.Fatalf("expected b-value, got %q ok=%v", gotB, ok)
	}
}

func TestTrieOverwriteUpdatesValue(t *testing.T) {
	tr := NewTrie()
	key := jamtypes.Hash{7}
	tr.Put(key, []byte("first"))
	tr.Put(key, []byte("second"))

	got, ok := tr.Get(key)
	if !ok || string(got) != "second" {
		t.Fatalf("expected second, got %q ok=%v", got, ok)
	}
}
