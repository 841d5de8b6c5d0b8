package pvm

import "testing"

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	m := NewMemory()
	m.Map(0, PageSize, AccessWrite)
	if err := m.Write(10, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := m.Read(10, 3)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected read: %v", got)
	}
}

func TestMemoryReadOnlyPageRejectsWrite(t *testing.T) {
	m := NewMemory()
	m.Map(0, PageSize, AccessRead)
	if err := m.Write(0, []byte{1}); err == nil {
		t.Fatal("expected page fault writing to read-only page")
	}
}

func TestMemoryUnmappedAccessFaults(t *testing.T) {
	m := NewMemory()
	if _, err := m.Read(0, 1); err == nil {
		t.Fatal("expected page fault reading unmapped page")
	}
}
