package codec

import (
	"bytes"
	"testing"
)

func TestCompactUnsignedRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 255, 256, 1 << 14, 1 << 21, 1 << 28, 1 << 35, 1 << 42, 1 << 49, 1 << 56, ^uint64(0)}
	for _, v := range cases {
		enc := EncodeUnsigned(v)
		got, n, err := DecodeUnsigned(enc)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if n != len(enc) {
			t.Fatalf("decode(%d): consumed %d, want %d", v, n, len(enc))
		}
		if got != v {
			t.Fatalf("round trip mismatch: got %d want %d", got, v)
		}
	}
}

func TestEncodeUnsignedSingleByte(t *testing.T) {
	if got := EncodeUnsigned(42); !bytes.Equal(got, []byte{42}) {
		t.Fatalf("got %x", got)
	}
}

func TestDecodeUnsignedNotEnoughData(t *testing.T) {
	if _, _, err := DecodeUnsigned(nil); err != ErrNotEnoughData {
		t.Fatalf("got %v", err)
	}
	// first byte claims 2 extra bytes but none are supplied.
	if _, _, err := DecodeUnsigned([]byte{0xC0}); err != ErrNotEnoughData {
		t.Fatalf("got %v", err)
	}
}

func TestMarshalOptionRoundTrip(t *testing.T) {
	enc := MarshalOption(true, []byte{1, 2, 3})
	present, rest, err := DecodeOptionTag(enc)
	if err != nil || !present || !bytes.Equal(rest, []byte{1, 2, 3}) {
		t.Fatalf("present=%v rest=%x err=%v", present, rest, err)
	}

	enc2 := MarshalOption(false, nil)
	present2, rest2, err2 := DecodeOptionTag(enc2)
	if err2 != nil || present2 || len(rest2) != 0 {
		t.Fatalf("present=%v rest=%x err=%v", present2, rest2, err2)
	}
}

func TestMarshalMapSortsKeys(t *testing.T) {
	pairs := []KV{
		{Key: []byte{3}, Value: []byte{0xAA}},
		{Key: []byte{1}, Value: []byte{0xBB}},
		{Key: []byte{2}, Value: []byte{0xCC}},
	}
	enc := MarshalMap(pairs)
	want := append(EncodeUnsigned(3), []byte{1, 0xBB, 2, 0xCC, 3, 0xAA}...)
	if !bytes.Equal(enc, want) {
		t.Fatalf("got %x want %x", enc, want)
	}
}

func TestReaderSequentialDecode(t *testing.T) {
	w := NewWriter()
	w.Write(EncodeUnsigned(5))
	w.Write(MarshalUint32(7))
	r := NewReader(w.Bytes())
	v, err := r.ReadUnsigned()
	if err != nil || v != 5 {
		t.Fatalf("v=%d err=%v", v, err)
	}
	b, err := r.ReadN(4)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalUint32(b)
	if err != nil || got != 7 {
		t.Fatalf("got=%d err=%v", got, err)
	}
}
