package header

import (
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

func sampleExtrinsic() jamtypes.Extrinsic {
	return jamtypes.Extrinsic{
		Tickets: []jamtypes.Ticket{{Attempt: 0, Proof: []byte{1, 2, 3}}},
		Preimages: []jamtypes.Preimage{{ServiceID: 1, Blob: []byte("hello")}},
		Guarantees: []jamtypes.Guarantee{{
			Report: jamtypes.WorkReport{CoreIndex: 0},
			Slot:   5,
			Signatures: []jamtypes.GuarantorSignature{{ValidatorIndex: 2}},
		}},
		Assurances: []jamtypes.Assurance{{ValidatorIndex: 1, Bitfield: []byte{0xFF}}},
		Disputes: jamtypes.DisputesExtrinsic{
			Culprits: []jamtypes.Culprit{{Key: jamtypes.Ed25519Public{1}}},
			Faults:   []jamtypes.Fault{{Key: jamtypes.Ed25519Public{2}}},
		},
	}
}

func TestComputeExtrinsicHashDeterministic(t *testing.T) {
	ex := sampleExtrinsic()
	h1 := ComputeExtrinsicHash(ex)
	h2 := ComputeExtrinsicHash(ex)
	if h1 != h2 {
		t.Fatal("extrinsic hash not deterministic")
	}
}

func TestComputeExtrinsicHashChangesWithContent(t *testing.T) {
	ex := sampleExtrinsic()
	h1 := ComputeExtrinsicHash(ex)
	ex.Tickets[0].Attempt = 1
	h2 := ComputeExtrinsicHash(ex)
	if h1 == h2 {
		t.Fatal("extrinsic hash did not change with content")
	}
}

func TestVerifyRejectsBadExtrinsicHash(t *testing.T) {
	ex := sampleExtrinsic()
	h := jamtypes.Header{UnsignedHeader: jamtypes.UnsignedHeader{
		ExtrinsicHash: jamtypes.Hash{0xDE, 0xAD},
		AuthorIndex:   0,
	}}
	err := Verify(params.Tiny, h, ex, 0, ParentInfo{}, true)
	he, ok := err.(*Error)
	if !ok || he.Code != BadExtrinsicHash {
		t.Fatalf("expected BadExtrinsicHash, got %v", err)
	}
}

func TestVerifyRejectsBadAuthorIndex(t *testing.T) {
	ex := sampleExtrinsic()
	h := jamtypes.Header{UnsignedHeader: jamtypes.UnsignedHeader{
		ExtrinsicHash: ComputeExtrinsicHash(ex),
		AuthorIndex:   uint16(params.Tiny.ValidatorsCount) + 10,
		OffendersMark: []jamtypes.Ed25519Public{{1}, {2}},
	}}
	err := Verify(params.Tiny, h, ex, 0, ParentInfo{}, true)
	he, ok := err.(*Error)
	if !ok || he.Code != BadValidatorIndex {
		t.Fatalf("expected BadValidatorIndex, got %v", err)
	}
}

func TestVerifyRejectsOffendersMarkerMismatch(t *testing.T) {
	ex := sampleExtrinsic()
	h := jamtypes.Header{UnsignedHeader: jamtypes.UnsignedHeader{
		ExtrinsicHash: ComputeExtrinsicHash(ex),
		AuthorIndex:   0,
		OffendersMark: []jamtypes.Ed25519Public{{1}},
	}}
	err := Verify(params.Tiny, h, ex, 0, ParentInfo{}, true)
	he, ok := err.(*Error)
	if !ok || he.Code != BadOffenders {
		t.Fatalf("expected BadOffenders, got %v", err)
	}
}

func TestVerifyAcceptsWellFormedHeader(t *testing.T) {
	ex := sampleExtrinsic()
	h := jamtypes.Header{UnsignedHeader: jamtypes.UnsignedHeader{
		ExtrinsicHash: ComputeExtrinsicHash(ex),
		AuthorIndex:   0,
		OffendersMark: []jamtypes.Ed25519Public{{1}, {2}},
	}}
	if err := Verify(params.Tiny, h, ex, 0, ParentInfo{}, true); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestVerifyChecksParentLinkage(t *testing.T) {
	ex := sampleExtrinsic()
	parent := ParentInfo{HeaderHash: jamtypes.Hash{1}, StateRoot: jamtypes.Hash{2}}
	h := jamtypes.Header{UnsignedHeader: jamtypes.UnsignedHeader{
		ExtrinsicHash:   ComputeExtrinsicHash(ex),
		AuthorIndex:     0,
		OffendersMark:   []jamtypes.Ed25519Public{{1}, {2}},
		Slot:            6,
		Parent:          jamtypes.Hash{0xFF},
		ParentStateRoot: parent.StateRoot,
	}}
	err := Verify(params.Tiny, h, ex, 5, parent, false)
	he, ok := err.(*Error)
	if !ok || he.Code != BadParentHeader {
		t.Fatalf("expected BadParentHeader, got %v", err)
	}
}
