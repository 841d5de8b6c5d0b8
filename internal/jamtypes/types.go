// Package jamtypes holds the value types shared by every component of the
// JAM state-transition function: hashes, validator keys, the block/header
// wire shapes, work-reports, and the extrinsic families.
package jamtypes

// Hash is a 32-byte digest, used for block hashes, state roots, ticket ids,
// entropy accumulators, and work-package/work-report hashes alike.
type Hash [32]byte

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Less implements a total order used for sorting keyed collections.
func (h Hash) Less(o Hash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

// Ed25519Public is a validator's Ed25519 public key.
type Ed25519Public [32]byte

// BandersnatchPublic is a validator's Bandersnatch public key.
type BandersnatchPublic [32]byte

// BLSPublic is a validator's BLS public key. JAM carries it in the
// validator tuple but no component in this implementation verifies BLS
// signatures against it (see DESIGN.md).
type BLSPublic [144]byte

// Metadata is the free-form 128-byte metadata field of a validator entry.
type Metadata [128]byte

// ValidatorKey is one entry of a validator set: bandersnatch, ed25519, bls
// public keys plus metadata, per spec.md §3.
type ValidatorKey struct {
	Bandersnatch BandersnatchPublic
	Ed25519      Ed25519Public
	BLS          BLSPublic
	Metadata     Metadata
}

// IsZero reports whether every field of the key is zeroed, which is the
// representation used for nulled-out offender entries (spec.md invariant:
// "For every offender key o, γ_k[i] = zero key").
func (v ValidatorKey) IsZero() bool {
	return v == ValidatorKey{}
}

// Zero returns the all-zero validator key used to null out offenders.
func Zero() ValidatorKey { return ValidatorKey{} }

// TimeSlot is a monotonically increasing 32-bit slot number.
type TimeSlot uint32

// CoreIndex identifies one of the C parallel cores.
type CoreIndex uint16

// ValidatorIndex identifies a validator within a V-sized sequence.
type ValidatorIndex uint16

// ServiceID identifies a service account.
type ServiceID uint32

// VrfSignature is a Bandersnatch (IETF or Ring) VRF proof. Real JAM encodes
// these as a fixed-size byte string (the Ring-VRF proof size is independent
// of ring size because it is built from a polynomial commitment scheme);
// this implementation's simplified ring-signature construction (see
// internal/crypto/ring.go) produces a proof whose size grows with the ring,
// so the wire type here is a length-prefixed byte string rather than a
// fixed array (documented deviation, see DESIGN.md).
type VrfSignature []byte

// BandersnatchRingCommitment is the serialized ring commitment over a
// validator set's Bandersnatch keys (γ_z).
type BandersnatchRingCommitment [144]byte

// EpochMarkEntry is one (bandersnatch, ed25519) pair published in a header's
// epoch mark.
type EpochMarkEntry struct {
	Bandersnatch BandersnatchPublic
	Ed25519      Ed25519Public
}

// EpochMark is emitted on an epoch boundary; compared against the
// block header for acceptance.
type EpochMark struct {
	Entropy1   Hash
	Entropy2   Hash
	Validators []EpochMarkEntry
}

// TicketsMark is the outside-in-ordered ticket-id sequence emitted once the
// accumulator saturates and the submission window has closed.
type TicketsMark struct {
	IDs []Hash
}

// Ticket is one entry of the ticket extrinsic: an attempt number and a
// Ring-VRF proof.
type Ticket struct {
	Attempt uint8
	Proof   VrfSignature
}

// UnsignedHeader is the header sans seal signature.
type UnsignedHeader struct {
	Parent           Hash
	ParentStateRoot  Hash
	ExtrinsicHash    Hash
	Slot             TimeSlot
	EpochMark        *EpochMark
	TicketsMark      *TicketsMark
	AuthorIndex      uint16
	EntropySource    VrfSignature
	OffendersMark    []Ed25519Public
}

// Header is a signed block header.
type Header struct {
	UnsignedHeader
	Seal VrfSignature
}

// Preimage is a (service, blob) pair submitted by the preimages extrinsic.
type Preimage struct {
	ServiceID ServiceID
	Blob      []byte
}

// WorkContext carries the anchor and dependency data a work-report needs to
// be admissible for accumulation.
type WorkContext struct {
	Anchor             Hash
	StateRoot          Hash
	BeefyMMRRoot       Hash
	LookupAnchor       Hash
	LookupAnchorSlot   TimeSlot
	Prerequisites      []Hash
}

// SegmentRootLookupEntry maps a work-package hash to its exports-root hash.
type SegmentRootLookupEntry struct {
	WorkPackageHash Hash
	SegmentRoot     Hash
}

// WorkResult is one item's execution outcome within a work-report.
type WorkResult struct {
	ServiceID  ServiceID
	CodeHash   Hash
	PayloadHash Hash
	AccumulateGas uint64
	Output     []byte // either the 32-byte success blob or an error marker
	OK         bool
}

// WorkReport is the succinct authenticated claim produced by guarantors.
type WorkReport struct {
	PackageHash       Hash
	WorkPackageHash   Hash
	ExportsRoot       Hash
	CoreIndex         CoreIndex
	AuthorizerHash    Hash
	AuthOutput        []byte
	Context           WorkContext
	SegmentRootLookup []SegmentRootLookupEntry
	Results           []WorkResult
}

// Dependencies returns the set of hashes this report must wait on before it
// may accumulate (spec.md §4.I): prerequisites union segment-root-lookup
// hashes.
func (r WorkReport) Dependencies() []Hash {
	deps := make([]Hash, 0, len(r.Context.Prerequisites)+len(r.SegmentRootLookup))
	deps = append(deps, r.Context.Prerequisites...)
	for _, e := range r.SegmentRootLookup {
		deps = append(deps, e.WorkPackageHash)
	}
	return deps
}

// Guarantee is a signed endorsement of a work-report.
type Guarantee struct {
	Report     WorkReport
	Slot       TimeSlot
	Signatures []GuarantorSignature
}

// GuarantorSignature is one validator's signature over a guaranteed report.
type GuarantorSignature struct {
	ValidatorIndex ValidatorIndex
	Signature      [64]byte
}

// Assurance is a signed per-validator bitfield of available cores.
type Assurance struct {
	Anchor         Hash
	Bitfield       []byte
	ValidatorIndex ValidatorIndex
	Signature      [64]byte
}

// Judgement is one validator's vote within a verdict.
type Judgement struct {
	Valid          bool
	ValidatorIndex ValidatorIndex
	Signature      [64]byte
}

// Verdict classifies a disputed report hash by its judgements.
type Verdict struct {
	Target     Hash
	Age        uint32
	Judgements []Judgement
}

// Culprit asserts that a guarantor signed a now-invalid report.
type Culprit struct {
	Target    Hash
	Key       Ed25519Public
	Signature [64]byte
}

// Fault asserts a contradicting judge.
type Fault struct {
	Target    Hash
	Valid     bool
	Key       Ed25519Public
	Signature [64]byte
}

// DisputesExtrinsic bundles verdicts/culprits/faults.
type DisputesExtrinsic struct {
	Verdicts []Verdict
	Culprits []Culprit
	Faults   []Fault
}

// Extrinsic is the full block extrinsic bundle, in wire order.
type Extrinsic struct {
	Tickets   []Ticket
	Preimages []Preimage
	Guarantees []Guarantee
	Assurances []Assurance
	Disputes   DisputesExtrinsic
}

// Block is Header ‖ Extrinsic.
type Block struct {
	Header     Header
	Extrinsic  Extrinsic
}
