// This file mirrors the original vinwolf implementation's split between a
// generic codec and a dedicated work-report codec unit (src/codec/jam_codec
// /work_report.rs, src/utils/codec/work_report.rs) rather than folding
// work-report encoding into the generic container encoder.
package codec

import (
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

// MarshalHash encodes a fixed 32-byte hash with no length prefix.
func MarshalHash(h jamtypes.Hash) []byte {
	out := make([]byte, 32)
	copy(out, h[:])
	return out
}

// MarshalWorkContext encodes a WorkContext container.
func MarshalWorkContext(c jamtypes.WorkContext) []byte {
	w := NewWriter()
	w.Write(MarshalHash(c.Anchor))
	w.Write(MarshalHash(c.StateRoot))
	w.Write(MarshalHash(c.BeefyMMRRoot))
	w.Write(MarshalHash(c.LookupAnchor))
	w.Write(MarshalUint32(uint32(c.LookupAnchorSlot)))
	prereqs := make([][]byte, len(c.Prerequisites))
	for i, p := range c.Prerequisites {
		prereqs[i] = MarshalHash(p)
	}
	w.Write(MarshalVec(prereqs))
	return w.Bytes()
}

// MarshalSegmentRootLookup encodes the segment-root-lookup vector.
func MarshalSegmentRootLookup(entries []jamtypes.SegmentRootLookupEntry) []byte {
	items := make([][]byte, len(entries))
	for i, e := range entries {
		w := NewWriter()
		w.Write(MarshalHash(e.WorkPackageHash))
		w.Write(MarshalHash(e.SegmentRoot))
		items[i] = w.Bytes()
	}
	return MarshalVec(items)
}

// MarshalWorkResult encodes one WorkResult entry. The output payload is
// itself length-prefixed inside the Option so a sequence of WorkResults
// stays self-delimiting regardless of payload size.
func MarshalWorkResult(r jamtypes.WorkResult) []byte {
	w := NewWriter()
	w.Write(MarshalUint32(uint32(r.ServiceID)))
	w.Write(MarshalHash(r.CodeHash))
	w.Write(MarshalHash(r.PayloadHash))
	w.Write(MarshalUint64(r.AccumulateGas))
	if !r.OK {
		w.Write(MarshalOption(false, nil))
	} else {
		payload := append(EncodeUnsigned(uint64(len(r.Output))), r.Output...)
		w.Write(MarshalOption(true, payload))
	}
	return w.Bytes()
}

// MarshalWorkReport encodes a full WorkReport, the unit hashed for
// guarantee signatures (spec.md §4.H: "jam_guarantee" ‖ H2(encode(report))).
func MarshalWorkReport(r jamtypes.WorkReport) []byte {
	w := NewWriter()
	w.Write(MarshalHash(r.WorkPackageHash))
	w.Write(MarshalHash(r.ExportsRoot))
	w.Write(MarshalUint16(uint16(r.CoreIndex)))
	w.Write(MarshalHash(r.AuthorizerHash))
	w.Write(EncodeUnsigned(uint64(len(r.AuthOutput))))
	w.Write(r.AuthOutput)
	w.Write(MarshalWorkContext(r.Context))
	w.Write(MarshalSegmentRootLookup(r.SegmentRootLookup))
	results := make([][]byte, len(r.Results))
	for i, res := range r.Results {
		results[i] = MarshalWorkResult(res)
	}
	w.Write(MarshalVec(results))
	return w.Bytes()
}
