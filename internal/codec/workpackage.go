package codec

import "github.com/bloppan/vinwolf-sub001/internal/jamtypes"

// WorkPackage is the pre-guarantee unit a work-report is produced from: a
// bundle of work items plus the authorization and context data the
// guarantors need to reproduce the report deterministically. It is kept
// separate from WorkReport (mirroring the original implementation's
// work/package.rs split) because packages and reports have independent
// wire encodings: a package is gossiped/refined off-core, a report is what
// guarantors sign and what this STF actually consumes.
type WorkPackage struct {
	AuthorizerHash jamtypes.Hash
	AuthConfig     []byte
	Context        jamtypes.WorkContext
	Items          []WorkItem
}

// WorkItem is one unit of off-core computation within a WorkPackage.
type WorkItem struct {
	ServiceID   jamtypes.ServiceID
	CodeHash    jamtypes.Hash
	Payload     []byte
	RefineGasLimit uint64
	AccumulateGasLimit uint64
}

// MarshalWorkItem encodes a single WorkItem.
func MarshalWorkItem(it WorkItem) []byte {
	w := NewWriter()
	w.Write(MarshalUint32(uint32(it.ServiceID)))
	w.Write(MarshalHash(it.CodeHash))
	w.Write(MarshalVec([][]byte{it.Payload}))
	w.Write(MarshalUint64(it.RefineGasLimit))
	w.Write(MarshalUint64(it.AccumulateGasLimit))
	return w.Bytes()
}

// MarshalWorkPackage encodes a WorkPackage. Its hash (Blake2b-256 of this
// encoding) is the WorkPackageHash carried by every WorkReport derived from
// it, and is what SegmentRootLookup entries and Context.Prerequisites key
// on.
func MarshalWorkPackage(p WorkPackage) []byte {
	w := NewWriter()
	w.Write(MarshalHash(p.AuthorizerHash))
	w.Write(MarshalVec([][]byte{p.AuthConfig}))
	w.Write(MarshalWorkContext(p.Context))
	items := make([][]byte, len(p.Items))
	for i, it := range p.Items {
		items[i] = MarshalWorkItem(it)
	}
	w.Write(MarshalVec(items))
	return w.Bytes()
}
