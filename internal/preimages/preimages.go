// Package preimages implements spec.md §2's "services-preimages.process"
// step: for each (service, blob) pair in a block's preimages extrinsic,
// the blob is accepted only if the service previously solicited its hash
// (an entry in δ[service].Lookup with no slots recorded yet) and has not
// already been provided it. Accepted blobs are stored and their lookup
// entry is stamped with the current slot, mirroring the historical-lookup
// bookkeeping the teacher's state package keeps for other per-block
// append-only records.
package preimages

import (
	"errors"
	"sort"

	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

// Code enumerates preimages-extrinsic validation failures.
type Code int

const (
	_ Code = iota
	NotSortedOrUniquePreimages
	PreimageUnneeded
	UnknownService
)

var codeNames = map[Code]string{
	NotSortedOrUniquePreimages: "NotSortedOrUniquePreimages",
	PreimageUnneeded:           "PreimageUnneeded",
	UnknownService:             "UnknownService",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "Unknown"
}

// Error pairs a Code with context.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return "preimages: " + e.Code.String() + ": " + e.Msg }

func fail(code Code, msg string) error { return &Error{Code: code, Msg: msg} }

var errNilHandler = errors.New("preimages: nil handler")

// Process validates ex (sorted ascending by (ServiceID, blob hash), each
// entry solicited and not yet provided) and stores each accepted blob
// under its hash, stamping the lookup entry with slot.
func Process(h *jamstate.Handler, ex []jamtypes.Preimage, slot jamtypes.TimeSlot) error {
	if h == nil {
		return errNilHandler
	}
	if !sort.SliceIsSorted(ex, func(i, j int) bool {
		if ex[i].ServiceID != ex[j].ServiceID {
			return ex[i].ServiceID < ex[j].ServiceID
		}
		hi := crypto.Blake2b256(ex[i].Blob)
		hj := crypto.Blake2b256(ex[j].Blob)
		return hi.Less(hj)
	}) {
		return fail(NotSortedOrUniquePreimages, "preimages not sorted by (service, hash)")
	}
	for i := 1; i < len(ex); i++ {
		if ex[i].ServiceID == ex[i-1].ServiceID && crypto.Blake2b256(ex[i].Blob) == crypto.Blake2b256(ex[i-1].Blob) {
			return fail(NotSortedOrUniquePreimages, "duplicate preimage entry")
		}
	}

	for _, p := range ex {
		acc, ok := h.Service(p.ServiceID)
		if !ok {
			return fail(UnknownService, "preimage targets unknown service")
		}
		key := crypto.Blake2b256(p.Blob)
		slots, solicited := acc.Lookup[key]
		if !solicited || len(slots) != 0 {
			return fail(PreimageUnneeded, "preimage not solicited or already provided")
		}
		acc.Preimages[key] = append([]byte(nil), p.Blob...)
		acc.Lookup[key] = append(slots, slot)
		h.SetService(p.ServiceID, acc)
	}
	return nil
}
