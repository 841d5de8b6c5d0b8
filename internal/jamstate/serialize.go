package jamstate

import (
	"sort"

	"github.com/bloppan/vinwolf-sub001/internal/codec"
	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

// Segment discriminants for the fixed (non service-scoped) state entries.
// Spec §4.K leaves the exact key layout to the implementation ("single-byte
// discriminant for fixed segments... see DESIGN.md"); this module's choice
// is a 32-byte key of {discriminant, 0, 0, ..., 0}, which is internally
// consistent (Serialize/FromKeyvals are exact inverses) and reproducible
// byte-for-byte given the same σ, satisfying the testable property in
// spec §8 without claiming bit-compatibility with any other implementation.
const (
	segTime = iota + 1
	segEntropy
	segValidatorsPrev
	segValidatorsCurr
	segValidatorsNext
	segSafrole
	segDisputes
	segAvailability
	segAuthPools
	segAuthQueues
	segRecentHistory
	segPrivileges
	segAccumulationHistory
	segReadyQueue
	segStatistics
)

// serviceInfoPrefix / serviceDataPrefix distinguish a service's metadata
// entry from its storage/preimage/lookup entries, per spec §4.K's
// "(0xFF ‖ service_id ‖ 0…) for service-info" / "(service-id interleaved
// with hash bytes) for storage/preimage/lookup" scheme.
const (
	serviceInfoPrefix = 0xFF
	serviceDataPrefix = 0xFE
)

func fixedKey(discriminant byte) jamtypes.Hash {
	var k jamtypes.Hash
	k[0] = discriminant
	return k
}

func serviceInfoKey(id jamtypes.ServiceID) jamtypes.Hash {
	var k jamtypes.Hash
	k[0] = serviceInfoPrefix
	k[1], k[2], k[3], k[4] = byte(id), byte(id>>8), byte(id>>16), byte(id>>24)
	return k
}

// serviceDataKey derives a deterministic, service-scoped key for one
// storage/preimage/lookup entry, so any number of entries across any number
// of services can coexist in the single flat keyval map without collision.
func serviceDataKey(id jamtypes.ServiceID, kind byte, entryKey jamtypes.Hash) jamtypes.Hash {
	var idBuf [4]byte
	idBuf[0], idBuf[1], idBuf[2], idBuf[3] = byte(id), byte(id>>8), byte(id>>16), byte(id>>24)
	h := crypto.Blake2b256([]byte{serviceDataPrefix, kind}, idBuf[:], entryKey[:])
	h[0] = serviceDataPrefix
	return h
}

func marshalValidator(w *codec.Writer, v jamtypes.ValidatorKey) {
	w.Write(v.Bandersnatch[:])
	w.Write(v.Ed25519[:])
	w.Write(v.BLS[:])
	w.Write(v.Metadata[:])
}

func unmarshalValidator(r *codec.Reader) (jamtypes.ValidatorKey, error) {
	var v jamtypes.ValidatorKey
	b, err := r.ReadN(32)
	if err != nil {
		return v, err
	}
	copy(v.Bandersnatch[:], b)
	b, err = r.ReadN(32)
	if err != nil {
		return v, err
	}
	copy(v.Ed25519[:], b)
	b, err = r.ReadN(144)
	if err != nil {
		return v, err
	}
	copy(v.BLS[:], b)
	b, err = r.ReadN(128)
	if err != nil {
		return v, err
	}
	copy(v.Metadata[:], b)
	return v, nil
}

func marshalValidators(w *codec.Writer, vs []jamtypes.ValidatorKey) {
	for _, v := range vs {
		marshalValidator(w, v)
	}
}

func unmarshalValidators(r *codec.Reader, n int) ([]jamtypes.ValidatorKey, error) {
	out := make([]jamtypes.ValidatorKey, n)
	for i := 0; i < n; i++ {
		v, err := unmarshalValidator(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Serialize produces the flat (key, value) view of σ used solely for
// Merkle-root computation (spec §4.C, §4.K).
func (s *State) Serialize() map[jamtypes.Hash][]byte {
	out := make(map[jamtypes.Hash][]byte)

	w := codec.NewWriter()
	w.Write(codec.MarshalUint32(uint32(s.Time)))
	out[fixedKey(segTime)] = w.Bytes()

	w = codec.NewWriter()
	for _, e := range s.Entropy {
		w.Write(e[:])
	}
	out[fixedKey(segEntropy)] = w.Bytes()

	w = codec.NewWriter()
	marshalValidators(w, s.PrevValidators)
	out[fixedKey(segValidatorsPrev)] = w.Bytes()
	w = codec.NewWriter()
	marshalValidators(w, s.CurrValidators)
	out[fixedKey(segValidatorsCurr)] = w.Bytes()
	w = codec.NewWriter()
	marshalValidators(w, s.NextValidators)
	out[fixedKey(segValidatorsNext)] = w.Bytes()

	out[fixedKey(segSafrole)] = marshalSafrole(s.Safrole)
	out[fixedKey(segDisputes)] = marshalDisputes(s.Disputes)
	out[fixedKey(segAvailability)] = marshalAvailability(s.Availability)
	out[fixedKey(segAuthPools)] = marshalHashLists(s.AuthPools)
	out[fixedKey(segAuthQueues)] = marshalHashLists(s.AuthQueues)
	out[fixedKey(segRecentHistory)] = marshalRecentHistory(s.RecentHistory)
	out[fixedKey(segPrivileges)] = marshalPrivileges(s.Privileges)
	out[fixedKey(segAccumulationHistory)] = marshalHashLists(s.AccumulationHistory)
	out[fixedKey(segReadyQueue)] = marshalReadyQueue(s.ReadyQueue)
	out[fixedKey(segStatistics)] = marshalStatistics(s.Statistics)

	ids := make([]jamtypes.ServiceID, 0, len(s.Services))
	for id := range s.Services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		acc := s.Services[id]
		out[serviceInfoKey(id)] = marshalServiceInfo(acc)

		storageKeys := sortedHashKeys(acc.Storage)
		for _, k := range storageKeys {
			out[serviceDataKey(id, dataKindStorage, k)] = wrapServiceData(id, dataKindStorage, k, acc.Storage[k])
		}
		preimageKeys := sortedHashKeys(acc.Preimages)
		for _, k := range preimageKeys {
			out[serviceDataKey(id, dataKindPreimage, k)] = wrapServiceData(id, dataKindPreimage, k, acc.Preimages[k])
		}
		lookupKeys := make([]jamtypes.Hash, 0, len(acc.Lookup))
		for k := range acc.Lookup {
			lookupKeys = append(lookupKeys, k)
		}
		sort.Slice(lookupKeys, func(i, j int) bool { return lookupKeys[i].Less(lookupKeys[j]) })
		for _, k := range lookupKeys {
			lw := codec.NewWriter()
			slots := acc.Lookup[k]
			lw.Write(codec.EncodeUnsigned(uint64(len(slots))))
			for _, sl := range slots {
				lw.Write(codec.MarshalUint32(uint32(sl)))
			}
			out[serviceDataKey(id, dataKindLookup, k)] = wrapServiceData(id, dataKindLookup, k, lw.Bytes())
		}
	}

	return out
}

// Service data-entry kinds, embedded in both the derived key (for
// collision avoidance) and the value header (since serviceDataKey is a
// one-way hash, FromKeyvals recovers the owning (service, kind, entry-key)
// triple from the header rather than the key).
const (
	dataKindStorage = iota
	dataKindPreimage
	dataKindLookup
)

func wrapServiceData(id jamtypes.ServiceID, kind byte, entryKey jamtypes.Hash, payload []byte) []byte {
	w := codec.NewWriter()
	w.Write(codec.MarshalUint32(uint32(id)))
	w.Write([]byte{kind})
	w.Write(entryKey[:])
	w.Write(payload)
	return w.Bytes()
}

func sortedHashKeys(m map[jamtypes.Hash][]byte) []jamtypes.Hash {
	keys := make([]jamtypes.Hash, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func marshalSafrole(g Safrole) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(g.PendingValidators))))
	marshalValidators(w, g.PendingValidators)
	w.Write(codec.EncodeUnsigned(uint64(len(g.TicketAccumulator))))
	for _, t := range g.TicketAccumulator {
		w.Write([]byte{t.Attempt})
		w.Write(codec.EncodeUnsigned(uint64(len(t.Proof))))
		w.Write(t.Proof)
	}
	w.Write([]byte{byte(g.Seal.Kind)})
	switch g.Seal.Kind {
	case SealTickets:
		w.Write(codec.EncodeUnsigned(uint64(len(g.Seal.Tickets))))
		for _, t := range g.Seal.Tickets {
			w.Write([]byte{t.Attempt})
			w.Write(codec.EncodeUnsigned(uint64(len(t.Proof))))
			w.Write(t.Proof)
		}
	case SealKeys:
		w.Write(codec.EncodeUnsigned(uint64(len(g.Seal.Keys))))
		for _, k := range g.Seal.Keys {
			w.Write(k[:])
		}
	}
	w.Write(g.EpochRoot[:])
	return w.Bytes()
}

func marshalDisputes(d Disputes) []byte {
	w := codec.NewWriter()
	for _, set := range [][]jamtypes.Hash{d.Good, d.Bad, d.Wonky} {
		w.Write(codec.EncodeUnsigned(uint64(len(set))))
		for _, h := range set {
			w.Write(h[:])
		}
	}
	w.Write(codec.EncodeUnsigned(uint64(len(d.Offenders))))
	for _, o := range d.Offenders {
		w.Write(o[:])
	}
	return w.Bytes()
}

func marshalAvailability(a []AvailabilitySlot) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(a))))
	for _, slot := range a {
		if slot.Report == nil {
			w.Write([]byte{0})
			continue
		}
		w.Write([]byte{1})
		w.Write(codec.MarshalUint32(uint32(slot.Timeout)))
		rep := codec.MarshalWorkReport(*slot.Report)
		w.Write(codec.EncodeUnsigned(uint64(len(rep))))
		w.Write(rep)
	}
	return w.Bytes()
}

func marshalHashLists(ls [][]jamtypes.Hash) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(ls))))
	for _, l := range ls {
		w.Write(codec.EncodeUnsigned(uint64(len(l))))
		for _, h := range l {
			w.Write(h[:])
		}
	}
	return w.Bytes()
}

func marshalRecentHistory(hist []RecentHistoryEntry) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(hist))))
	for _, e := range hist {
		w.Write(e.HeaderHash[:])
		w.Write(e.StateRoot[:])
		w.Write(codec.EncodeUnsigned(uint64(len(e.MMRPeaks))))
		for _, p := range e.MMRPeaks {
			w.Write(p[:])
		}
		w.Write(codec.EncodeUnsigned(uint64(len(e.ReportedPackages))))
		for _, rp := range e.ReportedPackages {
			w.Write(rp.WorkPackageHash[:])
			w.Write(rp.SegmentRoot[:])
		}
	}
	return w.Bytes()
}

func marshalPrivileges(p Privileges) []byte {
	w := codec.NewWriter()
	w.Write(codec.MarshalUint32(uint32(p.Bless)))
	w.Write(codec.MarshalUint32(uint32(p.Assign)))
	w.Write(codec.MarshalUint32(uint32(p.Designate)))
	ids := make([]jamtypes.ServiceID, 0, len(p.AlwaysAcc))
	for id := range p.AlwaysAcc {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	w.Write(codec.EncodeUnsigned(uint64(len(ids))))
	for _, id := range ids {
		w.Write(codec.MarshalUint32(uint32(id)))
		w.Write(codec.MarshalUint64(p.AlwaysAcc[id]))
	}
	return w.Bytes()
}

func marshalReadyQueue(q [][]ReadyRecord) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(q))))
	for _, slot := range q {
		w.Write(codec.EncodeUnsigned(uint64(len(slot))))
		for _, r := range slot {
			rep := codec.MarshalWorkReport(r.Report)
			w.Write(codec.EncodeUnsigned(uint64(len(rep))))
			w.Write(rep)
			w.Write(codec.EncodeUnsigned(uint64(len(r.UnresolvedDeps))))
			for _, d := range r.UnresolvedDeps {
				w.Write(d[:])
			}
		}
	}
	return w.Bytes()
}

func marshalStatistics(p Statistics) []byte {
	w := codec.NewWriter()
	for _, recs := range [][]ValidatorStatRecord{p.Curr, p.Prev} {
		w.Write(codec.EncodeUnsigned(uint64(len(recs))))
		for _, r := range recs {
			w.Write(codec.MarshalUint32(r.Blocks))
			w.Write(codec.MarshalUint32(r.Tickets))
			w.Write(codec.MarshalUint32(r.Preimages))
			w.Write(codec.MarshalUint64(r.PreimagesSize))
			w.Write(codec.MarshalUint32(r.Guarantees))
			w.Write(codec.MarshalUint32(r.Assurances))
		}
	}
	w.Write(codec.EncodeUnsigned(uint64(len(p.Cores))))
	for _, c := range p.Cores {
		w.Write(codec.MarshalUint64(c.GasUsed))
		w.Write(codec.MarshalUint32(c.Imports))
		w.Write(codec.MarshalUint32(c.Exports))
		w.Write(codec.MarshalUint64(c.ExtrinsicSize))
		w.Write(codec.MarshalUint64(c.BundleSize))
	}
	ids := make([]jamtypes.ServiceID, 0, len(p.Services))
	for id := range p.Services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	w.Write(codec.EncodeUnsigned(uint64(len(ids))))
	for _, id := range ids {
		rec := p.Services[id]
		w.Write(codec.MarshalUint32(uint32(id)))
		w.Write(codec.MarshalUint32(rec.ProvidedCount))
		w.Write(codec.MarshalUint64(rec.ProvidedSize))
		w.Write(codec.MarshalUint32(rec.RefinementCount))
		w.Write(codec.MarshalUint64(rec.RefinementGas))
		w.Write(codec.MarshalUint32(rec.AccumulateCount))
		w.Write(codec.MarshalUint64(rec.AccumulateGas))
		w.Write(codec.MarshalUint32(rec.OnTransfersCount))
		w.Write(codec.MarshalUint64(rec.OnTransfersGas))
	}
	return w.Bytes()
}

func marshalServiceInfo(acc *ServiceAccount) []byte {
	w := codec.NewWriter()
	w.Write(acc.CodeHash[:])
	w.Write(codec.MarshalUint64(acc.Balance))
	w.Write(codec.MarshalUint64(acc.AccMinGas))
	w.Write(codec.MarshalUint64(acc.XferMinGas))
	w.Write(codec.MarshalUint64(acc.GratisStorageOffset))
	w.Write(codec.MarshalUint32(uint32(acc.CreatedAt)))
	w.Write(codec.MarshalUint32(uint32(acc.LastAcc)))
	w.Write(codec.MarshalUint32(uint32(acc.ParentService)))
	w.Write(codec.MarshalUint64(acc.ItemCount))
	w.Write(codec.MarshalUint64(acc.OctetCount))
	return w.Bytes()
}
