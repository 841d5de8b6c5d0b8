// Package jamstate implements spec.md §4.C: the global state σ as a tuple
// of independent segments, exposed through segment-scoped accessors on a
// single Handler. No component outside the STF orchestrator (internal/stf)
// is expected to mutate a State directly; every producer works on a Clone
// and the orchestrator commits the result atomically at block end (spec §5
// "shared resources").
package jamstate

import (
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// SealKind discriminates the tagged union γ_s: none/tickets/keys.
type SealKind uint8

const (
	SealNone SealKind = iota
	SealTickets
	SealKeys
)

// Seal is the safrole seal sequence for the current epoch.
type Seal struct {
	Kind    SealKind
	Tickets []jamtypes.Ticket              // length E when Kind == SealTickets
	Keys    []jamtypes.BandersnatchPublic // length E when Kind == SealKeys
}

func (s Seal) clone() Seal {
	out := Seal{Kind: s.Kind}
	if s.Tickets != nil {
		out.Tickets = append([]jamtypes.Ticket(nil), s.Tickets...)
	}
	if s.Keys != nil {
		out.Keys = append([]jamtypes.BandersnatchPublic(nil), s.Keys...)
	}
	return out
}

// Safrole is the γ segment.
type Safrole struct {
	PendingValidators []jamtypes.ValidatorKey
	TicketAccumulator []jamtypes.Ticket
	Seal              Seal
	EpochRoot         jamtypes.BandersnatchRingCommitment
}

func (s Safrole) clone() Safrole {
	return Safrole{
		PendingValidators: cloneValidators(s.PendingValidators),
		TicketAccumulator: append([]jamtypes.Ticket(nil), s.TicketAccumulator...),
		Seal:              s.Seal.clone(),
		EpochRoot:         s.EpochRoot,
	}
}

// Disputes is the ψ segment: four disjoint sets of hashes/keys.
type Disputes struct {
	Good      []jamtypes.Hash
	Bad       []jamtypes.Hash
	Wonky     []jamtypes.Hash
	Offenders []jamtypes.Ed25519Public
}

func (d Disputes) clone() Disputes {
	return Disputes{
		Good:      append([]jamtypes.Hash(nil), d.Good...),
		Bad:       append([]jamtypes.Hash(nil), d.Bad...),
		Wonky:     append([]jamtypes.Hash(nil), d.Wonky...),
		Offenders: append([]jamtypes.Ed25519Public(nil), d.Offenders...),
	}
}

// AvailabilitySlot is one entry of ρ: either empty (Report == nil) or a
// pending work-report with the slot it will time out at.
type AvailabilitySlot struct {
	Report  *jamtypes.WorkReport
	Timeout jamtypes.TimeSlot
}

func (a AvailabilitySlot) clone() AvailabilitySlot {
	out := AvailabilitySlot{Timeout: a.Timeout}
	if a.Report != nil {
		r := *a.Report
		out.Report = &r
	}
	return out
}

// RecentHistoryEntry is one β ring-buffer entry.
type RecentHistoryEntry struct {
	HeaderHash       jamtypes.Hash
	StateRoot        jamtypes.Hash
	MMRPeaks         []jamtypes.Hash
	ReportedPackages []jamtypes.SegmentRootLookupEntry
}

func (e RecentHistoryEntry) clone() RecentHistoryEntry {
	return RecentHistoryEntry{
		HeaderHash:       e.HeaderHash,
		StateRoot:        e.StateRoot,
		MMRPeaks:         append([]jamtypes.Hash(nil), e.MMRPeaks...),
		ReportedPackages: append([]jamtypes.SegmentRootLookupEntry(nil), e.ReportedPackages...),
	}
}

// ReadyRecord is one ϑ entry: a work-report still waiting on dependencies.
type ReadyRecord struct {
	Report          jamtypes.WorkReport
	UnresolvedDeps []jamtypes.Hash
}

func (r ReadyRecord) clone() ReadyRecord {
	return ReadyRecord{Report: r.Report, UnresolvedDeps: append([]jamtypes.Hash(nil), r.UnresolvedDeps...)}
}

// ServiceAccount is one δ entry. Storage/preimages/lookup are kept as
// distinct maps for ergonomics even though spec §4.K serializes them under
// disjoint key prefixes of the same account.
type ServiceAccount struct {
	CodeHash            jamtypes.Hash
	Balance             uint64
	AccMinGas           uint64
	XferMinGas          uint64
	GratisStorageOffset uint64
	CreatedAt           jamtypes.TimeSlot
	LastAcc             jamtypes.TimeSlot
	ParentService       jamtypes.ServiceID
	ItemCount           uint64
	OctetCount          uint64
	Storage             map[jamtypes.Hash][]byte
	Preimages           map[jamtypes.Hash][]byte
	Lookup              map[jamtypes.Hash][]jamtypes.TimeSlot
}

func newServiceAccount() *ServiceAccount {
	return &ServiceAccount{
		Storage:   make(map[jamtypes.Hash][]byte),
		Preimages: make(map[jamtypes.Hash][]byte),
		Lookup:    make(map[jamtypes.Hash][]jamtypes.TimeSlot),
	}
}

func (a *ServiceAccount) clone() *ServiceAccount {
	out := &ServiceAccount{
		CodeHash: a.CodeHash, Balance: a.Balance, AccMinGas: a.AccMinGas,
		XferMinGas: a.XferMinGas, GratisStorageOffset: a.GratisStorageOffset,
		CreatedAt: a.CreatedAt, LastAcc: a.LastAcc, ParentService: a.ParentService,
		ItemCount: a.ItemCount, OctetCount: a.OctetCount,
		Storage:   make(map[jamtypes.Hash][]byte, len(a.Storage)),
		Preimages: make(map[jamtypes.Hash][]byte, len(a.Preimages)),
		Lookup:    make(map[jamtypes.Hash][]jamtypes.TimeSlot, len(a.Lookup)),
	}
	for k, v := range a.Storage {
		out.Storage[k] = append([]byte(nil), v...)
	}
	for k, v := range a.Preimages {
		out.Preimages[k] = append([]byte(nil), v...)
	}
	for k, v := range a.Lookup {
		out.Lookup[k] = append([]jamtypes.TimeSlot(nil), v...)
	}
	return out
}

// Privileges is the χ segment.
type Privileges struct {
	Bless      jamtypes.ServiceID
	Assign     jamtypes.ServiceID
	Designate  jamtypes.ServiceID
	AlwaysAcc  map[jamtypes.ServiceID]uint64
}

func (p Privileges) clone() Privileges {
	out := Privileges{Bless: p.Bless, Assign: p.Assign, Designate: p.Designate,
		AlwaysAcc: make(map[jamtypes.ServiceID]uint64, len(p.AlwaysAcc))}
	for k, v := range p.AlwaysAcc {
		out.AlwaysAcc[k] = v
	}
	return out
}

// ValidatorStatRecord is one π entry per validator per epoch.
type ValidatorStatRecord struct {
	Blocks        uint32
	Tickets       uint32
	Preimages     uint32
	PreimagesSize uint64
	Guarantees    uint32
	Assurances    uint32
}

// CoreStatRecord is one π entry per core per block.
type CoreStatRecord struct {
	GasUsed       uint64
	Imports       uint32
	Exports       uint32
	ExtrinsicSize uint64
	BundleSize    uint64
}

// ServiceStatRecord is one π entry per service per block.
type ServiceStatRecord struct {
	ProvidedCount   uint32
	ProvidedSize    uint64
	RefinementCount uint32
	RefinementGas   uint64
	AccumulateCount uint32
	AccumulateGas   uint64
	OnTransfersCount uint32
	OnTransfersGas   uint64
}

// Statistics is the π segment.
type Statistics struct {
	Curr    []ValidatorStatRecord
	Prev    []ValidatorStatRecord
	Cores   []CoreStatRecord
	Services map[jamtypes.ServiceID]ServiceStatRecord
}

func (s Statistics) clone() Statistics {
	out := Statistics{
		Curr:     append([]ValidatorStatRecord(nil), s.Curr...),
		Prev:     append([]ValidatorStatRecord(nil), s.Prev...),
		Cores:    append([]CoreStatRecord(nil), s.Cores...),
		Services: make(map[jamtypes.ServiceID]ServiceStatRecord, len(s.Services)),
	}
	for k, v := range s.Services {
		out.Services[k] = v
	}
	return out
}

// State is the global state σ, a tuple of independent segments (spec §3).
type State struct {
	Time jamtypes.TimeSlot

	Entropy [4]jamtypes.Hash

	PrevValidators []jamtypes.ValidatorKey
	CurrValidators []jamtypes.ValidatorKey
	NextValidators []jamtypes.ValidatorKey

	Safrole  Safrole
	Disputes Disputes

	Availability []AvailabilitySlot

	AuthPools  [][]jamtypes.Hash
	AuthQueues [][]jamtypes.Hash

	RecentHistory []RecentHistoryEntry

	Services map[jamtypes.ServiceID]*ServiceAccount

	Privileges Privileges

	AccumulationHistory [][]jamtypes.Hash
	// ReadyQueue is ϑ: a fixed ring of E per-slot vectors of ReadyRecord
	// (spec §3 "ready_queue ϑ: fixed ring of E vectors of ReadyRecord").
	ReadyQueue [][]ReadyRecord

	Statistics Statistics
}

func cloneValidators(v []jamtypes.ValidatorKey) []jamtypes.ValidatorKey {
	return append([]jamtypes.ValidatorKey(nil), v...)
}

// Clone returns a deep copy of s so producers can mutate freely and the STF
// orchestrator can commit the result atomically (spec §5).
func (s *State) Clone() *State {
	out := &State{
		Time:           s.Time,
		Entropy:        s.Entropy,
		PrevValidators: cloneValidators(s.PrevValidators),
		CurrValidators: cloneValidators(s.CurrValidators),
		NextValidators: cloneValidators(s.NextValidators),
		Safrole:        s.Safrole.clone(),
		Disputes:       s.Disputes.clone(),
		Privileges:     s.Privileges.clone(),
		Statistics:     s.Statistics.clone(),
	}

	out.Availability = make([]AvailabilitySlot, len(s.Availability))
	for i, a := range s.Availability {
		out.Availability[i] = a.clone()
	}

	out.AuthPools = make([][]jamtypes.Hash, len(s.AuthPools))
	for i, p := range s.AuthPools {
		out.AuthPools[i] = append([]jamtypes.Hash(nil), p...)
	}
	out.AuthQueues = make([][]jamtypes.Hash, len(s.AuthQueues))
	for i, q := range s.AuthQueues {
		out.AuthQueues[i] = append([]jamtypes.Hash(nil), q...)
	}

	out.RecentHistory = make([]RecentHistoryEntry, len(s.RecentHistory))
	for i, e := range s.RecentHistory {
		out.RecentHistory[i] = e.clone()
	}

	out.Services = make(map[jamtypes.ServiceID]*ServiceAccount, len(s.Services))
	for id, acc := range s.Services {
		out.Services[id] = acc.clone()
	}

	out.AccumulationHistory = make([][]jamtypes.Hash, len(s.AccumulationHistory))
	for i, h := range s.AccumulationHistory {
		out.AccumulationHistory[i] = append([]jamtypes.Hash(nil), h...)
	}
	out.ReadyQueue = make([][]ReadyRecord, len(s.ReadyQueue))
	for i, slot := range s.ReadyQueue {
		cloned := make([]ReadyRecord, len(slot))
		for j, r := range slot {
			cloned[j] = r.clone()
		}
		out.ReadyQueue[i] = cloned
	}

	return out
}

// New returns a zero-valued state shaped to cfg: segment lengths fixed at
// V, C, E as required by spec §3's invariants, every validator/ticket/
// authorizer slot zeroed.
func New(cfg *params.Config) *State {
	s := &State{
		PrevValidators: make([]jamtypes.ValidatorKey, cfg.ValidatorsCount),
		CurrValidators: make([]jamtypes.ValidatorKey, cfg.ValidatorsCount),
		NextValidators: make([]jamtypes.ValidatorKey, cfg.ValidatorsCount),
		Safrole: Safrole{
			PendingValidators: make([]jamtypes.ValidatorKey, cfg.ValidatorsCount),
			TicketAccumulator: nil,
			Seal:              Seal{Kind: SealNone},
		},
		Availability:  make([]AvailabilitySlot, cfg.CoresCount),
		AuthPools:     make([][]jamtypes.Hash, cfg.CoresCount),
		AuthQueues:    make([][]jamtypes.Hash, cfg.CoresCount),
		RecentHistory: nil,
		Services:      make(map[jamtypes.ServiceID]*ServiceAccount),
		Privileges:    Privileges{AlwaysAcc: make(map[jamtypes.ServiceID]uint64)},

		AccumulationHistory: make([][]jamtypes.Hash, cfg.EpochLength),
		ReadyQueue:          make([][]ReadyRecord, cfg.EpochLength),

		Statistics: Statistics{
			Curr:     make([]ValidatorStatRecord, cfg.ValidatorsCount),
			Prev:     make([]ValidatorStatRecord, cfg.ValidatorsCount),
			Cores:    make([]CoreStatRecord, cfg.CoresCount),
			Services: make(map[jamtypes.ServiceID]ServiceStatRecord),
		},
	}
	for i := range s.AuthQueues {
		s.AuthQueues[i] = make([]jamtypes.Hash, cfg.EpochLength)
	}
	for i := range s.AccumulationHistory {
		s.AccumulationHistory[i] = nil
	}
	return s
}
