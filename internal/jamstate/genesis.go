package jamstate

import (
	"fmt"

	"github.com/bloppan/vinwolf-sub001/internal/codec"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// FromKeyvals reconstructs a State from the flat (key, value) map produced
// by Serialize, the genesis-loading path spec.md §3 calls out ("all
// segments created at genesis from a raw keyvals map"). Grounded on
// original_source/src/utils/default.rs's GlobalState::default, which this
// module generalizes from "build a zeroed state" to "build a state from an
// arbitrary keyval snapshot".
func FromKeyvals(cfg *params.Config, kv map[jamtypes.Hash][]byte) (*State, error) {
	s := New(cfg)

	if b, ok := kv[fixedKey(segTime)]; ok {
		v, err := codec.UnmarshalUint32(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: time: %w", err)
		}
		s.Time = jamtypes.TimeSlot(v)
	}

	if b, ok := kv[fixedKey(segEntropy)]; ok {
		if len(b) != 128 {
			return nil, fmt.Errorf("jamstate: entropy: bad length %d", len(b))
		}
		for i := 0; i < 4; i++ {
			copy(s.Entropy[i][:], b[i*32:(i+1)*32])
		}
	}

	for discr, dst := range map[int]*[]jamtypes.ValidatorKey{
		segValidatorsPrev: &s.PrevValidators,
		segValidatorsCurr: &s.CurrValidators,
		segValidatorsNext: &s.NextValidators,
	} {
		if b, ok := kv[fixedKey(byte(discr))]; ok {
			r := codec.NewReader(b)
			vs, err := unmarshalValidators(r, int(cfg.ValidatorsCount))
			if err != nil {
				return nil, fmt.Errorf("jamstate: validators segment %d: %w", discr, err)
			}
			*dst = vs
		}
	}

	if b, ok := kv[fixedKey(segSafrole)]; ok {
		g, err := unmarshalSafrole(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: safrole: %w", err)
		}
		s.Safrole = g
	}

	if b, ok := kv[fixedKey(segDisputes)]; ok {
		d, err := unmarshalDisputes(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: disputes: %w", err)
		}
		s.Disputes = d
	}

	if b, ok := kv[fixedKey(segAvailability)]; ok {
		a, err := unmarshalAvailability(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: availability: %w", err)
		}
		s.Availability = a
	}

	if b, ok := kv[fixedKey(segAuthPools)]; ok {
		a, err := unmarshalHashLists(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: auth pools: %w", err)
		}
		s.AuthPools = a
	}

	if b, ok := kv[fixedKey(segAuthQueues)]; ok {
		a, err := unmarshalHashLists(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: auth queues: %w", err)
		}
		s.AuthQueues = a
	}

	if b, ok := kv[fixedKey(segRecentHistory)]; ok {
		h, err := unmarshalRecentHistory(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: recent history: %w", err)
		}
		s.RecentHistory = h
	}

	if b, ok := kv[fixedKey(segPrivileges)]; ok {
		p, err := unmarshalPrivileges(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: privileges: %w", err)
		}
		s.Privileges = p
	}

	if b, ok := kv[fixedKey(segAccumulationHistory)]; ok {
		h, err := unmarshalHashLists(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: accumulation history: %w", err)
		}
		s.AccumulationHistory = h
	}

	if b, ok := kv[fixedKey(segReadyQueue)]; ok {
		q, err := unmarshalReadyQueue(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: ready queue: %w", err)
		}
		s.ReadyQueue = q
	}

	if b, ok := kv[fixedKey(segStatistics)]; ok {
		p, err := unmarshalStatistics(b)
		if err != nil {
			return nil, fmt.Errorf("jamstate: statistics: %w", err)
		}
		s.Statistics = p
	}

	// Service-info entries carry the service id directly in the key.
	for k, v := range kv {
		if k[0] != serviceInfoPrefix {
			continue
		}
		id := jamtypes.ServiceID(uint32(k[1]) | uint32(k[2])<<8 | uint32(k[3])<<16 | uint32(k[4])<<24)
		acc, err := unmarshalServiceInfo(v)
		if err != nil {
			return nil, fmt.Errorf("jamstate: service %d info: %w", id, err)
		}
		s.Services[id] = acc
	}

	// Storage/preimage/lookup entries are keyed by a one-way hash of
	// (service id, kind, entry key), so the owning triple travels in the
	// value header instead and is unwrapped here.
	for k, v := range kv {
		if k[0] != serviceDataPrefix {
			continue
		}
		id, kind, entryKey, payload, err := unwrapServiceData(v)
		if err != nil {
			return nil, fmt.Errorf("jamstate: service data entry: %w", err)
		}
		acc, ok := s.Services[id]
		if !ok {
			acc = newServiceAccount()
			s.Services[id] = acc
		}
		switch kind {
		case dataKindStorage:
			acc.Storage[entryKey] = payload
		case dataKindPreimage:
			acc.Preimages[entryKey] = payload
		case dataKindLookup:
			slots, err := unmarshalLookupSlots(payload)
			if err != nil {
				return nil, fmt.Errorf("jamstate: service %d lookup entry: %w", id, err)
			}
			acc.Lookup[entryKey] = slots
		default:
			return nil, fmt.Errorf("jamstate: service %d: unknown data kind %d", id, kind)
		}
	}

	return s, nil
}

func unwrapServiceData(v []byte) (jamtypes.ServiceID, byte, jamtypes.Hash, []byte, error) {
	r := codec.NewReader(v)
	idB, err := r.ReadN(4)
	if err != nil {
		return 0, 0, jamtypes.Hash{}, nil, err
	}
	id, err := codec.UnmarshalUint32(idB)
	if err != nil {
		return 0, 0, jamtypes.Hash{}, nil, err
	}
	kindB, err := r.ReadN(1)
	if err != nil {
		return 0, 0, jamtypes.Hash{}, nil, err
	}
	entryKey, err := r.ReadHash()
	if err != nil {
		return 0, 0, jamtypes.Hash{}, nil, err
	}
	return jamtypes.ServiceID(id), kindB[0], entryKey, append([]byte(nil), r.Remaining()...), nil
}

func unmarshalLookupSlots(payload []byte) ([]jamtypes.TimeSlot, error) {
	r := codec.NewReader(payload)
	n, err := r.ReadUnsigned()
	if err != nil {
		return nil, err
	}
	out := make([]jamtypes.TimeSlot, n)
	for i := range out {
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		out[i] = jamtypes.TimeSlot(v)
	}
	return out, nil
}

func unmarshalSafrole(b []byte) (Safrole, error) {
	r := codec.NewReader(b)
	var g Safrole
	n, err := r.ReadUnsigned()
	if err != nil {
		return g, err
	}
	g.PendingValidators, err = unmarshalValidators(r, int(n))
	if err != nil {
		return g, err
	}
	nt, err := r.ReadUnsigned()
	if err != nil {
		return g, err
	}
	g.TicketAccumulator = make([]jamtypes.Ticket, nt)
	for i := range g.TicketAccumulator {
		bAttempt, err := r.ReadN(1)
		if err != nil {
			return g, err
		}
		plen, err := r.ReadUnsigned()
		if err != nil {
			return g, err
		}
		proof, err := r.ReadN(int(plen))
		if err != nil {
			return g, err
		}
		g.TicketAccumulator[i] = jamtypes.Ticket{Attempt: bAttempt[0], Proof: append([]byte(nil), proof...)}
	}
	kindB, err := r.ReadN(1)
	if err != nil {
		return g, err
	}
	g.Seal.Kind = SealKind(kindB[0])
	switch g.Seal.Kind {
	case SealTickets:
		nn, err := r.ReadUnsigned()
		if err != nil {
			return g, err
		}
		g.Seal.Tickets = make([]jamtypes.Ticket, nn)
		for i := range g.Seal.Tickets {
			aB, err := r.ReadN(1)
			if err != nil {
				return g, err
			}
			plen, err := r.ReadUnsigned()
			if err != nil {
				return g, err
			}
			proof, err := r.ReadN(int(plen))
			if err != nil {
				return g, err
			}
			g.Seal.Tickets[i] = jamtypes.Ticket{Attempt: aB[0], Proof: append([]byte(nil), proof...)}
		}
	case SealKeys:
		nn, err := r.ReadUnsigned()
		if err != nil {
			return g, err
		}
		g.Seal.Keys = make([]jamtypes.BandersnatchPublic, nn)
		for i := range g.Seal.Keys {
			kb, err := r.ReadN(32)
			if err != nil {
				return g, err
			}
			copy(g.Seal.Keys[i][:], kb)
		}
	}
	rootB, err := r.ReadN(144)
	if err != nil {
		return g, err
	}
	copy(g.EpochRoot[:], rootB)
	return g, nil
}

func unmarshalDisputes(b []byte) (Disputes, error) {
	r := codec.NewReader(b)
	var d Disputes
	for _, dst := range []*[]jamtypes.Hash{&d.Good, &d.Bad, &d.Wonky} {
		n, err := r.ReadUnsigned()
		if err != nil {
			return d, err
		}
		set := make([]jamtypes.Hash, n)
		for i := range set {
			h, err := r.ReadHash()
			if err != nil {
				return d, err
			}
			set[i] = h
		}
		*dst = set
	}
	n, err := r.ReadUnsigned()
	if err != nil {
		return d, err
	}
	d.Offenders = make([]jamtypes.Ed25519Public, n)
	for i := range d.Offenders {
		ob, err := r.ReadN(32)
		if err != nil {
			return d, err
		}
		copy(d.Offenders[i][:], ob)
	}
	return d, nil
}

func unmarshalAvailability(b []byte) ([]AvailabilitySlot, error) {
	r := codec.NewReader(b)
	n, err := r.ReadUnsigned()
	if err != nil {
		return nil, err
	}
	out := make([]AvailabilitySlot, n)
	for i := range out {
		tag, err := r.ReadN(1)
		if err != nil {
			return nil, err
		}
		if tag[0] == 0 {
			continue
		}
		toB, err := r.ReadN(4)
		if err != nil {
			return nil, err
		}
		timeout, err := codec.UnmarshalUint32(toB)
		if err != nil {
			return nil, err
		}
		rlen, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		repBytes, err := r.ReadN(int(rlen))
		if err != nil {
			return nil, err
		}
		rep, err := unmarshalWorkReport(repBytes)
		if err != nil {
			return nil, err
		}
		out[i] = AvailabilitySlot{Report: &rep, Timeout: jamtypes.TimeSlot(timeout)}
	}
	return out, nil
}

func unmarshalHashLists(b []byte) ([][]jamtypes.Hash, error) {
	r := codec.NewReader(b)
	n, err := r.ReadUnsigned()
	if err != nil {
		return nil, err
	}
	out := make([][]jamtypes.Hash, n)
	for i := range out {
		m, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		l := make([]jamtypes.Hash, m)
		for j := range l {
			h, err := r.ReadHash()
			if err != nil {
				return nil, err
			}
			l[j] = h
		}
		out[i] = l
	}
	return out, nil
}

func unmarshalRecentHistory(b []byte) ([]RecentHistoryEntry, error) {
	r := codec.NewReader(b)
	n, err := r.ReadUnsigned()
	if err != nil {
		return nil, err
	}
	out := make([]RecentHistoryEntry, n)
	for i := range out {
		hh, err := r.ReadHash()
		if err != nil {
			return nil, err
		}
		sr, err := r.ReadHash()
		if err != nil {
			return nil, err
		}
		npeaks, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		peaks := make([]jamtypes.Hash, npeaks)
		for j := range peaks {
			p, err := r.ReadHash()
			if err != nil {
				return nil, err
			}
			peaks[j] = p
		}
		nrep, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		reported := make([]jamtypes.SegmentRootLookupEntry, nrep)
		for j := range reported {
			wp, err := r.ReadHash()
			if err != nil {
				return nil, err
			}
			sroot, err := r.ReadHash()
			if err != nil {
				return nil, err
			}
			reported[j] = jamtypes.SegmentRootLookupEntry{WorkPackageHash: wp, SegmentRoot: sroot}
		}
		out[i] = RecentHistoryEntry{HeaderHash: hh, StateRoot: sr, MMRPeaks: peaks, ReportedPackages: reported}
	}
	return out, nil
}

func unmarshalPrivileges(b []byte) (Privileges, error) {
	r := codec.NewReader(b)
	var p Privileges
	p.AlwaysAcc = make(map[jamtypes.ServiceID]uint64)
	blessB, err := r.ReadN(4)
	if err != nil {
		return p, err
	}
	bless, _ := codec.UnmarshalUint32(blessB)
	p.Bless = jamtypes.ServiceID(bless)
	assignB, err := r.ReadN(4)
	if err != nil {
		return p, err
	}
	assign, _ := codec.UnmarshalUint32(assignB)
	p.Assign = jamtypes.ServiceID(assign)
	desB, err := r.ReadN(4)
	if err != nil {
		return p, err
	}
	des, _ := codec.UnmarshalUint32(desB)
	p.Designate = jamtypes.ServiceID(des)
	n, err := r.ReadUnsigned()
	if err != nil {
		return p, err
	}
	for i := uint64(0); i < n; i++ {
		idB, err := r.ReadN(4)
		if err != nil {
			return p, err
		}
		id, _ := codec.UnmarshalUint32(idB)
		gasB, err := r.ReadN(8)
		if err != nil {
			return p, err
		}
		gas, _ := codec.UnmarshalUint64(gasB)
		p.AlwaysAcc[jamtypes.ServiceID(id)] = gas
	}
	return p, nil
}

func unmarshalReadyQueue(b []byte) ([][]ReadyRecord, error) {
	r := codec.NewReader(b)
	n, err := r.ReadUnsigned()
	if err != nil {
		return nil, err
	}
	out := make([][]ReadyRecord, n)
	for i := range out {
		m, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		slot := make([]ReadyRecord, m)
		for j := range slot {
			rlen, err := r.ReadUnsigned()
			if err != nil {
				return nil, err
			}
			repBytes, err := r.ReadN(int(rlen))
			if err != nil {
				return nil, err
			}
			rep, err := unmarshalWorkReport(repBytes)
			if err != nil {
				return nil, err
			}
			ndeps, err := r.ReadUnsigned()
			if err != nil {
				return nil, err
			}
			deps := make([]jamtypes.Hash, ndeps)
			for k := range deps {
				d, err := r.ReadHash()
				if err != nil {
					return nil, err
				}
				deps[k] = d
			}
			slot[j] = ReadyRecord{Report: rep, UnresolvedDeps: deps}
		}
		out[i] = slot
	}
	return out, nil
}

func unmarshalStatistics(b []byte) (Statistics, error) {
	r := codec.NewReader(b)
	var p Statistics
	p.Services = make(map[jamtypes.ServiceID]ServiceStatRecord)
	for _, dst := range []*[]ValidatorStatRecord{&p.Curr, &p.Prev} {
		n, err := r.ReadUnsigned()
		if err != nil {
			return p, err
		}
		recs := make([]ValidatorStatRecord, n)
		for i := range recs {
			blocks, err := readU32(r)
			if err != nil {
				return p, err
			}
			tickets, err := readU32(r)
			if err != nil {
				return p, err
			}
			preimages, err := readU32(r)
			if err != nil {
				return p, err
			}
			preimagesSize, err := readU64(r)
			if err != nil {
				return p, err
			}
			guarantees, err := readU32(r)
			if err != nil {
				return p, err
			}
			assurances, err := readU32(r)
			if err != nil {
				return p, err
			}
			recs[i] = ValidatorStatRecord{
				Blocks: blocks, Tickets: tickets, Preimages: preimages,
				PreimagesSize: preimagesSize, Guarantees: guarantees, Assurances: assurances,
			}
		}
		*dst = recs
	}
	ncores, err := r.ReadUnsigned()
	if err != nil {
		return p, err
	}
	p.Cores = make([]CoreStatRecord, ncores)
	for i := range p.Cores {
		gasUsed, err := readU64(r)
		if err != nil {
			return p, err
		}
		imports, err := readU32(r)
		if err != nil {
			return p, err
		}
		exports, err := readU32(r)
		if err != nil {
			return p, err
		}
		extSize, err := readU64(r)
		if err != nil {
			return p, err
		}
		bundleSize, err := readU64(r)
		if err != nil {
			return p, err
		}
		p.Cores[i] = CoreStatRecord{GasUsed: gasUsed, Imports: imports, Exports: exports, ExtrinsicSize: extSize, BundleSize: bundleSize}
	}
	nsvc, err := r.ReadUnsigned()
	if err != nil {
		return p, err
	}
	for i := uint64(0); i < nsvc; i++ {
		idB, err := r.ReadN(4)
		if err != nil {
			return p, err
		}
		id, _ := codec.UnmarshalUint32(idB)
		providedCount, err := readU32(r)
		if err != nil {
			return p, err
		}
		providedSize, err := readU64(r)
		if err != nil {
			return p, err
		}
		refinementCount, err := readU32(r)
		if err != nil {
			return p, err
		}
		refinementGas, err := readU64(r)
		if err != nil {
			return p, err
		}
		accumulateCount, err := readU32(r)
		if err != nil {
			return p, err
		}
		accumulateGas, err := readU64(r)
		if err != nil {
			return p, err
		}
		onTransfersCount, err := readU32(r)
		if err != nil {
			return p, err
		}
		onTransfersGas, err := readU64(r)
		if err != nil {
			return p, err
		}
		p.Services[jamtypes.ServiceID(id)] = ServiceStatRecord{
			ProvidedCount: providedCount, ProvidedSize: providedSize,
			RefinementCount: refinementCount, RefinementGas: refinementGas,
			AccumulateCount: accumulateCount, AccumulateGas: accumulateGas,
			OnTransfersCount: onTransfersCount, OnTransfersGas: onTransfersGas,
		}
	}
	return p, nil
}

func readU32(r *codec.Reader) (uint32, error) {
	b, err := r.ReadN(4)
	if err != nil {
		return 0, err
	}
	return codec.UnmarshalUint32(b)
}

func readU64(r *codec.Reader) (uint64, error) {
	b, err := r.ReadN(8)
	if err != nil {
		return 0, err
	}
	return codec.UnmarshalUint64(b)
}

func unmarshalServiceInfo(b []byte) (*ServiceAccount, error) {
	acc := newServiceAccount()
	r := codec.NewReader(b)
	ch, err := r.ReadHash()
	if err != nil {
		return nil, err
	}
	acc.CodeHash = ch
	acc.Balance, err = readU64(r)
	if err != nil {
		return nil, err
	}
	acc.AccMinGas, err = readU64(r)
	if err != nil {
		return nil, err
	}
	acc.XferMinGas, err = readU64(r)
	if err != nil {
		return nil, err
	}
	acc.GratisStorageOffset, err = readU64(r)
	if err != nil {
		return nil, err
	}
	createdAt, err := readU32(r)
	if err != nil {
		return nil, err
	}
	acc.CreatedAt = jamtypes.TimeSlot(createdAt)
	lastAcc, err := readU32(r)
	if err != nil {
		return nil, err
	}
	acc.LastAcc = jamtypes.TimeSlot(lastAcc)
	parent, err := readU32(r)
	if err != nil {
		return nil, err
	}
	acc.ParentService = jamtypes.ServiceID(parent)
	acc.ItemCount, err = readU64(r)
	if err != nil {
		return nil, err
	}
	acc.OctetCount, err = readU64(r)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func unmarshalWorkReport(b []byte) (jamtypes.WorkReport, error) {
	var rep jamtypes.WorkReport
	r := codec.NewReader(b)
	var err error
	if rep.WorkPackageHash, err = r.ReadHash(); err != nil {
		return rep, err
	}
	if rep.ExportsRoot, err = r.ReadHash(); err != nil {
		return rep, err
	}
	ciB, err := r.ReadN(2)
	if err != nil {
		return rep, err
	}
	ci, err := codec.UnmarshalUint16(ciB)
	if err != nil {
		return rep, err
	}
	rep.CoreIndex = jamtypes.CoreIndex(ci)
	if rep.AuthorizerHash, err = r.ReadHash(); err != nil {
		return rep, err
	}
	alen, err := r.ReadUnsigned()
	if err != nil {
		return rep, err
	}
	authOutput, err := r.ReadN(int(alen))
	if err != nil {
		return rep, err
	}
	rep.AuthOutput = append([]byte(nil), authOutput...)

	ctx, err := unmarshalWorkContext(r)
	if err != nil {
		return rep, err
	}
	rep.Context = ctx

	nsrl, err := r.ReadUnsigned()
	if err != nil {
		return rep, err
	}
	rep.SegmentRootLookup = make([]jamtypes.SegmentRootLookupEntry, nsrl)
	for i := range rep.SegmentRootLookup {
		wp, err := r.ReadHash()
		if err != nil {
			return rep, err
		}
		sr, err := r.ReadHash()
		if err != nil {
			return rep, err
		}
		rep.SegmentRootLookup[i] = jamtypes.SegmentRootLookupEntry{WorkPackageHash: wp, SegmentRoot: sr}
	}

	nres, err := r.ReadUnsigned()
	if err != nil {
		return rep, err
	}
	rep.Results = make([]jamtypes.WorkResult, nres)
	for i := range rep.Results {
		res, err := unmarshalWorkResult(r)
		if err != nil {
			return rep, err
		}
		rep.Results[i] = res
	}
	return rep, nil
}

func unmarshalWorkContext(r *codec.Reader) (jamtypes.WorkContext, error) {
	var c jamtypes.WorkContext
	var err error
	if c.Anchor, err = r.ReadHash(); err != nil {
		return c, err
	}
	if c.StateRoot, err = r.ReadHash(); err != nil {
		return c, err
	}
	if c.BeefyMMRRoot, err = r.ReadHash(); err != nil {
		return c, err
	}
	if c.LookupAnchor, err = r.ReadHash(); err != nil {
		return c, err
	}
	slotB, err := r.ReadN(4)
	if err != nil {
		return c, err
	}
	slot, err := codec.UnmarshalUint32(slotB)
	if err != nil {
		return c, err
	}
	c.LookupAnchorSlot = jamtypes.TimeSlot(slot)
	n, err := r.ReadUnsigned()
	if err != nil {
		return c, err
	}
	c.Prerequisites = make([]jamtypes.Hash, n)
	for i := range c.Prerequisites {
		h, err := r.ReadHash()
		if err != nil {
			return c, err
		}
		c.Prerequisites[i] = h
	}
	return c, nil
}

func unmarshalWorkResult(r *codec.Reader) (jamtypes.WorkResult, error) {
	var res jamtypes.WorkResult
	sidB, err := r.ReadN(4)
	if err != nil {
		return res, err
	}
	sid, err := codec.UnmarshalUint32(sidB)
	if err != nil {
		return res, err
	}
	res.ServiceID = jamtypes.ServiceID(sid)
	if res.CodeHash, err = r.ReadHash(); err != nil {
		return res, err
	}
	if res.PayloadHash, err = r.ReadHash(); err != nil {
		return res, err
	}
	res.AccumulateGas, err = readU64(r)
	if err != nil {
		return res, err
	}
	tagB, err := r.ReadN(1)
	if err != nil {
		return res, err
	}
	res.OK = tagB[0] == 0x01
	if res.OK {
		olen, err := r.ReadUnsigned()
		if err != nil {
			return res, err
		}
		out, err := r.ReadN(int(olen))
		if err != nil {
			return res, err
		}
		res.Output = append([]byte(nil), out...)
	}
	return res, nil
}
