package accumulation

import (
	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// DeterministicInvoker is a stand-in Invoker that does not decode or run
// any guest code: it derives a deterministic output hash from the
// operands a service received this block, and never produces transfers.
// It exists so Process's dependency-resolution and bookkeeping logic can
// be exercised end to end without a compiled PVM program format — see
// the package doc comment and DESIGN.md for why guest execution is
// factored out here rather than wired to internal/pvm directly.
type DeterministicInvoker struct{}

func (DeterministicInvoker) Accumulate(cfg *params.Config, slot jamtypes.TimeSlot, serviceID jamtypes.ServiceID, operands []jamtypes.WorkResult, acc *jamstate.ServiceAccount) (Outcome, error) {
	if len(operands) == 0 {
		return Outcome{}, nil
	}
	parts := make([][]byte, 0, len(operands)+1)
	idBytes := make([]byte, 4)
	idBytes[0], idBytes[1], idBytes[2], idBytes[3] = byte(serviceID), byte(serviceID>>8), byte(serviceID>>16), byte(serviceID>>24)
	parts = append(parts, idBytes)
	var gasUsed uint64
	ok := false
	for _, op := range operands {
		parts = append(parts, op.PayloadHash[:])
		gasUsed += op.AccumulateGas
		if op.OK {
			ok = true
		}
	}
	acc.LastAcc = slot
	if !ok {
		return Outcome{GasUsed: gasUsed}, nil
	}
	out := crypto.Blake2b256(parts...)
	return Outcome{OutputHash: &out, GasUsed: gasUsed}, nil
}

func (DeterministicInvoker) OnTransfer(cfg *params.Config, slot jamtypes.TimeSlot, serviceID jamtypes.ServiceID, transfers []DeferredTransfer, acc *jamstate.ServiceAccount) (Outcome, error) {
	var gasUsed uint64
	for _, tr := range transfers {
		acc.Balance += tr.Amount
		gasUsed += tr.GasLimit
	}
	return Outcome{GasUsed: gasUsed}, nil
}
