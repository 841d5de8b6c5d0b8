package pvm

// HostCall enumerates the closed set of host calls a PVM program may
// invoke, per spec §4.I. A call number outside this set is not an error
// at decode time: it resolves to HostCall(Unknown) at dispatch, which
// costs 10 gas and sets the result register to WHAT, per spec.
type HostCall int

const (
	HostUnknown HostCall = iota
	HostGas
	HostFetch
	HostRead
	HostWrite
	HostLookup
	HostInfo
	HostNew
	HostUpgrade
	HostTransfer
	HostQuit
	HostSolicit
	HostForget
	HostYield
	HostAssign
	HostBless
	HostDesignate
	HostCheckpoint
)

// ResultCode mirrors the small set of PVM result-register sentinels
// referenced by spec.md's host-call error path (WHAT for an
// unrecognized call number; others are set by individual host-call
// implementations in internal/accumulation).
type ResultCode uint64

const (
	ResultOK   ResultCode = 0
	ResultWhat ResultCode = ^ResultCode(0) // all-ones sentinel, "unknown/invalid"
)
