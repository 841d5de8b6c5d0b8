// Package params holds the JAM protocol's tunable constants. It mirrors the
// two standard profiles ("tiny" and "full") the way the teacher's
// core/chain_config.go exposes a MainnetConfig/TestConfig pair.
package params

// Config collects every protocol-tunable constant referenced by spec.md §6.
type Config struct {
	// ValidatorsCount is V.
	ValidatorsCount int
	// CoresCount is C.
	CoresCount int
	// EpochLength is E.
	EpochLength int
	// TicketSubmissionEnds is S: the slot-within-epoch offset at which the
	// ticket submission window closes (inclusive cutoff, see DESIGN.md
	// Open Question 1).
	TicketSubmissionEnds int
	// RotationPeriod is the number of slots a guarantor-core assignment is
	// held before rotating.
	RotationPeriod int
	// MaxTicketsPerExtrinsic caps the ticket extrinsic length.
	MaxTicketsPerExtrinsic int
	// TicketEntriesPerValidator caps a validator's distinct ticket attempts.
	TicketEntriesPerValidator int
	// MaxAgeLookupAnchor bounds how stale a report's lookup-anchor slot may be.
	MaxAgeLookupAnchor int
	// RecentHistorySize is H, the recent-history ring buffer length.
	RecentHistorySize int
	// ReportAvailabilityWindow is L, the availability assignment timeout
	// horizon in slots.
	ReportAvailabilityWindow int
	// MaxAuthPool is O, the per-core authorizer pool cap.
	MaxAuthPool int
	// AvailBitfieldBytes is ⌈C/8⌉, recomputed by Validate.
	AvailBitfieldBytes int
	// ValidatorsSuperMajority is ⌈2V/3⌉+1, recomputed by Validate.
	ValidatorsSuperMajority int
}

// Validate recomputes the derived fields (AvailBitfieldBytes,
// ValidatorsSuperMajority) from the primary ones and returns the config
// ready for use. It is idempotent.
func (c *Config) Validate() *Config {
	c.AvailBitfieldBytes = (c.CoresCount + 7) / 8
	// ⌈2V/3⌉ = floor((2V+2)/3).
	c.ValidatorsSuperMajority = (2*c.ValidatorsCount+2)/3 + 1
	return c
}

// Tiny is the small test profile (V=6, C=2, E=12, S=10, rotation=4).
var Tiny = (&Config{
	ValidatorsCount:           6,
	CoresCount:                2,
	EpochLength:               12,
	TicketSubmissionEnds:      10,
	RotationPeriod:            4,
	MaxTicketsPerExtrinsic:    16,
	TicketEntriesPerValidator: 3,
	MaxAgeLookupAnchor:        14,
	RecentHistorySize:         8,
	ReportAvailabilityWindow:  5,
	MaxAuthPool:               8,
}).Validate()

// Full is the production profile (V=1023, C=341, E=600, S=500, rotation=10).
var Full = (&Config{
	ValidatorsCount:           1023,
	CoresCount:                341,
	EpochLength:               600,
	TicketSubmissionEnds:      500,
	RotationPeriod:            10,
	MaxTicketsPerExtrinsic:    16,
	TicketEntriesPerValidator: 3,
	MaxAgeLookupAnchor:        14,
	RecentHistorySize:         8,
	ReportAvailabilityWindow:  5,
	MaxAuthPool:               8,
}).Validate()
