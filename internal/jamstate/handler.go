package jamstate

import "github.com/bloppan/vinwolf-sub001/internal/jamtypes"

// Handler exposes segment-scoped get/set over one State, per spec §4.C.
// Every setter replaces the whole segment; callers that need read-modify-
// write semantics read, copy, and call the setter, keeping mutation
// explicit and auditable at segment granularity.
type Handler struct {
	s *State
}

// NewHandler wraps s. Callers that need an independent working copy should
// pass s.Clone().
func NewHandler(s *State) *Handler { return &Handler{s: s} }

// State returns the underlying State value. The orchestrator uses this to
// commit a produced state atomically at block end.
func (h *Handler) State() *State { return h.s }

func (h *Handler) Time() jamtypes.TimeSlot      { return h.s.Time }
func (h *Handler) SetTime(t jamtypes.TimeSlot)  { h.s.Time = t }

func (h *Handler) Entropy() [4]jamtypes.Hash          { return h.s.Entropy }
func (h *Handler) SetEntropy(e [4]jamtypes.Hash)      { h.s.Entropy = e }

func (h *Handler) Validators() (prev, curr, next []jamtypes.ValidatorKey) {
	return h.s.PrevValidators, h.s.CurrValidators, h.s.NextValidators
}

func (h *Handler) SetValidators(prev, curr, next []jamtypes.ValidatorKey) {
	h.s.PrevValidators, h.s.CurrValidators, h.s.NextValidators = prev, curr, next
}

func (h *Handler) Safrole() Safrole         { return h.s.Safrole }
func (h *Handler) SetSafrole(g Safrole)     { h.s.Safrole = g }

func (h *Handler) Disputes() Disputes       { return h.s.Disputes }
func (h *Handler) SetDisputes(d Disputes)   { h.s.Disputes = d }

func (h *Handler) Availability() []AvailabilitySlot     { return h.s.Availability }
func (h *Handler) SetAvailability(a []AvailabilitySlot) { h.s.Availability = a }

func (h *Handler) AuthPools() [][]jamtypes.Hash         { return h.s.AuthPools }
func (h *Handler) SetAuthPools(a [][]jamtypes.Hash)     { h.s.AuthPools = a }

func (h *Handler) AuthQueues() [][]jamtypes.Hash        { return h.s.AuthQueues }
func (h *Handler) SetAuthQueues(a [][]jamtypes.Hash)    { h.s.AuthQueues = a }

func (h *Handler) RecentHistory() []RecentHistoryEntry     { return h.s.RecentHistory }
func (h *Handler) SetRecentHistory(b []RecentHistoryEntry) { h.s.RecentHistory = b }

func (h *Handler) Service(id jamtypes.ServiceID) (*ServiceAccount, bool) {
	acc, ok := h.s.Services[id]
	return acc, ok
}

func (h *Handler) SetService(id jamtypes.ServiceID, acc *ServiceAccount) {
	h.s.Services[id] = acc
}

func (h *Handler) DeleteService(id jamtypes.ServiceID) {
	delete(h.s.Services, id)
}

func (h *Handler) Services() map[jamtypes.ServiceID]*ServiceAccount { return h.s.Services }

func (h *Handler) Privileges() Privileges     { return h.s.Privileges }
func (h *Handler) SetPrivileges(p Privileges) { h.s.Privileges = p }

func (h *Handler) AccumulationHistory() [][]jamtypes.Hash         { return h.s.AccumulationHistory }
func (h *Handler) SetAccumulationHistory(x [][]jamtypes.Hash)     { h.s.AccumulationHistory = x }

func (h *Handler) ReadyQueue() [][]ReadyRecord     { return h.s.ReadyQueue }
func (h *Handler) SetReadyQueue(q [][]ReadyRecord) { h.s.ReadyQueue = q }

func (h *Handler) Statistics() Statistics     { return h.s.Statistics }
func (h *Handler) SetStatistics(p Statistics) { h.s.Statistics = p }
