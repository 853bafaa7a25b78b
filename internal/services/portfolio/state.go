package portfolio

import (
	"sync"

	"github.com/bobmcallan/lanfund/internal/models"
)

// State is the in-memory holdings store: per-fund units and cost, the legacy
// shares amounts, fund names, sector tags and the most recent summary.
type State struct {
	mu       sync.RWMutex
	holdings map[string]models.FundHolding
	shares   map[string]float64
	names    map[string]string
	sectors  map[string][]string
	summary  *models.PositionSummary
}

// NewState returns an empty holdings store
func NewState() *State {
	return &State{
		holdings: make(map[string]models.FundHolding),
		shares:   make(map[string]float64),
		names:    make(map[string]string),
		sectors:  make(map[string][]string),
	}
}

// Load replaces the store with a roster fetched from the backend.
func (s *State) Load(funds map[string]models.FundRecord) {
	holdings := make(map[string]models.FundHolding, len(funds))
	shares := make(map[string]float64, len(funds))
	names := make(map[string]string, len(funds))
	sectors := make(map[string][]string, len(funds))

	for code, rec := range funds {
		if h, ok := rec.Holding(); ok {
			holdings[code] = h
		}
		shares[code] = rec.Shares
		names[code] = rec.FundName
		if len(rec.Sectors) > 0 {
			sectors[code] = append([]string(nil), rec.Sectors...)
		}
	}

	s.mu.Lock()
	s.holdings = holdings
	s.shares = shares
	s.names = names
	s.sectors = sectors
	s.mu.Unlock()
}

// Holding returns the stored unit/cost pair for code.
func (s *State) Holding(code string) (models.FundHolding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holdings[code]
	return h, ok
}

// Resolve returns the holding for code, defaulting a fund that has only a
// legacy shares amount to units = shares at cost 1. The default is stored.
func (s *State) Resolve(code string) models.FundHolding {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.holdings[code]; ok {
		return h
	}
	h := models.FundHolding{HoldingUnits: s.shares[code], CostPerUnit: 1}
	s.holdings[code] = h
	return h
}

// Apply records a successful position change.
func (s *State) Apply(code string, h models.FundHolding, shares float64) {
	s.mu.Lock()
	s.holdings[code] = h
	s.shares[code] = shares
	s.mu.Unlock()
}

// Shares returns the legacy shares amount for code.
func (s *State) Shares(code string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shares[code]
}

// Name returns the roster name for code.
func (s *State) Name(code string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[code]
}

// Sectors returns a copy of the sector tags for code.
func (s *State) Sectors(code string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sectors[code]) == 0 {
		return nil
	}
	return append([]string(nil), s.sectors[code]...)
}

// HeldCount is the number of funds with a positive shares amount.
func (s *State) HeldCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.shares {
		if v > 0 {
			n++
		}
	}
	return n
}

// Holdings returns a copy of the unit/cost map.
func (s *State) Holdings() map[string]models.FundHolding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.FundHolding, len(s.holdings))
	for k, v := range s.holdings {
		out[k] = v
	}
	return out
}

// Summary returns the last aggregation, or nil.
func (s *State) Summary() *models.PositionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// SetSummary stores the last aggregation.
func (s *State) SetSummary(summary *models.PositionSummary) {
	s.mu.Lock()
	s.summary = summary
	s.mu.Unlock()
}

// keyedMutex hands out one mutex per fund code.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock locks code and returns its unlock function.
func (k *keyedMutex) Lock(code string) func() {
	k.mu.Lock()
	l, ok := k.locks[code]
	if !ok {
		l = &sync.Mutex{}
		k.locks[code] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
