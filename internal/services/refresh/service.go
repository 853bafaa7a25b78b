// Package refresh periodically reloads page data from the backend
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/bobmcallan/lanfund/internal/models"
)

// DefaultInterval is the auto-refresh period.
const DefaultInterval = 60 * time.Second

// source is one backend read feeding a page.
type source struct {
	name string
	path string
}

// pageSources lists the market endpoints each page reads. The portfolio page
// additionally reloads rows and holdings through the portfolio service.
var pageSources = map[string][]source{
	common.PagePortfolio:      {{"timing", "/api/timing"}},
	common.PageMarketIndices:  {{"global", "/api/indices/global"}, {"volume", "/api/indices/volume"}},
	common.PagePreciousMetals: {{"realtime", "/api/gold/real-time"}, {"history", "/api/gold/history"}},
	common.PageSectors:        {{"sectors", "/api/sectors"}},
	common.PageMarket:         {{"news", "/api/news/7x24"}},
}

// Service implements RefreshService
type Service struct {
	portfolio interfaces.PortfolioService
	backend   interfaces.FundBackend
	pages     []string
	interval  time.Duration
	logger    *common.Logger

	mu      sync.Mutex
	base    context.Context
	started bool
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}

	dataMu sync.RWMutex
	data   map[string]*models.PageData

	subsMu sync.Mutex
	subs   map[int]func(*models.PositionSummary)
	nextID int
}

var _ interfaces.RefreshService = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithInterval sets the refresh period
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPages selects which pages are refreshed. Unknown names are ignored.
func WithPages(pages ...string) Option {
	return func(s *Service) {
		s.pages = s.pages[:0]
		for _, p := range pages {
			if common.IsKnownPage(p) {
				s.pages = append(s.pages, p)
			}
		}
	}
}

// NewService creates a refresher. It does nothing until Start.
func NewService(portfolio interfaces.PortfolioService, backend interfaces.FundBackend, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		portfolio: portfolio,
		backend:   backend,
		pages:     []string{common.PagePortfolio},
		interval:  DefaultInterval,
		logger:    logger,
		data:      make(map[string]*models.PageData),
		subs:      make(map[int]func(*models.PositionSummary)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the ticker loop. It runs until ctx is cancelled or Stop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.base = ctx
	if !s.paused {
		s.launchLocked()
	}
	s.logger.Info().Dur("interval", s.interval).Strs("pages", s.pages).Bool("paused", s.paused).Msg("Auto refresh: started")
}

// Stop ends the ticker loop and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	s.started = false
	done := s.haltLocked()
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Pause stops the ticker, as when the page is hidden
func (s *Service) Pause() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	done := s.haltLocked()
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	s.logger.Info().Msg("Auto refresh: paused")
}

// Resume refreshes immediately and restarts the ticker
func (s *Service) Resume(ctx context.Context) {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.mu.Unlock()

	s.logger.Info().Msg("Auto refresh: resumed")
	if err := s.RefreshNow(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Auto refresh: refresh on resume failed")
	}

	s.mu.Lock()
	if s.started && !s.paused && s.cancel == nil {
		s.launchLocked()
	}
	s.mu.Unlock()
}

// Paused reports whether the ticker is paused
func (s *Service) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Service) launchLocked() {
	ctx, cancel := context.WithCancel(s.base)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go s.run(ctx, done)
}

func (s *Service) haltLocked() chan struct{} {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	done := s.done
	s.cancel, s.done = nil, nil
	return done
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Auto refresh: loop stopped")
			return
		case <-ticker.C:
			if err := s.RefreshNow(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Auto refresh: tick failed")
			}
		}
	}
}

// RefreshNow reloads every configured page once. Failures of one page do not
// stop the others; they are joined into the returned error.
func (s *Service) RefreshNow(ctx context.Context) error {
	start := time.Now()
	var errs []error
	for _, page := range s.pages {
		if err := s.refreshPage(ctx, page); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", page, err))
		}
	}
	s.logger.Debug().Int("pages", len(s.pages)).Int("failed", len(errs)).Dur("elapsed", time.Since(start)).Msg("Auto refresh: complete")
	return errors.Join(errs...)
}

func (s *Service) refreshPage(ctx context.Context, page string) error {
	pd := &models.PageData{
		Page:      page,
		Sources:   make(map[string]json.RawMessage),
		FetchedAt: time.Now(),
	}

	var errs []error
	if page == common.PagePortfolio {
		summary, err := s.portfolio.Refresh(ctx)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.publish(summary)
		}
	}

	for _, src := range pageSources[page] {
		data, err := s.backend.GetMarketData(ctx, src.path)
		if err != nil {
			if pd.Errors == nil {
				pd.Errors = make(map[string]string)
			}
			pd.Errors[src.name] = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", src.path, err))
			continue
		}
		pd.Sources[src.name] = data
	}

	s.dataMu.Lock()
	s.data[page] = pd
	s.dataMu.Unlock()

	return errors.Join(errs...)
}

// Page returns the last data loaded for page
func (s *Service) Page(name string) (*models.PageData, bool) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	pd, ok := s.data[name]
	return pd, ok
}

// Subscribe registers fn to receive each new portfolio summary
func (s *Service) Subscribe(fn func(*models.PositionSummary)) func() {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Service) publish(summary *models.PositionSummary) {
	s.subsMu.Lock()
	fns := make([]func(*models.PositionSummary), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(summary)
	}
}
