// Package report renders summaries and showoff cards as markdown, terminal
// text, PNG charts and CSV
package report

import (
	"fmt"

	"github.com/charmbracelet/glamour"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/bobmcallan/lanfund/internal/models"
)

// Service implements ReportService
type Service struct {
	style    string
	wordWrap int
	logger   *common.Logger
}

var _ interfaces.ReportService = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithStyle selects a glamour style such as "dark", "light" or "notty".
// An empty style picks one from the terminal.
func WithStyle(style string) Option {
	return func(s *Service) {
		s.style = style
	}
}

// WithWordWrap sets the terminal wrap width
func WithWordWrap(width int) Option {
	return func(s *Service) {
		s.wordWrap = width
	}
}

// NewService creates a new report service
func NewService(logger *common.Logger, opts ...Option) *Service {
	s := &Service{wordWrap: 120, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SummaryMarkdown renders the position summary
func (s *Service) SummaryMarkdown(summary *models.PositionSummary, prefs models.Preferences) string {
	if summary == nil {
		return "_暂无数据_\n"
	}
	return formatSummary(summary, prefs)
}

// CardMarkdown renders the showoff card
func (s *Service) CardMarkdown(card *models.ShowoffCard, hidden bool) string {
	if card == nil {
		return "_暂无数据_\n"
	}
	return formatCard(card, hidden)
}

// RenderTerminal renders markdown for a terminal
func (s *Service) RenderTerminal(markdown string) (string, error) {
	style := glamour.WithAutoStyle()
	if s.style != "" {
		style = glamour.WithStandardStyle(s.style)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(s.wordWrap))
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// CardChart renders the card's top funds as a PNG bar chart
func (s *Service) CardChart(card *models.ShowoffCard) ([]byte, error) {
	png, err := RenderCardChart(card)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("bytes", len(png)).Msg("Card chart rendered")
	return png, nil
}
