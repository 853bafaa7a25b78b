package report

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/lanfund/internal/models"
)

// ErrNothingToChart is returned for a card with no non-zero gains.
var ErrNothingToChart = errors.New("card has no gains to chart")

// RenderCardChart renders a PNG bar chart of the card's top funds.
// Gains are drawn red and losses green. Returns raw PNG bytes.
func RenderCardChart(card *models.ShowoffCard) ([]byte, error) {
	if card == nil || len(card.TopFunds) == 0 {
		return nil, ErrNothingToChart
	}

	bars := make([]chart.Value, 0, len(card.TopFunds))
	lo, hi := 0.0, 0.0
	for _, f := range card.TopFunds {
		color := drawing.ColorFromHex("f44336") // red
		if f.Gain < 0 {
			color = drawing.ColorFromHex("4caf50") // green
		}
		lo, hi = math.Min(lo, f.Gain), math.Max(hi, f.Gain)
		bars = append(bars, chart.Value{
			Label: f.Code,
			Value: f.Gain,
			Style: chart.Style{
				FillColor:   color,
				StrokeColor: color,
				StrokeWidth: 1,
			},
		})
	}
	if lo == hi {
		return nil, ErrNothingToChart
	}

	graph := chart.BarChart{
		Title:  fmt.Sprintf("Top funds %s", card.Date),
		Width:  600,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		BarWidth:     80,
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("¥%.2f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
