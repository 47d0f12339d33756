package output

import (
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/httping/httping/internal/shared"
)

// ChartOutput accumulates per-probe timings and renders a latency-over-
// sequence PNG when the run ends.
type ChartOutput struct {
	mu      sync.Mutex
	path    string
	results []shared.Result
	url     string
}

func NewChartOutput(path string) *ChartOutput {
	return &ChartOutput{path: path}
}

func (c *ChartOutput) Record(result shared.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

func (c *ChartOutput) Summary(summary shared.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = summary.URL
}

func (c *ChartOutput) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalX, totalY, connectX, connectY, lostX, lostY []float64
	for _, r := range c.results {
		x := float64(r.Seq)
		if !r.OK {
			lostX = append(lostX, x)
			lostY = append(lostY, 0)
			continue
		}
		totalX = append(totalX, x)
		totalY = append(totalY, ms(r.TotalUS))
		// Reused connections have no dial to plot.
		if r.ConnectUS > 0 {
			connectX = append(connectX, x)
			connectY = append(connectY, ms(r.ConnectUS))
		}
	}

	// A line chart needs an x-range; go-chart rejects a single point.
	if len(totalX) < 2 {
		log.Warnf("Not enough successful probes to chart, skipping %s", c.path)
		return nil
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name: "total",
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(0),
				StrokeWidth: 2,
			},
			XValues: totalX,
			YValues: totalY,
		},
	}
	if len(connectX) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name: "connect",
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(1),
				StrokeWidth: 2,
			},
			XValues: connectX,
			YValues: connectY,
		})
	}
	if len(lostX) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name: "lost",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    5,
				DotColor:    drawing.ColorRed,
			},
			XValues: lostX,
			YValues: lostY,
		})
	}

	graph := chart.Chart{
		Title: "HTTP latency - " + c.url,
		TitleStyle: chart.Style{
			FontSize: 16,
		},
		Background: chart.Style{
			Padding: chart.Box{
				Top:    20,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  1200,
		Height: 400,
		XAxis: chart.XAxis{
			Name: "Probe",
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
		},
		YAxis: chart.YAxis{
			Name: "Latency (ms)",
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			GridMajorStyle: chart.Style{
				StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
				StrokeWidth: 1.0,
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	file, err := os.Create(c.path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}
