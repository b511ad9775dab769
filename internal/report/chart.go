package report

import (
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"
)

// WriteRTTChart renders the timing-probe samples as a PNG. The
// payload-size sweep is preferred; when it produced fewer than two usable
// samples the traffic-pattern series is rendered instead. With nothing
// renderable no file is written.
func WriteRTTChart(path string, r Report) error {
	series, xName := rttSeries(r)
	if series == nil {
		return nil
	}

	graph := chart.Chart{
		Title:  "round-trip times",
		XAxis:  chart.XAxis{Name: xName},
		YAxis:  chart.YAxis{Name: "ms"},
		Series: []chart.Series{series},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return graph.Render(chart.PNG, f)
}

func rttSeries(r Report) (chart.Series, string) {
	var xs, ys []float64
	for _, s := range r.NetInterface.Samples {
		if s.Err != "" {
			continue
		}
		xs = append(xs, float64(s.SizeBytes))
		ys = append(ys, float64(s.RTT.Milliseconds()))
	}
	if len(xs) >= 2 {
		return chart.ContinuousSeries{Name: "rtt by payload size", XValues: xs, YValues: ys}, "payload bytes"
	}

	xs, ys = nil, nil
	for i, rtt := range r.Traffic.RTTs {
		xs = append(xs, float64(i+1))
		ys = append(ys, float64(rtt.Milliseconds()))
	}
	if len(xs) >= 2 {
		return chart.ContinuousSeries{Name: "rtt by sample", XValues: xs, YValues: ys}, "sample"
	}

	return nil, ""
}
