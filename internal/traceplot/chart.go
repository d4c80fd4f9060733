package traceplot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/clockdrive/internal/road"
)

// RenderHTML writes a standalone interactive scatter chart of the raw and
// filtered traces to w.
func RenderHTML(w io.Writer, raw, filtered road.Trace) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Road trace", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Road trace", Subtitle: fmt.Sprintf("raw=%d filtered=%d", len(raw), len(filtered))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (px)", NameLocation: "middle", NameGap: 25, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (px)", NameLocation: "middle", NameGap: 30, Type: "value", Inverse: opts.Bool(true)}),
	)
	scatter.AddSeries("raw", scatterData(raw), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("filtered", scatterData(filtered), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func scatterData(t road.Trace) []opts.ScatterData {
	data := make([]opts.ScatterData, 0, len(t))
	for i, p := range t {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}, Name: fmt.Sprintf("#%d", i)})
	}
	return data
}
