package bikecast

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/bikecast/bikecast/client"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// LineBacktest generates an echart line chart for one entity plotting the
// held-out actual demand against the service's mean and quantile
// predictions over the test window.
func LineBacktest(entity string, t []time.Time, actual []float64, pred client.Prediction) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: fmt.Sprintf("Backtest %s", entity),
			},
		),
	)

	lineDataActual := make([]opts.LineData, 0, len(actual))
	for _, v := range actual {
		lineDataActual = append(lineDataActual, opts.LineData{Value: v})
	}
	lineDataMean := make([]opts.LineData, 0, len(pred.Mean))
	for _, v := range pred.Mean {
		lineDataMean = append(lineDataMean, opts.LineData{Value: v})
	}

	line = line.SetXAxis(t).
		AddSeries("Actual", lineDataActual).
		AddSeries("Mean", lineDataMean)

	quantiles := make([]string, 0, len(pred.Quantiles))
	for name := range pred.Quantiles {
		quantiles = append(quantiles, name)
	}
	sort.Strings(quantiles)
	for _, name := range quantiles {
		lineData := make([]opts.LineData, 0, len(pred.Quantiles[name]))
		for _, v := range pred.Quantiles[name] {
			lineData = append(lineData, opts.LineData{Value: v})
		}
		line = line.AddSeries(fmt.Sprintf("p%s", name), lineData)
	}
	return line
}

// PlotBacktest uses the Apache Echarts library to generate an html file with
// one chart per entity comparing predictions against the held-out test
// window. Predictions must be in the split's entity order.
func PlotBacktest(path string, res *Results, preds []client.Prediction) error {
	entities := res.Split.Entities
	if len(preds) != len(entities) {
		return fmt.Errorf("%d predictions for %d entities, %w", len(preds), len(entities), client.ErrPredictionCount)
	}

	actualByEntity := make(map[string][]float64, len(entities))
	for _, p := range res.Split.Test {
		actualByEntity[p.Entity] = append(actualByEntity[p.Entity], p.Demand)
	}
	t := res.Split.RelatedTest.Times()

	page := components.NewPage()
	for i, entity := range entities {
		page.AddCharts(LineBacktest(entity, t, actualByEntity[entity], preds[i]))
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	return page.Render(io.MultiWriter(file))
}
