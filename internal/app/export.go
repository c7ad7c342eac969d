package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"sma-signal/internal/calc"
	"sma-signal/internal/marketdata"
)

// Export renders the benchmark series with its SMA and threshold levels
// as a PNG chart and/or CSV.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Months <= 0 {
		opts.Months = a.Config.Chart.LastMonths
	}

	cacheStore := a.newCacheStore()
	start, end := a.fetchWindow(time.Now())

	symbols := []string{a.Config.Trading.BenchmarkSymbol, a.Config.Trading.TargetSymbol}
	series, err := cacheStore.GetOrFetch(ctx, symbols, start, end)
	if err != nil {
		return fmt.Errorf("acquire market data: %w", err)
	}

	bench := series[a.Config.Trading.BenchmarkSymbol]
	smaSeries, err := calc.MovingAverage(bench, a.Config.Trading.SMAPeriod)
	if err != nil {
		return fmt.Errorf("compute sma: %w", err)
	}

	points := buildChartPoints(bench, smaSeries, a.Config.Trading.BuyMultiplier, a.Config.Trading.SellMultiplier)
	points = trimToMonths(points, opts.Months)
	if len(points) == 0 {
		a.Logger.Info().Msg("no data points in export window")
		return nil
	}

	a.Logger.Info().Int("points", len(points)).Int("months", opts.Months).Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, points); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSeriesPNG(opts.PNGPath, a.Config.Trading.BenchmarkSymbol, a.Config.Trading.SMAPeriod, points); err != nil {
			return err
		}
	}

	return nil
}

// chartPoint is one date where both the close and the SMA exist.
type chartPoint struct {
	Date      time.Time
	Close     float64
	SMA       float64
	BuyLevel  float64
	SellLevel float64
}

func buildChartPoints(series []marketdata.PricePoint, sma []calc.SMAPoint, buyMult, sellMult float64) []chartPoint {
	smaByDate := make(map[time.Time]float64, len(sma))
	for _, p := range sma {
		smaByDate[p.Date] = p.Value.InexactFloat64()
	}

	points := make([]chartPoint, 0, len(sma))
	for _, p := range series {
		value, ok := smaByDate[p.Date]
		if !ok {
			continue
		}
		points = append(points, chartPoint{
			Date:      p.Date,
			Close:     p.Close.InexactFloat64(),
			SMA:       value,
			BuyLevel:  value * buyMult,
			SellLevel: value * sellMult,
		})
	}
	return points
}

func trimToMonths(points []chartPoint, months int) []chartPoint {
	if len(points) == 0 {
		return points
	}
	cutoff := points[len(points)-1].Date.AddDate(0, -months, 0)
	for i, p := range points {
		if !p.Date.Before(cutoff) {
			return points[i:]
		}
	}
	return nil
}

func writeSeriesCSV(path string, points []chartPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "close", "sma", "buy_level", "sell_level"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.Date.Format("2006-01-02"),
			fmt.Sprintf("%.4f", p.Close),
			fmt.Sprintf("%.4f", p.SMA),
			fmt.Sprintf("%.4f", p.BuyLevel),
			fmt.Sprintf("%.4f", p.SellLevel),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSeriesPNG(path, symbol string, smaPeriod int, points []chartPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	closes := make([]float64, len(points))
	sma := make([]float64, len(points))
	buy := make([]float64, len(points))
	sell := make([]float64, len(points))

	for i, p := range points {
		x[i] = p.Date
		closes[i] = p.Close
		sma[i] = p.SMA
		buy[i] = p.BuyLevel
		sell[i] = p.SellLevel
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           fmt.Sprintf("%s price", symbol),
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    symbol,
				XValues: x,
				YValues: closes,
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("SMA%d", smaPeriod),
				XValues: x,
				YValues: sma,
			},
			chart.TimeSeries{
				Name:    "Buy level",
				XValues: x,
				YValues: buy,
				Style: chart.Style{
					StrokeColor:     chart.ColorGreen,
					StrokeDashArray: []float64{5.0, 5.0},
				},
			},
			chart.TimeSeries{
				Name:    "Sell level",
				XValues: x,
				YValues: sell,
				Style: chart.Style{
					StrokeColor:     chart.ColorRed,
					StrokeDashArray: []float64{5.0, 5.0},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
