package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/yangluo1024/store-contracts/internal/storage"
)

// Export renders the sealed epoch history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Stream != storage.StreamBlock && opts.Stream != storage.StreamIssue {
		return fmt.Errorf("unknown stream %q", opts.Stream)
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	epochs, err := store.ListEpochs(ctx, opts.Stream)
	if err != nil {
		return err
	}
	if len(epochs) == 0 {
		a.Logger.Info().Str("stream", opts.Stream).Msg("no sealed epochs to export")
		return nil
	}

	downsampled := downsampleEpochs(epochs, opts.MaxPoints)
	a.Logger.Info().Int("total", len(epochs)).Int("exported", len(downsampled)).Msg("exporting epochs")

	if opts.CSVPath != "" {
		if err := writeEpochsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeEpochsPNG(opts.PNGPath, opts.Stream, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleEpochs(epochs []storage.EpochRecord, max int) []storage.EpochRecord {
	if max <= 0 || len(epochs) <= max {
		return epochs
	}

	result := make([]storage.EpochRecord, 0, max)
	step := float64(len(epochs)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(epochs) {
			idx = len(epochs) - 1
		}
		result = append(result, epochs[idx])
	}
	return result
}

func writeEpochsCSV(path string, epochs []storage.EpochRecord) error {
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

	header := []string{"sealed_at", "stream", "epoch_index", "amount", "total_coinday"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, epoch := range epochs {
		record := []string{
			time.UnixMilli(epoch.SealedAtMs).UTC().Format(time.RFC3339),
			epoch.Stream,
			strconv.FormatUint(uint64(epoch.Index), 10),
			epoch.Amount.String(),
			epoch.TotalCoinday.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeEpochsPNG(path, stream string, epochs []storage.EpochRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(epochs))
	amounts := make([]float64, len(epochs))
	coindays := make([]float64, len(epochs))

	for i, epoch := range epochs {
		x[i] = time.UnixMilli(epoch.SealedAtMs).UTC()
		amounts[i] = epoch.Amount.Shift(-8).InexactFloat64()
		coindays[i] = epoch.TotalCoinday.Shift(-8).InexactFloat64()
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Epoch award (ELP)",
			ValueFormatter: amountFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Total coinday",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Award (" + stream + ")",
				XValues: x,
				YValues: amounts,
			},
			chart.TimeSeries{
				Name:    "Total coinday",
				XValues: x,
				YValues: coindays,
				YAxis:   chart.YAxisSecondary,
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
