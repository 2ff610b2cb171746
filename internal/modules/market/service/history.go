package service

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

// ReadSeriesCSV loads one asset's finest-timeframe history from a CSV with a
// Date,Open,High,Low,Close[,Volume] header, sorted by time ascending.
func ReadSeriesCSV(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, need := range []string{"Date", "Open", "High", "Low", "Close"} {
		if _, ok := col[need]; !ok {
			return nil, errors.Errorf("missing column %q in %s", need, path)
		}
	}

	var out []models.Candle
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv record")
		}
		ts, err := time.Parse(time.RFC3339, rec[col["Date"]])
		if err != nil {
			return nil, errors.Wrapf(err, "parse date %q", rec[col["Date"]])
		}
		c := models.Candle{OpenTime: ts.UnixMilli()}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"Open", &c.Open}, {"High", &c.High}, {"Low", &c.Low}, {"Close", &c.Close},
		} {
			v, err := strconv.ParseFloat(rec[col[f.name]], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parse %s", f.name)
			}
			*f.dst = v
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

// LoadHistory bootstraps the aggregator from local CSV files. Assets with no
// file (or an unreadable one) are skipped and calibrate from live ticks only.
func LoadHistory(agg *Aggregator, dir string, files map[string]string) {
	loaded := 0
	for asset, name := range files {
		series, err := ReadSeriesCSV(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				logger.Info("[MARKET] no local history for %s, calibrating from live feed", asset)
			} else {
				logger.Error("[MARKET] load history for %s: %v", asset, err)
			}
			continue
		}
		agg.LoadSeries(asset, series)
		loaded++
		logger.Info("[MARKET] loaded %d candles for %s", len(series), asset)
	}
	logger.Info("[MARKET] history bootstrap complete: %d/%d assets", loaded, len(files))
}
