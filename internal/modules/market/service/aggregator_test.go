package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Gerald/NEXUSAI/internal/helper"
	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("market-test"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const asset = "EUR/USD"

func TestIngestTickBucketsAcrossTimeframes(t *testing.T) {
	agg := NewAggregator([]string{asset}, 500, nil)

	// one tick per minute for an hour
	for m := 0; m < 60; m++ {
		agg.IngestTick(asset, 1.0+float64(m)*0.001, int64(m)*60_000)
	}

	assert.Equal(t, 12, agg.Len(asset, models.TFM5))
	assert.Equal(t, 4, agg.Len(asset, models.TFM15))
	assert.Equal(t, 2, agg.Len(asset, models.TFM30))
	assert.Equal(t, 1, agg.Len(asset, models.TFH1))

	snap := agg.Snapshot(asset)
	h1 := snap[models.TFH1][0]
	assert.Equal(t, int64(0), h1.OpenTime)
	assert.Equal(t, 1.0, h1.Open)
	assert.Equal(t, 1.0, h1.Low)
	assert.InDelta(t, 1.059, h1.High, 1e-9)
	assert.InDelta(t, 1.059, h1.Close, 1e-9)

	px, ok := agg.LastPrice(asset)
	require.True(t, ok)
	assert.InDelta(t, 1.059, px, 1e-9)
}

func TestIngestTickIdempotentForRepeatedPrice(t *testing.T) {
	agg := NewAggregator([]string{asset}, 500, nil)

	agg.IngestTick(asset, 1.05, 1_000)
	before := agg.Snapshot(asset)
	agg.IngestTick(asset, 1.05, 1_000)
	after := agg.Snapshot(asset)

	assert.Equal(t, before, after, "replaying the same tick must not change any bar")
}

func TestIngestTickUnknownAssetIgnored(t *testing.T) {
	agg := NewAggregator([]string{asset}, 500, nil)

	agg.IngestTick("BTC/USD", 60000, 0)
	assert.Nil(t, agg.Snapshot("BTC/USD"))
	_, ok := agg.LastPrice("BTC/USD")
	assert.False(t, ok)
}

func TestStoreEviction(t *testing.T) {
	agg := NewAggregator([]string{asset}, 5, nil)

	for i := 0; i < 10; i++ {
		agg.IngestTick(asset, 1.0, int64(i)*300_000)
	}

	assert.Equal(t, 5, agg.Len(asset, models.TFM5))
	snap := agg.Snapshot(asset)
	assert.Equal(t, int64(5*300_000), snap[models.TFM5][0].OpenTime, "oldest bars are evicted first")
}

func TestLiveAndRebuiltSeriesAgree(t *testing.T) {
	agg := NewAggregator([]string{asset}, 500, nil)
	for m := 0; m < 180; m++ {
		agg.IngestTick(asset, 1.0+float64(m%13)*0.0007, int64(m)*60_000)
	}

	snap := agg.Snapshot(asset)
	for _, tf := range []models.Timeframe{models.TFM15, models.TFM30, models.TFH1} {
		rebuilt := AggregateSeries(snap[models.TFM5], helper.TimeframeMs(tf))
		assert.Equal(t, snap[tf], rebuilt, "tf %s", tf)
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := "EURUSD_M5.csv"
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte("Date,Open,High,Low,Close,Volume\n"), 0o644))

	rec := NewRecorder(dir, map[string]string{asset: file})
	want := models.Candle{
		OpenTime: time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC).UnixMilli(),
		Open:     1.1001, High: 1.1012, Low: 1.0995, Close: 1.1008,
	}
	require.NoError(t, rec.Append(asset, want))

	series, err := ReadSeriesCSV(path)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, want, series[0])

	// assets without a configured file are a silent no-op
	require.NoError(t, rec.Append("GBP/USD", want))
}

func TestAggregatorPersistsClosedBarOnRoll(t *testing.T) {
	dir := t.TempDir()
	file := "EURUSD_M5.csv"
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte("Date,Open,High,Low,Close,Volume\n"), 0o644))

	agg := NewAggregator([]string{asset}, 500, NewRecorder(dir, map[string]string{asset: file}))

	agg.IngestTick(asset, 1.10, 0)
	agg.IngestTick(asset, 1.11, 60_000)

	series, err := ReadSeriesCSV(path)
	require.NoError(t, err)
	assert.Empty(t, series, "bar is still open, nothing persisted yet")

	agg.IngestTick(asset, 1.12, 300_000) // rolls the M5 bucket

	series, err = ReadSeriesCSV(path)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, int64(0), series[0].OpenTime)
	assert.Equal(t, 1.10, series[0].Open)
	assert.Equal(t, 1.11, series[0].Close)
}

func TestAggregatorRollSurvivesRecorderFailure(t *testing.T) {
	// the recorder points at a directory that does not exist, so every append
	// fails; the in-memory store must be unaffected
	missing := filepath.Join(t.TempDir(), "missing")
	agg := NewAggregator([]string{asset}, 500, NewRecorder(missing, map[string]string{asset: "EURUSD_M5.csv"}))

	agg.IngestTick(asset, 1.10, 0)
	agg.IngestTick(asset, 1.12, 300_000)

	assert.Equal(t, 2, agg.Len(asset, models.TFM5))
	snap := agg.Snapshot(asset)
	assert.Equal(t, 1.10, snap[models.TFM5][0].Close)
	assert.Equal(t, 1.12, snap[models.TFM5][1].Close)
}
