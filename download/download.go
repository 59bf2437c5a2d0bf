// Package download exports historical price data from a price oracle to CSV
package download

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/papertrade/core"
)

const (
	batchSize = 500
)

// CSV header names
var csvHeaders = []string{"time", "symbol", "price_usd"}

// Downloader facilitates downloading historical price data from an oracle
type Downloader struct {
	oracle core.PriceOracle
	log    core.Logger
}

// NewDownloader creates a new downloader instance with the provided oracle
func NewDownloader(oracle core.PriceOracle, log core.Logger) Downloader {
	return Downloader{
		oracle: oracle,
		log:    log,
	}
}

// Parameters defines the time range for data download
type Parameters struct {
	Start time.Time
	End   time.Time
}

// Option is a function type for configuring download parameters
type Option func(*Parameters)

// WithInterval sets specific start and end times for the download
func WithInterval(start, end time.Time) Option {
	return func(parameters *Parameters) {
		parameters.Start = start
		parameters.End = end
	}
}

// WithDays sets the download period to a specific number of days from now
func WithDays(days int) Option {
	return func(parameters *Parameters) {
		parameters.Start = time.Now().AddDate(0, 0, -days)
		parameters.End = time.Now()
	}
}

// calculatePointCount determines the number of price points in the given timeframe
func calculatePointCount(start, end time.Time, timeframe string) (int, time.Duration, error) {
	totalDuration := end.Sub(start)
	interval, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return 0, 0, err
	}
	return int(totalDuration / interval), interval, nil
}

// Download fetches price history from the oracle and saves it to a CSV file
func (d Downloader) Download(ctx context.Context, symbol, timeframe, outputPath string, options ...Option) error {
	recordFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer recordFile.Close()

	parameters := initializeParameters()
	for _, option := range options {
		option(parameters)
	}
	normalizeTimeParameters(parameters)

	pointCount, interval, err := calculatePointCount(parameters.Start, parameters.End, timeframe)
	if err != nil {
		return err
	}
	pointCount++

	d.log.Infof("Downloading %d price points of %s for %s", pointCount, timeframe, symbol)

	writer := csv.NewWriter(recordFile)
	progressBar := progressbar.Default(int64(pointCount))

	if err := writer.Write(csvHeaders); err != nil {
		return err
	}

	missingPoints, err := d.downloadBatches(ctx, symbol, timeframe,
		parameters.Start, parameters.End, interval, writer, progressBar)
	if err != nil {
		return err
	}

	if err = progressBar.Close(); err != nil {
		d.log.Warnf("Failed to close progress bar: %s", err.Error())
	}

	if missingPoints > 0 {
		d.log.Warnf("%d missing price points", missingPoints)
	}

	writer.Flush()
	d.log.Info("Done!")
	return writer.Error()
}

// initializeParameters creates default parameters for the last month
func initializeParameters() *Parameters {
	now := time.Now()
	return &Parameters{
		Start: now.AddDate(0, -1, 0),
		End:   now,
	}
}

// normalizeTimeParameters adjusts time parameters to appropriate boundaries
func normalizeTimeParameters(parameters *Parameters) {
	parameters.Start = time.Date(
		parameters.Start.Year(),
		parameters.Start.Month(),
		parameters.Start.Day(),
		0, 0, 0, 0, time.UTC,
	)

	now := time.Now()
	// Ensure end time is not in the future
	if now.Sub(parameters.End) > 0 {
		parameters.End = time.Date(
			parameters.End.Year(),
			parameters.End.Month(),
			parameters.End.Day(),
			0, 0, 0, 0, time.UTC,
		)
	} else {
		parameters.End = now
	}
}

// downloadBatches downloads price points in batches and writes them to CSV
func (d Downloader) downloadBatches(
	ctx context.Context,
	symbol string,
	timeframe string,
	start time.Time,
	end time.Time,
	interval time.Duration,
	writer *csv.Writer,
	progressBar *progressbar.ProgressBar,
) (int, error) {
	missingPoints := 0

	for batchStart := start; batchStart.Before(end); batchStart = batchStart.Add(interval * batchSize) {
		batchEnd := calculateBatchEnd(batchStart, interval, end)
		isLastBatch := batchEnd.Equal(end)

		points, err := d.oracle.PriceHistory(ctx, symbol, timeframe, batchStart, batchEnd)
		if err != nil {
			return missingPoints, err
		}

		if err := writePoints(writer, points); err != nil {
			return missingPoints, err
		}

		if !isLastBatch && len(points) < batchSize {
			missingPoints += batchSize - len(points)
		}

		if err := progressBar.Add(len(points)); err != nil {
			d.log.Warnf("Failed to update progress bar: %s", err.Error())
		}
	}

	return missingPoints, nil
}

// calculateBatchEnd determines the end time for a batch
func calculateBatchEnd(batchStart time.Time, interval time.Duration, totalEnd time.Time) time.Time {
	potentialEnd := batchStart.Add(interval * batchSize)

	// Subtract 1 second to avoid overlapping with next batch's start
	if potentialEnd.Before(totalEnd) {
		return potentialEnd.Add(-1 * time.Second)
	}

	return totalEnd
}

// writePoints writes a batch of price points to the CSV writer
func writePoints(writer *csv.Writer, points []core.PricePoint) error {
	for _, point := range points {
		record := []string{
			strconv.FormatInt(point.Time.Unix(), 10),
			point.Symbol,
			strconv.FormatFloat(point.PriceUsd, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}
