package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"candleBacktester/internal/domain"
)

var candleCSVHeader = []string{"open_time", "close_time", "open", "high", "low", "close", "volume"}

// WriteCandlesToCSV writes candles to filename, creating parent directories.
// Times are stored as unix milliseconds.
func WriteCandlesToCSV(candles []domain.Candle, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(candleCSVHeader); err != nil {
		return err
	}

	for _, c := range candles {
		err := writer.Write([]string{
			strconv.FormatInt(c.OpenTime, 10),
			strconv.FormatInt(c.CloseTime, 10),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCandlesFromCSV reads a file produced by WriteCandlesToCSV.
func ReadCandlesFromCSV(filename string) ([]domain.Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseCandlesCSV(file)
}

// ParseCandlesCSV parses candle rows from r. The first row must be the header.
func ParseCandlesCSV(r io.Reader) ([]domain.Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(candleCSVHeader)

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var candles []domain.Candle
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c, err := parseCandleRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseCandleRecord(record []string) (domain.Candle, error) {
	var c domain.Candle
	var err error
	if c.OpenTime, err = strconv.ParseInt(record[0], 10, 64); err != nil {
		return c, fmt.Errorf("parsing open_time '%s': %w", record[0], err)
	}
	if c.CloseTime, err = strconv.ParseInt(record[1], 10, 64); err != nil {
		return c, fmt.Errorf("parsing close_time '%s': %w", record[1], err)
	}
	prices := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, dst := range prices {
		raw := record[i+2]
		if *dst, err = strconv.ParseFloat(raw, 64); err != nil {
			return c, fmt.Errorf("parsing %s '%s': %w", candleCSVHeader[i+2], raw, err)
		}
	}
	return c, nil
}
