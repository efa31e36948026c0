// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

// Package readinglog appends accepted readings to a newline-delimited JSON file.
//
// Writes are best effort. Log enqueues without blocking and Serve appends in
// the background, so a slow or broken disk never gates ingest or fan-out.
// Appends go through a circuit breaker: after BreakerFailures consecutive
// failures the file is left alone for BreakerTimeout and readings are dropped
// with a rate-limited warning.
package readinglog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/metrics"
	"github.com/tomtom215/homerelay/internal/models"
)

const breakerName = "reading-log"

// warnPeriod bounds how often drop and failure warnings are emitted.
const warnPeriod = 10 * time.Second

// Config configures a Writer.
type Config struct {
	Path            string
	QueueSize       int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Writer is an append-only JSONL sink for readings.
type Writer struct {
	path  string
	queue chan models.Reading
	cb    *gobreaker.CircuitBreaker[int]
	warn  zerolog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Writer. The file is opened lazily on the first append.
func New(cfg Config) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	metrics.ReadingLogBreakerState.Set(0)

	w := &Writer{
		path:  cfg.Path,
		queue: make(chan models.Reading, cfg.QueueSize),
		warn:  logging.Sampled(warnPeriod),
	}
	w.cb = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("reading log circuit breaker state transition")
			metrics.ReadingLogBreakerState.Set(stateToFloat(to))
		},
	})
	return w
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// String implements fmt.Stringer for suture logging.
func (w *Writer) String() string {
	return breakerName
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Log queues r for appending. It never blocks; when the queue is full the
// reading is dropped.
func (w *Writer) Log(r models.Reading) {
	select {
	case w.queue <- r:
	default:
		metrics.ReadingLogDropped.Inc()
		w.warn.Warn().Str("path", w.path).Msg("reading log queue full, dropping reading")
	}
}

// Append writes r as one JSON line.
func (w *Writer) Append(r models.Reading) error {
	line, err := json.Marshal(r)
	if err != nil {
		metrics.ReadingLogFailures.Inc()
		return fmt.Errorf("encode reading: %w", err)
	}
	line = append(line, '\n')

	_, err = w.cb.Execute(func() (int, error) {
		return w.write(line)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ReadingLogDropped.Inc()
		} else {
			metrics.ReadingLogFailures.Inc()
		}
		return err
	}

	metrics.ReadingLogWrites.Inc()
	return nil
}

func (w *Writer) write(line []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, fmt.Errorf("open reading log: %w", err)
		}
		w.file = f
	}

	n, err := w.file.Write(line)
	if err != nil {
		// Reopen on the next attempt; the handle may be stale.
		_ = w.file.Close()
		w.file = nil
		return n, fmt.Errorf("write reading log: %w", err)
	}
	return n, nil
}

// Serve appends queued readings until ctx is canceled, then drains the queue,
// closes the file and returns ctx.Err().
func (w *Writer) Serve(ctx context.Context) error {
	logging.Info().Str("path", w.path).Msg("reading log started")

	for {
		select {
		case r := <-w.queue:
			w.appendOrWarn(r)
		case <-ctx.Done():
			drained := w.drain()
			if err := w.Close(); err != nil {
				logging.Warn().Err(err).Msg("failed to close reading log")
			}
			logging.Info().
				Str("path", w.path).
				Int("drained", drained).
				Msg("reading log stopped")
			return ctx.Err()
		}
	}
}

func (w *Writer) appendOrWarn(r models.Reading) {
	if err := w.Append(r); err != nil {
		w.warn.Warn().Err(err).Str("path", w.path).Msg("failed to append reading to log")
	}
}

func (w *Writer) drain() int {
	n := 0
	for {
		select {
		case r := <-w.queue:
			w.appendOrWarn(r)
			n++
		default:
			return n
		}
	}
}

// Close closes the file. A later append reopens it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// ReadRecords decodes a reading log. Blank lines are skipped.
func ReadRecords(r io.Reader) ([]models.Reading, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []models.Reading
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		reading, err := models.DecodeReading(line)
		if err != nil {
			return out, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, reading)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read reading log: %w", err)
	}
	return out, nil
}
