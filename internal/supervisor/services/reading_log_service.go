// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package services

import (
	"context"
	"errors"

	"github.com/tomtom215/homerelay/internal/logging"
)

// ReadingLog is satisfied by *readinglog.Writer.
type ReadingLog interface {
	Serve(ctx context.Context) error
	Path() string
}

// ReadingLogService drains the reading log queue under suture.
type ReadingLogService struct {
	log  ReadingLog
	name string
}

// NewReadingLogService creates a new reading log service wrapper.
func NewReadingLogService(log ReadingLog) *ReadingLogService {
	return &ReadingLogService{
		log:  log,
		name: "reading-log",
	}
}

// Serve implements suture.Service.
func (s *ReadingLogService) Serve(ctx context.Context) error {
	err := s.log.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logging.Error().Err(err).Str("path", s.log.Path()).Msg("reading log stopped unexpectedly")
	}
	return err
}

// String implements fmt.Stringer for suture logging.
func (s *ReadingLogService) String() string {
	return s.name
}
