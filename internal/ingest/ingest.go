// Package ingest runs one inbound payload end to end: normalize it, anchor
// it on the configured tab, append it to the sink. The HTTP handler and the
// ingest CLI share it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/matchsheet/internal/payload"
	"github.com/albapepper/matchsheet/internal/sink"
)

// Service appends normalized payloads to one sheet tab.
type Service struct {
	appender sink.Appender
	sheetID  string
	tab      string
	logger   *slog.Logger
}

// New creates a Service writing to tab of sheetID.
func New(appender sink.Appender, sheetID, tab string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		appender: appender,
		sheetID:  sheetID,
		tab:      tab,
		logger:   logger,
	}
}

// Range returns the range expression appends are anchored on.
func (s *Service) Range() string {
	return sink.RangeFor(s.tab)
}

// Ingest normalizes in and appends the resulting table. A body that matches
// no shape returns a *payload.ShapeError before the sink is contacted.
func (s *Service) Ingest(ctx context.Context, in payload.Input) (sink.Updates, error) {
	table, err := payload.Normalize(in)
	if err != nil {
		return sink.Updates{}, err
	}

	start := time.Now()
	updates, err := s.appender.Append(ctx, s.sheetID, s.Range(), table)
	if err != nil {
		return sink.Updates{}, fmt.Errorf("append %d rows: %w", len(table), err)
	}
	s.logger.Info("Rows appended",
		"rows", len(table),
		"range", updates.UpdatedRange,
		"duration", time.Since(start).Round(time.Millisecond))
	return updates, nil
}
