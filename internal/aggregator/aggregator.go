// Package aggregator computes the daily first/last summary of every tracked
// source and writes it to the DailyUsage table.
//
// A run is sequential and idempotent: each source is read and, if it has
// readings on the date, upserted under its name. A failing source is logged
// and recorded in the Result; the remaining sources are still processed.
package aggregator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jgoulah/dailyusage/pkg/models"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Operator diagnostics, kept in German for the existing log scrapers
const (
	msgReadFailed  = "Fehler beim Abrufen der Daten"
	msgWriteFailed = "Fehler beim Einfügen/Aktualisieren der Daten"
	msgUnexpected  = "Ein Fehler ist aufgetreten"
)

// Reader returns the first and last value of a source on a date
type Reader interface {
	FirstLast(ctx context.Context, src models.Source, date time.Time) (models.DailyUsage, bool, error)
}

// Writer stores a summary row, replacing any row with the same date and name
type Writer interface {
	UpsertDailyUsage(ctx context.Context, usage models.DailyUsage) error
}

// Notifier is told about every row that was written
type Notifier interface {
	Publish(usage models.DailyUsage, runID string) error
}

// Aggregator runs the per-source read and upsert steps
type Aggregator struct {
	reader   Reader
	writer   Writer
	notifier Notifier
	logger   *zap.Logger
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithNotifier publishes each written row
func WithNotifier(n Notifier) Option {
	return func(a *Aggregator) {
		a.notifier = n
	}
}

// New creates an Aggregator
func New(reader Reader, writer Writer, logger *zap.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		reader: reader,
		writer: writer,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run aggregates all sources for one date
func (a *Aggregator) Run(ctx context.Context, date time.Time, sources []models.Source) Result {
	result := Result{RunID: uuid.NewString()}
	result.Outcomes = a.runDate(ctx, result.RunID, date, sources)
	return result
}

// RunRange aggregates every date from from to to, inclusive, one date after the other
func (a *Aggregator) RunRange(ctx context.Context, from, to time.Time, sources []models.Source) (Result, error) {
	if to.Before(from) {
		return Result{}, fmt.Errorf("end date %s is before start date %s",
			to.Format(models.DateLayout), from.Format(models.DateLayout))
	}

	result := Result{RunID: uuid.NewString()}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		result.Outcomes = append(result.Outcomes, a.runDate(ctx, result.RunID, d, sources)...)
	}
	return result, nil
}

func (a *Aggregator) runDate(ctx context.Context, runID string, date time.Time, sources []models.Source) []Outcome {
	logger := a.logger.With(
		zap.String("run_id", runID),
		zap.String("date", date.Format(models.DateLayout)),
	)

	ordered := meterFirst(sources)
	logger.Info("aggregation started", zap.Int("sources", len(ordered)))

	outcomes := make([]Outcome, 0, len(ordered))
	for _, src := range ordered {
		out := a.process(ctx, logger.With(zap.String("source", src.Name)), runID, date, src)
		outcomes = append(outcomes, out)
	}

	failed := lo.CountBy(outcomes, func(o Outcome) bool { return o.Status == StatusFailed })
	written := lo.CountBy(outcomes, func(o Outcome) bool { return o.Status == StatusWritten })
	logger.Info("aggregation finished",
		zap.Int("written", written),
		zap.Int("failed", failed),
		zap.Int("no_data", len(outcomes)-written-failed),
	)
	return outcomes
}

// process runs the read and upsert step of one source. It never panics.
func (a *Aggregator) process(ctx context.Context, logger *zap.Logger, runID string, date time.Time, src models.Source) (out Outcome) {
	out = Outcome{Date: date, Source: src}

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Err = fmt.Errorf("panic: %v", r)
			logger.Error(msgUnexpected, zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	usage, found, err := a.reader.FirstLast(ctx, src, date)
	if err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("reading %s: %w", src.Name, err)
		logger.Error(msgReadFailed, zap.Error(err))
		return out
	}
	if !found {
		out.Status = StatusNoData
		logger.Debug("no readings")
		return out
	}

	usage.Name = src.Name
	usage.Date = date
	if err := a.writer.UpsertDailyUsage(ctx, usage); err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("writing %s: %w", src.Name, err)
		logger.Error(msgWriteFailed, zap.Error(err))
		return out
	}

	out.Status = StatusWritten
	out.Usage = usage
	logger.Info("daily usage written", valueFields(usage)...)

	if a.notifier != nil {
		if err := a.notifier.Publish(usage, runID); err != nil {
			logger.Warn("publishing daily usage failed", zap.Error(err))
		}
	}

	return out
}

// meterFirst orders meter sources ahead of device sources, keeping configured order otherwise
func meterFirst(sources []models.Source) []models.Source {
	meters, devices := lo.FilterReject(sources, func(s models.Source, _ int) bool {
		return s.Kind == models.KindMeter
	})
	return append(meters, devices...)
}

func valueFields(u models.DailyUsage) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if u.First != nil {
		fields = append(fields, zap.Float64("first", *u.First))
	}
	if u.Last != nil {
		fields = append(fields, zap.Float64("last", *u.Last))
	}
	return fields
}
