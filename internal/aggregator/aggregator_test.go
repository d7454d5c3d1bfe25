package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jgoulah/dailyusage/internal/config"
	"github.com/jgoulah/dailyusage/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type key struct {
	date string
	name string
}

// fakeStore serves readings per (date, source) and records upserts like the DailyUsage table
type fakeStore struct {
	readings map[key][2]float64
	readErr  map[string]error
	writeErr map[string]error
	panicOn  string
	rows     map[key]models.DailyUsage
	reads    []string
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		readings: map[key][2]float64{},
		readErr:  map[string]error{},
		writeErr: map[string]error{},
		rows:     map[key]models.DailyUsage{},
	}
}

func (f *fakeStore) FirstLast(_ context.Context, src models.Source, date time.Time) (models.DailyUsage, bool, error) {
	f.reads = append(f.reads, src.Name)
	if src.Name == f.panicOn {
		panic("boom")
	}
	if err := f.readErr[src.Name]; err != nil {
		return models.DailyUsage{}, false, err
	}
	v, ok := f.readings[key{date.Format(models.DateLayout), src.Name}]
	if !ok {
		return models.DailyUsage{}, false, nil
	}
	first, last := v[0], v[1]
	return models.DailyUsage{Date: date, First: &first, Last: &last, Name: src.Name}, true, nil
}

func (f *fakeStore) UpsertDailyUsage(_ context.Context, u models.DailyUsage) error {
	if err := f.writeErr[u.Name]; err != nil {
		return err
	}
	f.writes++
	f.rows[key{u.DateString(), u.Name}] = u
	return nil
}

type fakeNotifier struct {
	published []string
	runIDs    []string
	err       error
}

func (n *fakeNotifier) Publish(u models.DailyUsage, runID string) error {
	n.published = append(n.published, u.Name)
	n.runIDs = append(n.runIDs, runID)
	return n.err
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestRunWritesMeterAndDevices(t *testing.T) {
	store := newFakeStore()
	store.readings[key{"2024-01-01", "tuya"}] = [2]float64{100, 150}
	store.readings[key{"2024-01-01", "Device1"}] = [2]float64{10, 12}
	store.readings[key{"2024-01-01", "Device6"}] = [2]float64{60, 66}

	agg := New(store, store, nil)
	result := agg.Run(context.Background(), day("2024-01-01"), config.DefaultSources())

	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Outcomes, 7)
	assert.Equal(t, []string{"tuya", "Device1", "Device2", "Device3", "Device4", "Device5", "Device6"}, store.reads)
	assert.Equal(t, 3, result.Count(StatusWritten))
	assert.Equal(t, 4, result.Count(StatusNoData))
	assert.Equal(t, RunSuccess, result.Status())
	assert.Equal(t, ExitSuccess, result.ExitCode())
	assert.NoError(t, result.Err())

	row := store.rows[key{"2024-01-01", "tuya"}]
	assert.Equal(t, 100.0, *row.First)
	assert.Equal(t, 150.0, *row.Last)
	assert.Equal(t, "tuya", result.Outcomes[0].Usage.Name)
}

func TestRunNoDataLeavesExistingRow(t *testing.T) {
	store := newFakeStore()
	prior := models.DailyUsage{Date: day("2024-01-01"), First: ptr(1), Last: ptr(2), Name: "Device3"}
	store.rows[key{"2024-01-01", "Device3"}] = prior

	result := New(store, store, nil).Run(context.Background(), day("2024-01-01"), config.DefaultSources())

	assert.Equal(t, 7, result.Count(StatusNoData))
	assert.Equal(t, 0, store.writes)
	assert.Equal(t, prior, store.rows[key{"2024-01-01", "Device3"}])
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.readings[key{"2024-01-01", "tuya"}] = [2]float64{100, 150}
	store.readings[key{"2024-01-01", "Device2"}] = [2]float64{5, 9}

	agg := New(store, store, nil)
	agg.Run(context.Background(), day("2024-01-01"), config.DefaultSources())
	once := make(map[key]models.DailyUsage, len(store.rows))
	for k, v := range store.rows {
		once[k] = v
	}

	agg.Run(context.Background(), day("2024-01-01"), config.DefaultSources())
	assert.Equal(t, once, store.rows)
}

func TestRunIsolatesReadFailure(t *testing.T) {
	store := newFakeStore()
	store.readErr["Device3"] = errors.New("connection reset by peer")
	for _, name := range []string{"tuya", "Device4", "Device5", "Device6"} {
		store.readings[key{"2024-01-01", name}] = [2]float64{1, 2}
	}

	logger, logs := observedLogger()
	result := New(store, store, logger).Run(context.Background(), day("2024-01-01"), config.DefaultSources())

	for _, name := range []string{"tuya", "Device4", "Device5", "Device6"} {
		assert.Contains(t, store.rows, key{"2024-01-01", name})
	}
	assert.Equal(t, RunPartial, result.Status())
	assert.Equal(t, ExitPartial, result.ExitCode())

	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "Device3", failed[0].Source.Name)
	assert.ErrorContains(t, result.Err(), "connection reset by peer")

	entries := logs.FilterMessage("Fehler beim Abrufen der Daten").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "Device3", entries[0].ContextMap()["source"])
}

func TestRunIsolatesWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.readings[key{"2024-01-01", "tuya"}] = [2]float64{100, 150}
	store.readings[key{"2024-01-01", "Device1"}] = [2]float64{1, 2}
	store.writeErr["tuya"] = errors.New("Duplicate entry")

	logger, logs := observedLogger()
	result := New(store, store, logger).Run(context.Background(), day("2024-01-01"), config.DefaultSources())

	assert.Contains(t, store.rows, key{"2024-01-01", "Device1"})
	assert.Equal(t, RunPartial, result.Status())
	assert.Equal(t, 1, logs.FilterMessage("Fehler beim Einfügen/Aktualisieren der Daten").Len())
}

func TestRunAllFailed(t *testing.T) {
	store := newFakeStore()
	sources := config.DefaultSources()
	for _, s := range sources {
		store.readErr[s.Name] = errors.New("dial tcp: connection refused")
	}

	result := New(store, store, nil).Run(context.Background(), day("2024-01-01"), sources)

	assert.Len(t, store.reads, len(sources))
	assert.Equal(t, RunFailure, result.Status())
	assert.Equal(t, ExitFailure, result.ExitCode())
}

func TestRunRecoversPanic(t *testing.T) {
	store := newFakeStore()
	store.panicOn = "Device2"
	store.readings[key{"2024-01-01", "Device5"}] = [2]float64{3, 4}

	logger, logs := observedLogger()
	var result Result
	require.NotPanics(t, func() {
		result = New(store, store, logger).Run(context.Background(), day("2024-01-01"), config.DefaultSources())
	})

	assert.Contains(t, store.rows, key{"2024-01-01", "Device5"})
	require.Len(t, result.Failed(), 1)
	assert.ErrorContains(t, result.Failed()[0].Err, "panic: boom")
	assert.Equal(t, 1, logs.FilterMessage("Ein Fehler ist aufgetreten").Len())
}

func TestRunOrdersMeterFirst(t *testing.T) {
	store := newFakeStore()
	sources := []models.Source{config.DeviceSource(2), config.MeterSource("keller"), config.DeviceSource(1)}

	New(store, store, nil).Run(context.Background(), day("2024-01-01"), sources)

	assert.Equal(t, []string{"keller", "Device2", "Device1"}, store.reads)
}

func TestRunRenamedMeter(t *testing.T) {
	store := newFakeStore()
	store.readings[key{"2024-01-01", "zaehler2"}] = [2]float64{7, 8}

	sources := config.RenameMeter(config.DefaultSources(), "zaehler2")
	New(store, store, nil).Run(context.Background(), day("2024-01-01"), sources)

	assert.Contains(t, store.rows, key{"2024-01-01", "zaehler2"})
	assert.NotContains(t, store.rows, key{"2024-01-01", "tuya"})
}

func TestRunNotifier(t *testing.T) {
	store := newFakeStore()
	store.readings[key{"2024-01-01", "tuya"}] = [2]float64{100, 150}
	store.readings[key{"2024-01-01", "Device1"}] = [2]float64{1, 2}
	store.writeErr["Device1"] = errors.New("lock wait timeout")

	notifier := &fakeNotifier{err: errors.New("broker unavailable")}
	logger, logs := observedLogger()
	result := New(store, store, logger, WithNotifier(notifier)).Run(context.Background(), day("2024-01-01"), config.DefaultSources())

	// Only written rows are published; publish errors do not fail the source
	assert.Equal(t, []string{"tuya"}, notifier.published)
	assert.Equal(t, []string{result.RunID}, notifier.runIDs)
	assert.Equal(t, 1, len(result.Failed()))
	assert.Equal(t, StatusWritten, result.Outcomes[0].Status)
	assert.Equal(t, 1, logs.FilterMessage("publishing daily usage failed").Len())
}

func TestRunRange(t *testing.T) {
	store := newFakeStore()
	store.readings[key{"2024-01-30", "tuya"}] = [2]float64{1, 2}
	store.readings[key{"2024-02-01", "tuya"}] = [2]float64{3, 4}
	sources := []models.Source{config.MeterSource("tuya")}

	result, err := New(store, store, nil).RunRange(context.Background(), day("2024-01-30"), day("2024-02-01"), sources)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "2024-01-31", result.Outcomes[1].Date.Format(models.DateLayout))
	assert.Equal(t, StatusNoData, result.Outcomes[1].Status)
	assert.Equal(t, 2, result.Count(StatusWritten))
	assert.Contains(t, store.rows, key{"2024-02-01", "tuya"})

	_, err = New(store, store, nil).RunRange(context.Background(), day("2024-02-01"), day("2024-01-01"), sources)
	assert.Error(t, err)
}

func TestResultStatusEmpty(t *testing.T) {
	var r Result
	assert.Equal(t, RunSuccess, r.Status())
	assert.Equal(t, ExitSuccess, r.ExitCode())
}

func ptr(v float64) *float64 {
	return &v
}
