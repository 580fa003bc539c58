package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
	"github.com/i474232898/weather-pipeline/pkg/logger"
)

var (
	runDate = civil.Date{Year: 2024, Month: 2, Day: 1}
	cities  = []weather.City{
		{Name: "Moscow", StationID: "27611"},
		{Name: "Saint Petersburg", StationID: "27612"},
		{Name: "Adler", StationID: "37171"},
	}
)

type fetchCall struct {
	city     string
	from, to civil.Date
}

type fakeProvider struct {
	mu        sync.Mutex
	rows      map[string][]weather.Observation
	errs      map[string]error
	failFirst int
	calls     []fetchCall
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchDaily(_ context.Context, city weather.City, from, to civil.Date) ([]weather.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, fetchCall{city: city.Name, from: from, to: to})
	if f.failFirst > 0 {
		f.failFirst--
		return nil, errors.New("provider unavailable")
	}
	if err := f.errs[city.Name]; err != nil {
		return nil, err
	}
	return f.rows[city.Name], nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	rendered []weather.Dataset
	err      error
}

func (f *fakeRenderer) Render(d weather.Dataset) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.rendered = append(f.rendered, d)
	return []byte("png"), nil
}

type sentImage struct {
	chatID  int64
	image   []byte
	caption string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentImage
	err  error
}

func (f *fakeSender) SendImage(_ context.Context, chatID int64, image []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentImage{chatID: chatID, image: image, caption: caption})
	return nil
}

// failingStore fails every write after the first n.
type failingStore struct {
	*store.MemoryStore
	okWrites int
}

func (s *failingStore) Write(ctx context.Context, path string, data []byte, overwrite bool) error {
	if s.okWrites <= 0 {
		return errors.New("gateway down")
	}
	s.okWrites--
	return s.MemoryStore.Write(ctx, path, data, overwrite)
}

type fixture struct {
	pipeline *Pipeline
	provider *fakeProvider
	store    *store.MemoryStore
	renderer *fakeRenderer
	sender   *fakeSender
	logs     *observer.ObservedLogs
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		provider: &fakeProvider{rows: map[string][]weather.Observation{}, errs: map[string]error{}},
		store:    store.NewMemoryStore(0),
		renderer: &fakeRenderer{},
		sender:   &fakeSender{},
		logs:     logs,
		metrics:  metrics.NewNop(),
	}
	f.pipeline = New(Options{
		Provider: f.provider,
		Store:    f.store,
		Renderer: f.renderer,
		Sender:   f.sender,
		Cities:   cities,
		ChatID:   42,
		Logger:   logger.NewWithCore("test", core),
		Metrics:  f.metrics,
	})
	return f
}

func obs(city string, day int, avg float64) weather.Observation {
	return weather.Observation{
		City:    city,
		Date:    civil.Date{Year: 2024, Month: 1, Day: day},
		AvgTemp: weather.Float(avg),
		MinTemp: weather.Float(avg - 2),
		MaxTemp: weather.Float(avg + 2),
	}
}

func TestDatedPath(t *testing.T) {
	assert.Equal(t, Path("/raw/weather/2024-02-01/raw_weather.json"), DatedPath(runDate))
	assert.Equal(t, "/raw/weather/latest/raw_weather.json", LatestPath.String())
}

func TestPreviousMonthStart(t *testing.T) {
	cases := map[civil.Date]civil.Date{
		{Year: 2024, Month: 2, Day: 10}: {Year: 2024, Month: 1, Day: 1},
		{Year: 2024, Month: 1, Day: 15}: {Year: 2023, Month: 12, Day: 1},
		{Year: 2024, Month: 3, Day: 31}: {Year: 2024, Month: 2, Day: 1},
	}
	for in, want := range cases {
		assert.Equal(t, want, PreviousMonthStart(in), in.String())
	}
}

func TestIngest_AllCitiesEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Ingest(context.Background(), runDate)
	require.ErrorIs(t, err, ErrNoData)

	assert.Empty(t, f.store.Paths(), "nothing may be written when no city has data")
	assert.Len(t, f.provider.calls, 3)
}

func TestIngest_OneOfThreeCities(t *testing.T) {
	f := newFixture(t)
	f.provider.rows["Adler"] = []weather.Observation{obs("Adler", 5, 8), obs("Adler", 6, 9)}

	handle, err := f.pipeline.Ingest(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, DatedPath(runDate), handle)

	d, err := f.pipeline.Load(context.Background(), LatestPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Adler"}, d.Cities())
	assert.Len(t, d, 2)

	warnings := f.logs.FilterMessage("no data for city, skipping").All()
	require.Len(t, warnings, 2)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, "Moscow", warnings[0].ContextMap()["city"])
	assert.Equal(t, "Saint Petersburg", warnings[1].ContextMap()["city"])

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SkippedCities.WithLabelValues("Moscow")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RowsIngested))
}

func TestIngest_WritesDatedAndLatestInCityOrder(t *testing.T) {
	f := newFixture(t)
	f.provider.rows["Adler"] = []weather.Observation{obs("Adler", 5, 8)}
	f.provider.rows["Moscow"] = []weather.Observation{obs("Moscow", 5, 3), obs("Moscow", 6, -2)}
	f.provider.rows["Saint Petersburg"] = []weather.Observation{obs("Saint Petersburg", 5, 1)}

	handle, err := f.pipeline.Ingest(context.Background(), runDate)
	require.NoError(t, err)

	dated, err := f.store.Read(context.Background(), handle.String())
	require.NoError(t, err)
	latest, err := f.store.Read(context.Background(), LatestPath.String())
	require.NoError(t, err)
	assert.Equal(t, dated, latest)

	d, err := weather.Decode(dated)
	require.NoError(t, err)
	assert.Equal(t, []string{"Moscow", "Saint Petersburg", "Adler"}, d.Cities())
	assert.Equal(t, -2.0, *d[1].AvgTemp)

	for _, c := range f.provider.calls {
		assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 1}, c.from)
		assert.Equal(t, runDate, c.to)
	}
}

func TestIngest_ProviderErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.provider.rows["Moscow"] = []weather.Observation{obs("Moscow", 5, 3)}
	f.provider.errs["Saint Petersburg"] = errors.New("quota exceeded")

	_, err := f.pipeline.Ingest(context.Background(), runDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Saint Petersburg")
	assert.Empty(t, f.store.Paths())
}

func TestIngest_WriteFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.rows["Moscow"] = []weather.Observation{obs("Moscow", 5, 3)}

	failing := &failingStore{MemoryStore: store.NewMemoryStore(0), okWrites: 1}
	f.pipeline.store = failing

	_, err := f.pipeline.Ingest(context.Background(), runDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), LatestPath.String())
	assert.Equal(t, []string{DatedPath(runDate).String()}, failing.Paths())
}

func TestLatestObservation_LastAppendedWins(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, weather.Dataset{
		obs("Moscow", 5, 3.0),
		obs("Adler", 5, 8.0),
		obs("Moscow", 6, -2.0),
	})

	got, ok, err := f.pipeline.LatestObservation(context.Background(), "Moscow")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 6}, got.Date)
	assert.Equal(t, -2.0, *got.AvgTemp)

	// An out-of-order append still wins over the chronologically later row.
	seed(t, f.store, weather.Dataset{
		obs("Moscow", 5, 3.0),
		obs("Moscow", 6, -2.0),
		obs("Moscow", 2, 7.0),
	})
	got, ok, err = f.pipeline.LatestObservation(context.Background(), "Moscow")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.Date.Day)
}

func TestLatestObservation_NoRowsIsNotAnError(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, weather.Dataset{obs("Adler", 5, 8.0)})

	_, ok, err := f.pipeline.LatestObservation(context.Background(), "Moscow")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatestObservation_StoreAndParseErrors(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.pipeline.LatestObservation(context.Background(), "Moscow")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.store.Write(context.Background(), LatestPath.String(), []byte("{not json"), true))
	_, _, err = f.pipeline.LatestObservation(context.Background(), "Moscow")
	var perr *weather.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestNotify_SendsChartWithCaption(t *testing.T) {
	f := newFixture(t)
	d := weather.Dataset{obs("Moscow", 5, 3.0)}
	seed(t, f.store, d)

	require.NoError(t, f.pipeline.Notify(context.Background(), LatestPath))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, int64(42), f.sender.sent[0].chatID)
	assert.Equal(t, ChartCaption, f.sender.sent[0].caption)
	assert.Equal(t, []byte("png"), f.sender.sent[0].image)
	require.Len(t, f.renderer.rendered, 1)
	assert.Equal(t, "Moscow", f.renderer.rendered[0][0].City)
}

func TestNotify_Failures(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, weather.Dataset{obs("Moscow", 5, 3.0)})

	f.renderer.err = errors.New("no fonts")
	err := f.pipeline.Notify(context.Background(), LatestPath)
	assert.ErrorContains(t, err, "no fonts")
	assert.Empty(t, f.sender.sent)

	f.renderer.err = nil
	f.sender.err = errors.New("telegram down")
	err = f.pipeline.SendChart(context.Background(), LatestPath, 7)
	assert.ErrorContains(t, err, "telegram down")
}

func TestRunner_PassesHandleToNotify(t *testing.T) {
	f := newFixture(t)
	f.provider.rows["Moscow"] = []weather.Observation{obs("Moscow", 5, 3.0)}

	r := NewRunner(f.pipeline, 1, 0, logger.Nop(), f.metrics)
	res, err := r.Run(context.Background(), runDate)
	require.NoError(t, err)

	_, err = uuid.Parse(res.ID)
	assert.NoError(t, err)
	assert.Equal(t, DatedPath(runDate), res.Path)
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StageRuns.WithLabelValues(stageIngest, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StageRuns.WithLabelValues(stageNotify, "success")))
}

func TestRunner_RetriesFailedStage(t *testing.T) {
	f := newFixture(t)
	f.provider.rows["Moscow"] = []weather.Observation{obs("Moscow", 5, 3.0)}
	f.provider.failFirst = 1

	r := NewRunner(f.pipeline, 1, time.Millisecond, logger.Nop(), f.metrics)
	_, err := r.Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StageRuns.WithLabelValues(stageIngest, "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StageRuns.WithLabelValues(stageIngest, "success")))
}

func TestRunner_GivesUpAfterRetries(t *testing.T) {
	f := newFixture(t)

	r := NewRunner(f.pipeline, 1, time.Millisecond, logger.Nop(), f.metrics)
	res, err := r.Run(context.Background(), runDate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, stageIngest, serr.Stage)
	assert.Equal(t, 2, serr.Attempts)
	assert.Empty(t, res.Path)
	assert.NotEmpty(t, res.ID)
	assert.Empty(t, f.sender.sent, "notify must not run after a failed ingest")
}

func TestRunner_NotifyFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	f.provider.rows["Moscow"] = []weather.Observation{obs("Moscow", 5, 3.0)}
	f.sender.err = errors.New("telegram down")

	r := NewRunner(f.pipeline, 2, 0, logger.Nop(), f.metrics)
	res, err := r.Run(context.Background(), runDate)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, stageNotify, serr.Stage)
	assert.Equal(t, 3, serr.Attempts)
	assert.Equal(t, DatedPath(runDate), res.Path)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.StageRuns.WithLabelValues(stageNotify, "failure")))
}

func TestRunner_ContextCancelledDuringDelay(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := NewRunner(f.pipeline, 1, time.Hour, logger.Nop(), f.metrics)
	_, err := r.Run(ctx, runDate)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func seed(t *testing.T, s *store.MemoryStore, d weather.Dataset) {
	t.Helper()

	payload, err := weather.Encode(d)
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), LatestPath.String(), payload, true))
}

func ExampleDatedPath() {
	fmt.Println(DatedPath(civil.Date{Year: 2024, Month: 3, Day: 1}))
	// Output: /raw/weather/2024-03-01/raw_weather.json
}
