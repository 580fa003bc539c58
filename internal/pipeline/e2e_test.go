package pipeline

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-pipeline/internal/chart"
	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/weather"
	"github.com/i474232898/weather-pipeline/internal/webhdfs"
	"github.com/i474232898/weather-pipeline/pkg/logger"
)

// hdfs is a minimal WebHDFS gateway: the name node lives under /webhdfs/v1
// and redirects to a data node under /data.
type hdfs struct {
	mu    sync.Mutex
	files map[string][]byte
	ops   []string
}

func (h *hdfs) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if file, ok := strings.CutPrefix(r.URL.Path, "/data"); ok {
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			h.files[file] = body
			h.ops = append(h.ops, "PUT "+file)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			body, ok := h.files[file]
			if !ok {
				http.Error(w, "FileNotFoundException", http.StatusNotFound)
				return
			}
			h.ops = append(h.ops, "GET "+file)
			_, _ = w.Write(body)
		}
		return
	}

	file := strings.TrimPrefix(r.URL.Path, "/webhdfs/v1")
	op := r.URL.Query().Get("op")
	h.ops = append(h.ops, op+" "+file)

	switch op {
	case "MKDIRS":
		w.WriteHeader(http.StatusOK)
	case "CREATE", "OPEN":
		w.Header().Set("Location", "/data"+file)
		w.WriteHeader(http.StatusTemporaryRedirect)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func TestScheduledRunOverWebHDFS(t *testing.T) {
	gw := &hdfs{files: map[string][]byte{}}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	m := metrics.NewNop()
	client := webhdfs.New(srv.URL+"/webhdfs/v1", "airflow", srv.Client(), logger.Nop(), m)

	provider := &fakeProvider{rows: map[string][]weather.Observation{
		"Moscow": {obs("Moscow", 5, 3.0), obs("Moscow", 6, -2.0)},
		"Adler":  {obs("Adler", 5, 8.0), obs("Adler", 6, 9.5)},
	}}
	sender := &fakeSender{}

	p := New(Options{
		Provider: provider,
		Store:    client,
		Renderer: chart.NewTemperatureChart(),
		Sender:   sender,
		Cities:   cities,
		ChatID:   -100,
		Metrics:  m,
	})

	res, err := NewRunner(p, 1, 0, nil, m).Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, DatedPath(runDate), res.Path)

	dated := DatedPath(runDate).String()
	latest := LatestPath.String()
	assert.Equal(t, []string{
		"MKDIRS /raw/weather/2024-02-01",
		"CREATE " + dated,
		"PUT " + dated,
		"MKDIRS /raw/weather/latest",
		"CREATE " + latest,
		"PUT " + latest,
		"OPEN " + dated,
		"GET " + dated,
	}, gw.ops)
	assert.Equal(t, gw.files[dated], gw.files[latest])

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100), sender.sent[0].chatID)
	_, err = png.Decode(bytes.NewReader(sender.sent[0].image))
	require.NoError(t, err)

	got, ok, err := p.LatestObservation(context.Background(), "Moscow")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 6, got.Date.Day)
	assert.Equal(t, -2.0, *got.AvgTemp)
	assert.Contains(t, weather.FormatSummary(got), "*Moscow* (2024-01-06)")
}

func TestLatestObservation_TransportErrorIsNotNoData(t *testing.T) {
	gw := &hdfs{files: map[string][]byte{}}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	client := webhdfs.New(srv.URL+"/webhdfs/v1", "airflow", srv.Client(), logger.Nop(), metrics.NewNop())
	p := New(Options{Store: client, Cities: cities})

	_, ok, err := p.LatestObservation(context.Background(), "Moscow")
	assert.False(t, ok)

	var terr *webhdfs.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)
	assert.Contains(t, terr.Body, "FileNotFoundException")
}
