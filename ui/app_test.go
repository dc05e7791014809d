package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocast/adapters/tuner"
	"gocast/app"
	"gocast/domain/core"
	"gocast/domain/panel"
	"gocast/internal/config"
	"gocast/ports"
)

// memoryStore is an in-memory PanelStore for handler tests
type memoryStore struct {
	data map[core.DatasetID][]panel.Observation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[core.DatasetID][]panel.Observation)}
}

func (m *memoryStore) LoadPanel(ctx context.Context, dataset core.DatasetID) (*panel.Panel, error) {
	obs, ok := m.data[dataset]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", dataset, core.ErrEmptyPanel)
	}
	return panel.FromObservations(obs)
}

func (m *memoryStore) AppendObservations(ctx context.Context, dataset core.DatasetID, obs []panel.Observation) error {
	m.data[dataset] = append(m.data[dataset], obs...)
	return nil
}

func (m *memoryStore) ListDatasets(ctx context.Context) ([]core.DatasetID, error) {
	ids := make([]core.DatasetID, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func testApp(store ports.PanelStore) *App {
	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "0"},
		Forecast: config.ForecastConfig{DefaultLags: 3, DefaultHorizon: 2, DefaultFreq: "1i", MaxParallel: 4},
	}
	service := app.NewForecastService(store, nil, tuner.NewRandomSearch(1), nil)
	return NewApp(cfg, service, nil)
}

func observationsBody(entities []string, length int) []map[string]interface{} {
	var obs []map[string]interface{}
	for _, e := range entities {
		for i := 0; i < length; i++ {
			obs = append(obs, map[string]interface{}{
				"entity": e,
				"time":   i,
				"target": float64(i),
			})
		}
	}
	return obs
}

func postJSON(t *testing.T, a *App, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	a := testApp(nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestForecastEndpoint(t *testing.T) {
	a := testApp(nil)
	rec := postJSON(t, a, "/api/forecast", map[string]interface{}{
		"observations": observationsBody([]string{"a", "b"}, 20),
		"strategy":     "recursive",
		"lags":         3,
		"freq":         "1i",
		"horizon":      2,
		"model":        map[string]interface{}{"name": "ridge", "alpha": 1.0},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ModelID string `json:"model_id"`
		Points  []struct {
			Entity  string  `json:"entity"`
			Horizon int     `json:"horizon"`
			Value   float64 `json:"value"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ModelID)
	assert.Len(t, resp.Points, 4) // 2 entities x 2 horizons
}

func TestForecastEndpoint_BadBody(t *testing.T) {
	a := testApp(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/forecast", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastEndpoint_UnknownModel(t *testing.T) {
	a := testApp(nil)
	rec := postJSON(t, a, "/api/forecast", map[string]interface{}{
		"observations": observationsBody([]string{"a"}, 20),
		"model":        map[string]interface{}{"name": "prophet"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastEndpoint_DuplicateTimestamps(t *testing.T) {
	a := testApp(nil)
	obs := observationsBody([]string{"a"}, 10)
	obs = append(obs, obs[0])
	rec := postJSON(t, a, "/api/forecast", map[string]interface{}{
		"observations": obs,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBacktestEndpoint(t *testing.T) {
	a := testApp(nil)
	rec := postJSON(t, a, "/api/backtest", map[string]interface{}{
		"observations": observationsBody([]string{"a", "b"}, 30),
		"lags":         3,
		"freq":         "1i",
		"split": map[string]interface{}{
			"test_size": 2, "step_size": 2, "n_splits": 3, "mode": "expanding",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RunID     string  `json:"run_id"`
		RMSE      float64 `json:"rmse"`
		Residuals int     `json:"residuals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 12, resp.Residuals) // 2 entities x 3 splits x 2 steps
}

func TestBacktestEndpoint_MissingSplit(t *testing.T) {
	a := testApp(nil)
	rec := postJSON(t, a, "/api/backtest", map[string]interface{}{
		"observations": observationsBody([]string{"a"}, 30),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	a := testApp(nil)
	rec := postJSON(t, a, "/api/search", map[string]interface{}{
		"observations": observationsBody([]string{"a", "b"}, 40),
		"freq":         "1i",
		"min_lags":     2,
		"max_lags":     4,
		"max_evals":    4,
		"split": map[string]interface{}{
			"test_size": 2, "step_size": 2, "n_splits": 2, "mode": "expanding",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		BestLags    int `json:"best_lags"`
		Evaluations int `json:"evaluations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, resp.BestLags, 2)
	assert.Equal(t, 4, resp.Evaluations)
}

func TestDatasetEndpoints(t *testing.T) {
	store := newMemoryStore()
	a := testApp(store)

	rec := postJSON(t, a, "/api/datasets/sales/observations", map[string]interface{}{
		"observations": observationsBody([]string{"a"}, 20),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	listRec := httptest.NewRecorder()
	a.Router().ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)
	assert.Contains(t, listRec.Body.String(), "sales")

	fcRec := postJSON(t, a, "/api/datasets/sales/forecast", map[string]interface{}{
		"lags":    3,
		"freq":    "1i",
		"horizon": 2,
	})
	require.Equal(t, http.StatusOK, fcRec.Code, fcRec.Body.String())
	assert.Contains(t, fcRec.Body.String(), "points")
}

func TestDatasetEndpoints_NoStore(t *testing.T) {
	a := testApp(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
