package farms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solaris/core/metrics/yield"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/series"
)

var t0 = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

func fixture(t *testing.T) *Handler {
	t.Helper()
	store := series.NewMemoryStore()
	ys := yield.NewMemoryStore()
	for k := 1; k <= 5; k++ {
		s := model.FarmSample{
			FarmID: "f1", Step: k, Timestamp: t0.Add(time.Duration(k) * time.Hour),
			TotalIdealW: 1000, TotalActualW: 800,
			Panels: []model.PanelSample{
				{PanelID: "AA000001", Actual: model.Output{PowerW: 400}},
				{PanelID: "AA000002", Actual: model.Output{PowerW: 400}},
			},
		}
		require.NoError(t, store.Append(context.Background(), s))
		require.NoError(t, ys.Add(yield.FromSample(s, time.Hour)))
	}
	return &Handler{Series: store, Yield: ys, EmissionFactor: 50, Token: "tok"}
}

func get(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSamples(t *testing.T) {
	h := fixture(t)
	rr := get(h, "/api/farms/f1/samples?start="+t0.Add(2*time.Hour).Format(time.RFC3339)+"&limit=2&panel_id=AA000002", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []model.FarmSample
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Step)
	require.Len(t, out[0].Panels, 1)
	assert.Equal(t, "AA000002", out[0].Panels[0].PanelID)
}

func TestYield(t *testing.T) {
	rr := get(fixture(t), "/api/farms/f1/yield?start="+t0.Format(time.RFC3339)+"&end="+t0.Format(time.RFC3339), "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []DailyYield
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "2024-08-01", out[0].Date)
	assert.InDelta(t, 4.0, out[0].ActualKWh, 1e-9)
	assert.InDelta(t, 1.0, out[0].LostKWh, 1e-9)
	assert.InDelta(t, 0.8, out[0].PerformanceRatio, 1e-9)
	assert.InDelta(t, 200, out[0].CO2Avoided, 1e-9)
}

func TestErrors(t *testing.T) {
	h := fixture(t)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/farms/f1/samples", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/farms/f1/samples", "nope").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/api/farms/f1/panels", "tok").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/api/farms/", "tok").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/farms/f1/samples?start=yesterday", "tok").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/farms/f1/samples?limit=-1", "tok").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/farms/f1/samples", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	h.Yield = nil
	assert.Equal(t, http.StatusNotFound, get(h, "/api/farms/f1/yield", "tok").Code)
}

func TestMount(t *testing.T) {
	mux := http.NewServeMux()
	h := fixture(t)
	h.Token = ""
	h.Mount(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/farms/f1/samples")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
