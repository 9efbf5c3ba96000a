// Package farms exposes the recorded output of the simulated farms over HTTP.
package farms

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/solaris/core/metrics/yield"
	"github.com/kilianp07/solaris/core/series"
)

const prefix = "/api/farms/"

// Handler serves GET /api/farms/{id}/samples and GET /api/farms/{id}/yield.
// Requests must carry "Authorization: Bearer <token>" when token is set.
type Handler struct {
	Series series.Store
	// Yield is optional; the yield route answers 404 without it.
	Yield          yield.Store
	EmissionFactor float64
	Token          string
}

// DailyYield is the JSON form of a yield record.
type DailyYield struct {
	Date             string  `json:"date"`
	ActualKWh        float64 `json:"actual_kwh"`
	IdealKWh         float64 `json:"ideal_kwh"`
	LostKWh          float64 `json:"lost_kwh"`
	PerformanceRatio float64 `json:"performance_ratio"`
	CO2Avoided       float64 `json:"co2_avoided_g"`
}

// DailyYields converts stored records, co2 avoided computed with factor
// grams per kWh.
func DailyYields(recs []yield.Record, factor float64) []DailyYield {
	out := make([]DailyYield, len(recs))
	for i, rec := range recs {
		out[i] = DailyYield{
			Date:             rec.Date.Format("2006-01-02"),
			ActualKWh:        rec.ActualKWh,
			IdealKWh:         rec.IdealKWh,
			LostKWh:          rec.LostKWh(),
			PerformanceRatio: rec.PerformanceRatio(),
			CO2Avoided:       rec.CO2Avoided(factor),
		}
	}
	return out
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Token != "" && r.Header.Get("Authorization") != "Bearer "+h.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	start, end, err := window(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch parts[1] {
	case "samples":
		h.samples(w, r, parts[0], start, end)
	case "yield":
		if h.Yield == nil {
			http.NotFound(w, r)
			return
		}
		h.yield(w, parts[0], start, end)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) samples(w http.ResponseWriter, r *http.Request, farmID string, start, end time.Time) {
	q := series.Query{FarmID: farmID, PanelID: r.URL.Query().Get("panel_id"), Start: start, End: end}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		q.Limit = n
	}
	samples, err := h.Series.Query(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, samples)
}

func (h *Handler) yield(w http.ResponseWriter, farmID string, start, end time.Time) {
	if end.IsZero() {
		end = time.Now()
	}
	recs, err := h.Yield.Query(farmID, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, DailyYields(recs, h.EmissionFactor))
}

func window(r *http.Request) (start, end time.Time, err error) {
	if s := r.URL.Query().Get("start"); s != "" {
		if start, err = time.Parse(time.RFC3339, s); err != nil {
			return start, end, fmt.Errorf("invalid start: %w", err)
		}
	}
	if s := r.URL.Query().Get("end"); s != "" {
		if end, err = time.Parse(time.RFC3339, s); err != nil {
			return start, end, fmt.Errorf("invalid end: %w", err)
		}
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Mount registers the handler on mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.Handle(prefix, h)
}
