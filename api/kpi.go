package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	usage "github.com/openlot/parkd/core/metrics/usage"
)

type kpiRow struct {
	Date           string  `json:"date"`
	Allocations    int     `json:"allocations"`
	Rejections     int     `json:"rejections"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	MeanScore      float64 `json:"mean_score"`
}

// sectionKPIs serves GET /api/sections/{section}/kpis with optional
// start/end RFC3339 query parameters. The end defaults to now.
func (h *Handler) sectionKPIs(w http.ResponseWriter, r *http.Request) {
	if h.kpi == nil {
		WriteError(w, http.StatusNotFound, "kpi store not configured")
		return
	}
	section := chi.URLParam(r, "section")
	var start, end time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "start must be RFC3339")
			return
		}
		start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "end must be RFC3339")
			return
		}
		end = t
	}
	if end.IsZero() {
		end = time.Now()
	}
	recs, err := h.kpi.Query(section, start, end)
	if err != nil {
		h.logger.Errorf("kpi query: %v", err)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rows := make([]kpiRow, len(recs))
	for i, rec := range recs {
		rows[i] = kpiRow{
			Date:           usage.Day(rec.Date).Format("2006-01-02"),
			Allocations:    rec.Allocations,
			Rejections:     rec.Rejections,
			AcceptanceRate: rec.AcceptanceRate(),
			MeanScore:      rec.MeanScore(),
		}
	}
	WriteJSON(w, http.StatusOK, rows)
}
