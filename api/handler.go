package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openlot/parkd/core/allocation"
	"github.com/openlot/parkd/core/allocation/logging"
	"github.com/openlot/parkd/core/lot"
	usage "github.com/openlot/parkd/core/metrics/usage"
	"github.com/openlot/parkd/core/model"
	coremon "github.com/openlot/parkd/core/monitoring"
	"github.com/openlot/parkd/infra/logger"
)

// Handler serves the operator API on top of the allocation manager and
// the lot store.
type Handler struct {
	mgr    *allocation.Manager
	store  lot.Store
	logs   logging.LogStore
	kpi    usage.Store
	token  string
	logger logger.Logger
}

// NewHandler builds a Handler. logs may be nil when no log backend is
// configured; the logs endpoint then answers 404. A non-empty token
// guards the mutating endpoints and the log query.
func NewHandler(mgr *allocation.Manager, store lot.Store, logs logging.LogStore, token string, log logger.Logger) (*Handler, error) {
	if mgr == nil || store == nil {
		return nil, fmt.Errorf("api: nil parameter provided to NewHandler")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{mgr: mgr, store: store, logs: logs, token: token, logger: log}, nil
}

// SetKPIStore exposes daily utilization aggregates on the sections
// endpoint. Without a store the endpoint answers 404.
func (h *Handler) SetKPIStore(store usage.Store) { h.kpi = store }

// Routes assembles the chi router for the operator API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Route("/allocations", func(r chi.Router) {
			r.Use(h.requireToken)
			r.Post("/", h.allocate)
			r.Post("/group", h.allocateGroup)
			r.Delete("/{vehicleID}", h.release)
			r.Get("/logs", h.queryLogs)
		})
		r.Route("/lot", func(r chi.Router) {
			r.Get("/status", h.lotStatus)
			r.With(h.requireToken).Post("/reset", h.reset)
		})
		r.Get("/sections/{section}/kpis", h.sectionKPIs)
	})
	return r
}

// requireToken rejects requests lacking the configured bearer token.
// With no token configured every request passes.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
			WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer converts handler panics into 500 responses and reports them.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				h.logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
				coremon.CaptureException(err, map[string]string{
					"module": "api",
					"path":   r.URL.Path,
				})
				WriteError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var req model.AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, validationStatus(err), err.Error())
		return
	}
	res, err := h.mgr.Allocate(r.Context(), req)
	if err != nil {
		h.logger.Errorf("allocate %s: %v", req.VehicleID, err)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) allocateGroup(w http.ResponseWriter, r *http.Request) {
	var req model.GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, validationStatus(err), err.Error())
		return
	}
	res, err := h.mgr.AllocateGroup(r.Context(), req)
	if err != nil {
		h.logger.Errorf("allocate group %s: %v", req.VehicleID, err)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

type releaseResponse struct {
	VehicleID string   `json:"vehicle_id"`
	SpaceIDs  []string `json:"space_ids"`
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicleID")
	freed, err := h.mgr.Release(r.Context(), vehicleID)
	if err != nil {
		if errors.Is(err, lot.ErrVehicleNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Errorf("release %s: %v", vehicleID, err)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, releaseResponse{VehicleID: vehicleID, SpaceIDs: freed})
}

type lotStatusResponse struct {
	Stats  model.LotStats       `json:"stats"`
	Spaces []model.ParkingSpace `json:"spaces"`
}

func (h *Handler) lotStatus(w http.ResponseWriter, r *http.Request) {
	f := lot.Filter{Section: r.URL.Query().Get("section")}
	if v := r.URL.Query().Get("free"); v != "" {
		free, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "free must be a boolean")
			return
		}
		f.FreeOnly = free
	}
	if v := r.URL.Query().Get("groups"); v != "" {
		groups, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "groups must be a boolean")
			return
		}
		f.GroupsOnly = groups
	}
	spaces := h.store.List(f)
	if spaces == nil {
		spaces = []model.ParkingSpace{}
	}
	WriteJSON(w, http.StatusOK, lotStatusResponse{Stats: h.store.Stats(), Spaces: spaces})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.Reset(r.Context()); err != nil {
		h.logger.Errorf("reset: %v", err)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.store.Stats())
}

func (h *Handler) queryLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		WriteError(w, http.StatusNotFound, "log backend not configured")
		return
	}
	q := logging.LogQuery{
		Kind:      r.URL.Query().Get("kind"),
		VehicleID: r.URL.Query().Get("vehicle_id"),
		SpaceID:   r.URL.Query().Get("space_id"),
		Section:   r.URL.Query().Get("section"),
		Reason:    r.URL.Query().Get("outcome"),
	}
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "start must be RFC3339")
			return
		}
		q.Start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "end must be RFC3339")
			return
		}
		q.End = t
	}
	records, err := h.logs.Query(r.Context(), q)
	if err != nil {
		h.logger.Errorf("log query: %v", err)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []logging.LogRecord{}
	}
	WriteJSON(w, http.StatusOK, records)
}

// validationStatus maps request validation failures onto status codes.
// Structurally broken requests are 400s; a well-formed request naming an
// out-of-range vehicle size is a 422.
func validationStatus(err error) int {
	if errors.Is(err, model.ErrInvalidVehicleSize) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}
