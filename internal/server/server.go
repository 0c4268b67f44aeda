package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"archive-indexer/internal/database"
	"archive-indexer/internal/indexer"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusScanning = "scanning"
)

// Server exposes the observability surface: health probes, Prometheus
// metrics, build info, and a manual rescan trigger.
type Server struct {
	idx       *indexer.Indexer
	db        *database.Database
	config    *startup.Config
	startTime time.Time
}

// New creates a Server around the running indexer.
func New(idx *indexer.Indexer, db *database.Database, config *startup.Config) *Server {
	return &Server{
		idx:       idx,
		db:        db,
		config:    config,
		startTime: time.Now(),
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", s.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", s.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", s.GetVersion).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/rescan", s.TriggerRescan).Methods("POST")

	r.Use(requestLogger)
	return r
}

// HealthResponse contains the health check response.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Scanning     bool   `json:"scanning"`
	LastScan     string `json:"lastScan,omitempty"`
	Archives     int64  `json:"archives"`
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports the service's view of itself.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Scanning:     s.idx.IsScanning(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if response.Scanning {
		response.Status = statusScanning
	}
	if last := s.idx.LastScanTime(); !last.IsZero() {
		response.LastScan = last.Format(time.RFC3339)
	}
	if count, err := s.db.CountArchives(r.Context()); err == nil {
		response.Archives = count
	}

	writeJSON(w, http.StatusOK, response)
}

// LivenessCheck reports that the process is alive.
func (s *Server) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck reports whether the database is reachable.
func (s *Server) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.db.CountArchives(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GetVersion returns build information.
func (s *Server) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, map[string]string{
		"version":   startup.Version,
		"commit":    startup.Commit,
		"buildTime": startup.BuildTime,
		"goVersion": startup.GoVersion,
	})
}

// TriggerRescan kicks off an incremental scan in the background. A
// scan already in progress makes this a no-op.
func (s *Server) TriggerRescan(w http.ResponseWriter, _ *http.Request) {
	if s.idx.IsScanning() {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "scan already in progress"})
		return
	}

	go func() {
		if _, err := s.idx.ScanIncremental(context.Background(), s.config.ScanDirs, nil); err != nil {
			logging.Error("Manually triggered rescan failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rescan started"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response: %v", err)
	}
}

// requestLogger logs each request at debug level with its duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debug("%s %s %s (%v)", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}
