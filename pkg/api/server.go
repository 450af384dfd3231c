// Package api exposes the read-only dashboard HTTP API. It sits
// outside the probing core and consumes only the store interfaces.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/db"
	"github.com/camtower/camtower/pkg/models"
)

const (
	defaultCheckLimit = 100
	maxCheckLimit     = 1000
)

// SystemStatus is the dashboard summary.
type SystemStatus struct {
	TotalDevices int       `json:"total_devices"`
	Green        int       `json:"green"`
	Yellow       int       `json:"yellow"`
	Red          int       `json:"red"`
	ActiveAlerts int       `json:"active_alerts"`
	LastUpdate   time.Time `json:"last_update"`
}

// Server serves the inventory, check history and alert queries plus a
// live check stream over websocket.
type Server struct {
	devices db.DeviceStore
	checks  db.CheckStore
	alerts  db.AlertStore
	router  *mux.Router
	hub     *Hub
}

func NewServer(devices db.DeviceStore, checks db.CheckStore, alerts db.AlertStore) *Server {
	s := &Server{
		devices: devices,
		checks:  checks,
		alerts:  alerts,
		router:  mux.NewRouter(),
		hub:     NewHub(),
	}
	s.setupRoutes()

	return s
}

// Hub returns the live check stream hub so it can be chained as a
// check sink behind the alert engine.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// OPTIONS is routed too so the CORS middleware can answer
	// preflight requests.
	s.router.HandleFunc("/api/devices", s.getDevices).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/devices/{id}", s.getDevice).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/devices/{id}/checks", s.getDeviceChecks).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/alerts", s.getAlerts).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/status", s.getSystemStatus).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/live", s.hub.ServeWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start runs the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return srv.ListenAndServe()
}

func (s *Server) getDevices(w http.ResponseWriter, _ *http.Request) {
	devices, err := s.devices.ListDevices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.encodeJSON(w, devices)
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}

	device, err := s.devices.GetDevice(id)
	if err != nil {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}

	s.encodeJSON(w, device)
}

func (s *Server) getDeviceChecks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}

	limit := defaultCheckLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= maxCheckLimit {
			limit = v
		}
	}

	checks, err := s.checks.GetDeviceChecks(id, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.encodeJSON(w, checks)
}

func (s *Server) getAlerts(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			http.Error(w, "invalid hours", http.StatusBadRequest)
			return
		}

		alerts, err := s.alerts.RecentAlerts(time.Now().Add(-time.Duration(hours) * time.Hour))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		s.encodeJSON(w, alerts)

		return
	}

	alerts, err := s.alerts.ActiveAlerts()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.encodeJSON(w, alerts)
}

func (s *Server) getSystemStatus(w http.ResponseWriter, _ *http.Request) {
	devices, err := s.devices.ListDevices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	latest, err := s.checks.LatestChecks()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	active, err := s.alerts.ActiveAlerts()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := SystemStatus{
		TotalDevices: len(devices),
		ActiveAlerts: len(active),
	}

	for _, check := range latest {
		switch check.State {
		case models.StateGreen:
			status.Green++
		case models.StateYellow:
			status.Yellow++
		case models.StateRed:
			status.Red++
		}

		if check.Timestamp.After(status.LastUpdate) {
			status.LastUpdate = check.Timestamp
		}
	}

	s.encodeJSON(w, status)
}

func (*Server) encodeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
