// Package controlapi exposes the collector's minimal HTTP control surface:
// GET /status reports the current lifecycle state, POST /run launches one
// traversal in the background. It replaces the original FastAPI
// /status/ and /run/ endpoints' subprocess launch with an in-process
// goroutine driving the same Run Controller used by the CLI.
package controlapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Zeebrow/ec2-price-tracker/internal/obslog"
	"github.com/Zeebrow/ec2-price-tracker/internal/runctl"
	"github.com/Zeebrow/ec2-price-tracker/internal/statusstore"
)

// Server wires a Controller and a default Config behind plain net/http
// handlers, in the teacher's own unadorned style: no router dependency,
// one mux, one struct.
type Server struct {
	Controller *runctl.Controller
	Default    runctl.Config
}

// NewMux builds the handler tree.
func (s *Server) NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/run", s.handleRun)
	return mux
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status, err := s.Controller.Status.Read(r.Context())
	if err != nil {
		obslog.Get().WithError(err).Error("reading status for control api")
		http.Error(w, "reading status failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(status)})
}

type runResponse struct {
	Accepted bool   `json:"accepted"`
	Status   string `json:"status"`
}

// handleRun launches the run in a background goroutine and returns
// immediately, mirroring the original's fire-and-forget subprocess
// launch. A run already in progress is reported, not queued.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	current, err := s.Controller.Status.Read(r.Context())
	if err != nil {
		obslog.Get().WithError(err).Error("reading status before run dispatch")
		http.Error(w, "reading status failed", http.StatusInternalServerError)
		return
	}
	if current != statusstore.Idle {
		writeJSON(w, http.StatusConflict, runResponse{Accepted: false, Status: string(current)})
		return
	}

	cfg := s.Default
	go func() {
		if err := s.Controller.Run(context.Background(), cfg); err != nil {
			obslog.Get().WithError(err).Error("run launched via control api failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, runResponse{Accepted: true, Status: string(statusstore.Starting)})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
