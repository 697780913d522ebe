package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/nick-dorsch/tasklist/internal/tasklist"
	"github.com/nick-dorsch/tasklist/pkg/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller is the task list surface served over HTTP.
type Controller interface {
	AddTask(ctx context.Context, description string) tasklist.Result
	ToggleCompletion(ctx context.Context, id string) tasklist.Result
	Tasks(ctx context.Context) ([]*models.Task, error)
}

type Server struct {
	ctrl Controller

	// mu guards server and closed, which Start and Shutdown race on.
	mu     sync.Mutex
	server *http.Server
	closed bool
}

type addTaskRequest struct {
	Description string `json:"description"`
}

func NewServer(ctrl Controller) *Server {
	return &Server{ctrl: ctrl}
}

// Handler returns the routes served by Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleAddTask)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", s.handleToggleTask)

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed
// straight away when Shutdown already ran.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	srv := s.server
	s.mu.Unlock()

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.ctrl.Tasks(r.Context())
	s.respond(w, http.StatusOK, tasks, err)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req addTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res := s.ctrl.AddTask(r.Context(), req.Description)
	switch res.Outcome {
	case tasklist.OutcomeAdded:
		s.respond(w, http.StatusCreated, res.Task, nil)
	case tasklist.OutcomeRejected:
		http.Error(w, res.Err.Error(), http.StatusBadRequest)
	default:
		s.respond(w, 0, nil, res.Err)
	}
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	res := s.ctrl.ToggleCompletion(r.Context(), r.PathValue("id"))
	switch res.Outcome {
	case tasklist.OutcomeToggled:
		s.respond(w, http.StatusOK, res.Task, nil)
	case tasklist.OutcomeNotFound:
		http.Error(w, res.Err.Error(), http.StatusNotFound)
	default:
		s.respond(w, 0, nil, res.Err)
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
