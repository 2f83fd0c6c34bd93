package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Server exposes a Service over the REST routes HTTPService talks to.
type Server struct {
	svc    Service
	logger *logrus.Entry
	mux    *http.ServeMux
}

// NewServer returns a handler serving svc.
func NewServer(svc Service, logger *logrus.Entry) *Server {
	s := &Server{
		svc:    svc,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc(allocatePath, s.allocate)
	s.mux.HandleFunc(allocationsPath, s.allocations)
	s.mux.HandleFunc(deallocatePath, s.deallocate)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) allocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	maxPlayers, err := strconv.Atoi(q.Get("maxplayers"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, allocateResponse{Error: "invalid maxplayers"})
		return
	}

	sess, err := s.svc.Create(r.Context(), CreateRequest{
		ID:         q.Get("uuid"),
		Name:       q.Get("name"),
		MaxPlayers: maxPlayers,
	})

	switch {
	case errors.Is(err, ErrSessionExists):
		s.writeJSON(w, http.StatusConflict, allocateResponse{Error: err.Error()})
	case errors.Is(err, ErrNoCapacity):
		s.writeJSON(w, http.StatusServiceUnavailable, allocateResponse{Error: err.Error()})
	case err != nil:
		s.logger.WithError(err).Error("allocating session")
		s.writeJSON(w, http.StatusInternalServerError, allocateResponse{Error: err.Error()})
	default:
		s.logger.
			WithField("session_id", sess.ID).
			WithField("address", sess.Address()).
			Info("session allocated")
		s.writeJSON(w, http.StatusOK, allocateResponse{Success: true, Allocation: *sess})
	}
}

func (s *Server) allocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ids := r.URL.Query()["uuid"]
	resp := allocationsResponse{Success: true, Allocations: make([]Session, 0, len(ids))}

	for _, id := range ids {
		sess, err := s.svc.Lookup(r.Context(), id)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			continue
		case err != nil:
			s.writeJSON(w, http.StatusInternalServerError, allocationsResponse{Error: err.Error()})
			return
		}

		resp.Allocations = append(resp.Allocations, *sess)
	}

	if len(resp.Allocations) == 0 {
		s.writeJSON(w, http.StatusNotFound, allocationsResponse{Error: ErrSessionNotFound.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deallocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("uuid")

	err := s.svc.Delete(r.Context(), id)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		w.WriteHeader(http.StatusNotFound)
	case err != nil:
		s.logger.WithError(err).Error("deallocating session")
		w.WriteHeader(http.StatusInternalServerError)
	default:
		s.logger.WithField("session_id", id).Info("session deallocated")
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("writing response")
	}
}
