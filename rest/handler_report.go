package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) HandleGetLatestReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	report := s.latest
	s.mu.RUnlock()
	if report == nil {
		respondWithError(w, http.StatusNotFound, "no sync run has finished yet")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (s *Server) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.RLock()
	report, found := s.history[id]
	s.mu.RUnlock()
	if !found {
		respondWithError(w, http.StatusNotFound, "no sync run with id "+id)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]any{"status": "up"})
}
