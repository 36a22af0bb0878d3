package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/synctools/tracksync/logger"
	"github.com/synctools/tracksync/syncer"
	"go.uber.org/zap"
)

// Server exposes the outcome of the sync runs over http when the tool runs
// in periodic mode.
type Server struct {
	http.Server
	Port int

	mu      sync.RWMutex
	latest  *syncer.Report
	history map[string]*syncer.Report
}

func NewServer(httpPort int) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		Port:    httpPort,
		history: make(map[string]*syncer.Report),
	}

	router := mux.NewRouter()
	router.HandleFunc("/report", s.HandleGetLatestReport).Methods(http.MethodGet)
	router.HandleFunc("/report/{id}", s.HandleGetReport).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

// Publish records the report of a finished sync run.
func (s *Server) Publish(report *syncer.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = report
	s.history[report.ID] = report
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	res, _ := json.Marshal(message)
	w.Write(res)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
