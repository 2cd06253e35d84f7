package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"ticketdesk/internal/auth"
)

func NewRouter(s *Server, a *auth.Auth) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	if a != nil {
		r.Use(a.Middleware("ticketdesk", "/health"))
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/time", GetTimeHandler).Methods("GET")
	r.HandleFunc("/tickets", s.ListTicketsHandler).Methods("GET")
	r.HandleFunc("/tickets", s.CreateTicketHandler).Methods("POST")
	r.HandleFunc("/tickets/{id:[0-9]+}/pdf", s.TicketPDFHandler).Methods("GET")
	r.HandleFunc("/scan", s.ScanHandler).Methods("POST")
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"elapsed":    time.Since(start),
		}).Info("request")
	})
}
