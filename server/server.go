package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"unit_scanner/scanner"
)

// ScanService is the part of the orchestrator the HTTP surface needs.
type ScanService interface {
	Status(ctx context.Context) (*scanner.StatusReport, error)
	Execute(ctx context.Context, propertyID uuid.UUID, methodID string) (*scanner.ScanResult, error)
}

type Server struct {
	svc    ScanService
	router *mux.Router
}

func New(svc ScanService) *Server {
	s := &Server{svc: svc, router: mux.NewRouter()}

	s.router.HandleFunc("/api/scanner", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/scanner", s.handleExecute).Methods("POST")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Status(r.Context())
	if err != nil {
		log.Printf("Status error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type executeRequest struct {
	PropertyID string `json:"propertyId"`
	Method     string `json:"method"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid propertyId")
		return
	}
	if scanner.MethodByID(req.Method) == nil {
		writeError(w, http.StatusBadRequest, "unknown method: "+req.Method)
		return
	}

	result, err := s.svc.Execute(r.Context(), propertyID, req.Method)
	if err != nil {
		log.Printf("Execute error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
