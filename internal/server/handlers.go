package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/harvestsmart/harvestsmart/pkg/document"
	"github.com/harvestsmart/harvestsmart/pkg/report"
)

type reportResponse struct {
	Report *report.DailyReport `json:"report"`
	Sent   bool                `json:"sent"`
	State  string              `json:"state"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	dates, err := s.Controller.Dates(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"dates": dates})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	s.writeReport(w, r, s.Controller.Today())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !report.ValidDate(date) {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	s.writeReport(w, r, date)
}

func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, date string) {
	t := s.Controller.Load(r.Context(), date)
	if t == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report for " + date})
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		Report: t.Report,
		Sent:   t.Sent,
		State:  s.Controller.State(r.Context(), date).String(),
	})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !report.ValidDate(date) {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	t := s.Controller.LoadAll(r.Context(), date)
	if t == nil {
		http.Error(w, "no report for "+date, http.StatusNotFound)
		return
	}
	data, err := s.Renderer.Render(r.Context(), t.Report)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+document.FileName(date)+`"`)
	w.Write(data)
}
