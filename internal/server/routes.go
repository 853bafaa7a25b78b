package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/lanfund/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/time", s.handleServerTime)

	// Positions
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/holdings/", s.handleHoldingUpdate) // PUT {code}
	mux.HandleFunc("/api/holdings", s.handleHoldings)
	mux.HandleFunc("/api/card", s.handleCard)
	mux.HandleFunc("/api/positions/add", s.handlePositionAdd)
	mux.HandleFunc("/api/positions/reduce", s.handlePositionReduce)
	mux.HandleFunc("/api/pending", s.handlePending) // GET, DELETE
	mux.HandleFunc("/api/export.csv", s.handleExportCSV)

	// Records
	mux.HandleFunc("/api/records/", s.routeRecords) // handles {id}/undo
	mux.HandleFunc("/api/records", s.handleRecordList)

	// Roster
	mux.HandleFunc("/api/funds/sectors", s.handleFundSectors)
	mux.HandleFunc("/api/funds", s.handleFunds)

	// Preferences
	mux.HandleFunc("/api/preferences", s.handlePreferences)

	// Refresh
	mux.HandleFunc("/api/refresh/pause", s.handleRefreshPause)
	mux.HandleFunc("/api/refresh/resume", s.handleRefreshResume)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/pages/", s.handlePage)

	// Live summaries
	mux.HandleFunc("/api/ws", s.handleWS)
}

// routeRecords dispatches /api/records/{id}/* to the appropriate handler.
func (s *Server) routeRecords(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/records/")
	switch {
	case strings.HasSuffix(path, "/undo"):
		s.handleRecordUndo(w, r, PathParam(r, "/api/records/", "/undo"))
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleServerTime(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	t, err := s.app.Backend.BeijingTime(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"time":           t,
		"default_period": t.DefaultPeriod(),
	})
}
