package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/models"
	"github.com/bobmcallan/lanfund/internal/services/ledger"
	"github.com/bobmcallan/lanfund/internal/services/portfolio"
	"github.com/bobmcallan/lanfund/internal/services/report"
)

// handleSummary handles GET /api/summary. The cached summary is returned
// unless ?refresh=true or nothing has been aggregated yet.
// ?format=markdown returns the rendered summary instead of JSON.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	summary := s.app.PortfolioService.Summary()
	if summary == nil || r.URL.Query().Get("refresh") == "true" {
		var err error
		summary, err = s.app.PortfolioService.Refresh(ctx)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
	}

	if r.URL.Query().Get("format") == "markdown" {
		md := s.app.ReportService.SummaryMarkdown(summary, s.app.LedgerService.Preferences(ctx))
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(md))
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

// handleHoldings handles GET /api/holdings.
func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.PortfolioService.Holdings())
}

// holdingUpdate is the body of PUT /api/holdings/{code}. A missing or zero
// cost_per_unit means 1.
type holdingUpdate struct {
	HoldingUnits *float64 `json:"holding_units"`
	CostPerUnit  *float64 `json:"cost_per_unit"`
}

// handleHoldingUpdate handles PUT /api/holdings/{code}.
func (s *Server) handleHoldingUpdate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}
	code := PathParam(r, "/api/holdings/", "")
	if code == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, portfolio.ErrMissingCode.Error(), "invalid_request")
		return
	}

	var upd holdingUpdate
	if !DecodeJSON(w, r, &upd) {
		return
	}
	if upd.HoldingUnits == nil {
		WriteErrorWithCode(w, http.StatusBadRequest, "holding_units is required", "invalid_request")
		return
	}
	var cost float64
	if upd.CostPerUnit != nil {
		cost = *upd.CostPerUnit
	}

	result, err := s.app.PortfolioService.SetHolding(r.Context(), code, *upd.HoldingUnits, cost)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if result.Summary != nil {
		s.hub.Broadcast(result.Summary)
	}
	WriteJSON(w, http.StatusOK, result)
}

// handleCard handles GET /api/card. ?format=markdown|png select other renderings.
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	card, err := s.app.PortfolioService.ShowoffCard(ctx)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "png":
		png, err := s.app.ReportService.CardChart(card)
		if err != nil {
			if errors.Is(err, report.ErrNothingToChart) {
				WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "not_found")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	case "markdown":
		md := s.app.ReportService.CardMarkdown(card, s.app.LedgerService.HideSensitive(ctx))
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(md))
	default:
		WriteJSON(w, http.StatusOK, card)
	}
}

// handlePositionAdd handles POST /api/positions/add.
func (s *Server) handlePositionAdd(w http.ResponseWriter, r *http.Request) {
	s.handlePositionChange(w, r, models.OpAdd)
}

// handlePositionReduce handles POST /api/positions/reduce.
func (s *Server) handlePositionReduce(w http.ResponseWriter, r *http.Request) {
	s.handlePositionChange(w, r, models.OpReduce)
}

func (s *Server) handlePositionChange(w http.ResponseWriter, r *http.Request, op models.PositionOp) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var change models.PositionChange
	if !DecodeJSON(w, r, &change) {
		return
	}

	var (
		result *models.PositionResult
		err    error
	)
	if op == models.OpAdd {
		result, err = s.app.PortfolioService.AddPosition(r.Context(), change)
	} else {
		result, err = s.app.PortfolioService.ReducePosition(r.Context(), change)
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if result.Summary != nil {
		s.hub.Broadcast(result.Summary)
	}
	WriteJSON(w, http.StatusOK, result)
}

// handlePending handles GET and DELETE /api/pending. GET filters out
// entries already settled without rewriting the ledger; DELETE drops both
// ledgers.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		if err := s.app.LedgerService.Clear(r.Context()); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	adds, reduces, err := s.app.LedgerService.Pending(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	today := s.app.Clock.Today()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":    today,
		"adds":    nonNil(ledger.StillPending(adds, today)),
		"reduces": nonNil(ledger.StillPending(reduces, today)),
	})
}

func nonNil(entries []models.PendingSettlement) []models.PendingSettlement {
	if entries == nil {
		return []models.PendingSettlement{}
	}
	return entries
}

// handleExportCSV handles GET /api/export.csv.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	summary := s.app.PortfolioService.Summary()
	if summary == nil {
		var err error
		if summary, err = s.app.PortfolioService.Refresh(r.Context()); err != nil {
			WriteServiceError(w, err)
			return
		}
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="lanfund-%s.csv"`, summary.Date))
	if err := s.app.ReportService.ExportCSV(summary, w); err != nil {
		s.logger.Error().Err(err).Msg("CSV export failed")
	}
}

// handleRecordList handles GET /api/records.
func (s *Server) handleRecordList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	records, err := s.app.PortfolioService.PositionRecords(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if records == nil {
		records = []models.PositionRecord{}
	}
	WriteJSON(w, http.StatusOK, records)
}

// handleRecordUndo handles POST /api/records/{id}/undo.
func (s *Server) handleRecordUndo(w http.ResponseWriter, r *http.Request, rawID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "record id must be a positive integer")
		return
	}
	msg, err := s.app.PortfolioService.UndoRecord(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if summary := s.app.PortfolioService.Summary(); summary != nil {
		s.hub.Broadcast(summary)
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}

type rosterRequest struct {
	Codes   []string `json:"codes"`
	Sectors []string `json:"sectors,omitempty"`
}

func decodeRoster(w http.ResponseWriter, r *http.Request, needSectors bool) (rosterRequest, bool) {
	var req rosterRequest
	if !DecodeJSON(w, r, &req) {
		return req, false
	}
	req.Codes = splitList(strings.Join(req.Codes, ","))
	req.Sectors = splitList(strings.Join(req.Sectors, ","))
	if len(req.Codes) == 0 {
		WriteError(w, http.StatusBadRequest, "codes are required")
		return req, false
	}
	if needSectors && len(req.Sectors) == 0 {
		WriteError(w, http.StatusBadRequest, "sectors are required")
		return req, false
	}
	return req, true
}

// handleFunds handles POST /api/funds (add) and DELETE /api/funds (remove).
func (s *Server) handleFunds(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	req, ok := decodeRoster(w, r, false)
	if !ok {
		return
	}

	var (
		msg string
		err error
	)
	if r.Method == http.MethodPost {
		msg, err = s.app.PortfolioService.AddFunds(r.Context(), req.Codes)
	} else {
		msg, err = s.app.PortfolioService.DeleteFunds(r.Context(), req.Codes)
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// handleFundSectors handles POST /api/funds/sectors (mark) and DELETE (unmark).
func (s *Server) handleFundSectors(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	req, ok := decodeRoster(w, r, r.Method == http.MethodPost)
	if !ok {
		return
	}

	var (
		msg string
		err error
	)
	if r.Method == http.MethodPost {
		msg, err = s.app.PortfolioService.MarkSectors(r.Context(), req.Codes, req.Sectors)
	} else {
		msg, err = s.app.PortfolioService.UnmarkSectors(r.Context(), req.Codes)
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}

type preferencesUpdate struct {
	HideSensitiveValues  *bool    `json:"hide_sensitive_values"`
	CumulativeCorrection *float64 `json:"cumulative_correction"`
}

// handlePreferences handles GET and PUT /api/preferences. PUT only changes
// the fields present in the body.
func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodPut {
		var upd preferencesUpdate
		if !DecodeJSON(w, r, &upd) {
			return
		}
		if upd.HideSensitiveValues != nil {
			if err := s.app.LedgerService.SetHideSensitive(ctx, *upd.HideSensitiveValues); err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if upd.CumulativeCorrection != nil {
			if err := s.app.LedgerService.SetCorrection(ctx, *upd.CumulativeCorrection); err != nil {
				if errors.Is(err, ledger.ErrInvalidCorrection) {
					WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_request")
					return
				}
				WriteError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
	}

	WriteJSON(w, http.StatusOK, s.app.LedgerService.Preferences(ctx))
}

// handleRefresh handles POST /api/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	err := s.app.RefreshService.RefreshNow(r.Context())
	resp := map[string]interface{}{
		"paused":  s.app.RefreshService.Paused(),
		"summary": s.app.PortfolioService.Summary(),
	}
	if err != nil {
		resp["error"] = err.Error()
		WriteJSON(w, http.StatusBadGateway, resp)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleRefreshPause handles POST /api/refresh/pause.
func (s *Server) handleRefreshPause(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.app.RefreshService.Pause()
	WriteJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

// handleRefreshResume handles POST /api/refresh/resume.
func (s *Server) handleRefreshResume(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.app.RefreshService.Resume(r.Context())
	WriteJSON(w, http.StatusOK, map[string]bool{"paused": s.app.RefreshService.Paused()})
}

// handlePage handles GET /api/pages/{page}.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	name := PathParam(r, "/api/pages/", "")
	if !common.IsKnownPage(name) {
		WriteErrorWithCode(w, http.StatusNotFound, fmt.Sprintf("unknown page %q", name), "not_found")
		return
	}
	pd, ok := s.app.RefreshService.Page(name)
	if !ok {
		WriteErrorWithCode(w, http.StatusNotFound, fmt.Sprintf("page %q has not been loaded", name), "not_loaded")
		return
	}
	WriteJSON(w, http.StatusOK, pd)
}

// handleWS handles GET /api/ws. Each new summary is pushed as a SummaryEvent.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	s.hub.ServeWS(w, r, s.app.PortfolioService.Summary())
}
