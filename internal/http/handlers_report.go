package http

import (
	"context"
	"net/http"

	"pocket/internal/core"
	"pocket/internal/stats"
)

// ReportExporter pushes a computed monthly report to an external sheet.
type ReportExporter interface {
	ExportMonth(ctx context.Context, userID, month string, summary stats.Summary, slices []stats.PieSlice) error
}

type exportRequest struct {
	Month string `json:"month"`
}

func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req exportRequest
	if !readJSON(w, r, &req) {
		return
	}
	if _, _, err := core.ParseMonth(req.Month); err != nil {
		writeError(w, r, err)
		return
	}

	uid := userID(r)
	txs, err := s.txs.Snapshot(ctx, uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var monthTxs []core.Transaction
	for _, tx := range txs {
		if tx.Date.MonthKey() == req.Month {
			monthTxs = append(monthTxs, tx)
		}
	}

	summary := stats.Summarize(monthTxs)
	slices := stats.CategoryBreakdown(monthTxs)
	if err := s.exporter.ExportMonth(ctx, uid, req.Month, summary, slices); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":        req.Month,
		"transactions": len(monthTxs),
		"categories":   len(slices),
	})
}
