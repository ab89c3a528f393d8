package http

import (
	"context"
	"net/http"

	"pocket/internal/core"
)

type budgetRequest struct {
	Month             string                  `json:"month"`
	MonthlyLimitCents int64                   `json:"monthly_limit_cents"`
	Categories        []categoryBudgetRequest `json:"categories"`
}

type categoryBudgetRequest struct {
	CategoryID string `json:"category_id"`
	LimitCents int64  `json:"limit_cents"`
}

type budgetResponse struct {
	Month             string                   `json:"month"`
	MonthlyLimitCents int64                    `json:"monthly_limit_cents"`
	Categories        []categoryBudgetResponse `json:"categories,omitempty"`
	CreatedAt         string                   `json:"created_at,omitempty"`
	UpdatedAt         string                   `json:"updated_at,omitempty"`
}

type categoryBudgetResponse struct {
	CategoryID string `json:"category_id"`
	LimitCents int64  `json:"limit_cents"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	out := budgetResponse{
		Month:             b.Month,
		MonthlyLimitCents: b.MonthlyLimit.Cents,
	}
	for _, cb := range b.Categories {
		out.Categories = append(out.Categories, categoryBudgetResponse{
			CategoryID: cb.CategoryID,
			LimitCents: cb.Limit.Cents,
		})
	}
	if !b.CreatedAt.IsZero() {
		out.CreatedAt = b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if !b.UpdatedAt.IsZero() {
		out.UpdatedAt = b.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid := userID(r)

	switch r.Method {
	case http.MethodGet:
		month := r.URL.Query().Get("month")
		b, err := s.budgets.Get(ctx, uid, month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if b == nil {
			writeError(w, r, core.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toBudgetResponse(*b))

	case http.MethodPut, http.MethodPost:
		var req budgetRequest
		if !readJSON(w, r, &req) {
			return
		}

		b := core.Budget{
			UserID:       uid,
			Month:        req.Month,
			MonthlyLimit: core.Money{Cents: req.MonthlyLimitCents},
		}
		for _, cb := range req.Categories {
			b.Categories = append(b.Categories, core.CategoryBudget{
				CategoryID: cb.CategoryID,
				Limit:      core.Money{Cents: cb.LimitCents},
			})
		}

		stored, err := s.budgets.Set(ctx, b)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBudgetResponse(stored))

	case http.MethodDelete:
		month := r.URL.Query().Get("month")
		if err := s.budgets.Delete(ctx, uid, month); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete)
	}
}
