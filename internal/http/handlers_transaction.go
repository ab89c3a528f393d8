package http

import (
	"context"
	"net/http"

	"pocket/internal/core"
)

type transactionRequest struct {
	Title      string `json:"title"`
	Amount     string `json:"amount"`
	Type       string `json:"type"`
	Date       string `json:"date"`
	Category   string `json:"category"`
	CategoryID string `json:"category_id"`
	Color      string `json:"color"`
	ImageURL   string `json:"image_url"`
}

type transactionPatchRequest struct {
	Title      *string `json:"title"`
	Amount     *string `json:"amount"`
	Type       *string `json:"type"`
	Date       *string `json:"date"`
	Category   *string `json:"category"`
	CategoryID *string `json:"category_id"`
	Color      *string `json:"color"`
	ImageURL   *string `json:"image_url"`
}

type transactionResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	AmountCents int64   `json:"amount_cents"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Date        string  `json:"date"`
	Category    string  `json:"category,omitempty"`
	CategoryID  string  `json:"category_id,omitempty"`
	Color       string  `json:"color,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Title:       tx.Title,
		AmountCents: tx.Amount.Cents,
		Amount:      tx.Amount.Float64(),
		Type:        string(tx.Type),
		Date:        tx.Date.String(),
		Category:    tx.Category,
		CategoryID:  tx.CategoryID,
		Color:       tx.Color,
		ImageURL:    tx.ImageURL,
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		txs, err := s.txs.Snapshot(ctx, userID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]transactionResponse, 0, len(txs))
		for _, tx := range txs {
			out = append(out, toTransactionResponse(tx))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req transactionRequest
		if !readJSON(w, r, &req) {
			return
		}

		cents, err := core.ParseDecimalToCents(req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		date, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}

		txType := core.TransactionType(req.Type)
		tx := core.Transaction{
			Title:      req.Title,
			Amount:     core.SignedCents(cents, txType),
			Type:       txType,
			Date:       date,
			Category:   req.Category,
			CategoryID: req.CategoryID,
			Color:      req.Color,
			UserID:     userID(r),
			ImageURL:   req.ImageURL,
		}

		id, err := s.txs.Add(ctx, tx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.stats.invalidateUser(tx.UserID)

		tx.ID = id
		writeJSON(w, http.StatusCreated, toTransactionResponse(tx))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := pathID(r, "/transactions/")
	if id == "" {
		writeError(w, r, core.ErrNotFound)
		return
	}
	uid := userID(r)

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		var req transactionPatchRequest
		if !readJSON(w, r, &req) {
			return
		}

		patch := core.TransactionPatch{
			Title:      req.Title,
			Category:   req.Category,
			CategoryID: req.CategoryID,
			Color:      req.Color,
			ImageURL:   req.ImageURL,
		}
		if req.Type != nil {
			txType := core.TransactionType(*req.Type)
			patch.Type = &txType
		}
		if req.Date != nil {
			date, err := core.ParseDate(*req.Date)
			if err != nil {
				writeError(w, r, err)
				return
			}
			patch.Date = &date
		}
		if req.Amount != nil {
			cents, err := core.ParseDecimalToCents(*req.Amount)
			if err != nil {
				writeError(w, r, err)
				return
			}
			txType, err := s.effectiveType(ctx, uid, id, patch.Type)
			if err != nil {
				writeError(w, r, err)
				return
			}
			amount := core.SignedCents(cents, txType)
			patch.Amount = &amount
		}

		if err := s.txs.Update(ctx, uid, id, patch); err != nil {
			writeError(w, r, err)
			return
		}
		s.stats.invalidateUser(uid)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if err := s.txs.Delete(ctx, uid, id); err != nil {
			writeError(w, r, err)
			return
		}
		s.stats.invalidateUser(uid)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

// effectiveType resolves the transaction type used to sign a patched amount:
// the patched type when present, otherwise the stored one.
func (s *Server) effectiveType(ctx context.Context, uid, id string, patched *core.TransactionType) (core.TransactionType, error) {
	if patched != nil {
		return *patched, nil
	}
	txs, err := s.txs.Snapshot(ctx, uid)
	if err != nil {
		return "", err
	}
	for _, tx := range txs {
		if tx.ID == id {
			return tx.Type, nil
		}
	}
	return "", core.ErrNotFound
}
