package http

import (
	"context"
	"net/http"

	"pocket/internal/core"
	"pocket/internal/services"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type categoryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type cascadeResponse struct {
	Updated int                 `json:"updated"`
	Failed  []cascadeFailureDTO `json:"failed,omitempty"`
}

type cascadeFailureDTO struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

func toCascadeResponse(res services.CascadeResult) cascadeResponse {
	out := cascadeResponse{Updated: res.Updated}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, cascadeFailureDTO{
			TransactionID: f.TransactionID,
			Error:         f.Err.Error(),
		})
	}
	return out
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		cats, err := s.cats.List(ctx, userID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]categoryResponse, 0, len(cats))
		for _, c := range cats {
			out = append(out, categoryResponse{ID: c.ID, Name: c.Name, Color: c.Color})
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req categoryRequest
		if !readJSON(w, r, &req) {
			return
		}

		c := core.Category{UserID: userID(r), Name: req.Name, Color: req.Color}
		id, err := s.cats.Create(ctx, c)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, categoryResponse{ID: id, Name: req.Name, Color: req.Color})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := pathID(r, "/categories/")
	if id == "" {
		writeError(w, r, core.ErrNotFound)
		return
	}
	uid := userID(r)

	switch r.Method {
	case http.MethodPut:
		var req categoryRequest
		if !readJSON(w, r, &req) {
			return
		}

		res, err := s.cats.Update(ctx, uid, id, req.Name, req.Color)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.stats.invalidateUser(uid)

		status := http.StatusOK
		if res.PartialFailure() {
			// Rename applied but some transactions kept the old labels.
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, toCascadeResponse(res))

	case http.MethodDelete:
		res, err := s.cats.Delete(ctx, uid, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.stats.invalidateUser(uid)

		status := http.StatusOK
		if res.PartialFailure() {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, toCascadeResponse(res))

	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}
