package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pocket/internal/core"
	"pocket/internal/stats"
)

type summaryResponse struct {
	IncomeCents   int64   `json:"income_cents"`
	ExpensesCents int64   `json:"expenses_cents"`
	BalanceCents  int64   `json:"balance_cents"`
	Income        float64 `json:"income"`
	Expenses      float64 `json:"expenses"`
	Balance       float64 `json:"balance"`
}

type pieSliceResponse struct {
	Name        string  `json:"name"`
	AmountCents int64   `json:"amount_cents"`
	Amount      float64 `json:"amount"`
	Percentage  float64 `json:"percentage"`
	Color       string  `json:"color,omitempty"`
}

type timelineResponse struct {
	Year     int         `json:"year"`
	Labels   [12]string  `json:"labels"`
	Income   [12]float64 `json:"income"`
	Expenses [12]float64 `json:"expenses"`
}

type monthlyResponse struct {
	Year     int         `json:"year"`
	Month    int         `json:"month"`
	Income   float64     `json:"income"`
	Expenses float64     `json:"expenses"`
	Balance  float64     `json:"balance"`
	Daily    [31]float64 `json:"daily"`
}

type yearlyResponse struct {
	Year     int         `json:"year"`
	Months   [12]float64 `json:"months"`
	Total    float64     `json:"total"`
	Average  float64     `json:"average"`
	MaxMonth int         `json:"max_month"`
	MinMonth int         `json:"min_month"`
}

func toSummaryResponse(s stats.Summary) summaryResponse {
	return summaryResponse{
		IncomeCents:   s.Income.Cents,
		ExpensesCents: s.Expenses.Cents,
		BalanceCents:  s.Balance.Cents,
		Income:        s.Income.Float64(),
		Expenses:      s.Expenses.Float64(),
		Balance:       s.Balance.Float64(),
	}
}

// snapshotFor loads the user's transactions, optionally filtered to one
// YYYY-MM month from the "month" query parameter.
func (s *Server) snapshotFor(ctx context.Context, r *http.Request) (string, []core.Transaction, error) {
	uid := userID(r)
	txs, err := s.txs.Snapshot(ctx, uid)
	if err != nil {
		return "", nil, err
	}

	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		return uid, txs, nil
	}
	if _, _, err := core.ParseMonth(month); err != nil {
		return "", nil, err
	}

	var filtered []core.Transaction
	for _, tx := range txs {
		if tx.Date.MonthKey() == month {
			filtered = append(filtered, tx)
		}
	}
	return uid, filtered, nil
}

func statsKey(uid string, r *http.Request) string {
	return uid + "|" + r.URL.RawQuery
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	key := statsKey(userID(r), r)
	if cached, ok := s.stats.summary.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	_, txs, err := s.snapshotFor(ctx, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := toSummaryResponse(stats.Summarize(txs))
	s.stats.summary.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatsCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	key := statsKey(userID(r), r)
	if cached, ok := s.stats.pie.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	_, txs, err := s.snapshotFor(ctx, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slices := stats.CategoryBreakdown(txs)
	resp := make([]pieSliceResponse, 0, len(slices))
	for _, slice := range slices {
		resp = append(resp, pieSliceResponse{
			Name:        slice.Name,
			AmountCents: slice.Amount.Cents,
			Amount:      slice.Amount.Float64(),
			Percentage:  slice.Percentage,
			Color:       slice.Color,
		})
	}
	s.stats.pie.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// parseYear reads the "year" query parameter, defaulting to the current year.
func parseYear(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return time.Now().Year(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 1 {
		return 0, core.ErrInvalidDate
	}
	return year, nil
}

func (s *Server) handleStatsTimeline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	key := statsKey(userID(r), r)
	if cached, ok := s.stats.timeline.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	year, err := parseYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.txs.Snapshot(ctx, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	series := stats.Timeline(txs, year)
	resp := timelineResponse{Year: series.Year, Labels: series.Labels}
	for i := range series.Income {
		resp.Income[i] = series.Income[i].Float64()
		resp.Expenses[i] = series.Expenses[i].Float64()
	}
	s.stats.timeline.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatsMonthly(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	month := strings.TrimSpace(r.URL.Query().Get("month"))
	year, monthOfYear, err := core.ParseMonth(month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := statsKey(userID(r), r)
	if cached, ok := s.stats.monthly.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	txs, err := s.txs.Snapshot(ctx, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	monthly := stats.Monthly(txs, year, monthOfYear)
	resp := monthlyResponse{
		Year:     monthly.Year,
		Month:    int(monthly.Month),
		Income:   monthly.Income.Float64(),
		Expenses: monthly.Expenses.Float64(),
		Balance:  monthly.Balance.Float64(),
	}
	for i := range monthly.Daily {
		resp.Daily[i] = monthly.Daily[i].Float64()
	}
	s.stats.monthly.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatsYearly(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	key := statsKey(userID(r), r)
	if cached, ok := s.stats.yearly.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	year, err := parseYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.txs.Snapshot(ctx, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	yearly := stats.Yearly(txs, year)
	resp := yearlyResponse{
		Year:     yearly.Year,
		Total:    yearly.Total.Float64(),
		Average:  yearly.Average.Float64(),
		MaxMonth: int(yearly.MaxMonth),
		MinMonth: int(yearly.MinMonth),
	}
	for i := range yearly.Months {
		resp.Months[i] = yearly.Months[i].Float64()
	}
	s.stats.yearly.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}
