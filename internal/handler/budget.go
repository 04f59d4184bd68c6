package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/service"
	"github.com/sakif/family-finance/internal/stats"
)

type BudgetHandler struct {
	budgets *service.BudgetService
	logger  *slog.Logger
	now     func() time.Time
}

func NewBudgetHandler(budgets *service.BudgetService, logger *slog.Logger) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, logger: logger, now: time.Now}
}

type budgetStatusResponse struct {
	Month   string               `json:"month"`
	Budgets []stats.BudgetStatus `json:"budgets"`
}

// HandleList returns each budget with its consumption in month (default:
// the current month).
//
// HTTP: GET /api/budgets?month=2025-01
func (h *BudgetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = model.MonthOf(h.now())
	}

	statuses, err := h.budgets.Statuses(r.Context(), userID, month)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetStatusResponse{Month: month, Budgets: statuses})
}

// HandleSave sets the limit of one category.
//
// HTTP: PUT /api/budgets
// REQUEST BODY: {"category": "Mercado", "limit": "2500"}
func (h *BudgetHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var b model.Budget
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, err)
		return
	}

	budgets, err := h.budgets.Save(r.Context(), userID, b)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

// HandleRemove deletes the budget of one category.
//
// HTTP: DELETE /api/budgets/{category}
func (h *BudgetHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	// Categories carry accents ("Saúde"); the router may hand them over escaped.
	category, err := url.PathUnescape(r.PathValue("category"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("category", "category is not valid"))
		return
	}

	budgets, err := h.budgets.Remove(r.Context(), userID, category)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}
