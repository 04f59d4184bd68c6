package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/service"
)

// TransactionHandler exposes the transaction gateway. Listings cover the
// caller's families; writes only the caller's own rows.
type TransactionHandler struct {
	transactions *service.TransactionService
	logger       *slog.Logger
}

func NewTransactionHandler(transactions *service.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, logger: logger}
}

// HandleList returns the visible transactions, newest first.
//
// HTTP: GET /api/transactions?month=2025-01&category=Mercado&type=expense
func (h *TransactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	txs, err := h.transactions.List(r.Context(), userID, service.TransactionQuery{
		Month:    q.Get("month"),
		Category: q.Get("category"),
		Type:     model.TransactionType(q.Get("type")),
	})
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// HandleCreate records a transaction for the caller.
//
// HTTP: POST /api/transactions
// REQUEST BODY: {"type":"expense","amount":"150.50","category":"Saúde","date":"2025-01-10"}
//
// amount may be a JSON number or a numeric string.
func (h *TransactionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in model.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.transactions.Create(r.Context(), userID, in)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// HandleUpdate patches one of the caller's transactions.
//
// HTTP: PUT /api/transactions/{id}
func (h *TransactionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var patch model.TransactionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.transactions.Update(r.Context(), r.PathValue("id"), userID, patch)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandleDelete removes one of the caller's transactions.
//
// HTTP: DELETE /api/transactions/{id}
func (h *TransactionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.transactions.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCategories returns the fixed category lists.
//
// HTTP: GET /api/categories
func HandleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		string(model.Income):  model.IncomeCategories,
		string(model.Expense): model.ExpenseCategories,
	})
}
