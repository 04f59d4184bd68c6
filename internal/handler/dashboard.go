package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/family-finance/internal/service"
)

// DashboardHandler serves the read-only views: the month overview, one
// member's month, and the AI note.
type DashboardHandler struct {
	dashboard *service.DashboardService
	insights  *service.InsightService
	logger    *slog.Logger
}

func NewDashboardHandler(dashboard *service.DashboardService, insights *service.InsightService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, insights: insights, logger: logger}
}

// HandleDashboard returns the month overview. When storage is unreachable
// the answer is still 200, with empty figures and "degraded": true.
//
// HTTP: GET /api/dashboard?month=2025-01
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	d, err := h.dashboard.Build(r.Context(), userID, r.URL.Query().Get("month"))
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleMemberDetail returns one family member's month.
//
// HTTP: GET /api/dashboard/members/{id}?month=2025-01
func (h *DashboardHandler) HandleMemberDetail(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	detail, err := h.dashboard.MemberDetail(r.Context(), userID, r.PathValue("id"), r.URL.Query().Get("month"))
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleInsight asks the AI provider about the month.
//
// HTTP: POST /api/insights?month=2025-01
//
// POST because every call spends provider quota and may return a new text.
func (h *DashboardHandler) HandleInsight(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	in, err := h.insights.MonthlySummary(r.Context(), userID, r.URL.Query().Get("month"))
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
