package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/service"
)

type FamilyHandler struct {
	families *service.FamilyService
	logger   *slog.Logger
}

func NewFamilyHandler(families *service.FamilyService, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: families, logger: logger}
}

type createFamilyRequest struct {
	Name string `json:"name"`
}

type joinFamilyRequest struct {
	Code string `json:"code"`
}

type joinFamilyResponse struct {
	Joined bool               `json:"joined"`
	Family *model.FamilyGroup `json:"family"`
}

// HandleList returns the caller's families with their rosters.
//
// HTTP: GET /api/families
func (h *FamilyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	families, err := h.families.GetMyFamilies(r.Context(), userID)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

// HandleCreate creates a family with the caller as admin.
//
// HTTP: POST /api/families
// REQUEST BODY: {"name": "Casa Silva"}
func (h *FamilyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	family, err := h.families.CreateFamily(r.Context(), req.Name, userID)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, family)
}

// HandleJoin adds the caller to the family owning a join code.
//
// HTTP: POST /api/families/join
// REQUEST BODY: {"code": "AB12CD34"}
//
// An unknown code is a 404, so a client can tell "wrong code" from "try
// again later".
func (h *FamilyHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req joinFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	family, err := h.families.JoinFamily(r.Context(), req.Code, userID)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, joinFamilyResponse{Joined: true, Family: family})
}

// HandleMembers returns one family's roster. Only members may read it.
//
// HTTP: GET /api/families/{id}/members
func (h *FamilyHandler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	members, err := h.families.MemberRoster(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// HandleLeave removes the caller from a family.
//
// HTTP: DELETE /api/families/{id}/membership
func (h *FamilyHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.families.LeaveFamily(r.Context(), r.PathValue("id"), userID); err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReconcile repairs a family that lost all its admins.
//
// HTTP: POST /api/families/{id}/reconcile
func (h *FamilyHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	repaired, err := h.families.ReconcileFamily(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		logAndWriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"repaired": repaired})
}
