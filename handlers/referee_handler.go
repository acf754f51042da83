package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dosada05/duel-system/middleware"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/services"
)

// Максимальный размер файла-доказательства (скриншоты, записи).
const maxEvidenceSize = 10 << 20

type RefereeHandler struct {
	refereeService services.RefereeService
}

func NewRefereeHandler(refereeService services.RefereeService) *RefereeHandler {
	return &RefereeHandler{refereeService: refereeService}
}

func (h *RefereeHandler) Get(w http.ResponseWriter, r *http.Request) {
	refereeID, err := idParam(r, "refereeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	referee, err := h.refereeService.GetReferee(r.Context(), refereeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"referee": referee}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RefereeHandler) List(w http.ResponseWriter, r *http.Request) {
	guildID, err := int64Param(r, "guildID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	referees, err := h.refereeService.ListReferees(r.Context(), guildID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"referees": referees}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type capabilitiesRequest struct {
	IsActive           *bool `json:"is_active"`
	CanAnnulMatches    *bool `json:"can_annul_matches"`
	CanModifyResults   *bool `json:"can_modify_results"`
	CanResolveDisputes *bool `json:"can_resolve_disputes"`
}

func (h *RefereeHandler) UpdateCapabilities(w http.ResponseWriter, r *http.Request) {
	refereeID, err := idParam(r, "refereeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req capabilitiesRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	referee, err := h.refereeService.GetReferee(r.Context(), refereeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if req.IsActive != nil {
		referee.IsActive = *req.IsActive
	}
	if req.CanAnnulMatches != nil {
		referee.CanAnnulMatches = *req.CanAnnulMatches
	}
	if req.CanModifyResults != nil {
		referee.CanModifyResults = *req.CanModifyResults
	}
	if req.CanResolveDisputes != nil {
		referee.CanResolveDisputes = *req.CanResolveDisputes
	}

	if err := h.refereeService.UpdateCapabilities(r.Context(), referee); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"referee": referee}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RefereeHandler) OpenCase(w http.ResponseWriter, r *http.Request) {
	var input services.OpenCaseInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	problem, err := h.refereeService.OpenCase(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"case": problem}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RefereeHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := idParam(r, "caseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	problem, err := h.refereeService.GetCase(r.Context(), caseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"case": problem}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RefereeHandler) ListOpenCases(w http.ResponseWriter, r *http.Request) {
	guildID, err := int64Param(r, "guildID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	cases, err := h.refereeService.ListOpenCases(r.Context(), guildID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"cases": cases}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RefereeHandler) ListCasesByMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	cases, err := h.refereeService.ListCasesByMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"cases": cases}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RefereeHandler) TakeCase(w http.ResponseWriter, r *http.Request) {
	h.caseTransition(w, r, h.refereeService.TakeCase)
}

func (h *RefereeHandler) StartResolution(w http.ResponseWriter, r *http.Request) {
	h.caseTransition(w, r, h.refereeService.StartResolution)
}

func (h *RefereeHandler) CloseCase(w http.ResponseWriter, r *http.Request) {
	h.caseTransition(w, r, h.refereeService.CloseCase)
}

func (h *RefereeHandler) caseTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caseID, refereeID int) (*models.RefereeCase, error)) {
	caseID, err := idParam(r, "caseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	refereeID, err := middleware.GetRefereeIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	problem, err := fn(r.Context(), caseID, refereeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"case": problem}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RefereeHandler) ResolveCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := idParam(r, "caseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	refereeID, err := middleware.GetRefereeIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	var input services.ResolveCaseInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	problem, err := h.refereeService.ResolveCase(r.Context(), caseID, refereeID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"case": problem}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RefereeHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	caseID, err := idParam(r, "caseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxEvidenceSize); err != nil {
		badRequestResponse(w, r, errors.New("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("evidence")
	if err != nil {
		badRequestResponse(w, r, errors.New("evidence file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	problem, err := h.refereeService.UploadEvidence(r.Context(), caseID, header.Filename, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"case": problem}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
