package handlers

import (
	"net/http"

	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/services"
)

type PenaltyHandler struct {
	penaltyService services.PenaltyService
}

func NewPenaltyHandler(penaltyService services.PenaltyService) *PenaltyHandler {
	return &PenaltyHandler{penaltyService: penaltyService}
}

func (h *PenaltyHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	guildID, err := int64Param(r, "guildID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	settings, err := h.penaltyService.GetSettings(r.Context(), guildID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"settings": settings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PenaltyHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	guildID, err := int64Param(r, "guildID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var settings models.PenaltySettings
	if err := readJSON(w, r, &settings); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	settings.GuildID = guildID

	if err := h.penaltyService.SaveSettings(r.Context(), &settings); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"settings": settings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type penaltyPreviewRequest struct {
	RawTime  float64 `json:"raw_time"`
	Restarts int     `json:"restarts"`
}

func (h *PenaltyHandler) Preview(w http.ResponseWriter, r *http.Request) {
	guildID, err := int64Param(r, "guildID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req penaltyPreviewRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	penalty, finalTime, err := h.penaltyService.Preview(r.Context(), guildID, req.RawTime, req.Restarts)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{
		"raw_time":   req.RawTime,
		"restarts":   req.Restarts,
		"penalty":    penalty,
		"final_time": finalTime,
	}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
