package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/services"
)

type SeasonHandler struct {
	seasonService services.SeasonService
	ratingService services.RatingService
}

func NewSeasonHandler(seasonService services.SeasonService, ratingService services.RatingService) *SeasonHandler {
	return &SeasonHandler{
		seasonService: seasonService,
		ratingService: ratingService,
	}
}

func (h *SeasonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateSeasonInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	season, err := h.seasonService.CreateSeason(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) List(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.seasonService.ListSeasons(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"seasons": seasons}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) Get(w http.ResponseWriter, r *http.Request) {
	seasonID, err := idParam(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	season, err := h.seasonService.GetSeason(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	season, err := h.seasonService.GetActiveSeason(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type seasonFlagRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *SeasonHandler) SetMatchesBlocked(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, h.seasonService.SetNewMatchesBlocked)
}

func (h *SeasonHandler) SetRatingLocked(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, h.seasonService.SetRatingLocked)
}

func (h *SeasonHandler) setFlag(w http.ResponseWriter, r *http.Request, set func(context.Context, int, bool) (*models.Season, error)) {
	seasonID, err := idParam(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req seasonFlagRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	season, err := set(r.Context(), seasonID, req.Enabled)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TriggerDecay запускает инфляцию RD вручную, в обход планировщика.
func (h *SeasonHandler) TriggerDecay(w http.ResponseWriter, r *http.Request) {
	seasonID, err := idParam(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	affected, err := h.ratingService.ApplySeasonDecay(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"ratings_decayed": affected}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
