package handlers

import (
	"net/http"

	"github.com/Dosada05/duel-system/leaderboard"
	"github.com/Dosada05/duel-system/services"
)

type RatingHandler struct {
	ratingService services.RatingService
	cache         *leaderboard.Cache // nil, если Redis не настроен
}

func NewRatingHandler(ratingService services.RatingService, cache *leaderboard.Cache) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
		cache:         cache,
	}
}

func (h *RatingHandler) Get(w http.ResponseWriter, r *http.Request) {
	seasonID, err := idParam(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := idParam(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rating, err := h.ratingService.GetRating(r.Context(), playerID, seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"rating": rating}
	if h.cache != nil {
		if entry, err := h.cache.Rank(r.Context(), seasonID, playerID); err == nil && entry != nil {
			response["rank"] = entry
		}
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RatingHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	seasonID, err := idParam(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", "25")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", "0")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ratings, err := h.ratingService.GetLeaderboard(r.Context(), seasonID, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": ratings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
