package handlers

import (
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/duel-system/middleware"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/services"
)

type MatchHandler struct {
	matchService  services.MatchService
	playerService services.PlayerService
}

func NewMatchHandler(matchService services.MatchService, playerService services.PlayerService) *MatchHandler {
	return &MatchHandler{
		matchService:  matchService,
		playerService: playerService,
	}
}

// createMatchRequest принимает игроков по внешним идентификаторам сообщества
// и регистрирует их при первом матче.
type createMatchRequest struct {
	GuildID        int64  `json:"guild_id"`
	ChannelID      int64  `json:"channel_id"`
	ThreadID       *int64 `json:"thread_id,omitempty"`
	VoiceChannelID *int64 `json:"voice_channel_id,omitempty"`

	Player1 participantRef `json:"player1"`
	Player2 participantRef `json:"player2"`

	Format models.MatchFormat `json:"format"`
}

type participantRef struct {
	ExternalID  string  `json:"external_id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name,omitempty"`
}

func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var p1, p2 *models.Player
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		p1, err = h.playerService.GetOrCreate(gctx, req.Player1.ExternalID, req.Player1.Username, req.Player1.DisplayName)
		return err
	})
	g.Go(func() error {
		var err error
		p2, err = h.playerService.GetOrCreate(gctx, req.Player2.ExternalID, req.Player2.Username, req.Player2.DisplayName)
		return err
	})
	if err := g.Wait(); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	match, err := h.matchService.CreateMatch(r.Context(), services.CreateMatchInput{
		GuildID:        req.GuildID,
		ChannelID:      req.ChannelID,
		ThreadID:       req.ThreadID,
		VoiceChannelID: req.VoiceChannelID,
		Player1ID:      p1.ID,
		Player2ID:      p2.ID,
		Format:         req.Format,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type playerActionRequest struct {
	PlayerID int `json:"player_id"`
}

// action обрабатывает однотипные переходы "игрок сообщает о событии".
func (h *MatchHandler) action(w http.ResponseWriter, r *http.Request, do func(matchID, playerID int) (*models.Match, error)) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req playerActionRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.PlayerID <= 0 {
		badRequestResponse(w, r, errors.New("player_id is required"))
		return
	}

	match, err := do(matchID, req.PlayerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ReportReadiness(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(matchID, playerID int) (*models.Match, error) {
		return h.matchService.ReportReadiness(r.Context(), matchID, playerID)
	})
}

func (h *MatchHandler) ReportGameStart(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(matchID, playerID int) (*models.Match, error) {
		return h.matchService.ReportGameStart(r.Context(), matchID, playerID)
	})
}

func (h *MatchHandler) ConfirmResult(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(matchID, playerID int) (*models.Match, error) {
		return h.matchService.ConfirmResult(r.Context(), matchID, playerID)
	})
}

func (h *MatchHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(matchID, playerID int) (*models.Match, error) {
		return h.matchService.Withdraw(r.Context(), matchID, playerID)
	})
}

type reportDraftRequest struct {
	PlayerID  int    `json:"player_id"`
	DraftLink string `json:"draft_link"`
}

func (h *MatchHandler) ReportDraft(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req reportDraftRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.ReportDraft(r.Context(), matchID, req.PlayerID, req.DraftLink)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type firstPlayerRequest struct {
	PlayerID      int `json:"player_id"`
	FirstPlayerID int `json:"first_player_id"`
}

func (h *MatchHandler) ReportFirstPlayer(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req firstPlayerRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.ReportFirstPlayer(r.Context(), matchID, req.PlayerID, req.FirstPlayerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type reportResultRequest struct {
	PlayerID int `json:"player_id"`
	services.GameReportInput
}

func (h *MatchHandler) ReportResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req reportResultRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.ReportResult(r.Context(), matchID, req.PlayerID, req.GameReportInput)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	seasonID, err := queryInt(r, "season_id", "0")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListActiveMatches(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type annulMatchRequest struct {
	Reason string `json:"reason"`
}

// Annul — прямая аннуляция судьёй, минуя кейс.
func (h *MatchHandler) Annul(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	refereeID, err := middleware.GetRefereeIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	var req annulMatchRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.AnnulMatch(r.Context(), matchID, refereeID, req.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type refereeConfirmRequest struct {
	GameNumber int `json:"game_number"`
}

func (h *MatchHandler) RefereeConfirmGame(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	refereeID, err := middleware.GetRefereeIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	var req refereeConfirmRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.RefereeConfirmGame(r.Context(), matchID, req.GameNumber, refereeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
