package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/duel-system/handlers"
	"github.com/Dosada05/duel-system/middleware"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Match     *handlers.MatchHandler
	Rating    *handlers.RatingHandler
	Season    *handlers.SeasonHandler
	Referee   *handlers.RefereeHandler
	Penalty   *handlers.PenaltyHandler
	WebSocket *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret []byte) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	requireReferee := func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.Authorize("referee", "admin"))
	}
	requireAdmin := func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.Authorize("admin"))
	}

	router.Post("/auth/login", h.Auth.Login)
	router.Group(func(r chi.Router) {
		requireAdmin(r)
		r.Post("/auth/register", h.Auth.Register)
	})

	router.Route("/matches", func(r chi.Router) {
		// Игроки действуют от своего ID без токена: ботовый фронт
		// уже аутентифицировал их на стороне сообщества.
		r.Post("/", h.Match.Create)
		r.Get("/", h.Match.ListActive)
		r.Get("/{matchID}", h.Match.Get)

		r.Post("/{matchID}/readiness", h.Match.ReportReadiness)
		r.Post("/{matchID}/draft", h.Match.ReportDraft)
		r.Post("/{matchID}/first-player", h.Match.ReportFirstPlayer)
		r.Post("/{matchID}/game-start", h.Match.ReportGameStart)
		r.Post("/{matchID}/result", h.Match.ReportResult)
		r.Post("/{matchID}/confirm", h.Match.ConfirmResult)
		r.Post("/{matchID}/withdraw", h.Match.Withdraw)

		r.Get("/{matchID}/cases", h.Referee.ListCasesByMatch)

		r.Group(func(r chi.Router) {
			requireReferee(r)
			r.Post("/{matchID}/annul", h.Match.Annul)
			r.Post("/{matchID}/referee-confirm", h.Match.RefereeConfirmGame)
		})
	})

	router.Route("/seasons", func(r chi.Router) {
		r.Get("/", h.Season.List)
		r.Get("/active", h.Season.GetActive)
		r.Get("/{seasonID}", h.Season.Get)

		r.Group(func(r chi.Router) {
			requireAdmin(r)
			r.Post("/", h.Season.Create)
			r.Put("/{seasonID}/matches-blocked", h.Season.SetMatchesBlocked)
			r.Put("/{seasonID}/rating-locked", h.Season.SetRatingLocked)
			r.Post("/{seasonID}/decay", h.Season.TriggerDecay)
		})
	})

	router.Route("/ratings", func(r chi.Router) {
		r.Get("/{seasonID}/leaderboard", h.Rating.Leaderboard)
		r.Get("/{seasonID}/{playerID}", h.Rating.Get)
	})

	router.Route("/guilds/{guildID}", func(r chi.Router) {
		r.Get("/penalty-settings", h.Penalty.GetSettings)
		r.Post("/penalty-preview", h.Penalty.Preview)
		r.Get("/referees", h.Referee.List)
		r.Get("/cases", h.Referee.ListOpenCases)

		r.Group(func(r chi.Router) {
			requireAdmin(r)
			r.Put("/penalty-settings", h.Penalty.SaveSettings)
		})
	})

	router.Route("/referees", func(r chi.Router) {
		r.Get("/{refereeID}", h.Referee.Get)

		r.Group(func(r chi.Router) {
			requireAdmin(r)
			r.Put("/{refereeID}/capabilities", h.Referee.UpdateCapabilities)
		})
	})

	router.Route("/cases", func(r chi.Router) {
		// Открыть кейс может участник матча, без токена судьи.
		r.Post("/", h.Referee.OpenCase)
		r.Get("/{caseID}", h.Referee.GetCase)

		r.Group(func(r chi.Router) {
			requireReferee(r)
			r.Post("/{caseID}/take", h.Referee.TakeCase)
			r.Post("/{caseID}/start", h.Referee.StartResolution)
			r.Post("/{caseID}/resolve", h.Referee.ResolveCase)
			r.Post("/{caseID}/close", h.Referee.CloseCase)
			r.Post("/{caseID}/evidence", h.Referee.UploadEvidence)
		})
	})

	router.Get("/ws/matches/{matchID}", h.WebSocket.ServeMatch)

	return router
}
