// Package server wires stores, services, the change feed and HTTP routes.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/email"
	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/handler"
	"github.com/dukerupert/chorely/internal/household"
	"github.com/dukerupert/chorely/internal/middleware"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/push"
	"github.com/dukerupert/chorely/internal/store"
	ws "github.com/dukerupert/chorely/internal/websocket"
)

// Options carries the external collaborators the server needs.
type Options struct {
	Verifier       *auth.TokenVerifier
	Mailer         *email.Client // nil disables invites
	Expo           push.ExpoConfig
	WebPush        *push.WebPush // nil disables browser push
	Feed           feed.Config
	AllowedOrigins []string
	JoinRateLimit  int
}

type Server struct {
	db          *sql.DB
	opts        Options
	feed        *feed.Feed
	hub         *ws.Hub
	households  *household.Service
	users       *store.UserStore
	meH         *handler.MeHandler
	householdH  *handler.HouseholdHandler
	choreH      *handler.ChoreHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	if opts.JoinRateLimit <= 0 {
		opts.JoinRateLimit = 10
	}

	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	choreStore := store.NewChoreStore(db)
	activityStore := store.NewActivityStore(db)
	pushStore := store.NewPushStore(db)

	f := feed.New(opts.Feed, logger.With("component", "feed"))
	hub := ws.NewHub(logger.With("component", "websocket"))

	dispatcher := push.NewDispatcher(
		push.NewExpo(opts.Expo, logger.With("component", "expo")),
		opts.WebPush,
		pushStore,
		userStore,
		logger.With("component", "push"),
	)
	notifier := notify.New(householdStore, userStore, activityStore, pushStore, dispatcher, logger.With("component", "notify"))
	notifier.Register(f)
	f.SubscribeAll("websocket", hub.HandleEvent)

	var mailer household.Mailer
	if opts.Mailer != nil {
		mailer = opts.Mailer
	}
	householdSvc := household.NewService(householdStore, userStore, mailer, f, logger.With("component", "household"))
	choreSvc := chore.NewService(choreStore, activityStore, householdStore, userStore, f, logger.With("component", "chore"))

	var publicKey string
	if opts.WebPush != nil {
		publicKey = opts.WebPush.VAPIDPublicKey()
	}

	return &Server{
		db:          db,
		opts:        opts,
		feed:        f,
		hub:         hub,
		households:  householdSvc,
		users:       userStore,
		meH:         handler.NewMeHandler(userStore, householdSvc, f, logger.With("component", "me")),
		householdH:  handler.NewHouseholdHandler(householdSvc, logger.With("component", "household_handler")),
		choreH:      handler.NewChoreHandler(choreSvc, logger.With("component", "chore_handler")),
		pushH:       handler.NewPushHandler(pushStore, householdSvc, publicKey, logger.With("component", "push_handler")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Start launches the feed workers and the rate limiter janitor.
func (s *Server) Start(ctx context.Context) {
	s.feed.Start(ctx)
	s.rateLimiter.StartCleanup(ctx, 5*time.Minute)
}

// Drain stops accepting events and waits for queued ones to be delivered.
func (s *Server) Drain(ctx context.Context) error {
	return s.feed.Stop(ctx)
}

// Hub returns the live subscription hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))

	r.Get("/health", s.healthHandler)

	requireAuth := middleware.RequireAuth(s.opts.Verifier, s.users, s.logger.With("component", "auth"))

	r.With(requireAuth).Get("/ws", ws.HandleWebSocket(s.hub, s.households, s.opts.AllowedOrigins, s.logger.With("component", "websocket")))

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(chimw.Timeout(30 * time.Second))

		r.Get("/me", s.meH.Get)
		r.Put("/me", s.meH.Update)
		r.Put("/me/push-token", s.meH.SetPushToken)
		r.Delete("/me/push-token", s.meH.ClearPushToken)
		r.Put("/me/active-household", s.meH.SetActiveHousehold)

		r.Get("/households", s.householdH.List)
		r.Post("/households", s.householdH.Create)
		r.With(middleware.RateLimit(s.rateLimiter, middleware.ByUser, s.opts.JoinRateLimit, time.Minute)).
			Post("/households/join", s.householdH.Join)

		r.Route("/households/{id}", func(r chi.Router) {
			r.Get("/", s.householdH.Get)
			r.Put("/", s.householdH.Rename)
			r.Delete("/", s.householdH.Delete)
			r.Post("/leave", s.householdH.Leave)
			r.Delete("/members/{user_id}", s.householdH.RemoveMember)
			r.Put("/members/{user_id}/role", s.householdH.SetRole)
			r.Put("/profile", s.householdH.SetProfile)
			r.Post("/invite", s.householdH.Invite)
			r.Post("/reset", s.householdH.ResetLeaderboard)

			r.Get("/chores", s.choreH.List)
			r.Post("/chores", s.choreH.Create)
			r.Delete("/chores", s.choreH.DeleteAll)
			r.Get("/activities", s.choreH.Activities)
			r.Get("/leaderboard", s.choreH.Leaderboard)
		})

		r.Put("/chores/{id}", s.choreH.Update)
		r.Delete("/chores/{id}", s.choreH.Delete)
		r.Post("/chores/{id}/claim", s.choreH.Claim)
		r.Post("/chores/{id}/complete", s.choreH.Complete)
		r.Post("/chores/{id}/reset", s.choreH.Reset)

		r.Post("/push/subscribe", s.pushH.Subscribe)
		r.Delete("/push/subscriptions/{id}", s.pushH.Unsubscribe)
		r.Get("/push/vapid-key", s.pushH.VAPIDKey)
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
