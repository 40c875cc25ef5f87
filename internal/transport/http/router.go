package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"quiz-platform/internal/app"
	"quiz-platform/internal/auth"
	"quiz-platform/internal/domain"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (auth.Principal, error)
}

// ScoreSubscriber streams score updates; implemented by the in-process and Redis-relayed feeds.
type ScoreSubscriber interface {
	Subscribe(userID string) (<-chan domain.ScoreRecord, func())
}

// Deps are the use cases the HTTP layer serves.
type Deps struct {
	Scoring     *app.ScoringService
	Catalog     *app.CatalogService
	Accounts    *app.AccountService
	Scores      *app.ScoreService
	Activity    *app.ActivityService
	Tokens      TokenParser
	Feed        ScoreSubscriber
	Log         *slog.Logger
	CORSOrigins []string
}

// Handler holds the REST and websocket endpoints.
type Handler struct {
	scoring  *app.ScoringService
	catalog  *app.CatalogService
	accounts *app.AccountService
	scores   *app.ScoreService
	activity *app.ActivityService
	tokens   TokenParser
	feed     ScoreSubscriber
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		scoring:  d.Scoring,
		catalog:  d.Catalog,
		accounts: d.Accounts,
		scores:   d.Scores,
		activity: d.Activity,
		tokens:   d.Tokens,
		feed:     d.Feed,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// NewRouter wires every route behind the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	h := NewHandler(d)
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(h.log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws/scores", h.ServeScoresWS)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/admin/login", h.adminLogin)
		api.Post("/auth/user/login", h.userLogin)

		api.Group(func(pr chi.Router) {
			pr.Use(h.authenticate)

			pr.Group(func(admin chi.Router) {
				admin.Use(h.requireRole(auth.RoleAdmin))

				admin.Get("/categories", h.listCategories)
				admin.Post("/categories", h.createCategory)
				admin.Put("/categories/{id}", h.updateCategory)
				admin.Delete("/categories/{id}", h.deleteCategory)

				admin.Get("/questions", h.listQuestions)
				admin.Post("/questions", h.createQuestion)
				admin.Get("/questions/{id}", h.getQuestion)
				admin.Put("/questions/{id}", h.updateQuestion)
				admin.Delete("/questions/{id}", h.deleteQuestion)

				admin.Get("/users", h.listUsers)
				admin.Get("/users/{id}", h.getUser)
				admin.Put("/users/{id}", h.updateUser)
				admin.Delete("/users/{id}", h.deleteUser)

				admin.Get("/answers", h.listAnswers)
				admin.Put("/answers/{id}/correction", h.correctAnswer)

				admin.Get("/scores", h.listScores)
				admin.Post("/scores", h.createScore)
				admin.Put("/scores/{id}", h.updateScore)

				admin.Get("/logs", h.listLogs)
			})

			pr.Group(func(user chi.Router) {
				user.Use(h.requireRole(auth.RoleUser))

				user.Get("/categories/user", h.listUserCategories)
				user.Get("/questions/user", h.listUserQuestions)
				user.Post("/answers/submit", h.submitAnswer)
				user.Get("/scores/user", h.listUserScores)
			})
		})
	})
	return r
}
