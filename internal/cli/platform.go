package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"quiz-platform/internal/app"
	"quiz-platform/internal/auth"
	"quiz-platform/internal/config"
	"quiz-platform/internal/infra/memory"
	"quiz-platform/internal/infra/postgres"
	redisinfra "quiz-platform/internal/infra/redis"
	"quiz-platform/internal/logging"
	transport "quiz-platform/internal/transport/http"
)

// platform is the fully wired service graph. Postgres and Redis are optional; without them the
// in-process stores and feed are used.
type platform struct {
	cfg      config.Config
	log      *slog.Logger
	scoring  *app.ScoringService
	catalog  *app.CatalogService
	accounts *app.AccountService
	scores   *app.ScoreService
	activity *app.ActivityService
	issuer   *auth.Issuer
	feed     transport.ScoreSubscriber
	relay    *redisinfra.ScoreFeed

	closers []func()
}

// cachedQuestions is a question lookup that content edits can invalidate.
type cachedQuestions interface {
	app.QuestionStore
	app.QuestionCache
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format), nil
}

func buildPlatform(ctx context.Context, cfg config.Config, log *slog.Logger) (*platform, error) {
	p := &platform{cfg: cfg, log: log}

	var (
		loader     app.QuestionStore
		categories app.CategoryStore
		questions  app.QuestionRepository
		users      app.UserStore
		admins     app.AdminStore
		activity   app.ActivityStore
		answers    app.AnswerStore
		tx         app.TxRunner
		scoreRepo  app.ScoreRepository
	)

	if cfg.Postgres.URL != "" {
		db := postgres.OpenBun(cfg.Postgres.URL)
		p.closers = append(p.closers, func() { _ = db.Close() })
		if err := applyMigrations(ctx, db, log); err != nil {
			p.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		p.closers = append(p.closers, pool.Close)

		catalogStore := postgres.NewCatalogStore(db)
		accountStore := postgres.NewAccountStore(db)
		scoringStore := postgres.NewScoringStore(pool)
		loader = postgres.NewQuestionLoader(pool)
		categories, questions = catalogStore, catalogStore
		users, admins, activity = accountStore, accountStore, accountStore
		answers, tx, scoreRepo = scoringStore, scoringStore, scoringStore
		log.Info("using postgres storage")
	} else {
		catalogStore := memory.NewCatalogStore()
		accountStore := memory.NewAccountStore()
		scoringStore := memory.NewScoringStore()
		loader = catalogStore
		categories, questions = catalogStore, catalogStore
		users, admins, activity = accountStore, accountStore, accountStore
		answers, tx, scoreRepo = scoringStore, scoringStore, scoringStore
		log.Warn("postgres url not configured, using in-memory storage")
	}

	questionTTL := config.TTLDuration(cfg.Question.TTL, time.Minute)
	local := app.NewScoreFeed()
	var (
		cache    cachedQuestions
		notifier app.ScoreNotifier = local
	)
	p.feed = local
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		p.closers = append(p.closers, func() { _ = client.Close() })
		cache = redisinfra.NewQuestionCache(client, loader, config.TTLDuration(cfg.Redis.TTL, questionTTL), log)
		p.relay = redisinfra.NewScoreFeed(client, cfg.Redis.Channel, local, log)
		notifier = p.relay
		p.feed = p.relay
		log.Info("using redis question cache and score relay", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	} else {
		cache = memory.NewQuestionCache(loader, questionTTL)
	}

	p.issuer = auth.NewIssuer(cfg.Auth.JWTSecret,
		config.TTLDuration(cfg.Auth.AdminTTL, 12*time.Hour),
		config.TTLDuration(cfg.Auth.UserTTL, 7*24*time.Hour))
	p.activity = app.NewActivityService(activity, log)
	p.scoring = app.NewScoringService(cache, answers, tx,
		app.WithAuditor(p.activity),
		app.WithNotifier(notifier),
		app.WithLogger(log),
	)
	p.catalog = app.NewCatalogService(categories, questions, cache, p.activity)
	p.accounts = app.NewAccountService(users, admins, p.issuer, p.activity)
	p.scores = app.NewScoreService(scoreRepo, users, categories, tx, p.activity, notifier)
	return p, nil
}

// ensureDefaultAdmin seeds the configured admin account.
func (p *platform) ensureDefaultAdmin(ctx context.Context) error {
	if p.cfg.Admin.Email == "" || p.cfg.Admin.Password == "" {
		return nil
	}
	created, err := p.accounts.EnsureAdmin(ctx, p.cfg.Admin.Name, p.cfg.Admin.Email, p.cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("ensure default admin: %w", err)
	}
	if created {
		p.log.Info("default admin created", "email", p.cfg.Admin.Email)
	}
	return nil
}

func (p *platform) deps() transport.Deps {
	return transport.Deps{
		Scoring:     p.scoring,
		Catalog:     p.catalog,
		Accounts:    p.accounts,
		Scores:      p.scores,
		Activity:    p.activity,
		Tokens:      p.issuer,
		Feed:        p.feed,
		Log:         p.log,
		CORSOrigins: p.cfg.Server.CORSOrigins,
	}
}

// Close releases connections in reverse order of acquisition.
func (p *platform) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

func applyMigrations(ctx context.Context, db *bun.DB, log *slog.Logger) error {
	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) == 0 {
		log.Info("database schema up to date")
		return nil
	}
	log.Info("migrations applied", "migrations", applied)
	return nil
}
