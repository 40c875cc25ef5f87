package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"quiz-platform/internal/app"
	"quiz-platform/internal/auth"
	"quiz-platform/internal/domain"
	"quiz-platform/internal/infra/postgres"
	infraredis "quiz-platform/internal/infra/redis"
)

type stack struct {
	scoring  *app.ScoringService
	catalog  *app.CatalogService
	accounts *app.AccountService
	scores   *app.ScoreService
	activity *app.ActivityService
	relay    *infraredis.ScoreFeed
}

func TestScoringEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	s := newStack(t, ctx, pgURL, redisURL)
	go func() { _ = s.relay.Run(ctx) }()
	select {
	case <-s.relay.Ready():
	case <-time.After(10 * time.Second):
		t.Fatalf("score relay did not subscribe")
	}

	category, err := s.catalog.CreateCategory(ctx, "", "Math", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	q, err := s.catalog.CreateQuestion(ctx, "", domain.Question{
		Text: "2+2?", OptionA: "3", OptionB: "4", OptionC: "5",
		CorrectLabel: domain.LabelB, CategoryID: category.ID, Status: domain.StatusActive,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	session, err := s.accounts.UserLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("user login: %v", err)
	}
	userID := session.User.ID

	updates, unsubscribe := s.relay.Subscribe(userID)
	defer unsubscribe()

	first, err := s.scoring.SubmitAnswer(ctx, domain.Submission{UserID: userID, QuestionID: q.ID, ChosenLabel: domain.LabelB})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !first.Answer.IsCorrect || first.Score.Correct != 1 || first.Score.Percentage != 100 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	select {
	case got := <-updates:
		if got.ID != first.Score.ID || got.Total != 1 {
			t.Fatalf("unexpected relayed score: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("score update was not relayed through redis")
	}

	wrong, err := s.scoring.SubmitAnswer(ctx, domain.Submission{UserID: userID, QuestionID: q.ID, ChosenLabel: domain.LabelA})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if wrong.Score.ID != first.Score.ID || wrong.Score.Total != 2 || wrong.Score.Percentage != 50 {
		t.Fatalf("unexpected second result: %+v", wrong.Score)
	}

	corrected, err := s.scoring.CorrectAnswer(ctx, wrong.Answer.ID, true, "admin-1")
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if corrected.Score.Correct != 2 || corrected.Score.Incorrect != 0 || corrected.Score.Percentage != 100 {
		t.Fatalf("unexpected corrected score: %+v", corrected.Score)
	}
	if corrected.Answer.ReviewerID == nil || *corrected.Answer.ReviewerID != "admin-1" {
		t.Fatalf("expected reviewer on corrected answer, got %+v", corrected.Answer)
	}

	if _, err := s.scoring.SubmitAnswer(ctx, domain.Submission{UserID: userID, QuestionID: q.ID, ChosenLabel: "D"}); err == nil {
		t.Fatalf("expected invalid label to be rejected")
	}
	if _, err := s.scoring.SubmitAnswer(ctx, domain.Submission{UserID: userID, QuestionID: "missing", ChosenLabel: domain.LabelA}); err == nil {
		t.Fatalf("expected unknown question to be rejected")
	}

	n, err := s.scoring.ReconcileScores(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one record reconciled, got %d", n)
	}
	scores, err := s.scores.UserScores(ctx, userID)
	if err != nil {
		t.Fatalf("user scores: %v", err)
	}
	if len(scores) != 1 || scores[0].Total != 2 || !scores[0].Consistent() {
		t.Fatalf("unexpected scores after reconcile: %+v", scores)
	}

	logs, err := s.activity.List(ctx, app.ActivityFilter{UserID: userID, Action: domain.ActionSubmit})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 submit entries, got %d", len(logs))
	}
}

func TestConcurrentFirstSubmissionsCreateOneRecord(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	s := newStack(t, ctx, pgURL, redisURL)
	category, err := s.catalog.CreateCategory(ctx, "", "History", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	q, err := s.catalog.CreateQuestion(ctx, "", domain.Question{
		Text: "Year?", OptionA: "1066", OptionB: "1215", OptionC: "1492",
		CorrectLabel: domain.LabelA, CategoryID: category.ID, Status: domain.StatusActive,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		label := domain.LabelA
		if i%2 == 1 {
			label = domain.LabelC
		}
		wg.Add(1)
		go func(label domain.Label) {
			defer wg.Done()
			_, err := s.scoring.SubmitAnswer(ctx, domain.Submission{UserID: "u-race", QuestionID: q.ID, ChosenLabel: label})
			errs <- err
		}(label)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	records, err := s.scores.ListScores(ctx, "", app.ScoreFilter{UserID: "u-race", CategoryID: category.ID})
	if err != nil {
		t.Fatalf("list scores: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one score record, got %d", len(records))
	}
	rec := records[0]
	if rec.Total != workers || rec.Correct != workers/2 || rec.Percentage != 50 || !rec.Consistent() {
		t.Fatalf("unexpected score after concurrent submissions: %+v", rec)
	}
}

func TestScoreKeyLocksDoNotAliasAcrossParts(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := postgres.NewScoringStore(pool)

	// Joined with a separator these two keys read the same.
	held := domain.ScoreKey{UserID: "a|b", CategoryID: "c"}
	other := domain.ScoreKey{UserID: "a", CategoryID: "b|c"}

	locked := make(chan struct{})
	release := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- store.RunInTx(ctx, held, func(context.Context, app.ScoringTx) error {
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer func() {
		close(release)
		if err := <-holderDone; err != nil {
			t.Errorf("holder tx: %v", err)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.RunInTx(waitCtx, other, func(context.Context, app.ScoringTx) error { return nil }); err != nil {
		t.Fatalf("distinct key blocked behind held lock: %v", err)
	}
}

func newStack(t *testing.T, ctx context.Context, pgURL, redisURL string) *stack {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := postgres.OpenBun(pgURL)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	catalogStore := postgres.NewCatalogStore(db)
	accountStore := postgres.NewAccountStore(db)
	scoringStore := postgres.NewScoringStore(pool)
	cache := infraredis.NewQuestionCache(redisClient, postgres.NewQuestionLoader(pool), 5*time.Minute, log)
	relay := infraredis.NewScoreFeed(redisClient, "quiz:scores:test", app.NewScoreFeed(), log)
	activity := app.NewActivityService(accountStore, log)

	return &stack{
		scoring: app.NewScoringService(cache, scoringStore, scoringStore,
			app.WithAuditor(activity), app.WithNotifier(relay), app.WithLogger(log)),
		catalog:  app.NewCatalogService(catalogStore, catalogStore, cache, activity),
		accounts: app.NewAccountService(accountStore, accountStore, auth.NewIssuer("integration", time.Hour, time.Hour), activity),
		scores:   app.NewScoreService(scoringStore, accountStore, catalogStore, scoringStore, activity, relay),
		activity: activity,
		relay:    relay,
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(context.Background())
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(context.Background())
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
