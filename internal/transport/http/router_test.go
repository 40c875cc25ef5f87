package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-platform/internal/app"
	"quiz-platform/internal/auth"
	"quiz-platform/internal/domain"
	"quiz-platform/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	issuer   *auth.Issuer
	catalog  *memory.CatalogStore
	accounts *memory.AccountStore
	feed     *app.ScoreFeed
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalog := memory.NewCatalogStore()
	scoring := memory.NewScoringStore()
	accounts := memory.NewAccountStore()
	cache := memory.NewQuestionCache(catalog, time.Minute)
	issuer := auth.NewIssuer("test-secret", time.Hour, time.Hour)
	feed := app.NewScoreFeed()
	activity := app.NewActivityService(accounts, log)

	_, err := catalog.CreateCategory(ctx, domain.Category{ID: "c1", Name: "Math", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = catalog.CreateQuestion(ctx, domain.Question{
		ID: "q1", Text: "2+2?", OptionA: "3", OptionB: "4", OptionC: "5",
		CorrectLabel: domain.LabelB, CategoryID: "c1", Status: domain.StatusActive, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	accountService := app.NewAccountService(accounts, accounts, issuer, activity)
	_, err = accountService.CreateAdmin(ctx, "Root", "root@example.com", "secret123")
	require.NoError(t, err)

	router := NewRouter(Deps{
		Scoring:  app.NewScoringService(cache, scoring, scoring, app.WithAuditor(activity), app.WithNotifier(feed), app.WithLogger(log)),
		Catalog:  app.NewCatalogService(catalog, catalog, cache, activity),
		Accounts: accountService,
		Scores:   app.NewScoreService(scoring, accounts, catalog, scoring, activity, feed),
		Activity: activity,
		Tokens:   issuer,
		Feed:     feed,
		Log:      log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, issuer: issuer, catalog: catalog, accounts: accounts, feed: feed}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (s *testServer) userLogin(t *testing.T, name string) app.UserSession {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/auth/user/login", "", map[string]string{"name": name})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var session app.UserSession
	require.NoError(t, json.Unmarshal(body, &session))
	require.NotEmpty(t, session.Token)
	return session
}

func (s *testServer) adminLogin(t *testing.T) app.AdminSession {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/auth/admin/login", "", map[string]string{
		"email": "ROOT@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var session app.AdminSession
	require.NoError(t, json.Unmarshal(body, &session))
	return session
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, body := srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := srv.do(t, http.MethodPost, "/api/auth/admin/login", "", map[string]string{
		"email": "root@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/auth/admin/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoleGuards(t *testing.T) {
	srv := newTestServer(t)
	user := srv.userLogin(t, "alice")
	admin := srv.adminLogin(t)

	resp, _ := srv.do(t, http.MethodGet, "/api/scores", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/scores", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/scores", user.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/answers/submit", admin.Token, map[string]string{
		"questionId": "q1", "chosenLabel": "B",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubmitAnswer(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.userLogin(t, "alice")

	resp, body := srv.do(t, http.MethodPost, "/api/answers/submit", alice.Token, map[string]string{
		"questionId": "q1", "chosenLabel": "B",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var result domain.SubmissionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Answer.IsCorrect)
	assert.Equal(t, alice.User.ID, result.Answer.UserID)
	assert.Equal(t, 1, result.Score.Correct)
	assert.Equal(t, 100, result.Score.Percentage)

	resp, body = srv.do(t, http.MethodPost, "/api/answers/submit", alice.Token, map[string]string{
		"userId": alice.User.ID, "questionId": "q1", "chosenLabel": "A",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 2, result.Score.Total)
	assert.Equal(t, 50, result.Score.Percentage)

	resp, _ = srv.do(t, http.MethodPost, "/api/answers/submit", alice.Token, map[string]string{
		"userId": "someone-else", "questionId": "q1", "chosenLabel": "A",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/answers/submit", alice.Token, map[string]string{
		"questionId": "q1", "chosenLabel": "D",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/answers/submit", alice.Token, map[string]string{
		"questionId": "nope", "chosenLabel": "A",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = srv.do(t, http.MethodGet, "/api/scores/user", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scores []domain.ScoreRecord
	require.NoError(t, json.Unmarshal(body, &scores))
	require.Len(t, scores, 1)
	assert.Equal(t, 2, scores[0].Total)
}

func TestCorrectAnswerRecomputesScore(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.userLogin(t, "alice")
	admin := srv.adminLogin(t)

	_, body := srv.do(t, http.MethodPost, "/api/answers/submit", alice.Token, map[string]string{
		"questionId": "q1", "chosenLabel": "A",
	})
	var submitted domain.SubmissionResult
	require.NoError(t, json.Unmarshal(body, &submitted))
	require.False(t, submitted.Answer.IsCorrect)

	resp, _ := srv.do(t, http.MethodPut, "/api/answers/"+submitted.Answer.ID+"/correction", admin.Token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "isCorrect is required")

	resp, body = srv.do(t, http.MethodPut, "/api/answers/"+submitted.Answer.ID+"/correction", admin.Token, map[string]any{
		"isCorrect": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var corrected domain.CorrectionResult
	require.NoError(t, json.Unmarshal(body, &corrected))
	assert.True(t, corrected.Answer.IsCorrect)
	require.NotNil(t, corrected.Answer.ReviewerID)
	assert.Equal(t, admin.Admin.ID, *corrected.Answer.ReviewerID)
	assert.Equal(t, 1, corrected.Score.Correct)
	assert.Equal(t, 0, corrected.Score.Incorrect)
	assert.Equal(t, 100, corrected.Score.Percentage)

	resp, _ = srv.do(t, http.MethodPut, "/api/answers/missing/correction", admin.Token, map[string]any{"isCorrect": false})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = srv.do(t, http.MethodGet, "/api/answers?userId="+alice.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var answers []domain.AnswerRecord
	require.NoError(t, json.Unmarshal(body, &answers))
	assert.Len(t, answers, 1)
}

func TestUserQuestionsHideCorrectLabel(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.userLogin(t, "alice")

	resp, _ := srv.do(t, http.MethodGet, "/api/questions/user", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := srv.do(t, http.MethodGet, "/api/questions/user?categoryId=c1", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), "correctLabel")
	assert.Contains(t, string(body), `"id":"q1"`)

	resp, body = srv.do(t, http.MethodGet, "/api/categories/user", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"Math"`)
}

func TestCatalogAdministration(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.adminLogin(t)

	resp, body := srv.do(t, http.MethodPost, "/api/categories", admin.Token, map[string]string{"name": "History"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var category domain.Category
	require.NoError(t, json.Unmarshal(body, &category))

	resp, body = srv.do(t, http.MethodPost, "/api/questions", admin.Token, map[string]string{
		"text": "Year?", "optionA": "1066", "optionB": "1215", "optionC": "1492",
		"correctLabel": "A", "categoryId": category.ID, "status": "active",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var q domain.Question
	require.NoError(t, json.Unmarshal(body, &q))

	resp, _ = srv.do(t, http.MethodPost, "/api/questions", admin.Token, map[string]string{
		"text": "Year?", "optionA": "1066", "optionB": "1215", "optionC": "1492",
		"correctLabel": "A", "categoryId": category.ID, "status": "archived",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodDelete, "/api/categories/"+category.ID, admin.Token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodDelete, "/api/questions/"+q.ID, admin.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodDelete, "/api/categories/"+category.ID, admin.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = srv.do(t, http.MethodGet, "/api/logs?action=DELETE", admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []domain.ActivityLog
	require.NoError(t, json.Unmarshal(body, &logs))
	assert.Len(t, logs, 2)

	resp, _ = srv.do(t, http.MethodGet, "/api/logs?limit=zero", admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminScoreOverrides(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.userLogin(t, "alice")
	admin := srv.adminLogin(t)

	resp, body := srv.do(t, http.MethodPost, "/api/scores", admin.Token, map[string]any{
		"userId": alice.User.ID, "categoryId": "c1", "correct": 3, "incorrect": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var score domain.ScoreRecord
	require.NoError(t, json.Unmarshal(body, &score))
	assert.Equal(t, 75, score.Percentage)

	resp, _ = srv.do(t, http.MethodPost, "/api/scores", admin.Token, map[string]any{
		"userId": alice.User.ID, "categoryId": "c1", "correct": 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = srv.do(t, http.MethodPut, "/api/scores/"+score.ID, admin.Token, map[string]any{"correct": 1, "incorrect": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &score))
	assert.Equal(t, 3, score.Total)
	assert.Equal(t, 33, score.Percentage)

	resp, _ = srv.do(t, http.MethodPut, "/api/scores/"+score.ID, admin.Token, map[string]any{"correct": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = srv.do(t, http.MethodGet, "/api/scores?userId="+alice.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), score.ID))
}

func TestUserAdministration(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.userLogin(t, "alice")
	srv.userLogin(t, "bob")
	admin := srv.adminLogin(t)

	resp, _ := srv.do(t, http.MethodPut, "/api/users/"+alice.User.ID, admin.Token, map[string]string{"name": "bob"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := srv.do(t, http.MethodPut, "/api/users/"+alice.User.ID, admin.Token, map[string]string{"name": "alicia"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "alicia")

	resp, _ = srv.do(t, http.MethodDelete, "/api/users/"+alice.User.ID, admin.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodGet, "/api/users/"+alice.User.ID, admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
