package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quiz-platform/internal/app"
	"quiz-platform/internal/auth"
	"quiz-platform/internal/domain"
)

type submitRequest struct {
	UserID      string `json:"userId"`
	QuestionID  string `json:"questionId" validate:"required"`
	ChosenLabel string `json:"chosenLabel" validate:"required"`
}

type correctionRequest struct {
	IsCorrect *bool `json:"isCorrect" validate:"required"`
}

type scoreCreateRequest struct {
	UserID     string `json:"userId" validate:"required"`
	CategoryID string `json:"categoryId"`
	Correct    int    `json:"correct" validate:"min=0"`
	Incorrect  int    `json:"incorrect" validate:"min=0"`
}

type scoreUpdateRequest struct {
	Correct   int `json:"correct" validate:"min=0"`
	Incorrect int `json:"incorrect" validate:"min=0"`
}

// submitAnswer is the answer intake endpoint. Users may only answer as themselves.
func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	subject := auth.SubjectFromContext(r.Context())
	if req.UserID == "" {
		req.UserID = subject
	}
	if req.UserID != subject {
		h.writeError(w, r, domain.ErrForbidden)
		return
	}

	result, err := h.scoring.SubmitAnswer(r.Context(), domain.Submission{
		UserID:      req.UserID,
		QuestionID:  req.QuestionID,
		ChosenLabel: domain.Label(req.ChosenLabel),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// correctAnswer is the administrative correction endpoint; the reviewer is the calling admin.
func (h *Handler) correctAnswer(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.scoring.CorrectAnswer(r.Context(), chi.URLParam(r, "id"), *req.IsCorrect, auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listAnswers(w http.ResponseWriter, r *http.Request) {
	answers, err := h.scoring.ListAnswers(r.Context(), app.AnswerFilter{UserID: r.URL.Query().Get("userId")})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.activity.Record(r.Context(), domain.ActivityLog{
		AdminID:     domain.Ref(auth.SubjectFromContext(r.Context())),
		Action:      domain.ActionView,
		Table:       "answers",
		Description: "listed answers",
	})
	writeJSON(w, http.StatusOK, answers)
}

func (h *Handler) listScores(w http.ResponseWriter, r *http.Request) {
	filter := app.ScoreFilter{
		UserID:     r.URL.Query().Get("userId"),
		CategoryID: r.URL.Query().Get("categoryId"),
	}
	scores, err := h.scores.ListScores(r.Context(), auth.SubjectFromContext(r.Context()), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (h *Handler) listUserScores(w http.ResponseWriter, r *http.Request) {
	scores, err := h.scores.UserScores(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (h *Handler) createScore(w http.ResponseWriter, r *http.Request) {
	var req scoreCreateRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	score, err := h.scores.CreateScore(r.Context(), auth.SubjectFromContext(r.Context()), app.ScoreTally{
		UserID:     req.UserID,
		CategoryID: req.CategoryID,
		Correct:    req.Correct,
		Incorrect:  req.Incorrect,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, score)
}

func (h *Handler) updateScore(w http.ResponseWriter, r *http.Request) {
	var req scoreUpdateRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	score, err := h.scores.UpdateScore(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), req.Correct, req.Incorrect)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := app.ActivityFilter{
		AdminID: q.Get("adminId"),
		UserID:  q.Get("userId"),
		Action:  domain.ActivityAction(q.Get("action")),
		Table:   q.Get("table"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.writeError(w, r, domain.Invalid("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}
	logs, err := h.activity.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
