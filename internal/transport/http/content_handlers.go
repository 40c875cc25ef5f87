package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quiz-platform/internal/app"
	"quiz-platform/internal/auth"
	"quiz-platform/internal/domain"
)

type categoryRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

type questionRequest struct {
	Text         string `json:"text" validate:"required"`
	OptionA      string `json:"optionA" validate:"required"`
	OptionB      string `json:"optionB" validate:"required"`
	OptionC      string `json:"optionC" validate:"required"`
	CorrectLabel string `json:"correctLabel" validate:"required"`
	ImageURL     string `json:"imageUrl" validate:"omitempty,url"`
	CategoryID   string `json:"categoryId" validate:"required"`
	Status       string `json:"status" validate:"omitempty,oneof=draft active inactive"`
}

func (q questionRequest) toDomain() domain.Question {
	return domain.Question{
		Text:         q.Text,
		OptionA:      q.OptionA,
		OptionB:      q.OptionB,
		OptionC:      q.OptionC,
		CorrectLabel: domain.Label(q.CorrectLabel),
		ImageURL:     q.ImageURL,
		CategoryID:   q.CategoryID,
		Status:       domain.QuestionStatus(q.Status),
	}
}

// userCategory and userQuestion are the quiz taker's views; the correct label never leaves the server.
type userCategory struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type userQuestion struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	OptionA    string `json:"optionA"`
	OptionB    string `json:"optionB"`
	OptionC    string `json:"optionC"`
	ImageURL   string `json:"imageUrl"`
	CategoryID string `json:"categoryId"`
}

type userRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) listUserCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context(), "")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]userCategory, 0, len(categories))
	for _, c := range categories {
		out = append(out, userCategory{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	category, err := h.catalog.CreateCategory(r.Context(), auth.SubjectFromContext(r.Context()), req.Name, req.ImageURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	category, err := h.catalog.UpdateCategory(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), req.Name, req.ImageURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	filter := app.QuestionFilter{
		CategoryID: r.URL.Query().Get("categoryId"),
		Status:     domain.QuestionStatus(r.URL.Query().Get("status")),
	}
	questions, err := h.catalog.ListQuestions(r.Context(), auth.SubjectFromContext(r.Context()), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) listUserQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.catalog.ListActiveQuestions(r.Context(), r.URL.Query().Get("categoryId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]userQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, userQuestion{
			ID:         q.ID,
			Text:       q.Text,
			OptionA:    q.OptionA,
			OptionB:    q.OptionB,
			OptionC:    q.OptionC,
			ImageURL:   q.ImageURL,
			CategoryID: q.CategoryID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.catalog.GetQuestion(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	question, err := h.catalog.CreateQuestion(r.Context(), auth.SubjectFromContext(r.Context()), req.toDomain())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	question, err := h.catalog.UpdateQuestion(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), req.toDomain())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteQuestion(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.GetUser(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.accounts.RenameUser(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteUser(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
