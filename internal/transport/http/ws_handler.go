package http

import (
	"context"
	"encoding/json"
	"net/http"

	"quiz-platform/internal/app"
	"quiz-platform/internal/auth"
	"quiz-platform/internal/domain"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID  string `json:"questionId"`
	ChosenLabel string `json:"chosenLabel"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeScoresWS streams score updates. Users see their own records and may submit answers over
// the socket; admins see every record. The token comes from ?token= or the Authorization header.
func (h *Handler) ServeScoresWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r)
	}
	if token == "" {
		h.writeError(w, r, domain.ErrUnauthorized)
		return
	}
	p, err := h.tokens.Parse(token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx := auth.WithPrincipal(r.Context(), p)

	snapshot, err := h.snapshot(ctx, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	topic := p.ID
	if p.Role == auth.RoleAdmin {
		topic = app.AllUsers
	}
	updates, cancel := h.feed.Subscribe(topic)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", "subject", p.ID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "score", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "snapshot", Payload: snapshot}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			if p.Role != auth.RoleUser {
				send <- errorMessage(domain.ErrForbidden.Error())
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload")
				continue
			}
			result, err := h.scoring.SubmitAnswer(ctx, domain.Submission{
				UserID:      p.ID,
				QuestionID:  payload.QuestionID,
				ChosenLabel: domain.Label(payload.ChosenLabel),
			})
			if err != nil {
				if statusFor(err) == http.StatusInternalServerError {
					h.log.Error("ws submit failed", "subject", p.ID, "error", err)
					send <- errorMessage("internal server error")
					continue
				}
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		default:
			send <- errorMessage("unsupported message type")
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *Handler) snapshot(ctx context.Context, p auth.Principal) ([]domain.ScoreRecord, error) {
	if p.Role == auth.RoleAdmin {
		return h.scores.ListScores(ctx, "", app.ScoreFilter{})
	}
	return h.scores.UserScores(ctx, p.ID)
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
