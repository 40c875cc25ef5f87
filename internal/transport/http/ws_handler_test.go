package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestScoresWebSocketAnswerFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.userLogin(t, "alice")

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/scores?token=" + alice.Token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The snapshot is sent before anything else.
	readNext(t, conn, "snapshot")

	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId":  "q1",
			"chosenLabel": "B",
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	answerSeen, scoreSeen := false, false
	for i := 0; i < 2; i++ {
		typ, payload := readNext(t, conn, "")
		switch typ {
		case "answerResult":
			answerSeen = true
			score, _ := payload["score"].(map[string]any)
			if score["correct"] != float64(1) {
				t.Fatalf("expected correct=1 in answerResult, got %v", score["correct"])
			}
		case "score":
			scoreSeen = true
		}
	}
	if !answerSeen || !scoreSeen {
		t.Fatalf("expected answerResult and score, got answerResult=%v score=%v", answerSeen, scoreSeen)
	}

	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"questionId": "q1", "chosenLabel": "Z"}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readNext(t, conn, "error")
}

func TestScoresWebSocketAdminReceivesEveryUser(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.adminLogin(t)
	alice := srv.userLogin(t, "alice")

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/scores"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+admin.Token)
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(t, conn, "snapshot")

	resp, body := srv.do(t, http.MethodPost, "/api/answers/submit", alice.Token, map[string]string{
		"questionId": "q1", "chosenLabel": "C",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: %d %s", resp.StatusCode, body)
	}

	_, payload := readNext(t, conn, "score")
	if payload["userId"] != alice.User.ID {
		t.Fatalf("expected score of %s, got %v", alice.User.ID, payload["userId"])
	}
	if payload["incorrect"] != float64(1) {
		t.Fatalf("expected incorrect=1, got %v", payload["incorrect"])
	}
}

func TestScoresWebSocketRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/scores"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	payload, _ := msg.Payload.(map[string]any)
	return msg.Type, payload
}
