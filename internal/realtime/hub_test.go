package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func TestEmitReachesOnlyRoomMembers(t *testing.T) {
	h := NewHub()
	convA, convB := uuid.New(), uuid.New()
	a1, a2, b := h.Join(convA), h.Join(convA), h.Join(convB)

	h.Emit(convA, EventAIMessage, map[string]string{"content": "hello"})

	for _, sub := range []*Subscriber{a1, a2} {
		select {
		case data := <-sub.Frames():
			var f struct {
				Event          string            `json:"event"`
				ConversationID uuid.UUID         `json:"conversationId"`
				Payload        map[string]string `json:"payload"`
			}
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatal(err)
			}
			if f.Event != EventAIMessage || f.ConversationID != convA || f.Payload["content"] != "hello" {
				t.Errorf("frame = %+v", f)
			}
		default:
			t.Error("room member did not receive the frame")
		}
	}
	select {
	case <-b.Frames():
		t.Error("subscriber of another room received the frame")
	default:
	}
}

func TestEmitWithoutSubscribersIsNoop(t *testing.T) {
	h := NewHub()
	h.Emit(uuid.New(), EventTranscript, nil)
}

func TestLeaveAndSlowSubscriberDropped(t *testing.T) {
	h := NewHub()
	conv := uuid.New()
	sub := h.Join(conv)
	for i := 0; i < sendBuffer+1; i++ {
		h.Emit(conv, EventUserMessage, i)
	}
	if h.Subscribers(conv) != 0 {
		t.Fatalf("slow subscriber should have been dropped")
	}
	n := 0
	for range sub.Frames() {
		n++
	}
	if n != sendBuffer {
		t.Errorf("buffered frames = %d, want %d", n, sendBuffer)
	}
	// leaving after being dropped must not panic
	h.Leave(sub)
}

func TestRoomName(t *testing.T) {
	id := uuid.MustParse("6f1c0a52-5a55-4f51-9b43-a1d1e5d1c000")
	if got := RoomName(id); got != "ai-session-6f1c0a52-5a55-4f51-9b43-a1d1e5d1c000" {
		t.Errorf("RoomName() = %q", got)
	}
}

func TestServeWebsocket(t *testing.T) {
	h := NewHub()
	conv := uuid.New()
	upgrader := NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Serve(conn, conv)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers(conv) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	h.Emit(conv, EventEvaluationUpdate, map[string]float64{"grammarScore": 7})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"event":"evaluation_update"`) {
		t.Errorf("frame = %s", data)
	}
}

func TestUpgraderOrigins(t *testing.T) {
	u := NewUpgrader([]string{"http://app.example"})
	ok := httptest.NewRequest(http.MethodGet, "/", nil)
	ok.Header.Set("Origin", "http://app.example")
	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Origin", "http://evil.example")
	if !u.CheckOrigin(ok) || u.CheckOrigin(bad) {
		t.Error("origin check mismatch")
	}
}
