// Package realtime fans conversation events out to websocket subscribers.
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event names pushed to clients.
const (
	EventUserMessage      = "user_message"
	EventAIMessage        = "ai_message"
	EventEvaluationUpdate = "evaluation_update"
	EventTranscript       = "transcript"
)

const sendBuffer = 32

// Notifier publishes an event to everyone watching a conversation.
// Delivery is best-effort and missed events are never replayed.
type Notifier interface {
	Emit(conversationID uuid.UUID, event string, payload interface{})
}

// Frame is the JSON envelope written to subscribers.
type Frame struct {
	Event          string      `json:"event"`
	ConversationID uuid.UUID   `json:"conversationId"`
	Payload        interface{} `json:"payload"`
}

// RoomName returns the topic name of a conversation.
func RoomName(conversationID uuid.UUID) string {
	return "ai-session-" + conversationID.String()
}

// Subscriber receives encoded frames for one room.
type Subscriber struct {
	room string
	send chan []byte
	once sync.Once
}

// Frames yields encoded frames until the subscriber leaves or is dropped.
func (s *Subscriber) Frames() <-chan []byte {
	return s.send
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub is an in-process room registry. It does not span processes.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Subscriber]struct{})}
}

// Join subscribes to a conversation's room.
func (h *Hub) Join(conversationID uuid.UUID) *Subscriber {
	sub := &Subscriber{room: RoomName(conversationID), send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[sub.room] == nil {
		h.rooms[sub.room] = make(map[*Subscriber]struct{})
	}
	h.rooms[sub.room][sub] = struct{}{}
	return sub
}

// Leave unsubscribes and closes the subscriber's channel. Safe to call twice.
func (h *Hub) Leave(sub *Subscriber) {
	h.mu.Lock()
	h.remove(sub)
	h.mu.Unlock()
}

func (h *Hub) remove(sub *Subscriber) {
	if members, ok := h.rooms[sub.room]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.rooms, sub.room)
		}
	}
	sub.close()
}

// Subscribers returns the number of subscribers in a conversation's room.
func (h *Hub) Subscribers(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[RoomName(conversationID)])
}

// Emit encodes the frame once and hands it to every subscriber of the room
// without blocking. Subscribers whose buffer is full are dropped.
func (h *Hub) Emit(conversationID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(Frame{Event: event, ConversationID: conversationID, Payload: payload})
	if err != nil {
		log.Printf("[Realtime] Failed to encode %s for %s: %v", event, conversationID, err)
		return
	}

	room := RoomName(conversationID)
	var slow []*Subscriber
	h.mu.RLock()
	for sub := range h.rooms[room] {
		select {
		case sub.send <- data:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, sub := range slow {
			h.remove(sub)
		}
		h.mu.Unlock()
		log.Printf("[Realtime] Dropped %d slow subscriber(s) from %s", len(slow), room)
	}
}
