package http

import (
	"log/slog"
	"sync"
)

// StreamManager fans session responses out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	logger      *slog.Logger
	subscribers map[string]map[chan<- []byte]struct{} // SessionID -> Set of Channels
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[string]map[chan<- []byte]struct{}),
	}
}

// Subscribe registers a channel for sessionID. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- []byte]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, present := subs[ch]; !present {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Broadcast never blocks: slow subscribers lose messages.
func (sm *StreamManager) Broadcast(sessionID string, msg []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Subscribers returns the number of open streams for sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}
