package http

import (
	"log/slog"
	"sync"
)

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for sessionID. The returned func
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
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

// Broadcast sends msg to every subscriber of sessionID without blocking.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
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
