package sse

import (
	"context"
	"sync"

	"onfa-ticketing/internal/metrics"
	"onfa-ticketing/internal/models"
)

const clientBuffer = 16

// CheckInEmitter fans check-in events out to connected stream clients,
// keyed by channel name.
type CheckInEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.CheckInEvent
}

func NewCheckInEmitter() *CheckInEmitter {
	return &CheckInEmitter{clients: make(map[string][]chan models.CheckInEvent)}
}

// Subscribe registers a client until ctx is done, then closes its channel.
func (e *CheckInEmitter) Subscribe(ctx context.Context, channel string) <-chan models.CheckInEvent {
	ch := make(chan models.CheckInEvent, clientBuffer)

	e.mu.Lock()
	e.clients[channel] = append(e.clients[channel], ch)
	e.mu.Unlock()
	metrics.SSEClientConnected()

	go func() {
		<-ctx.Done()
		e.remove(channel, ch)
	}()

	return ch
}

// Emit never blocks; a client whose buffer is full misses the event and
// catches up through the stats endpoint.
func (e *CheckInEmitter) Emit(channel string, event models.CheckInEvent) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	delivered := 0
	for _, ch := range e.clients[channel] {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

func (e *CheckInEmitter) remove(channel string, ch chan models.CheckInEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[channel]
	for i, c := range clients {
		if c == ch {
			e.clients[channel] = append(clients[:i], clients[i+1:]...)
			close(ch)
			metrics.SSEClientDisconnected()
			break
		}
	}
	if len(e.clients[channel]) == 0 {
		delete(e.clients, channel)
	}
}

func (e *CheckInEmitter) ClientCount(channel string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[channel])
}
