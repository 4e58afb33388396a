// services/livefeed.go - Live Run Feed
package services

import (
	"sync"
	"time"
)

// RunEvent is one recorded run as broadcast to feed subscribers.
type RunEvent struct {
	ResultID     string    `json:"result_id"`
	Username     string    `json:"username"`
	WPM          float64   `json:"wpm"`
	Accuracy     float64   `json:"accuracy"`
	RewardEarned float64   `json:"reward_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunFeed fans recorded runs out to websocket subscribers. Publishing never
// blocks: a subscriber that cannot keep up has events dropped on the floor.
type RunFeed struct {
	mu   sync.RWMutex
	subs map[chan RunEvent]struct{}
}

func NewRunFeed() *RunFeed {
	return &RunFeed{subs: make(map[chan RunEvent]struct{})}
}

// Subscribe registers a new subscriber channel.
func (f *RunFeed) Subscribe() chan RunEvent {
	ch := make(chan RunEvent, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (f *RunFeed) Unsubscribe(ch chan RunEvent) {
	f.mu.Lock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()
}

// Publish delivers an event to every subscriber that has buffer room.
func (f *RunFeed) Publish(event RunEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
