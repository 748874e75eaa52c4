// Package status streams run progress to observers over WebSocket:
// which account is active, the scene the classifier sees, and the
// outcome of each attempt.
package status

import (
	"time"

	"github.com/VaynZXC/tanki/internal/syncx"
)

const feedBuffer = 64

// Event is one progress update from a flow. Ts is stamped on publish.
type Event struct {
	Type     string   `json:"type"`
	Ts       int64    `json:"ts,omitempty"`
	Account  string   `json:"account,omitempty"`
	Stage    string   `json:"stage,omitempty"`
	Scene    string   `json:"scene,omitempty"`
	Distance int      `json:"distance,omitempty"`
	Rewards  []string `json:"rewards,omitempty"`
	Outcome  string   `json:"outcome,omitempty"`
}

// Feed decouples the flows from slow observers. Publish never blocks;
// when the buffer is full the event is dropped, the flow comes first.
type Feed struct {
	ch     chan Event
	latest *syncx.Guard[Event]
}

func NewFeed() *Feed {
	return &Feed{
		ch:     make(chan Event, feedBuffer),
		latest: syncx.NewGuard(Event{}),
	}
}

// Publish enqueues an event for broadcast.
func (f *Feed) Publish(evt Event) {
	if evt.Ts == 0 {
		evt.Ts = time.Now().UnixMilli()
	}
	f.latest.Set(evt)
	select {
	case f.ch <- evt:
	default:
	}
}

// Scene reports what the classifier currently sees.
func (f *Feed) Scene(account, scene string, distance int) {
	f.Publish(Event{Type: "scene", Account: account, Scene: scene, Distance: distance})
}

// Stage reports a flow stage transition.
func (f *Feed) Stage(account, stage string) {
	f.Publish(Event{Type: "stage", Account: account, Stage: stage})
}

// Result reports the outcome of one account attempt.
func (f *Feed) Result(account, outcome string, rewards []string) {
	f.Publish(Event{Type: "result", Account: account, Outcome: outcome, Rewards: rewards})
}

// Events is the broadcast stream.
func (f *Feed) Events() <-chan Event {
	return f.ch
}

// Latest returns the most recent event for late-joining observers.
func (f *Feed) Latest() Event {
	return f.latest.Get()
}
