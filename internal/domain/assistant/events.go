package assistant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/platform/websocket"
)

type EventType string

const (
	EventTurnAppended EventType = "turn_appended"
	EventTurnUpdated  EventType = "turn_updated"
	EventStateChanged EventType = "state_changed"
	EventNotice       EventType = "notice"
)

// Event describes one session transition.
type Event struct {
	Type       EventType      `json:"type"`
	Generation uint64         `json:"generation"`
	Turn       *ChatTurn      `json:"turn,omitempty"`
	State      State          `json:"state,omitempty"`
	Dictation  DictationState `json:"dictation,omitempty"`
	Notice     string         `json:"notice,omitempty"`
}

// Listener observes session events. It is called with the session lock held
// and must not call back into the session.
type Listener interface {
	SessionEvent(actorID string, ev Event)
}

type ListenerFunc func(actorID string, ev Event)

func (f ListenerFunc) SessionEvent(actorID string, ev Event) { f(actorID, ev) }

type nopListener struct{}

func (nopListener) SessionEvent(string, Event) {}

// Topic is the websocket topic carrying an actor's assistant events.
func Topic(actorID string) string {
	return "assistant:" + actorID
}

// NewPublisherListener forwards session events to a websocket publisher on
// the actor's topic.
func NewPublisherListener(pub websocket.EventPublisher, logger zerolog.Logger) Listener {
	return ListenerFunc(func(actorID string, ev Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Error().Err(err).Msg("marshal assistant event")
			return
		}
		err = pub.Publish(context.Background(), websocket.Event{
			Type:      string(ev.Type),
			Topic:     Topic(actorID),
			Timestamp: time.Now().UTC(),
			Data:      data,
		})
		if err != nil {
			logger.Warn().Err(err).Str("actor_id", actorID).Msg("publish assistant event")
		}
	})
}
