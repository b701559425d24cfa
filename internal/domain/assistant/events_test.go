package assistant

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/platform/websocket"
)

func TestPublisherListener_DeliversToActorTopic(t *testing.T) {
	hub := websocket.NewHub(zerolog.Nop())
	client := websocket.NewClient(house.ID, Topic(house.ID))
	hub.Register(client)

	s := NewSession(Deps{
		Provider: &fakeProvider{conv: &fakeConversation{}},
		Listener: NewPublisherListener(hub, zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})
	s.Open(context.Background(), house)

	var got []EventType
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case raw := <-client.Send:
			var ev websocket.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				t.Fatal(err)
			}
			if ev.Topic != "assistant:u2" {
				t.Errorf("unexpected topic %q", ev.Topic)
			}
			var inner Event
			json.Unmarshal(ev.Data, &inner)
			got = append(got, inner.Type)
			if inner.Type == EventTurnAppended && inner.Turn.Role != RoleAssistant {
				t.Errorf("expected greeting turn, got %+v", inner.Turn)
			}
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != EventTurnAppended || got[1] != EventStateChanged {
		t.Errorf("unexpected event order %v", got)
	}
}
