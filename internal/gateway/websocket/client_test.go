package websocket

import (
	"encoding/json"
	"testing"
)

func TestHandleMessageSubscribe(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")

	data, _ := json.Marshal(WSMessage{Type: TypeSubscribe, Session: "s1"})
	client.handleMessage(data)

	if !client.sessions["s1"] {
		t.Error("client not subscribed after subscribe message")
	}
}

func TestHandleMessageUnsubscribe(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")
	hub.Subscribe(client, "s1")

	data, _ := json.Marshal(WSMessage{Type: TypeUnsubscribe, Session: "s1"})
	client.handleMessage(data)

	if client.sessions["s1"] {
		t.Error("client still subscribed after unsubscribe message")
	}
}

func TestHandleMessagePing(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")

	data, _ := json.Marshal(WSMessage{Type: TypePing})
	client.handleMessage(data)

	select {
	case resp := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(resp, &msg); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if msg.Type != TypePong {
			t.Errorf("type = %q, want %q", msg.Type, TypePong)
		}
	default:
		t.Error("no pong sent")
	}
}

func TestHandleMessageInvalidJSON(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")

	client.handleMessage([]byte("{not json"))

	select {
	case resp := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(resp, &msg); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if msg.Type != TypeError {
			t.Errorf("type = %q, want %q", msg.Type, TypeError)
		}
	default:
		t.Error("no error sent for invalid message")
	}
}
