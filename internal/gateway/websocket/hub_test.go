package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(hub *Hub, id string) *Client {
	return &Client{
		hub:         hub,
		send:        make(chan []byte, 256),
		sessions:    make(map[string]bool),
		id:          id,
		connectedAt: time.Now(),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub.clients == nil {
		t.Error("clients map is nil")
	}
	if hub.sessions == nil {
		t.Error("sessions map is nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", hub.ClientCount())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "test-client")

	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount after register = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount after unregister = %d, want 0", hub.ClientCount())
	}
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-client")

	hub.Subscribe(client, "session-1")

	if !client.sessions["session-1"] {
		t.Error("client.sessions does not contain session-1")
	}
	if _, ok := hub.sessions["session-1"]; !ok {
		t.Error("hub.sessions does not contain session-1")
	}

	hub.Unsubscribe(client, "session-1")

	if client.sessions["session-1"] {
		t.Error("client still subscribed after unsubscribe")
	}
	if _, ok := hub.sessions["session-1"]; ok {
		t.Error("empty session not removed from hub")
	}
}

func TestHubBroadcastToSession(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscribed := newTestClient(hub, "subscribed")
	other := newTestClient(hub, "other")

	hub.Register(subscribed)
	hub.Register(other)
	time.Sleep(10 * time.Millisecond)

	hub.Subscribe(subscribed, "session-1")

	hub.Broadcast("session-1", []byte("payload"))
	time.Sleep(10 * time.Millisecond)

	select {
	case data := <-subscribed.send:
		if string(data) != "payload" {
			t.Errorf("got %q, want payload", data)
		}
	default:
		t.Error("subscribed client did not receive broadcast")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client received session broadcast")
	default:
	}
}

func TestHubNotifySessionUpdated(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "client")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	hub.NotifySessionUpdated("session-7")
	time.Sleep(10 * time.Millisecond)

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if msg.Type != TypeSessionUpdated {
			t.Errorf("type = %q, want %q", msg.Type, TypeSessionUpdated)
		}
		if msg.Session != "session-7" {
			t.Errorf("session = %q, want session-7", msg.Session)
		}
	default:
		t.Error("client did not receive session update")
	}
}
