package storage

import (
	"testing"
)

func TestAppendAndGetMessages(t *testing.T) {
	db := openTestDB(t)
	s, _ := db.CreateSession("u1", "t")

	if _, err := db.AppendMessage(s.ID, "user", "hello"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if _, err := db.AppendMessage(s.ID, "assistant", "hi there"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	msgs, err := db.GetMessages(s.ID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Errorf("first message: %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" {
		t.Errorf("second message: %+v", msgs[1])
	}
}

func TestCountMessages(t *testing.T) {
	db := openTestDB(t)
	s, _ := db.CreateSession("u1", "t")

	count, err := db.CountMessages(s.ID)
	if err != nil || count != 0 {
		t.Fatalf("empty count = %d (%v), want 0", count, err)
	}

	db.AppendMessage(s.ID, "user", "one")
	db.AppendMessage(s.ID, "assistant", "two")

	count, _ = db.CountMessages(s.ID)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestGetMessages_EmptySession(t *testing.T) {
	db := openTestDB(t)
	s, _ := db.CreateSession("u1", "t")

	msgs, err := db.GetMessages(s.ID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("len = %d, want 0", len(msgs))
	}
}
