package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUserPassword(t *testing.T) {
	u := &User{ID: "u1", Email: "dev@example.com"}

	if err := u.SetPassword("supersecret"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if u.PasswordHash == "supersecret" {
		t.Error("Password must not be stored in plaintext")
	}
	if !u.CheckPassword("supersecret") {
		t.Error("Expected correct password to verify")
	}
	if u.CheckPassword("wrongpassword") {
		t.Error("Expected wrong password to fail")
	}
}

func TestUserHashNeverSerialized(t *testing.T) {
	u := &User{ID: "u1", Email: "dev@example.com"}
	if err := u.SetPassword("supersecret"); err != nil {
		t.Fatal(err)
	}

	b, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), u.PasswordHash) {
		t.Error("Password hash leaked into JSON output")
	}
}
