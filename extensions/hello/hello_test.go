package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestGreet(t *testing.T) {
	result, err := greet(context.Background(), json.RawMessage(`{"name":"Ada"}`))
	if err != nil {
		t.Fatalf("greet returned error: %v", err)
	}
	if result.Content != "Hello, Ada!" {
		t.Errorf("Expected greeting, got %q", result.Content)
	}
}

func TestGreet_Shout(t *testing.T) {
	result, err := greet(context.Background(), json.RawMessage(`{"name":"Ada","shout":true}`))
	if err != nil {
		t.Fatalf("greet returned error: %v", err)
	}
	if result.Content != "HELLO, ADA!" {
		t.Errorf("Expected shouted greeting, got %q", result.Content)
	}
}

func TestGreet_MissingName(t *testing.T) {
	_, err := greet(context.Background(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("Expected validation error for missing name")
	}
	if !strings.Contains(err.Error(), "invalid input") {
		t.Errorf("Expected validation message, got %q", err.Error())
	}
}

func TestHelloCommand_WithArgs(t *testing.T) {
	content, err := helloCommand(context.Background(), "  Grace  ")
	if err != nil {
		t.Fatalf("helloCommand returned error: %v", err)
	}
	if content != "Hello, Grace!" {
		t.Errorf("Expected trimmed greeting, got %q", content)
	}
}

func TestHelloCommand_NoArgs(t *testing.T) {
	// Outside the sandbox the env hostcall fails, so the fallback
	// name is used.
	content, err := helloCommand(context.Background(), "")
	if err != nil {
		t.Fatalf("helloCommand returned error: %v", err)
	}
	if content != "Hello, stranger!" {
		t.Errorf("Expected fallback greeting, got %q", content)
	}
}

func TestSessionStart_NoBanner(t *testing.T) {
	// Outside the sandbox the read hostcall fails; the hook should
	// pass instead of reporting an error.
	result, err := sessionStart(context.Background(), nil)
	if err != nil {
		t.Fatalf("sessionStart returned error: %v", err)
	}
	if result != nil {
		t.Errorf("Expected no result without a banner, got %s", result)
	}
}
