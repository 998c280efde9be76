// Package audit records who did what to which resource. Every gated AI
// action, every review decision, and every direct execution leaves an event
// here, so a reviewer can reconstruct the approval trail after the fact.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xtoazt/gummybear-sub000/pkg/auth"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventAccess   EventType = "ACCESS"
	EventMutation EventType = "MUTATION"
	EventSystem   EventType = "SYSTEM"
	EventPolicy   EventType = "POLICY"
)

// Event represents a structured audit record.
type Event struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error
}

// logger implements Logger, writing structured JSON to a configurable Writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w}
}

func (l *logger) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	event := buildEvent(ctx, eventType, action, resource, metadata)

	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}

// buildEvent stamps identity and time. The actor falls back to "system" for
// requests with no principal, such as startup tasks.
func buildEvent(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) Event {
	actorID := "system"
	if principal, err := auth.GetPrincipal(ctx); err == nil {
		actorID = principal.ID
	}
	return Event{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

type nopLogger struct{}

func (nopLogger) Record(context.Context, EventType, string, string, map[string]any) error {
	return nil
}

// Nop returns a Logger that discards every event. Used as the default when
// no sink is configured.
func Nop() Logger {
	return nopLogger{}
}
