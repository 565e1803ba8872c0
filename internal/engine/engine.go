// Package engine defines the boundary to the external media engine that
// decodes and renders files. The session only depends on this interface.
package engine

import (
	"context"
	"time"
)

// EventType classifies asynchronous engine notifications
type EventType string

const (
	// EventReady signals that the engine has loaded a file and playback started
	EventReady EventType = "ready"
	// EventEndOfStream signals natural end of the current file
	EventEndOfStream EventType = "end_of_stream"
	// EventCrashed signals that the engine process died or stopped responding
	EventCrashed EventType = "crashed"
)

// Event is an asynchronous notification from the engine
type Event struct {
	Type   EventType
	Detail string
}

// Engine is the playback contract consumed by the session
type Engine interface {
	// Play loads a file and begins playback at the given offset
	Play(ctx context.Context, path string, start time.Duration, subtitles []string) error
	Pause() error
	Resume() error
	Stop() error
	Position() (time.Duration, error)
	Duration() (time.Duration, error)
	AdjustVolume(delta int) error
	ToggleMute() error
	// ShowTitle asks the engine to overlay the item title briefly
	ShowTitle(title string, d time.Duration) error
	// Events delivers Ready/EndOfStream/Crashed notifications
	Events() <-chan Event
	Close() error
}
